package pipeline_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivertype"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/store/model"
)

type countingRunner struct {
	inner *pipeline.Runner
	mu    sync.Mutex
	runs  map[string]int
}

func (c *countingRunner) Run(ctx context.Context, jobID string) pipeline.RunOutcome {
	c.mu.Lock()
	c.runs[jobID]++
	c.mu.Unlock()
	return c.inner.Run(ctx, jobID)
}

func (c *countingRunner) Runs(jobID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[jobID]
}

var _ = Describe("Queue", func() {
	var (
		s      store.Store
		sqlDB  *sql.DB
		ctx    context.Context
		cancel context.CancelFunc
		runner *countingRunner
	)

	BeforeEach(func() {
		var err error
		var gormdb *gorm.DB
		s, gormdb = newTestStore()
		sqlDB, err = gormdb.DB()
		Expect(err).To(BeNil())
		Expect(pipeline.MigrateQueue[*sql.Tx](context.TODO(), riversqlite.New(sqlDB))).To(Succeed())

		ctx, cancel = context.WithCancel(context.Background())
		runner = &countingRunner{inner: pipeline.NewRunner(s, fastOptions()), runs: map[string]int{}}
	})

	AfterEach(func() {
		cancel()
		s.Close()
	})

	newQueue := func(opts pipeline.QueueOptions) *pipeline.Queue[*sql.Tx] {
		q, err := pipeline.NewQueue[*sql.Tx](riversqlite.New(sqlDB), s, runner, opts)
		Expect(err).To(BeNil())
		return q
	}

	stateOf := func(id string) func() model.JobState {
		return func() model.JobState {
			job, err := s.Job().GetByID(context.TODO(), id)
			Expect(err).To(BeNil())
			return job.State
		}
	}

	It("runs enqueued jobs to completion", func() {
		q := newQueue(pipeline.QueueOptions{Workers: 2})
		go func() { _ = q.Run(ctx) }()

		jobs := []*model.Job{submitJob(s, model.Job{}), submitJob(s, model.Job{}), submitJob(s, model.Job{})}
		for _, j := range jobs {
			Expect(q.Enqueue(ctx, j.ID)).To(Succeed())
		}

		for _, j := range jobs {
			Eventually(stateOf(j.ID)).WithTimeout(10 * time.Second).Should(Equal(model.JobStateCompleted))
		}
	})

	It("does not schedule a job twice", func() {
		q := newQueue(pipeline.QueueOptions{Workers: 1})
		job := submitJob(s, model.Job{})

		Expect(q.Enqueue(ctx, job.ID)).To(Succeed())
		Expect(q.Enqueue(ctx, job.ID)).To(Succeed())

		go func() { _ = q.Run(ctx) }()
		Eventually(stateOf(job.ID)).WithTimeout(10 * time.Second).Should(Equal(model.JobStateCompleted))
		Consistently(func() int { return runner.Runs(job.ID) }).WithTimeout(300 * time.Millisecond).Should(Equal(1))
	})

	It("picks up stale queued jobs on the periodic sweep", func() {
		job := submitJob(s, model.Job{})
		q := newQueue(pipeline.QueueOptions{Workers: 1, RequeueInterval: 20 * time.Millisecond})
		go func() { _ = q.Run(ctx) }()

		Eventually(stateOf(job.ID)).WithTimeout(15 * time.Second).Should(Equal(model.JobStateCompleted))
	})

	It("migrates the river tables idempotently", func() {
		Expect(pipeline.MigrateQueue[*sql.Tx](context.TODO(), riversqlite.New(sqlDB))).To(Succeed())
	})

	Context("worker", func() {
		attempt := func(n int, jobID string) *river.Job[pipeline.RunJobArgs] {
			return &river.Job[pipeline.RunJobArgs]{
				JobRow: &rivertype.JobRow{Attempt: n, Kind: pipeline.RunJobKind},
				Args:   pipeline.RunJobArgs{JobID: jobID},
			}
		}

		It("fails a job a rescued attempt left running", func() {
			orphan := submitJob(s, model.Job{})
			_, err := s.Job().Update(context.TODO(), orphan.ID, func(j *model.Job) error {
				j.State = model.JobStateRunning
				j.CurrentStage = 2
				return nil
			})
			Expect(err).To(BeNil())

			w := pipeline.NewRunJobWorker(s, runner, time.Minute)
			Expect(w.Work(context.TODO(), attempt(2, orphan.ID))).To(Succeed())

			got, err := s.Job().GetByID(context.TODO(), orphan.ID)
			Expect(err).To(BeNil())
			Expect(got.State).To(Equal(model.JobStateFailed))
			Expect(*got.ErrorReason).To(Equal(model.ReasonInterrupted))
			Expect(got.Clips).To(BeEmpty())
		})

		It("runs a queued job on a later attempt", func() {
			job := submitJob(s, model.Job{})

			w := pipeline.NewRunJobWorker(s, runner, time.Minute)
			Expect(w.Work(context.TODO(), attempt(2, job.ID))).To(Succeed())
			Expect(stateOf(job.ID)()).To(Equal(model.JobStateCompleted))
		})

		It("skips a deleted job", func() {
			w := pipeline.NewRunJobWorker(s, runner, time.Minute)
			Expect(w.Work(context.TODO(), attempt(1, "missing"))).To(Succeed())
		})

		It("bounds a run by every stage timeout", func() {
			w := pipeline.NewRunJobWorker(s, runner, pipeline.RunTimeout(time.Second))
			Expect(w.Timeout(attempt(1, "any"))).To(BeNumerically(">=", time.Duration(len(model.Stages))*time.Second))
		})
	})
})
