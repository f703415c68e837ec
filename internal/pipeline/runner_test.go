package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/events"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/store/model"
)

type recordedEvent struct {
	kind  string
	event events.JobEvent
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) WriteJSON(_ context.Context, kind string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, _ := v.(events.JobEvent)
	r.events = append(r.events, recordedEvent{kind: kind, event: ev})
	return nil
}

func (r *eventRecorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

func newTestStore() (store.Store, *gorm.DB) {
	db, err := store.InitDB(config.NewDefault())
	Expect(err).To(BeNil())
	s := store.NewStore(db)
	Expect(s.Migrate()).To(Succeed())
	return s, db
}

func submitJob(s store.Store, j model.Job) *model.Job {
	if j.OwnerID == "" {
		j.OwnerID = "alice"
	}
	if j.Title == "" {
		j.Title = "Demo"
	}
	if j.SourceKind == "" {
		j.SourceKind = model.SourceKindRemoteURL
		j.SourceRef = "https://youtu.be/abc12345678"
	}
	if j.DurationSeconds == 0 {
		j.DurationSeconds = 600
	}
	job, err := s.Job().Create(context.TODO(), j)
	Expect(err).To(BeNil())
	return job
}

func fastOptions() pipeline.Options {
	return pipeline.Options{
		StageTimeout: 2 * time.Second,
		Policy:       pipeline.DefaultClipPolicy(),
		Sources:      pipeline.SeededSource,
	}
}

var _ = Describe("Runner", func() {
	var (
		s        store.Store
		gormDB   *gorm.DB
		recorder *eventRecorder
		ctx      context.Context
	)

	BeforeEach(func() {
		s, gormDB = newTestStore()
		recorder = &eventRecorder{}
		ctx = context.TODO()
	})

	AfterEach(func() {
		s.Close()
	})

	It("completes a job with clips and a transcript", func() {
		job := submitJob(s, model.Job{})
		runner := pipeline.NewRunner(s, fastOptions(), pipeline.WithEventWriter(recorder))

		outcome := runner.Run(ctx, job.ID)
		Expect(outcome.Err).To(BeNil())
		Expect(outcome.State).To(Equal(model.JobStateCompleted))
		Expect(outcome.Clips).To(Equal(5))

		got, err := s.Job().Get(ctx, job.ID, "alice")
		Expect(err).To(BeNil())
		Expect(got.State).To(Equal(model.JobStateCompleted))
		Expect(got.CurrentStage).To(Equal(len(model.Stages) - 1))
		Expect(got.ErrorReason).To(BeNil())
		Expect(got.Clips).To(HaveLen(5))
		for _, c := range got.Clips {
			Expect(c.Title).To(ContainSubstring("Highlight"))
			Expect(c.Status).To(Equal(model.ClipStatusReady))
		}
		Expect(got.Transcript).To(HaveLen(3))

		Expect(recorder.Kinds()).To(Equal([]string{
			events.JobRunningKind,
			events.JobStageKind,
			events.JobStageKind,
			events.JobStageKind,
			events.JobStageKind,
			events.JobCompletedKind,
		}))
	})

	It("produces the same clips for the same job", func() {
		job := submitJob(s, model.Job{})
		runner := pipeline.NewRunner(s, fastOptions())
		runner.Run(ctx, job.ID)

		got, err := s.Job().GetByID(ctx, job.ID)
		Expect(err).To(BeNil())

		expected, err := pipeline.GenerateClips(job.ID, job.Title, 600, pipeline.DefaultClipPolicy(), pipeline.SeededSource(job.ID))
		Expect(err).To(BeNil())
		for i := range expected {
			Expect(got.Clips[i].StartOffsetSeconds).To(Equal(expected[i].StartOffsetSeconds))
			Expect(got.Clips[i].EndOffsetSeconds).To(Equal(expected[i].EndOffsetSeconds))
		}
	})

	It("records a stage failure without partial clips", func() {
		job := submitJob(s, model.Job{})
		runner := pipeline.NewRunner(s, fastOptions(),
			pipeline.WithEventWriter(recorder),
			pipeline.WithStage(model.StageRenderingShorts, func(ctx context.Context, w *pipeline.Work) error {
				return errors.New("encoder crashed")
			}),
		)

		outcome := runner.Run(ctx, job.ID)
		Expect(outcome.State).To(Equal(model.JobStateFailed))
		Expect(outcome.ErrorReason).To(Equal("renderingShorts: encoder crashed"))

		got, err := s.Job().GetByID(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(got.State).To(Equal(model.JobStateFailed))
		Expect(got.Clips).To(BeEmpty())
		Expect(*got.ErrorReason).To(Equal("renderingShorts: encoder crashed"))
		Expect(got.CurrentStage).To(Equal(4))

		kinds := recorder.Kinds()
		Expect(kinds[len(kinds)-1]).To(Equal(events.JobFailedKind))
	})

	It("fails a stage that exceeds its timeout", func() {
		job := submitJob(s, model.Job{})
		opts := fastOptions()
		opts.StageTimeout = 50 * time.Millisecond
		runner := pipeline.NewRunner(s, opts,
			pipeline.WithStage(model.StageAnalyzingScenes, func(ctx context.Context, w *pipeline.Work) error {
				<-ctx.Done()
				return ctx.Err()
			}),
		)

		outcome := runner.Run(ctx, job.ID)
		Expect(outcome.State).To(Equal(model.JobStateFailed))
		Expect(outcome.ErrorReason).To(Equal("stage timeout"))
	})

	It("fails a job cancelled before it starts", func() {
		job := submitJob(s, model.Job{})
		_, err := s.Job().Update(ctx, job.ID, func(j *model.Job) error {
			j.CancelRequested = true
			return nil
		})
		Expect(err).To(BeNil())

		outcome := pipeline.NewRunner(s, fastOptions()).Run(ctx, job.ID)
		Expect(outcome.State).To(Equal(model.JobStateFailed))
		Expect(outcome.ErrorReason).To(Equal(model.ReasonCancelled))
	})

	It("stops at the next stage boundary after a cancel", func() {
		job := submitJob(s, model.Job{})
		runner := pipeline.NewRunner(s, fastOptions(),
			pipeline.WithStage(model.StageAnalyzingScenes, func(ctx context.Context, w *pipeline.Work) error {
				_, err := s.Job().Update(ctx, w.Job.ID, func(j *model.Job) error {
					j.CancelRequested = true
					return nil
				})
				return err
			}),
		)

		outcome := runner.Run(ctx, job.ID)
		Expect(outcome.State).To(Equal(model.JobStateFailed))
		Expect(outcome.ErrorReason).To(Equal(model.ReasonCancelled))

		got, err := s.Job().GetByID(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(got.CurrentStage).To(Equal(1))
		Expect(got.Clips).To(BeEmpty())
	})

	It("verifies uploaded sources against the object store", func() {
		objects := objectstore.NewMemoryStore("uploads")
		job := submitJob(s, model.Job{SourceKind: model.SourceKindUploadedFile, SourceRef: "s3://uploads/missing.mp4"})

		outcome := pipeline.NewRunner(s, fastOptions(), pipeline.WithObjectStore(objects)).Run(ctx, job.ID)
		Expect(outcome.State).To(Equal(model.JobStateFailed))
		Expect(outcome.ErrorReason).To(ContainSubstring("uploading: uploaded video s3://uploads/missing.mp4 not found"))
	})

	It("skips jobs it cannot claim", func() {
		job := submitJob(s, model.Job{})
		runner := pipeline.NewRunner(s, fastOptions())
		Expect(runner.Run(ctx, job.ID).State).To(Equal(model.JobStateCompleted))

		outcome := runner.Run(ctx, job.ID)
		Expect(outcome.Skipped).To(BeTrue())

		Expect(runner.Run(ctx, "missing").Skipped).To(BeTrue())
	})

	It("never shows a state regression to a poller", func() {
		job := submitJob(s, model.Job{})
		opts := fastOptions()
		opts.StageDelay = 5 * time.Millisecond
		runner := pipeline.NewRunner(s, opts)

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			runner.Run(ctx, job.ID)
		}()

		rank := map[model.JobState]int{model.JobStateQueued: 0, model.JobStateRunning: 1, model.JobStateCompleted: 2}
		lastRank, lastStage := 0, 0
		Eventually(func() model.JobState {
			got, err := s.Job().GetByID(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(rank[got.State]).To(BeNumerically(">=", lastRank))
			Expect(got.CurrentStage).To(BeNumerically(">=", lastStage))
			Expect(len(got.Clips) > 0).To(Equal(got.State == model.JobStateCompleted))
			lastRank, lastStage = rank[got.State], got.CurrentStage
			return got.State
		}).WithPolling(2 * time.Millisecond).WithTimeout(5 * time.Second).Should(Equal(model.JobStateCompleted))
		<-done

		count := 0
		Expect(gormDB.Raw("SELECT COUNT(*) FROM jobs WHERE state = 'completed'").Scan(&count).Error).To(BeNil())
		Expect(count).To(Equal(1))
	})
})
