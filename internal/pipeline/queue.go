package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/pkg/log"
)

const (
	RunJobKind  = "clipforge_run_job"
	RequeueKind = "clipforge_requeue"

	// a rescued run gets one more attempt, which records the interruption
	runMaxAttempts = 2
	rescueMargin   = time.Minute
	stopTimeout    = 30 * time.Second
)

// JobRunner runs one job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, jobID string) RunOutcome
}

// JobQueue schedules runs of stored jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	Run(ctx context.Context) error
}

// RunJobArgs is stored in river_job.args.
type RunJobArgs struct {
	JobID string `json:"job_id"`
}

func (RunJobArgs) Kind() string {
	return RunJobKind
}

// InsertOpts keeps at most one live river job per clip job.
func (RunJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: runMaxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// RunJobWorker hands river jobs to the runner.
type RunJobWorker struct {
	river.WorkerDefaults[RunJobArgs]
	store   store.Store
	runner  JobRunner
	timeout time.Duration
	onDone  func(RunOutcome)
}

func NewRunJobWorker(s store.Store, runner JobRunner, timeout time.Duration) *RunJobWorker {
	return &RunJobWorker{store: s, runner: runner, timeout: timeout}
}

func (w *RunJobWorker) Timeout(*river.Job[RunJobArgs]) time.Duration {
	return w.timeout
}

func (w *RunJobWorker) Work(ctx context.Context, job *river.Job[RunJobArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// a later attempt means the previous one was rescued or failed to persist
	if job.Attempt > 1 {
		if err := failInterrupted(ctx, w.store, job.Args.JobID); err != nil {
			return err
		}
	}

	outcome := w.runner.Run(ctx, job.Args.JobID)
	if w.onDone != nil {
		w.onDone(outcome)
	}
	return outcome.Err
}

// failInterrupted fails a job left running by a lost runner.
func failInterrupted(ctx context.Context, s store.Store, jobID string) error {
	_, err := s.Job().Update(ctx, jobID, func(j *model.Job) error {
		if j.State != model.JobStateRunning {
			return store.ErrUnchanged
		}
		reason := model.ReasonInterrupted
		j.State = model.JobStateFailed
		j.ErrorReason = &reason
		j.Clips = model.ClipList{}
		return nil
	})
	switch {
	case err == nil:
		zap.S().Named("queue").Infow("marked orphaned job as interrupted", "job_id", jobID)
		return nil
	case errors.Is(err, store.ErrUnchanged), errors.Is(err, store.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

type RequeueArgs struct{}

func (RequeueArgs) Kind() string {
	return RequeueKind
}

// RequeueWorker schedules queued jobs that have no river job, such as those
// whose insert failed after the row was committed.
type RequeueWorker struct {
	river.WorkerDefaults[RequeueArgs]
	store      store.Store
	staleAfter time.Duration
	enqueue    func(ctx context.Context, jobID string) error
}

func (w *RequeueWorker) Work(ctx context.Context, _ *river.Job[RequeueArgs]) error {
	filter := store.NewJobQueryFilter().ByStates(model.JobStateQueued)
	if w.staleAfter > 0 {
		filter = filter.UpdatedBefore(time.Now().Add(-w.staleAfter).UTC())
	}
	jobs, err := w.store.Job().List(ctx, filter)
	if err != nil {
		return err
	}
	// oldest first
	for i := len(jobs) - 1; i >= 0; i-- {
		if err := w.enqueue(ctx, jobs[i].ID); err != nil {
			return err
		}
	}
	return nil
}

type QueueOptions struct {
	Workers         int
	RequeueInterval time.Duration
	// RunTimeout bounds one run; stuck runs are rescued after it.
	RunTimeout time.Duration
	// OnDone, when set, is called after every run.
	OnDone func(RunOutcome)
}

// Queue runs clip jobs on river. Jobs survive restarts in river_job and are
// deduplicated by their arguments.
type Queue[TTx any] struct {
	client *river.Client[TTx]
	logger *log.StructuredLogger
}

func NewQueue[TTx any](driver riverdriver.Driver[TTx], s store.Store, runner JobRunner, opts QueueOptions) (*Queue[TTx], error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = RunTimeout(30 * time.Second)
	}

	q := &Queue[TTx]{logger: log.NewDebugLogger("queue")}

	runWorker := NewRunJobWorker(s, runner, opts.RunTimeout)
	runWorker.onDone = opts.OnDone

	workers := river.NewWorkers()
	river.AddWorker(workers, runWorker)
	river.AddWorker(workers, &RequeueWorker{store: s, staleAfter: opts.RequeueInterval, enqueue: q.Enqueue})

	var periodic []*river.PeriodicJob
	if opts.RequeueInterval > 0 {
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(opts.RequeueInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return RequeueArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.Workers},
		},
		Workers:      workers,
		PeriodicJobs: periodic,

		JobTimeout:           opts.RunTimeout,
		RescueStuckJobsAfter: opts.RunTimeout + rescueMargin,

		FetchCooldown:     50 * time.Millisecond,
		FetchPollInterval: 100 * time.Millisecond,

		CancelledJobRetentionPeriod: 24 * time.Hour,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	q.client = client
	return q, nil
}

// Enqueue schedules a run. A job that already has a live river job is left
// alone.
func (q *Queue[TTx]) Enqueue(ctx context.Context, jobID string) error {
	res, err := q.client.Insert(ctx, RunJobArgs{JobID: jobID}, nil)
	if err != nil {
		return err
	}
	if res.UniqueSkippedAsDuplicate {
		q.logger.WithContext(ctx).Operation("enqueue").
			WithString("job_id", jobID).
			Build().
			Step("duplicate").Log()
	}
	return nil
}

// Run works jobs until ctx is done, then lets running jobs finish.
func (q *Queue[TTx]) Run(ctx context.Context) error {
	if err := q.client.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	zap.S().Named("queue").Info("river job queue started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := q.client.Stop(stopCtx); err != nil {
		zap.S().Named("queue").Warnw("stopping river client", "error", err)
		return q.client.StopAndCancel(context.Background())
	}
	return nil
}

// MigrateQueue creates or upgrades the river tables.
func MigrateQueue[TTx any](ctx context.Context, driver riverdriver.Driver[TTx]) error {
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return err
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
	if err != nil {
		return err
	}
	for _, v := range res.Versions {
		zap.S().Named("queue").Infow("applied river migration", "version", v.Version)
	}
	return nil
}

// RunTimeout is the longest a run can take with the given stage timeout.
func RunTimeout(stageTimeout time.Duration) time.Duration {
	return time.Duration(len(model.Stages))*stageTimeout + finalWriteTimeout
}
