package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/clipforge/clipforge/internal/events"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/pkg/log"
	"github.com/clipforge/clipforge/pkg/metrics"
)

const finalWriteTimeout = 5 * time.Second

// EventWriter receives job lifecycle events.
type EventWriter interface {
	WriteJSON(ctx context.Context, kind string, v any) error
}

type Options struct {
	StageDelay   time.Duration
	StageTimeout time.Duration
	Policy       ClipPolicy
	Sources      SourceFactory
}

// RunOutcome describes how a run ended. Failures are recorded on the job, so
// the outcome is informational.
type RunOutcome struct {
	JobID       string
	State       model.JobState
	Stage       model.Stage
	ErrorReason string
	Clips       int
	// Skipped is set when the job was not claimable: already claimed,
	// terminal or deleted.
	Skipped bool
	// Err is set when the outcome could not be persisted.
	Err error
}

type RunnerOption func(r *Runner)

func WithObjectStore(o objectstore.ObjectStore) RunnerOption {
	return func(r *Runner) {
		r.objects = o
	}
}

func WithEventWriter(w EventWriter) RunnerOption {
	return func(r *Runner) {
		r.events = w
	}
}

// WithStage replaces the work done for one stage.
func WithStage(stage model.Stage, fn StageFunc) RunnerOption {
	return func(r *Runner) {
		r.stages[stage] = fn
	}
}

// Runner drives a job through the fixed stage list. It only holds the job row
// while persisting a transition.
type Runner struct {
	store   store.Store
	objects objectstore.ObjectStore
	events  EventWriter
	opts    Options
	stages  map[model.Stage]StageFunc
}

func NewRunner(s store.Store, opts Options, options ...RunnerOption) *Runner {
	if opts.Sources == nil {
		opts.Sources = SeededSource
	}
	if opts.Policy == (ClipPolicy{}) {
		opts.Policy = DefaultClipPolicy()
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 30 * time.Second
	}

	r := &Runner{store: s, opts: opts}
	r.stages = r.defaultStages()
	for _, o := range options {
		o(r)
	}
	return r
}

func (r *Runner) Run(ctx context.Context, jobID string) RunOutcome {
	tracer := log.NewDebugLogger("runner").
		WithContext(ctx).
		Operation("run_job").
		WithString("job_id", jobID).
		Build()

	metrics.IncreaseRunsInFlight()
	defer metrics.DecreaseRunsInFlight()

	claimed, err := r.store.Job().Update(ctx, jobID, func(j *model.Job) error {
		if j.State != model.JobStateQueued {
			return errNotClaimable
		}
		if j.CancelRequested {
			reason := model.ReasonCancelled
			j.State = model.JobStateFailed
			j.ErrorReason = &reason
			return nil
		}
		j.State = model.JobStateRunning
		j.CurrentStage = 0
		return nil
	})
	switch {
	case errors.Is(err, errNotClaimable), errors.Is(err, store.ErrRecordNotFound):
		tracer.Step("skipped").WithString("reason", err.Error()).Log()
		return RunOutcome{JobID: jobID, Skipped: true}
	case err != nil:
		tracer.Error(err).WithString("step", "claim").Log()
		return RunOutcome{JobID: jobID, Skipped: true, Err: err}
	}

	if claimed.State == model.JobStateFailed {
		tracer.Step("cancelled_before_start").Log()
		r.transitioned(ctx, events.JobFailedKind, claimed)
		return outcomeOf(claimed, nil)
	}

	tracer.Step("claimed").Log()
	r.transitioned(ctx, events.JobRunningKind, claimed)

	work := &Work{Job: *claimed, Rand: r.opts.Sources(jobID)}
	for i, stage := range model.Stages {
		if i > 0 {
			job, err := r.store.Job().Update(ctx, jobID, func(j *model.Job) error {
				if j.State != model.JobStateRunning {
					return errLostOwnership
				}
				if j.CancelRequested {
					return ErrCancelled
				}
				j.CurrentStage = i
				return nil
			})
			if err != nil {
				return r.stop(ctx, tracer, jobID, stage, err)
			}
			work.Job = *job
			r.publish(ctx, events.JobStageKind, job)
		}

		tracer.Step("stage_started").WithString("stage", string(stage)).Log()
		if err := r.runStage(ctx, stage, work); err != nil {
			return r.fail(ctx, tracer, jobID, stage, err)
		}
	}

	completed, err := r.store.Job().Update(ctx, jobID, func(j *model.Job) error {
		if j.State != model.JobStateRunning {
			return errLostOwnership
		}
		if j.CancelRequested {
			return ErrCancelled
		}
		j.State = model.JobStateCompleted
		j.CurrentStage = len(model.Stages) - 1
		j.Clips = work.Clips
		j.Transcript = work.Transcript
		return nil
	})
	if err != nil {
		return r.stop(ctx, tracer, jobID, model.Stages[len(model.Stages)-1], err)
	}

	tracer.Success().WithInt("clips", len(completed.Clips)).Log()
	r.transitioned(ctx, events.JobCompletedKind, completed)
	return outcomeOf(completed, nil)
}

func (r *Runner) runStage(ctx context.Context, stage model.Stage, w *Work) error {
	fn, ok := r.stages[stage]
	if !ok {
		return &StageError{Stage: stage, Err: errors.New("no work registered")}
	}

	sctx, cancel := context.WithTimeout(ctx, r.opts.StageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(sctx, w)
	metrics.ObserveStageDuration(string(stage), err == nil, time.Since(start))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ErrInterrupted
	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		return &StageError{Stage: stage, Err: ErrStageTimeout}
	default:
		return &StageError{Stage: stage, Err: err}
	}
}

// stop handles an error returned while persisting progress.
func (r *Runner) stop(ctx context.Context, tracer *log.OperationTracer, jobID string, stage model.Stage, err error) RunOutcome {
	switch {
	case errors.Is(err, ErrCancelled):
		return r.fail(ctx, tracer, jobID, stage, ErrCancelled)
	case ctx.Err() != nil:
		return r.fail(ctx, tracer, jobID, stage, ErrInterrupted)
	case errors.Is(err, errLostOwnership), errors.Is(err, store.ErrRecordNotFound):
		tracer.Step("abandoned").WithString("stage", string(stage)).WithString("reason", err.Error()).Log()
		return RunOutcome{JobID: jobID, Stage: stage, Skipped: true}
	default:
		tracer.Error(err).WithString("stage", string(stage)).Log()
		return r.fail(ctx, tracer, jobID, stage, &StageError{Stage: stage, Err: err})
	}
}

func (r *Runner) fail(ctx context.Context, tracer *log.OperationTracer, jobID string, stage model.Stage, cause error) RunOutcome {
	reason := FailureReason(cause)
	tracer.Step("failing").WithString("stage", string(stage)).WithString("reason", reason).Log()

	// the run context may already be done
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	failed, err := r.store.Job().Update(wctx, jobID, func(j *model.Job) error {
		if j.State.IsTerminal() {
			return store.ErrUnchanged
		}
		j.State = model.JobStateFailed
		j.ErrorReason = &reason
		j.Clips = model.ClipList{}
		j.Transcript = model.Transcript{}
		return nil
	})
	if err != nil {
		tracer.Error(err).WithString("step", "record_failure").Log()
		return RunOutcome{JobID: jobID, Stage: stage, State: model.JobStateRunning, ErrorReason: reason, Err: err}
	}
	if failed.State != model.JobStateFailed || *failed.ErrorReason != reason {
		// someone else ended the job first
		return outcomeOf(failed, nil)
	}

	r.transitioned(wctx, events.JobFailedKind, failed)
	return outcomeOf(failed, nil)
}

func (r *Runner) transitioned(ctx context.Context, kind string, job *model.Job) {
	metrics.IncreaseJobTransitionsTotalMetric(string(job.State))
	r.publish(ctx, kind, job)
}

func (r *Runner) publish(ctx context.Context, kind string, job *model.Job) {
	if r.events == nil {
		return
	}
	_ = r.events.WriteJSON(ctx, kind, JobEventOf(job))
}

// JobEventOf builds the lifecycle event payload for job.
func JobEventOf(job *model.Job) events.JobEvent {
	ev := events.JobEvent{
		JobID:     job.ID,
		OwnerID:   job.OwnerID,
		State:     string(job.State),
		Stage:     string(job.StageName()),
		ClipCount: len(job.Clips),
		Version:   job.Version,
	}
	if job.ErrorReason != nil {
		ev.ErrorReason = *job.ErrorReason
	}
	return ev
}

func outcomeOf(job *model.Job, err error) RunOutcome {
	o := RunOutcome{
		JobID: job.ID,
		State: job.State,
		Clips: len(job.Clips),
		Err:   err,
	}
	if job.CurrentStage >= 0 && job.CurrentStage < len(model.Stages) {
		o.Stage = model.Stages[job.CurrentStage]
	}
	if job.ErrorReason != nil {
		o.ErrorReason = *job.ErrorReason
	}
	return o
}
