package service

import (
	"context"
	"errors"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/events"
	"github.com/clipforge/clipforge/internal/handlers/validator"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/service/mappers"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/pkg/log"
	"github.com/clipforge/clipforge/pkg/metrics"
)

// Scheduler hands a submitted job to the pipeline without waiting for it.
type Scheduler interface {
	Enqueue(ctx context.Context, jobID string) error
}

type JobServiceOption func(s *JobService)

func WithEventWriter(w pipeline.EventWriter) JobServiceOption {
	return func(s *JobService) {
		s.events = w
	}
}

func WithClipPolicy(p pipeline.ClipPolicy) JobServiceOption {
	return func(s *JobService) {
		s.policy = p
	}
}

func WithDefaultDuration(seconds int) JobServiceOption {
	return func(s *JobService) {
		s.defaultDuration = seconds
	}
}

// JobService is the only way callers read or change jobs. Ownership is
// checked on every call; a job owned by someone else is reported as missing.
type JobService struct {
	store           store.Store
	scheduler       Scheduler
	events          pipeline.EventWriter
	validator       *validator.Validator
	policy          pipeline.ClipPolicy
	defaultDuration int
	logger          *log.StructuredLogger
}

func NewJobService(s store.Store, scheduler Scheduler, opts ...JobServiceOption) *JobService {
	v := validator.NewValidator()
	v.Register(validator.NewJobValidationRules()...)

	srv := &JobService{
		store:           s,
		scheduler:       scheduler,
		validator:       v,
		policy:          pipeline.DefaultClipPolicy(),
		defaultDuration: 600,
		logger:          log.NewDebugLogger("job_service"),
	}
	for _, o := range opts {
		o(srv)
	}
	return srv
}

// Submit validates the form, stores a queued job and schedules it. It returns
// as soon as the job is stored.
func (s *JobService) Submit(ctx context.Context, user auth.User, form mappers.JobSubmitForm) (*model.Job, error) {
	form = form.Normalize()
	tracer := s.logger.WithContext(ctx).
		Operation("submit_job").
		WithString("owner", user.Username).
		WithString("source_kind", form.SourceKind).
		Build()

	if err := s.validator.Struct(form); err != nil {
		tracer.Step("validation_failed").WithString("error", err.Error()).Log()
		return nil, NewErrValidation(err)
	}
	if model.SourceKind(form.SourceKind) == model.SourceKindUploadedFile && !objectstore.OwnedBy(form.SourceRef, user.Username) {
		tracer.Step("foreign_upload").WithString("source_ref", form.SourceRef).Log()
		return nil, NewErrValidationf("sourceRef is not one of your uploads")
	}
	if form.DurationSeconds != nil && *form.DurationSeconds < s.policy.MaxSeconds {
		return nil, NewErrValidationf("durationSeconds must be at least %d", s.policy.MaxSeconds)
	}

	job, err := s.store.Job().Create(ctx, form.ToJob(user.Username, s.defaultDuration))
	if err != nil {
		tracer.Error(err).Log()
		return nil, NewErrPersistence(err)
	}
	metrics.IncreaseJobSubmissionsTotalMetric(form.SourceKind)
	metrics.IncreaseJobTransitionsTotalMetric(string(job.State))
	s.publish(ctx, events.JobQueuedKind, pipeline.JobEventOf(job))

	if s.scheduler != nil {
		if err := s.scheduler.Enqueue(ctx, job.ID); err != nil {
			// the job stays queued and is picked up by the requeue sweep
			tracer.Step("enqueue_failed").WithString("job_id", job.ID).WithString("error", err.Error()).Log()
		}
	}

	tracer.Success().WithString("job_id", job.ID).Log()
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, ownerID, id string) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id, ownerID)
	if err != nil {
		return nil, s.mapStoreError(id, err)
	}
	return job, nil
}

// ListJobs returns the owner's jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, filter *JobFilter) (model.JobList, error) {
	storeFilter := store.NewJobQueryFilter().ByOwner(filter.OwnerID)
	if len(filter.States) > 0 {
		storeFilter = storeFilter.ByStates(filter.States...)
	}
	if filter.Limit > 0 {
		storeFilter = storeFilter.WithLimit(filter.Limit)
	}

	jobs, err := s.store.Job().List(ctx, storeFilter)
	if err != nil {
		return nil, NewErrPersistence(err)
	}
	return jobs, nil
}

// RenameClip changes a clip title. Renaming to the current title is a no-op
// and does not touch the stored row.
func (s *JobService) RenameClip(ctx context.Context, ownerID, jobID, clipID string, form mappers.ClipRenameForm) (*model.Job, error) {
	tracer := s.logger.WithContext(ctx).
		Operation("rename_clip").
		WithString("job_id", jobID).
		WithString("clip_id", clipID).
		Build()

	if err := s.validator.Struct(form); err != nil {
		return nil, NewErrValidation(err)
	}

	changed := false
	job, err := s.store.Job().Update(ctx, jobID, func(j *model.Job) error {
		idx, err := s.editableClip(j, ownerID, clipID)
		if err != nil {
			return err
		}
		changed = j.Clips[idx].Title != form.Title
		if !changed {
			return store.ErrUnchanged
		}
		j.Clips[idx].Title = form.Title
		return nil
	})
	if err != nil {
		metrics.IncreaseClipMutationsTotalMetric("rename", false)
		tracer.Error(err).Log()
		return nil, s.mapStoreError(jobID, err)
	}
	metrics.IncreaseClipMutationsTotalMetric("rename", true)

	if changed {
		s.publish(ctx, events.ClipUpdatedKind, events.ClipEvent{JobID: job.ID, OwnerID: job.OwnerID, ClipID: clipID, Title: form.Title})
	}
	tracer.Success().WithBool("changed", changed).Log()
	return job, nil
}

// DeleteClip removes one clip. The last clip of a job cannot be removed since
// a completed job always has clips.
func (s *JobService) DeleteClip(ctx context.Context, ownerID, jobID, clipID string) (*model.Job, error) {
	tracer := s.logger.WithContext(ctx).
		Operation("delete_clip").
		WithString("job_id", jobID).
		WithString("clip_id", clipID).
		Build()

	job, err := s.store.Job().Update(ctx, jobID, func(j *model.Job) error {
		idx, err := s.editableClip(j, ownerID, clipID)
		if err != nil {
			return err
		}
		if len(j.Clips) == 1 {
			return NewErrInvalidState("clip %s is the last clip of job %s", clipID, jobID)
		}
		j.Clips = append(j.Clips[:idx:idx], j.Clips[idx+1:]...)
		return nil
	})
	if err != nil {
		metrics.IncreaseClipMutationsTotalMetric("delete", false)
		tracer.Error(err).Log()
		return nil, s.mapStoreError(jobID, err)
	}
	metrics.IncreaseClipMutationsTotalMetric("delete", true)

	s.publish(ctx, events.ClipDeletedKind, events.ClipEvent{JobID: job.ID, OwnerID: job.OwnerID, ClipID: clipID})
	tracer.Success().WithInt("clips", len(job.Clips)).Log()
	return job, nil
}

// DeleteJob removes the job and its clips. A run in progress notices the
// deletion at its next stage boundary and stops.
func (s *JobService) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	tracer := s.logger.WithContext(ctx).
		Operation("delete_job").
		WithString("job_id", jobID).
		Build()

	if err := s.store.Job().Delete(ctx, jobID, ownerID); err != nil {
		tracer.Error(err).Log()
		return s.mapStoreError(jobID, err)
	}

	s.publish(ctx, events.JobDeletedKind, events.JobEvent{JobID: jobID, OwnerID: ownerID})
	tracer.Success().Log()
	return nil
}

// CancelJob asks the runner to stop the job at its next stage boundary. The
// job is failed with reason "Cancelled" by the runner, not here.
func (s *JobService) CancelJob(ctx context.Context, ownerID, jobID string) (*model.Job, error) {
	tracer := s.logger.WithContext(ctx).
		Operation("cancel_job").
		WithString("job_id", jobID).
		Build()

	job, err := s.store.Job().Update(ctx, jobID, func(j *model.Job) error {
		if j.OwnerID != ownerID {
			return store.ErrRecordNotFound
		}
		if j.IsTerminal() {
			return NewErrInvalidState("job %s is already %s", jobID, j.State)
		}
		if j.CancelRequested {
			return store.ErrUnchanged
		}
		j.CancelRequested = true
		return nil
	})
	if err != nil {
		tracer.Error(err).Log()
		return nil, s.mapStoreError(jobID, err)
	}

	if job.State == model.JobStateQueued && s.scheduler != nil {
		// a queued job has no runner to notice the flag yet
		if err := s.scheduler.Enqueue(ctx, job.ID); err != nil {
			tracer.Step("enqueue_failed").WithString("error", err.Error()).Log()
		}
	}

	tracer.Success().Log()
	return job, nil
}

func (s *JobService) editableClip(j *model.Job, ownerID, clipID string) (int, error) {
	if j.OwnerID != ownerID {
		return -1, store.ErrRecordNotFound
	}
	if j.State != model.JobStateCompleted {
		return -1, NewErrInvalidState("job %s is %s, clips can only be edited once it is completed", j.ID, j.State)
	}
	idx := j.Clips.Index(clipID)
	if idx < 0 {
		return -1, NewErrClipNotFound(clipID)
	}
	return idx, nil
}

func (s *JobService) mapStoreError(jobID string, err error) error {
	var (
		notFound     *ErrResourceNotFound
		invalidState *ErrInvalidState
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &invalidState):
		return err
	case errors.Is(err, store.ErrRecordNotFound):
		return NewErrJobNotFound(jobID)
	case errors.Is(err, store.ErrConflict):
		return NewErrConflict(jobID)
	default:
		return NewErrPersistence(err)
	}
}

func (s *JobService) publish(ctx context.Context, kind string, v any) {
	if s.events == nil {
		return
	}
	_ = s.events.WriteJSON(ctx, kind, v)
}
