package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/store/model"
)

const maxUpdateAttempts = 5

// ErrUnchanged may be returned by an update mutation to skip the write. Update
// then returns the current row and no error.
var ErrUnchanged = errors.New("unchanged")

// MutateFn edits a copy of the stored job. Any error other than ErrUnchanged
// aborts the update and is returned as is.
type MutateFn func(job *model.Job) error

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id string, ownerID string) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter) (model.JobList, error)
	Update(ctx context.Context, id string, mutate MutateFn) (*model.Job, error)
	Delete(ctx context.Context, id string, ownerID string) error
	CountByState(ctx context.Context) (map[model.JobState]int64, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	now := time.Now().UTC()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.State = model.JobStateQueued
	job.CurrentStage = 0
	job.Clips = model.ClipList{}
	job.Transcript = model.Transcript{}
	job.ErrorReason = nil
	job.CancelRequested = false
	job.Version = 1
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := job.Validate(); err != nil {
		return nil, err
	}

	if err := s.getDB(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id string, ownerID string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).Where("id = ?", id).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

// List returns jobs newest first.
func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx).Model(&jobs).Order("created_at DESC, id DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

// Update applies mutate to the latest row and writes the result only if the row
// still carries the version that was read. Lost races are retried with a fresh
// read; a result that breaks a job invariant fails with ErrConflict.
func (s *JobStore) Update(ctx context.Context, id string, mutate MutateFn) (*model.Job, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Copy()
		if err := mutate(&next); err != nil {
			if errors.Is(err, ErrUnchanged) {
				return current, nil
			}
			return nil, err
		}

		if err := model.ValidateUpdate(*current, next); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}

		next.Version = current.Version + 1
		next.UpdatedAt = time.Now().UTC()

		result := s.getDB(ctx).Model(&model.Job{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(map[string]any{
				"title":            next.Title,
				"duration_seconds": next.DurationSeconds,
				"state":            next.State,
				"current_stage":    next.CurrentStage,
				"clips":            next.Clips,
				"transcript":       next.Transcript,
				"error_reason":     next.ErrorReason,
				"cancel_requested": next.CancelRequested,
				"version":          next.Version,
				"updated_at":       next.UpdatedAt,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("updating job: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return &next, nil
		}
	}

	// the row may have been deleted under us
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrConflict
}

func (s *JobStore) Delete(ctx context.Context, id string, ownerID string) error {
	result := s.getDB(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Job{})
	if result.Error != nil {
		return fmt.Errorf("deleting job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) CountByState(ctx context.Context) (map[model.JobState]int64, error) {
	var rows []struct {
		State model.JobState
		Total int64
	}
	err := s.getDB(ctx).Model(&model.Job{}).
		Select("state, COUNT(*) AS total").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}

	counts := make(map[model.JobState]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Total
	}
	return counts, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
