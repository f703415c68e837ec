package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	api "github.com/clipforge/clipforge/api/v1alpha1"
)

var ErrClipNotInView = errors.New("clip not in view")

// JobEditor is the subset of Client a JobView sends edits through.
type JobEditor interface {
	UpdateClip(ctx context.Context, jobID, clipID string, body api.ClipUpdate) (*api.Job, error)
	DeleteClip(ctx context.Context, jobID, clipID string) (*api.Job, error)
}

// JobView holds a locally displayed job. Edits show up immediately and are
// rolled back to the last confirmed snapshot when the server rejects them.
type JobView struct {
	mu        sync.RWMutex
	editor    JobEditor
	confirmed api.Job
	current   api.Job
}

func NewJobView(editor JobEditor, job api.Job) *JobView {
	return &JobView{editor: editor, confirmed: copyJob(job), current: copyJob(job)}
}

// Job returns the job as currently displayed.
func (v *JobView) Job() api.Job {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return copyJob(v.current)
}

// Refresh replaces both snapshots when job is newer than what is shown.
func (v *JobView) Refresh(job api.Job) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !Supersedes(&job, &v.confirmed) {
		return false
	}
	v.confirmed = copyJob(job)
	v.current = copyJob(job)
	return true
}

func (v *JobView) RenameClip(ctx context.Context, clipID, title string) error {
	return v.apply(ctx, clipID, func(clips []api.Clip, i int) []api.Clip {
		clips[i].Title = title
		return clips
	}, func(ctx context.Context, jobID string) (*api.Job, error) {
		return v.editor.UpdateClip(ctx, jobID, clipID, api.ClipUpdate{Title: title})
	})
}

func (v *JobView) DeleteClip(ctx context.Context, clipID string) error {
	return v.apply(ctx, clipID, func(clips []api.Clip, i int) []api.Clip {
		return slices.Delete(clips, i, i+1)
	}, func(ctx context.Context, jobID string) (*api.Job, error) {
		return v.editor.DeleteClip(ctx, jobID, clipID)
	})
}

func (v *JobView) apply(ctx context.Context, clipID string, local func([]api.Clip, int) []api.Clip, send func(context.Context, string) (*api.Job, error)) error {
	v.mu.Lock()
	i := slices.IndexFunc(v.current.Clips, func(c api.Clip) bool { return c.Id == clipID })
	if i < 0 {
		v.mu.Unlock()
		return ErrClipNotInView
	}
	v.current.Clips = local(v.current.Clips, i)
	jobID := v.current.Id
	v.mu.Unlock()

	job, err := send(ctx, jobID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.current = copyJob(v.confirmed)
		return err
	}
	v.confirmed = copyJob(*job)
	v.current = copyJob(*job)
	return nil
}

func copyJob(job api.Job) api.Job {
	job.Clips = slices.Clone(job.Clips)
	job.Transcript = slices.Clone(job.Transcript)
	return job
}
