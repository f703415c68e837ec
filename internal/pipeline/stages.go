package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/pkg/videourl"
)

// Work carries one run's inputs and outputs from stage to stage.
type Work struct {
	Job        model.Job
	Rand       RandSource
	Clips      model.ClipList
	Transcript model.Transcript
}

// StageFunc performs one stage. It must return when ctx is done.
type StageFunc func(ctx context.Context, w *Work) error

func (r *Runner) defaultStages() map[model.Stage]StageFunc {
	return map[model.Stage]StageFunc{
		model.StageUploading:            r.verifySource,
		model.StageAnalyzingScenes:      r.analyzeScenes,
		model.StageTranscribingAudio:    r.transcribe,
		model.StageGeneratingHighlights: r.generateHighlights,
		model.StageRenderingShorts:      r.render,
	}
}

func (r *Runner) verifySource(ctx context.Context, w *Work) error {
	if err := sleep(ctx, r.opts.StageDelay); err != nil {
		return err
	}

	ref := w.Job.SourceRef
	switch w.Job.SourceKind {
	case model.SourceKindRemoteURL:
		if !videourl.IsRecognized(ref) {
			return fmt.Errorf("unsupported video link %q", ref)
		}
	case model.SourceKindUploadedFile:
		if r.objects == nil {
			if !objectstore.IsHandle(ref) {
				return fmt.Errorf("invalid upload handle %q", ref)
			}
			return nil
		}
		info, err := r.objects.Stat(ctx, ref)
		if err != nil {
			if errors.Is(err, objectstore.ErrObjectNotFound) {
				return fmt.Errorf("uploaded video %s not found", ref)
			}
			return err
		}
		if info.Size == 0 {
			return fmt.Errorf("uploaded video %s is empty", ref)
		}
	default:
		return fmt.Errorf("unknown source kind %q", w.Job.SourceKind)
	}
	return nil
}

func (r *Runner) analyzeScenes(ctx context.Context, w *Work) error {
	return sleep(ctx, r.opts.StageDelay)
}

func (r *Runner) transcribe(ctx context.Context, w *Work) error {
	if err := sleep(ctx, r.opts.StageDelay); err != nil {
		return err
	}
	w.Transcript = MockTranscript(w.Job.Title, w.Job.DurationSeconds)
	return nil
}

func (r *Runner) generateHighlights(ctx context.Context, w *Work) error {
	if err := sleep(ctx, r.opts.StageDelay); err != nil {
		return err
	}
	clips, err := GenerateClips(w.Job.ID, w.Job.Title, w.Job.DurationSeconds, r.opts.Policy, w.Rand)
	if err != nil {
		return err
	}
	w.Clips = clips
	return nil
}

func (r *Runner) render(ctx context.Context, w *Work) error {
	if err := sleep(ctx, r.opts.StageDelay); err != nil {
		return err
	}
	if len(w.Clips) == 0 {
		return errors.New("no clips to render")
	}
	for i := range w.Clips {
		w.Clips[i].Status = model.ClipStatusReady
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
