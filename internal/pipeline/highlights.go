package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/store/model"
)

const (
	clipDescription = "Auto-generated viral clip"
	maxDrawAttempts = 32
)

// clipNamespace keeps clip ids stable for a given job and position.
var clipNamespace = uuid.MustParse("2f1d7c39-6a8e-4b7a-9c55-3c1f0b8a4d21")

var errSourceTooShort = errors.New("source is shorter than the minimum clip length")

type ClipPolicy struct {
	Count      int
	MinSeconds int
	MaxSeconds int
}

func DefaultClipPolicy() ClipPolicy {
	return ClipPolicy{Count: 5, MinSeconds: 15, MaxSeconds: 30}
}

func (p ClipPolicy) Validate() error {
	if p.Count <= 0 {
		return fmt.Errorf("clip count must be positive, got %d", p.Count)
	}
	if p.MinSeconds <= 0 || p.MaxSeconds < p.MinSeconds {
		return fmt.Errorf("invalid clip length range [%d, %d]", p.MinSeconds, p.MaxSeconds)
	}
	return nil
}

// GenerateClips draws policy.Count clips inside [0, total]. A start is drawn
// from [0, total-min) and a length from [min, max]; draws ending past total
// are rejected and drawn again.
func GenerateClips(jobID, title string, total int, policy ClipPolicy, rnd RandSource) (model.ClipList, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if total < policy.MinSeconds {
		return nil, errSourceTooShort
	}

	startSpan := total - policy.MinSeconds
	lengthSpan := policy.MaxSeconds - policy.MinSeconds + 1

	clips := make(model.ClipList, 0, policy.Count)
	for i := 0; i < policy.Count; i++ {
		start, end, ok := 0, 0, false
		for attempt := 0; attempt < maxDrawAttempts; attempt++ {
			start = 0
			if startSpan > 0 {
				start = rnd.IntN(startSpan)
			}
			end = start + policy.MinSeconds + rnd.IntN(lengthSpan)
			if end <= total {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("no clip fits in %d seconds after %d draws", total, maxDrawAttempts)
		}

		clips = append(clips, model.Clip{
			ID:                 uuid.NewSHA1(clipNamespace, []byte(fmt.Sprintf("%s/%d", jobID, i))).String(),
			Title:              fmt.Sprintf("%s - Highlight %d", title, i+1),
			Description:        clipDescription,
			StartOffsetSeconds: start,
			EndOffsetSeconds:   end,
			ViewCount:          0,
		})
	}

	return clips, nil
}
