package pipeline

import (
	"fmt"

	"github.com/clipforge/clipforge/internal/store/model"
)

// MockTranscript returns the canned transcript, cut to the source length.
func MockTranscript(title string, total int) model.Transcript {
	segments := model.Transcript{
		{Start: 0, End: 5, Text: "Welcome back to the channel!"},
		{Start: 5, End: 15, Text: fmt.Sprintf("Today we are discussing %s, which is a fascinating topic.", title)},
		{Start: 15, End: 30, Text: "Let's dive right into the details and see what makes it tick."},
	}

	out := make(model.Transcript, 0, len(segments))
	for _, s := range segments {
		if s.Start >= total {
			break
		}
		s.End = min(s.End, total)
		out = append(out, s)
	}
	return out
}
