package mappers

import (
	"strings"

	"github.com/clipforge/clipforge/internal/store/model"
)

const MaxTitleLength = 200

type JobSubmitForm struct {
	Title           string `validate:"max=200"`
	SourceKind      string `validate:"required,source_kind"`
	SourceRef       string `validate:"required,source_ref"`
	DurationSeconds *int   `validate:"omitnil,gt=0,max=21600"`
}

// Normalize trims whitespace around the user supplied strings.
func (f JobSubmitForm) Normalize() JobSubmitForm {
	f.Title = strings.TrimSpace(f.Title)
	f.SourceRef = strings.TrimSpace(f.SourceRef)
	return f
}

func (f JobSubmitForm) ToJob(ownerID string, defaultDuration int) model.Job {
	title := f.Title
	if title == "" {
		title = model.DefaultJobTitle
	}
	duration := defaultDuration
	if f.DurationSeconds != nil {
		duration = *f.DurationSeconds
	}
	return model.Job{
		OwnerID:         ownerID,
		Title:           title,
		SourceKind:      model.SourceKind(f.SourceKind),
		SourceRef:       f.SourceRef,
		DurationSeconds: duration,
	}
}

type ClipRenameForm struct {
	Title string `validate:"required,max=200"`
}

type UploadForm struct {
	Filename    string `validate:"required"`
	ContentType string
	Size        int64 `validate:"gte=0"`
}
