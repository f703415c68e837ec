package mappers

import (
	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/service/mappers"
	"github.com/clipforge/clipforge/internal/util"
)

func JobFormFromApi(resource api.JobCreate) mappers.JobSubmitForm {
	return mappers.JobSubmitForm{
		Title:           util.DerefString(resource.Title),
		SourceKind:      string(resource.SourceKind),
		SourceRef:       resource.SourceRef,
		DurationSeconds: resource.DurationSeconds,
	}
}

func ClipRenameFormFromApi(resource api.ClipUpdate) mappers.ClipRenameForm {
	return mappers.ClipRenameForm{Title: resource.Title}
}
