package mappers

import (
	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/store/model"
	"github.com/clipforge/clipforge/internal/util"
)

func JobToApi(job model.Job) api.Job {
	result := api.Job{
		Id:              job.ID,
		OwnerId:         job.OwnerID,
		Title:           job.Title,
		SourceKind:      api.SourceKind(job.SourceKind),
		SourceRef:       job.SourceRef,
		DurationSeconds: job.DurationSeconds,
		State:           api.JobState(job.State),
		CurrentStage:    job.CurrentStage,
		CancelRequested: job.CancelRequested,
		Clips:           ClipListToApi(job.Clips),
		ErrorReason:     job.ErrorReason,
		Version:         job.Version,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}

	if stage := job.StageName(); stage != "" {
		result.Stage = util.Ptr(string(stage))
	}

	if len(job.Transcript) > 0 {
		result.Transcript = make([]api.TranscriptSegment, 0, len(job.Transcript))
		for _, seg := range job.Transcript {
			result.Transcript = append(result.Transcript, api.TranscriptSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
		}
	}

	return result
}

func JobListToApi(jobs model.JobList) api.JobList {
	list := make(api.JobList, 0, len(jobs))
	for _, j := range jobs {
		list = append(list, JobToApi(j))
	}
	return list
}

func ClipListToApi(clips model.ClipList) []api.Clip {
	// clips is never null on the wire
	result := make([]api.Clip, 0, len(clips))
	for _, c := range clips {
		result = append(result, api.Clip{
			Id:                 c.ID,
			Title:              c.Title,
			Description:        c.Description,
			StartOffsetSeconds: c.StartOffsetSeconds,
			EndOffsetSeconds:   c.EndOffsetSeconds,
			DurationSeconds:    c.DurationSeconds(),
			ViewCount:          c.ViewCount,
			Status:             c.Status,
		})
	}
	return result
}

func UploadToApi(info objectstore.ObjectInfo) api.Upload {
	return api.Upload{
		Handle:      info.Handle,
		Size:        info.Size,
		ContentType: info.ContentType,
	}
}
