package events

const (
	JobQueuedKind    string = "clipforge.jobs.queued"
	JobRunningKind   string = "clipforge.jobs.running"
	JobStageKind     string = "clipforge.jobs.stage"
	JobCompletedKind string = "clipforge.jobs.completed"
	JobFailedKind    string = "clipforge.jobs.failed"
	JobDeletedKind   string = "clipforge.jobs.deleted"
	ClipUpdatedKind  string = "clipforge.clips.updated"
	ClipDeletedKind  string = "clipforge.clips.deleted"

	eventSource string = "clipforge.api"
)

type JobEvent struct {
	JobID       string `json:"job_id"`
	OwnerID     string `json:"owner_id"`
	State       string `json:"state"`
	Stage       string `json:"stage,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
	ClipCount   int    `json:"clip_count"`
	Version     int    `json:"version"`
}

type ClipEvent struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	ClipID  string `json:"clip_id"`
	Title   string `json:"title,omitempty"`
}
