package v1alpha1

import (
	"errors"
	"net/http"
	"time"
)

type SourceKind string

const (
	SourceKindUploadedFile SourceKind = "uploadedFile"
	SourceKindRemoteUrl    SourceKind = "remoteUrl"
)

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Rank orders states along the lifecycle. Unknown states rank lowest.
func (s JobState) Rank() int {
	switch s {
	case JobStateQueued:
		return 0
	case JobStateRunning:
		return 1
	case JobStateCompleted, JobStateFailed:
		return 2
	default:
		return -1
	}
}

type Health struct {
	Status string `json:"status"`
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}

type JobCreate struct {
	SourceKind      SourceKind `json:"sourceKind"`
	SourceRef       string     `json:"sourceRef"`
	Title           *string    `json:"title,omitempty"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
}

func (j *JobCreate) Bind(r *http.Request) error {
	if j == nil {
		return errors.New("empty body")
	}
	return nil
}

type ClipUpdate struct {
	Title string `json:"title"`
}

func (c *ClipUpdate) Bind(r *http.Request) error {
	if c == nil {
		return errors.New("empty body")
	}
	return nil
}

type Clip struct {
	Id                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	StartOffsetSeconds int    `json:"startOffsetSeconds"`
	EndOffsetSeconds   int    `json:"endOffsetSeconds"`
	DurationSeconds    int    `json:"durationSeconds"`
	ViewCount          int    `json:"viewCount"`
	Status             string `json:"status,omitempty"`
}

type TranscriptSegment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type Job struct {
	Id              string              `json:"id"`
	OwnerId         string              `json:"ownerId"`
	Title           string              `json:"title"`
	SourceKind      SourceKind          `json:"sourceKind"`
	SourceRef       string              `json:"sourceRef"`
	DurationSeconds int                 `json:"durationSeconds"`
	State           JobState            `json:"state"`
	CurrentStage    int                 `json:"currentStage"`
	Stage           *string             `json:"stage,omitempty"`
	CancelRequested bool                `json:"cancelRequested"`
	Clips           []Clip              `json:"clips"`
	Transcript      []TranscriptSegment `json:"transcript,omitempty"`
	ErrorReason     *string             `json:"errorReason,omitempty"`
	Version         int                 `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type JobList []Job

type Upload struct {
	Handle      string `json:"handle"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}
