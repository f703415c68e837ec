package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

type SourceKind string

const (
	SourceKindUploadedFile SourceKind = "uploadedFile"
	SourceKindRemoteURL    SourceKind = "remoteUrl"
)

type Stage string

const (
	StageUploading            Stage = "uploading"
	StageAnalyzingScenes      Stage = "analyzingScenes"
	StageTranscribingAudio    Stage = "transcribingAudio"
	StageGeneratingHighlights Stage = "generatingHighlights"
	StageRenderingShorts      Stage = "renderingShorts"
)

// Stages is the fixed processing order. Job.CurrentStage indexes into it.
var Stages = []Stage{
	StageUploading,
	StageAnalyzingScenes,
	StageTranscribingAudio,
	StageGeneratingHighlights,
	StageRenderingShorts,
}

const (
	DefaultJobTitle   = "Untitled Video"
	ClipStatusReady   = "ready"
	ReasonCancelled   = "Cancelled"
	ReasonInterrupted = "interrupted"
)

var ErrInvariant = errors.New("job invariant violated")

type Job struct {
	ID              string     `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	OwnerID         string     `gorm:"not null;index:jobs_owner_created_idx"`
	Title           string     `gorm:"not null"`
	SourceKind      SourceKind `gorm:"not null;type:VARCHAR(32)"`
	SourceRef       string     `gorm:"not null"`
	DurationSeconds int        `gorm:"not null"`
	State           JobState   `gorm:"not null;type:VARCHAR(32);index"`
	CurrentStage    int        `gorm:"not null;default:0"`
	Clips           ClipList   `gorm:"not null"`
	Transcript      Transcript `gorm:"not null"`
	ErrorReason     *string
	CancelRequested bool      `gorm:"not null;default:false"`
	Version         int       `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null;index:jobs_owner_created_idx"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type Clip struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	StartOffsetSeconds int    `json:"startOffsetSeconds"`
	EndOffsetSeconds   int    `json:"endOffsetSeconds"`
	Status             string `json:"status,omitempty"`
	ViewCount          int    `json:"viewCount"`
}

func (c Clip) DurationSeconds() int {
	return c.EndOffsetSeconds - c.StartOffsetSeconds
}

type ClipList []Clip

// Index returns the position of the clip with the given id, or -1.
func (l ClipList) Index(id string) int {
	for i, c := range l {
		if c.ID == id {
			return i
		}
	}
	return -1
}

type TranscriptSegment struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type Transcript []TranscriptSegment

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

func (j Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// StageName returns the name of the current stage, empty unless running.
func (j Job) StageName() Stage {
	if j.State != JobStateRunning || j.CurrentStage < 0 || j.CurrentStage >= len(Stages) {
		return ""
	}
	return Stages[j.CurrentStage]
}

// Copy returns a job whose slices can be mutated without touching j.
func (j Job) Copy() Job {
	c := j
	if j.Clips != nil {
		c.Clips = append(ClipList{}, j.Clips...)
	}
	if j.Transcript != nil {
		c.Transcript = append(Transcript{}, j.Transcript...)
	}
	if j.ErrorReason != nil {
		reason := *j.ErrorReason
		c.ErrorReason = &reason
	}
	return c
}

func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

func (s JobState) rank() int {
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

// CanTransition reports whether from -> to moves forward. Staying in the same
// state is allowed; terminal states only accept themselves.
func CanTransition(from, to JobState) bool {
	if from == to {
		return from.rank() >= 0
	}
	if from.IsTerminal() {
		return false
	}
	return from.rank() >= 0 && to.rank() > from.rank()
}

// Validate checks the invariants a persisted job must satisfy at all times.
func (j Job) Validate() error {
	if j.State.rank() < 0 {
		return fmt.Errorf("%w: unknown state %q", ErrInvariant, j.State)
	}
	if j.CurrentStage < 0 || j.CurrentStage >= len(Stages) {
		return fmt.Errorf("%w: stage index %d out of range", ErrInvariant, j.CurrentStage)
	}
	if (len(j.Clips) > 0) != (j.State == JobStateCompleted) {
		return fmt.Errorf("%w: job in state %s has %d clips", ErrInvariant, j.State, len(j.Clips))
	}
	if (j.ErrorReason != nil) != (j.State == JobStateFailed) {
		return fmt.Errorf("%w: error reason must be set only for failed jobs", ErrInvariant)
	}
	for _, c := range j.Clips {
		if c.StartOffsetSeconds < 0 || c.StartOffsetSeconds >= c.EndOffsetSeconds || c.EndOffsetSeconds > j.DurationSeconds {
			return fmt.Errorf("%w: clip %s bounds [%d, %d] outside [0, %d]", ErrInvariant, c.ID, c.StartOffsetSeconds, c.EndOffsetSeconds, j.DurationSeconds)
		}
	}
	return nil
}

// ValidateUpdate checks that next is a legal successor of prev.
func ValidateUpdate(prev, next Job) error {
	if prev.ID != next.ID || prev.OwnerID != next.OwnerID || !prev.CreatedAt.Equal(next.CreatedAt) {
		return fmt.Errorf("%w: immutable fields changed", ErrInvariant)
	}
	if !CanTransition(prev.State, next.State) {
		return fmt.Errorf("%w: transition %s -> %s", ErrInvariant, prev.State, next.State)
	}
	if next.CurrentStage < prev.CurrentStage {
		return fmt.Errorf("%w: stage moved back from %d to %d", ErrInvariant, prev.CurrentStage, next.CurrentStage)
	}
	return next.Validate()
}
