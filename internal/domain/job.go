package domain

import "time"

// ContentTypeJPEG is the only payload format submitted to the enhancement service.
const ContentTypeJPEG = "image/jpeg"

// JobStatus enumerates the remote task lifecycle states.
type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Tool is one enhancement operation requested at task creation.
type Tool struct {
	Type string
	Mode string
}

// DefaultToolChain is the fixed set of operations requested for every photo.
func DefaultToolChain() []Tool {
	return []Tool{
		{Type: "face_enhance", Mode: "beautify"},
		{Type: "background_enhance", Mode: "base"},
	}
}

// EnhancementJob tracks one remote enhancement request. Status only moves in
// response to remote service answers.
type EnhancementJob struct {
	ID             string
	TaskID         string
	ContentDigest  string
	ContentType    string
	ToolChain      []Tool
	Status         JobStatus
	ResultLocation string
	CreatedAt      time.Time
	FinishedAt     time.Time
}

// Terminal reports whether no further transitions can occur.
func (j *EnhancementJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
