package domain

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IngestJob tracks an asynchronous ingestion request from enqueue to completion.
type IngestJob struct {
	ID        string        `json:"id"`
	Request   IngestRequest `json:"request"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (j IngestJob) Finished() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
