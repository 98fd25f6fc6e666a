package run

import (
	"time"

	"oilcatalog/internal/core/pipeline"
)

// Status of a queued or running crawl.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Run is what the control plane reports for one crawl.
type Run struct {
	RunID      string           `json:"run_id"`
	Status     Status           `json:"status"`
	State      pipeline.State   `json:"state,omitempty"`
	Request    pipeline.Request `json:"request"`
	Stats      pipeline.Stats   `json:"stats"`
	Error      string           `json:"error,omitempty"`
	Published  string           `json:"published,omitempty"`
	QueuedAt   *time.Time       `json:"queued_at,omitempty"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

func statusOf(s pipeline.State) Status {
	switch s {
	case pipeline.StateDone:
		return StatusCompleted
	case pipeline.StateCancelled:
		return StatusCancelled
	case pipeline.StateFatalError:
		return StatusFailed
	}
	return StatusProcessing
}
