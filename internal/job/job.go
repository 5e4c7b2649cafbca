package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrNotFound = errors.New("job not found")

	// ErrTerminalState is returned when a caller tries to move a job out of
	// completed/failed/cancelled. Terminal states are sticky.
	ErrTerminalState = errors.New("job is in a terminal state")
)

// Job is the tracking record for one asynchronous AI operation.
//
// Progress is a percentage in [0,100]. While the job is processing it is a
// linear estimate derived from poll attempts, not a provider-reported value;
// only completed guarantees 100.
type Job struct {
	ID           string         `json:"job_id"`
	Operation    string         `json:"operation"`
	Status       Status         `json:"status"`
	Progress     float64        `json:"progress"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ResultURL    string         `json:"result_url,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// New creates a pending job with a fresh UUID.
func New(operation string, metadata map[string]any) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Operation: operation,
		Status:    StatusPending,
		Progress:  0.0,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
}

// Counts groups job totals by status.
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}
