package job

import "time"

// Store is the interface for job tracking (in-memory and persistent).
// Implementations must keep terminal states sticky and progress
// non-decreasing while processing.
type Store interface {
	Create(j *Job) error
	Get(id string) (*Job, error)
	SetProcessing(id string, progress float64) error
	SetCompleted(id string, resultURL string) error
	SetFailed(id string, errMsg string) error
	Cancel(id string) error
	List(limit, offset int, status string) ([]*Job, int)
	Stats() Counts
	SweepExpired(olderThan time.Duration) int
}
