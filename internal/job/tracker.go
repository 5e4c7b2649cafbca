package job

import (
	"sync"
	"time"
)

// Tracker is the in-memory job store. It is bounded: when capacity is
// reached, the oldest terminal record is evicted to make room. Active jobs
// are never evicted.
type Tracker struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string // insertion order
	capacity int
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Tracker{
		jobs:     make(map[string]*Job),
		order:    make([]string, 0),
		capacity: capacity,
	}
}

func (t *Tracker) Create(j *Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) >= t.capacity {
		t.evictOldestTerminalLocked()
	}
	t.jobs[j.ID] = j
	t.order = append(t.order, j.ID)
	return nil
}

func (t *Tracker) Get(id string) (*Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (t *Tracker) SetProcessing(id string, progress float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusProcessing
	// Progress never moves backwards while processing.
	if progress > j.Progress {
		j.Progress = clampProgress(progress)
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Tracker) SetCompleted(id string, resultURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusCompleted
	j.Progress = 100.0
	j.ResultURL = resultURL
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Tracker) SetFailed(id string, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusFailed
	j.ErrorMessage = errMsg
	// Progress stays at its last observed value.
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusCancelled
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Tracker) List(limit, offset int, status string) ([]*Job, int) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var filtered []*Job
	for i := len(t.order) - 1; i >= 0; i-- { // most recent first
		j, ok := t.jobs[t.order[i]]
		if !ok {
			continue
		}
		if status == "" || string(j.Status) == status {
			cp := *j
			filtered = append(filtered, &cp)
		}
	}

	total := len(filtered)
	if offset >= total {
		return []*Job{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total
}

func (t *Tracker) Stats() Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var c Counts
	for _, j := range t.jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// SweepExpired removes terminal jobs whose last update is older than the
// given age. Returns the number of records removed.
func (t *Tracker) SweepExpired(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	kept := t.order[:0]
	for _, id := range t.order {
		j, ok := t.jobs[id]
		if !ok {
			continue
		}
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return removed
}

func (t *Tracker) evictOldestTerminalLocked() {
	for i, id := range t.order {
		j, ok := t.jobs[id]
		if !ok {
			continue
		}
		if j.Status.Terminal() {
			delete(t.jobs, id)
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
