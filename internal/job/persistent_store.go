package job

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kreativo/ai-gateway/internal/db"
)

const systemNamespace = "gateway"

// PersistentStore keeps job records in badger so status survives restarts.
// Terminal records are written with a TTL and expire on their own;
// SweepExpired is therefore a no-op here.
type PersistentStore struct {
	dbStore *db.Store
	ttl     time.Duration
}

func NewPersistentStore(dbStore *db.Store, ttl time.Duration) *PersistentStore {
	return &PersistentStore{dbStore: dbStore, ttl: ttl}
}

func (s *PersistentStore) Create(j *Job) error {
	return s.put(j)
}

func (s *PersistentStore) Get(id string) (*Job, error) {
	data, err := s.dbStore.Get(systemNamespace, "jobs/"+id)
	if err != nil {
		return nil, ErrNotFound
	}

	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	return &j, nil
}

func (s *PersistentStore) SetProcessing(id string, progress float64) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusProcessing
	if progress > j.Progress {
		j.Progress = clampProgress(progress)
	}
	j.UpdatedAt = time.Now().UTC()
	return s.put(j)
}

func (s *PersistentStore) SetCompleted(id string, resultURL string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusCompleted
	j.Progress = 100.0
	j.ResultURL = resultURL
	j.UpdatedAt = time.Now().UTC()
	return s.put(j)
}

func (s *PersistentStore) SetFailed(id string, errMsg string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
	return s.put(j)
}

func (s *PersistentStore) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusCancelled
	j.UpdatedAt = time.Now().UTC()
	return s.put(j)
}

func (s *PersistentStore) List(limit, offset int, status string) ([]*Job, int) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	keys, err := s.dbStore.List(systemNamespace, "jobs/", 0)
	if err != nil {
		return []*Job{}, 0
	}

	var all []*Job
	for _, key := range keys {
		id := strings.TrimPrefix(key, "jobs/")
		if id == "" || id == key {
			continue
		}
		j, err := s.Get(id)
		if err != nil {
			continue
		}
		if status == "" || string(j.Status) == status {
			all = append(all, j)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt) // most recent first
	})

	total := len(all)
	if offset >= total {
		return []*Job{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total
}

func (s *PersistentStore) Stats() Counts {
	keys, err := s.dbStore.List(systemNamespace, "jobs/", 0)
	if err != nil {
		return Counts{}
	}

	var c Counts
	for _, key := range keys {
		id := strings.TrimPrefix(key, "jobs/")
		if id == "" || id == key {
			continue
		}
		j, err := s.Get(id)
		if err != nil {
			continue
		}
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

// SweepExpired is handled by badger TTL on terminal records.
func (s *PersistentStore) SweepExpired(olderThan time.Duration) int {
	return 0
}

func (s *PersistentStore) put(j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	key := "jobs/" + j.ID
	if j.Status.Terminal() && s.ttl > 0 {
		if err := s.dbStore.SetWithTTL(systemNamespace, key, data, s.ttl); err != nil {
			return fmt.Errorf("store job: %w", err)
		}
		return nil
	}
	if err := s.dbStore.Set(systemNamespace, key, data); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}
