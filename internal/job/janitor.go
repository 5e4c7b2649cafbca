package job

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically evicts expired terminal jobs from a store.
type Janitor struct {
	cron  *cron.Cron
	store Store
	ttl   time.Duration
}

func NewJanitor(store Store, ttl time.Duration) *Janitor {
	return &Janitor{
		cron:  cron.New(),
		store: store,
		ttl:   ttl,
	}
}

// Start schedules the sweep. Returns an error only if the schedule spec is
// invalid, which would be a programming mistake.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@every 10m", func() {
		if n := j.store.SweepExpired(j.ttl); n > 0 {
			log.Printf("Janitor evicted %d expired jobs", n)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}
