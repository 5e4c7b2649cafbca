package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kreativo/ai-gateway/internal/job"
)

// Status is the provider-reported state of an asynchronous prediction.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Result is one observation of a prediction.
type Result struct {
	Status Status
	Output []string
	Err    string
}

// FetchFunc queries the provider for the current state of a prediction.
type FetchFunc func(ctx context.Context, predictionID string) (Result, error)

var (
	// ErrTimeout means the attempt budget ran out before a terminal status.
	// The poller never retries past it; the caller decides what to do.
	ErrTimeout = errors.New("prediction timed out")

	// ErrCancelled means the tracked job was cancelled while polling.
	ErrCancelled = errors.New("job cancelled")
)

// ProviderError carries the provider's own error string for a failed
// prediction.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failure: %s", e.Message)
}

// Poller drives an external prediction to completion, translating provider
// status into tracker updates.
//
// Progress written between polls is a linear estimate over the attempt
// budget, capped at 95 until a terminal status: the provider reports no
// percentage, so anything below 100 is an approximation, not a measurement.
type Poller struct {
	store       job.Store
	maxAttempts int
	interval    time.Duration
}

func New(store job.Store, maxAttempts int, interval time.Duration) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{store: store, maxAttempts: maxAttempts, interval: interval}
}

const (
	progressBase = 50.0
	progressSpan = 45.0
	progressCap  = 95.0
)

// Poll loops fetch until the prediction succeeds, fails, the job is
// cancelled, the context ends, or maxAttempts is exhausted. Transport errors
// on a single attempt are swallowed and counted; a persistent outage
// therefore surfaces only as ErrTimeout.
func (p *Poller) Poll(ctx context.Context, predictionID, jobID string, fetch FetchFunc) ([]string, error) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if j, err := p.store.Get(jobID); err == nil && j.Status == job.StatusCancelled {
			return nil, ErrCancelled
		}

		res, err := fetch(ctx, predictionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Poll attempt %d for prediction %s failed: %v", attempt+1, predictionID, err)
			if err := p.sleep(ctx); err != nil {
				return nil, err
			}
			continue
		}

		switch res.Status {
		case StatusSucceeded:
			p.store.SetProcessing(jobID, 100.0)
			return res.Output, nil

		case StatusFailed:
			msg := res.Err
			if msg == "" {
				msg = "prediction failed"
			}
			return nil, &ProviderError{Message: msg}

		case StatusStarting, StatusProcessing:
			estimate := progressBase + float64(attempt+1)/float64(p.maxAttempts)*progressSpan
			if estimate > progressCap {
				estimate = progressCap
			}
			p.store.SetProcessing(jobID, estimate)
			if err := p.sleep(ctx); err != nil {
				return nil, err
			}

		default:
			// Unknown status, wait and retry.
			if err := p.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}

	return nil, ErrTimeout
}

func (p *Poller) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
