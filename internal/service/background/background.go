// Package background removes image backgrounds through a configurable
// provider: Remove.bg's dedicated API or the rembg model on Replicate.
package background

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Remover is the background-removal capability. Implementations are selected
// by configuration, not by boolean branching in the service.
type Remover interface {
	Name() string
	Configured() bool
	// Remove returns the URL of the cut-out image. jobID names the tracked
	// job so asynchronous implementations can report progress and observe
	// cancellation while they wait.
	Remove(ctx context.Context, imageURL string, edgeRefinement bool, jobID string) (string, error)
}

type RemoveRequest struct {
	ImageURL       string `json:"image_url"`
	EdgeRefinement bool   `json:"edge_refinement"`
}

type RemoveResponse struct {
	ResultURL   string `json:"result_url"`
	OriginalURL string `json:"original_url"`
	JobID       string `json:"job_id"`
}

type BatchRequest struct {
	ImageURLs      []string `json:"image_urls"`
	EdgeRefinement bool     `json:"edge_refinement"`
}

// BatchItem is the outcome for one input image, in input order.
type BatchItem struct {
	OriginalURL string `json:"original_url"`
	ResultURL   string `json:"result_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

type BatchResponse struct {
	Results     []BatchItem `json:"results"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	SuccessRate float64     `json:"success_rate"`
	JobID       string      `json:"job_id"`
}

type Service struct {
	store        job.Store
	remover      Remover
	maxBatchSize int
}

func New(store job.Store, remover Remover, maxBatchSize int) *Service {
	if maxBatchSize <= 0 {
		maxBatchSize = 4
	}
	return &Service{store: store, remover: remover, maxBatchSize: maxBatchSize}
}

// Provider names the active remover for /health and /info.
func (s *Service) Provider() string {
	return s.remover.Name()
}

func (s *Service) Configured() bool {
	return s.remover.Configured()
}

func (s *Service) Remove(ctx context.Context, req RemoveRequest) (*RemoveResponse, error) {
	if req.ImageURL == "" {
		return nil, service.Invalid("image_url", "must not be empty")
	}
	if !s.remover.Configured() {
		return nil, service.ErrNotConfigured
	}

	j := job.New("background_removal", map[string]any{
		"image_url": req.ImageURL,
		"provider":  s.remover.Name(),
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: background_removal provider=%s", j.ID, s.remover.Name())
	s.store.SetProcessing(j.ID, 25.0)

	resultURL, err := s.remover.Remove(ctx, req.ImageURL, req.EdgeRefinement, j.ID)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		log.Printf("Job %s failed: %v", j.ID, err)
		return nil, err
	}

	s.store.SetCompleted(j.ID, resultURL)
	log.Printf("Job %s completed", j.ID)
	return &RemoveResponse{ResultURL: resultURL, OriginalURL: req.ImageURL, JobID: j.ID}, nil
}

// RemoveBatch fans the images out with bounded concurrency and aggregates
// per-item outcomes. A partial failure does not fail the batch; the response
// carries counts and a success rate instead.
func (s *Service) RemoveBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if len(req.ImageURLs) == 0 {
		return nil, service.Invalid("image_urls", "must not be empty")
	}
	if len(req.ImageURLs) > s.maxBatchSize {
		return nil, service.Invalid("image_urls", "at most %d images per batch", s.maxBatchSize)
	}
	for i, url := range req.ImageURLs {
		if url == "" {
			return nil, service.Invalid("image_urls", "entry %d is empty", i)
		}
	}
	if !s.remover.Configured() {
		return nil, service.ErrNotConfigured
	}

	j := job.New("batch_background_removal", map[string]any{
		"image_count": len(req.ImageURLs),
		"provider":    s.remover.Name(),
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: batch_background_removal count=%d", j.ID, len(req.ImageURLs))
	s.store.SetProcessing(j.ID, 5.0)

	results := make([]BatchItem, len(req.ImageURLs))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxBatchSize)
	for i, url := range req.ImageURLs {
		i, url := i, url
		g.Go(func() error {
			item := BatchItem{OriginalURL: url}
			resultURL, err := s.remover.Remove(gctx, url, req.EdgeRefinement, j.ID)
			if err != nil {
				item.Error = err.Error()
				log.Printf("Job %s item %d failed: %v", j.ID, i, err)
			} else {
				item.ResultURL = resultURL
			}
			results[i] = item

			mu.Lock()
			done++
			progress := 5.0 + float64(done)/float64(len(req.ImageURLs))*90.0
			mu.Unlock()
			s.store.SetProcessing(j.ID, progress)
			return nil
		})
	}
	g.Wait()

	succeeded, firstResult := 0, ""
	for _, item := range results {
		if item.Error == "" {
			if firstResult == "" {
				firstResult = item.ResultURL
			}
			succeeded++
		}
	}
	failed := len(results) - succeeded

	if succeeded == 0 {
		msg := fmt.Sprintf("all %d images failed", failed)
		s.store.SetFailed(j.ID, msg)
		log.Printf("Job %s failed: %s", j.ID, msg)
	} else {
		s.store.SetCompleted(j.ID, firstResult)
		log.Printf("Job %s completed: %d/%d succeeded", j.ID, succeeded, len(results))
	}

	return &BatchResponse{
		Results:     results,
		Succeeded:   succeeded,
		Failed:      failed,
		SuccessRate: float64(succeeded) / float64(len(results)),
		JobID:       j.ID,
	}, nil
}
