package background

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
)

func TestReplicateRemover_ReportsProgressWhilePolling(t *testing.T) {
	tracker := job.NewTracker(10)
	j := job.New("background_removal", nil)
	tracker.Create(j)
	tracker.SetProcessing(j.ID, 25.0)

	var (
		gets atomic.Int32
		mu   sync.Mutex
		seen []float64
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-7", "status": "starting"})
	})
	mux.HandleFunc("/predictions/pred-7", func(w http.ResponseWriter, r *http.Request) {
		cur, _ := tracker.Get(j.ID)
		mu.Lock()
		seen = append(seen, cur.Progress)
		mu.Unlock()
		if gets.Add(1) < 3 {
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-7", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "pred-7", "status": "succeeded",
			"output": []string{"https://img.test/cutout.png"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rem := NewReplicateRemover(
		replicate.NewClientWithBaseURL("test-token", srv.URL),
		poll.New(tracker, 10, time.Millisecond),
	)

	url, err := rem.Remove(context.Background(), "https://img.test/a.png", false, j.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if url != "https://img.test/cutout.png" {
		t.Errorf("unexpected result URL %q", url)
	}

	// The job must not sit at its initial progress for the whole poll.
	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 {
		t.Fatalf("expected at least 3 polls, got %d", len(seen))
	}
	if last := seen[len(seen)-1]; last <= 25.0 {
		t.Errorf("expected progress above 25 during polling, got %f", last)
	}
}

func TestReplicateRemover_CancelledJobAborts(t *testing.T) {
	tracker := job.NewTracker(10)
	j := job.New("background_removal", nil)
	tracker.Create(j)

	var cancels atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-8", "status": "starting"})
	})
	mux.HandleFunc("/predictions/pred-8", func(w http.ResponseWriter, r *http.Request) {
		tracker.Cancel(j.ID)
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-8", "status": "processing"})
	})
	mux.HandleFunc("/predictions/pred-8/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancels.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-8", "status": "canceled"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rem := NewReplicateRemover(
		replicate.NewClientWithBaseURL("test-token", srv.URL),
		poll.New(tracker, 10, time.Millisecond),
	)

	_, err := rem.Remove(context.Background(), "https://img.test/a.png", false, j.ID)
	if err == nil {
		t.Fatal("expected error for cancelled job")
	}
	if cancels.Load() != 1 {
		t.Errorf("expected the prediction to be cancelled upstream, got %d cancels", cancels.Load())
	}
}
