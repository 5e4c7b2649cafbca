package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kreativo/ai-gateway/internal/assets"
	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
	"github.com/kreativo/ai-gateway/internal/service"
)

// fakeReplicate serves the prediction lifecycle: create, then processing for
// a few gets, then succeeded with the given output.
func fakeReplicate(t *testing.T, processingPolls int, output []string) *httptest.Server {
	t.Helper()
	var gets atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
	})
	mux.HandleFunc("/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		if int(gets.Add(1)) <= processingPolls {
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "succeeded", "output": output})
	})
	return httptest.NewServer(mux)
}

func newTestAssets(t *testing.T) *assets.Store {
	t.Helper()
	s, err := assets.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newService(t *testing.T, baseURL string) (*Service, *job.Tracker) {
	t.Helper()
	tracker := job.NewTracker(100)
	return New(Options{
		Store:     tracker,
		Poller:    poll.New(tracker, 10, time.Millisecond),
		Replicate: replicate.NewClientWithBaseURL("test-token", baseURL),
		Cache:     cache.NewDisabled(),
	}), tracker
}

func TestGenerate_BatchOfTwo(t *testing.T) {
	srv := fakeReplicate(t, 2, []string{"https://img.test/a.png", "https://img.test/b.png"})
	defer srv.Close()

	svc, tracker := newService(t, srv.URL)
	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Prompt:    "A red bicycle",
		Style:     StyleRealistic,
		Width:     1024,
		Height:    1024,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.JobID == "" {
		t.Error("expected non-empty job_id")
	}
	if len(resp.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(resp.Images))
	}
	if resp.Images[0].URL != "https://img.test/a.png" {
		t.Errorf("unexpected first image URL %q", resp.Images[0].URL)
	}

	j, err := tracker.Get(resp.JobID)
	if err != nil {
		t.Fatalf("Get job: %v", err)
	}
	if j.Status != job.StatusCompleted {
		t.Errorf("expected completed job, got %s", j.Status)
	}
	if j.Progress != 100.0 {
		t.Errorf("expected progress 100, got %f", j.Progress)
	}
}

func TestGenerate_Validation(t *testing.T) {
	svc, _ := newService(t, "http://unused.invalid")

	cases := []struct {
		name string
		req  GenerateRequest
	}{
		{"empty prompt", GenerateRequest{Style: StyleAnime, Width: 512, Height: 512, BatchSize: 1}},
		{"unknown style", GenerateRequest{Prompt: "x", Style: "oil_painting", Width: 512, Height: 512, BatchSize: 1}},
		{"width too small", GenerateRequest{Prompt: "x", Style: StyleAnime, Width: 128, Height: 512, BatchSize: 1}},
		{"width not multiple of 8", GenerateRequest{Prompt: "x", Style: StyleAnime, Width: 513, Height: 512, BatchSize: 1}},
		{"height too large", GenerateRequest{Prompt: "x", Style: StyleAnime, Width: 512, Height: 4096, BatchSize: 1}},
		{"batch too large", GenerateRequest{Prompt: "x", Style: StyleAnime, Width: 512, Height: 512, BatchSize: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tc.req)
			var verr *service.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerate_ProviderFailureMarksJobFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
	})
	mux.HandleFunc("/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "failed", "error": "NSFW content detected"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, tracker := newService(t, srv.URL)
	_, err := svc.Generate(context.Background(), GenerateRequest{
		Prompt: "x", Style: StyleAnime, Width: 512, Height: 512, BatchSize: 1,
	})
	var perr *poll.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected provider error, got %v", err)
	}

	jobs, _ := tracker.List(10, 0, string(job.StatusFailed))
	if len(jobs) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(jobs))
	}
	if jobs[0].ErrorMessage == "" {
		t.Error("failed job should carry the provider message")
	}
}

func TestUpscale_FallbackResize(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer imgSrv.Close()

	tracker := job.NewTracker(100)
	store := newTestAssets(t)
	svc := New(Options{
		Store:     tracker,
		Poller:    poll.New(tracker, 5, time.Millisecond),
		Replicate: replicate.NewClientWithBaseURL("", "http://unused.invalid"), // unconfigured
		Assets:    store,
	})

	resp, err := svc.Upscale(context.Background(), UpscaleRequest{ImageURL: imgSrv.URL + "/in.png", ScaleFactor: 2})
	if err != nil {
		t.Fatalf("Upscale: %v", err)
	}
	if !resp.Fallback {
		t.Error("expected fallback flag without a Replicate token")
	}
	if resp.ResultURL == "" {
		t.Error("expected a result URL")
	}

	j, _ := tracker.Get(resp.JobID)
	if j.Status != job.StatusCompleted {
		t.Errorf("expected completed job, got %s", j.Status)
	}
}

func TestUpscale_ScaleValidation(t *testing.T) {
	svc, _ := newService(t, "http://unused.invalid")
	for _, scale := range []int{0, 1, 5} {
		_, err := svc.Upscale(context.Background(), UpscaleRequest{ImageURL: "https://img.test/a.png", ScaleFactor: scale})
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("scale %d: expected validation error, got %v", scale, err)
		}
	}
}
