package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/config"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/deepl"
	"github.com/kreativo/ai-gateway/internal/provider/gpt"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
	"github.com/kreativo/ai-gateway/internal/ratelimit"
	"github.com/kreativo/ai-gateway/internal/service/animator"
	"github.com/kreativo/ai-gateway/internal/service/background"
	"github.com/kreativo/ai-gateway/internal/service/imagegen"
	"github.com/kreativo/ai-gateway/internal/service/text"
	"github.com/kreativo/ai-gateway/internal/ws"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:                8000,
		MaxImageSize:            2048,
		MaxBatchSize:            4,
		MaxRequestsPerMinute:    60,
		MaxRequestsPerDay:       1000,
		PollMaxAttempts:         10,
		PollInterval:            time.Millisecond,
		EnableImageGeneration:   true,
		EnableBackgroundRemoval: true,
		EnableTextGeneration:    true,
		EnableTranslation:       true,
		EnableUpscaling:         true,
		EnableAnimator:          true,
	}
}

// newTestRouter wires a full router against a fake Replicate server.
func newTestRouter(t *testing.T, cfg *config.Config, replicateURL string) (http.Handler, *job.Tracker) {
	t.Helper()
	tracker := job.NewTracker(100)
	poller := poll.New(tracker, cfg.PollMaxAttempts, cfg.PollInterval)
	rep := replicate.NewClientWithBaseURL("test-token", replicateURL)

	images := imagegen.New(imagegen.Options{
		Store:        tracker,
		Poller:       poller,
		Replicate:    rep,
		Cache:        cache.NewDisabled(),
		MaxImageSize: cfg.MaxImageSize,
		MaxBatchSize: cfg.MaxBatchSize,
	})
	remover := background.NewReplicateRemover(rep, poller)
	backgrounds := background.New(tracker, remover, cfg.MaxBatchSize)
	texts := text.New(tracker, gpt.NewClient(""), deepl.NewClient(""))
	animations := animator.New(tracker)

	router := NewRouter(Deps{
		Config:      cfg,
		Store:       tracker,
		Limiter:     ratelimit.New(cfg.MaxRequestsPerMinute, time.Minute),
		Cache:       cache.NewDisabled(),
		Images:      images,
		Backgrounds: backgrounds,
		Texts:       texts,
		Animations:  animations,
		WS:          ws.NewServer(tracker),
	})
	return router, tracker
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRoot(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")
	rec := doJSON(t, router, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["service"] != "Kreativo AI Gateway" {
		t.Errorf("unexpected banner %v", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")
	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		rec := doJSON(t, router, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestHealth_ProbesProviders(t *testing.T) {
	cfg := testConfig()
	cfg.ReplicateAPIToken = "tok"
	cfg.OpenAIAPIKey = "key"
	cfg.EnableBackgroundRemoval = false
	cfg.EnableTranslation = false

	newHealth := func(probes map[string]ProbeFunc) map[string]any {
		h := NewHandlers(cfg, job.NewTracker(10), ratelimit.New(10, time.Minute), nil, nil, nil, nil, nil, probes)
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		return body
	}

	body := newHealth(map[string]ProbeFunc{
		"image_generation": func(context.Context) error { return nil },
		"text_generation":  func(context.Context) error { return nil },
	})
	if body["status"] != "healthy" {
		t.Errorf("expected healthy with passing probes, got %v", body["status"])
	}
	caps := body["capabilities"].(map[string]any)
	img := caps["image_generation"].(map[string]any)
	if img["reachable"] != true {
		t.Errorf("expected image_generation reachable, got %v", img)
	}

	body = newHealth(map[string]ProbeFunc{
		"image_generation": func(context.Context) error { return nil },
		"text_generation":  func(context.Context) error { return errors.New("401 unauthorized") },
	})
	if body["status"] != "degraded" {
		t.Errorf("expected degraded with a failing probe, got %v", body["status"])
	}
	caps = body["capabilities"].(map[string]any)
	txt := caps["text_generation"].(map[string]any)
	if txt["reachable"] != false || txt["error"] == "" {
		t.Errorf("expected unreachable text_generation with error, got %v", txt)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")
	rec := doJSON(t, router, http.MethodGet, "/api/v1/jobs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorCode != CodeNotFound {
		t.Errorf("expected %s, got %s", CodeNotFound, errResp.ErrorCode)
	}
}

func TestGetJob_Found(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")
	j := job.New("image_generation", nil)
	tracker.Create(j)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+j.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got job.Job
	decodeBody(t, rec, &got)
	if got.ID != j.ID || got.Status != job.StatusPending {
		t.Errorf("unexpected job %+v", got)
	}
}

func TestCancelJob(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")
	j := job.New("image_generation", nil)
	tracker.Create(j)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/jobs/"+j.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, _ := tracker.Get(j.ID)
	if got.Status != job.StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	// Cancelling a terminal job is a validation error.
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/jobs/"+j.ID, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on double cancel, got %d", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")
	for i := 0; i < 3; i++ {
		tracker.Create(job.New("text_generation", nil))
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/jobs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Jobs  []job.Job `json:"jobs"`
		Total int       `json:"total"`
	}
	decodeBody(t, rec, &body)
	if body.Total != 3 || len(body.Jobs) != 2 {
		t.Errorf("expected total 3 with 2 returned, got %d/%d", body.Total, len(body.Jobs))
	}
}

func TestListJobs_NegativeBounds(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")
	tracker.Create(job.New("text_generation", nil))

	for _, path := range []string{"/api/v1/jobs?limit=-1", "/api/v1/jobs?offset=-5"} {
		rec := doJSON(t, router, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
		var errResp ErrorResponse
		decodeBody(t, rec, &errResp)
		if errResp.ErrorCode != CodeValidation {
			t.Errorf("%s: expected %s, got %s", path, CodeValidation, errResp.ErrorCode)
		}
	}
}

func TestRateLimit_NoJobCreated(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestsPerMinute = 2
	router, tracker := newTestRouter(t, cfg, "http://unused.invalid")

	// Invalid bodies still consume admission slots.
	for i := 0; i < 2; i++ {
		doJSON(t, router, http.MethodPost, "/api/v1/generate/images", `{}`)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate/images", `{}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorCode != CodeRateLimited {
		t.Errorf("expected %s, got %s", CodeRateLimited, errResp.ErrorCode)
	}

	if _, total := tracker.List(10, 0, ""); total != 0 {
		t.Errorf("rejected requests must not create jobs, found %d", total)
	}
}

// fakeQuota stands in for the Redis-backed daily counter.
type fakeQuota struct {
	allow bool
	incrs int
}

func (f *fakeQuota) CheckQuota(context.Context, string, string, int64) bool { return f.allow }

func (f *fakeQuota) IncrUsage(context.Context, string, string) int64 {
	f.incrs++
	return int64(f.incrs)
}

func TestRateLimit_DailyQuota(t *testing.T) {
	cfg := testConfig()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := NewHandlers(cfg, job.NewTracker(10), ratelimit.New(100, time.Minute), nil, nil, nil, nil, nil, nil)
	quota := &fakeQuota{allow: false}
	h.quota = quota

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate/text", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	rec := httptest.NewRecorder()
	h.rateLimit(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over daily quota, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorCode != CodeRateLimited {
		t.Errorf("expected %s, got %s", CodeRateLimited, errResp.ErrorCode)
	}
	if _, ok := errResp.Details["max_requests_per_day"]; !ok {
		t.Errorf("expected daily limit in details, got %v", errResp.Details)
	}
	if quota.incrs != 0 {
		t.Errorf("rejected request must not consume quota, got %d increments", quota.incrs)
	}

	quota.allow = true
	rec = httptest.NewRecorder()
	h.rateLimit(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 under quota, got %d", rec.Code)
	}
	if quota.incrs != 1 {
		t.Errorf("admitted request must consume quota once, got %d increments", quota.incrs)
	}
}

func TestFeatureDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableTextGeneration = false
	router, _ := newTestRouter(t, cfg, "http://unused.invalid")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate/text",
		`{"context":"x","tone":"casual","format_type":"body","max_length":100,"variation_count":1}`)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorCode != CodeFeatureDisabled {
		t.Errorf("expected %s, got %s", CodeFeatureDisabled, errResp.ErrorCode)
	}
}

func TestGenerateImages_Validation(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")
	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate/images",
		`{"prompt":"x","style":"anime","width":100,"height":512,"batch_size":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorCode != CodeValidation {
		t.Errorf("expected %s, got %s", CodeValidation, errResp.ErrorCode)
	}
	if errResp.Details["field"] != "width" {
		t.Errorf("expected width detail, got %v", errResp.Details)
	}
}

func TestGenerateImages_EndToEnd(t *testing.T) {
	var gets atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pred-9", "status": "starting"})
	})
	mux.HandleFunc("/predictions/pred-9", func(w http.ResponseWriter, r *http.Request) {
		if gets.Add(1) < 3 {
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-9", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "pred-9", "status": "succeeded",
			"output": []string{"https://img.test/1.png", "https://img.test/2.png"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	router, tracker := newTestRouter(t, testConfig(), srv.URL)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate/images",
		`{"prompt":"A red bicycle","style":"realistic","width":1024,"height":1024,"batch_size":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp imagegen.GenerateResponse
	decodeBody(t, rec, &resp)
	if resp.JobID == "" {
		t.Fatal("expected non-empty job_id")
	}
	if len(resp.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(resp.Images))
	}

	j, err := tracker.Get(resp.JobID)
	if err != nil {
		t.Fatalf("Get job: %v", err)
	}
	if j.Status != job.StatusCompleted {
		t.Errorf("expected completed, got %s", j.Status)
	}
}

func TestTextExtensionEndpoints(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")

	// Content analysis is computed locally, so it works without an OpenAI key.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate/text/content-analysis",
		`{"text":"Buy now and save big on this exclusive offer."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("content-analysis: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var analysis struct {
		OverallScore float64 `json:"overall_score"`
		JobID        string  `json:"job_id"`
	}
	decodeBody(t, rec, &analysis)
	if analysis.OverallScore <= 0 {
		t.Errorf("expected positive overall score, got %f", analysis.OverallScore)
	}
	if j, err := tracker.Get(analysis.JobID); err != nil || j.Status != job.StatusCompleted {
		t.Errorf("expected completed analysis job, got %v/%v", j, err)
	}

	// The generation-backed extensions need a configured completer.
	for _, path := range []string{
		"/api/v1/generate/text/ab-test",
		"/api/v1/generate/text/industry-optimized",
	} {
		rec := doJSON(t, router, http.MethodPost, path,
			`{"context":"Summer sale","tone":"casual","format_type":"headline","industry":"ecommerce"}`)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s: expected 501 without credentials, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestInfoEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/info/styles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("styles: expected 200, got %d", rec.Code)
	}
	var styles map[string][]string
	decodeBody(t, rec, &styles)
	if len(styles["image_styles"]) != 7 {
		t.Errorf("expected 7 image styles, got %d", len(styles["image_styles"]))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/info/limits", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("limits: expected 200, got %d", rec.Code)
	}
	var limits map[string]any
	decodeBody(t, rec, &limits)
	if limits["max_batch_size"].(float64) != 4 {
		t.Errorf("unexpected limits %v", limits)
	}
}

func TestStats(t *testing.T) {
	router, tracker := newTestRouter(t, testConfig(), "http://unused.invalid")
	j := job.New("translation", nil)
	tracker.Create(j)
	tracker.SetProcessing(j.ID, 10)
	tracker.SetCompleted(j.ID, "done")

	rec := doJSON(t, router, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Jobs map[string]int `json:"jobs"`
	}
	decodeBody(t, rec, &body)
	if body.Jobs["completed"] != 1 {
		t.Errorf("expected 1 completed job, got %v", body.Jobs)
	}
}

func TestAnimatorEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), "http://unused.invalid")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/animate/smart-generate",
		`{"design_elements":[{"id":"e1","type":"headline"}],"style":"smooth","purpose":"branding","duration_seconds":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("smart-generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/animate/variations",
		`{"base_animation":{"name":"pulse","duration_ms":600},"variation_count":3,"creativity_level":0.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("variations: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/animate/contextual-presets",
		`{"industry":"saas","brand_personality":["innovative"],"content_type":"landing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("contextual-presets: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
