package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/config"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/ratelimit"
	"github.com/kreativo/ai-gateway/internal/service/animator"
	"github.com/kreativo/ai-gateway/internal/service/background"
	"github.com/kreativo/ai-gateway/internal/service/imagegen"
	"github.com/kreativo/ai-gateway/internal/service/text"
)

var startTime = time.Now()

// ProbeFunc checks that a provider credential actually works, not just that
// it is present. Wired per capability in cmd/gateway.
type ProbeFunc func(ctx context.Context) error

// quotaKeeper is the slice of the cache the admission path needs.
type quotaKeeper interface {
	CheckQuota(ctx context.Context, identifier, feature string, limit int64) bool
	IncrUsage(ctx context.Context, identifier, feature string) int64
}

type Handlers struct {
	cfg     *config.Config
	store   job.Store
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	quota   quotaKeeper
	probes  map[string]ProbeFunc

	images      *imagegen.Service
	backgrounds *background.Service
	texts       *text.Service
	animations  *animator.Service
}

func NewHandlers(cfg *config.Config, store job.Store, limiter *ratelimit.Limiter, c *cache.Cache,
	images *imagegen.Service, backgrounds *background.Service, texts *text.Service, animations *animator.Service,
	probes map[string]ProbeFunc) *Handlers {
	if c == nil {
		c = cache.NewDisabled()
	}
	return &Handlers{
		cfg:         cfg,
		store:       store,
		limiter:     limiter,
		cache:       c,
		quota:       c,
		probes:      probes,
		images:      images,
		backgrounds: backgrounds,
		texts:       texts,
		animations:  animations,
	}
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Kreativo AI Gateway",
		"version": "1.0.0",
		"status":  "running",
	})
}

// Health reports each capability: enabled by flag, configured with a
// credential, and (where a probe is wired) whether the provider actually
// answers with that credential. Probes run in parallel under one timeout;
// the cache gets a real ping.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	capabilities := map[string]any{
		"image_generation": capabilityStatus(h.cfg.EnableImageGeneration, h.cfg.ReplicateAPIToken != ""),
		"upscaling":        capabilityStatus(h.cfg.EnableUpscaling, true), // resize fallback always works
		"background_removal": capabilityStatus(h.cfg.EnableBackgroundRemoval,
			h.backgrounds != nil && h.backgrounds.Configured()),
		"text_generation": capabilityStatus(h.cfg.EnableTextGeneration, h.cfg.OpenAIAPIKey != ""),
		"translation":     capabilityStatus(h.cfg.EnableTranslation, h.cfg.DeepLAPIKey != ""),
		"animator":        capabilityStatus(h.cfg.EnableAnimator, true),
	}

	var g errgroup.Group
	for name, probe := range h.probes {
		probe := probe
		s, ok := capabilities[name].(map[string]any)
		if !ok || !s["enabled"].(bool) || !s["configured"].(bool) {
			continue
		}
		g.Go(func() error {
			err := probe(ctx)
			s["reachable"] = err == nil
			if err != nil {
				s["error"] = err.Error()
			}
			return nil
		})
	}
	g.Wait()

	cacheStatus := "disabled"
	if h.cache.Enabled() {
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "unreachable"
		} else {
			cacheStatus = "connected"
		}
	}

	healthy := true
	for _, v := range capabilities {
		s := v.(map[string]any)
		if s["enabled"].(bool) && !s["configured"].(bool) {
			healthy = false
		}
		if reachable, ok := s["reachable"].(bool); ok && !reachable {
			healthy = false
		}
	}
	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"capabilities": capabilities,
		"cache":        cacheStatus,
	})
}

func capabilityStatus(enabled, configured bool) map[string]any {
	return map[string]any{"enabled": enabled, "configured": configured}
}

func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.cache.Enabled() {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	counts := h.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"jobs": map[string]int{
			"pending":    counts.Pending,
			"processing": counts.Processing,
			"completed":  counts.Completed,
			"failed":     counts.Failed,
			"cancelled":  counts.Cancelled,
		},
	})
}

// rateLimit rejects before any job is created. Identifier is the client IP.
// Two gates: the in-process sliding window per minute, then the Redis-backed
// daily counter. The daily gate fails open when Redis is down.
func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !h.limiter.Check(ip) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited,
				"rate limit exceeded, try again later", map[string]any{
					"max_requests_per_minute": h.cfg.MaxRequestsPerMinute,
				})
			return
		}
		if !h.quota.CheckQuota(r.Context(), ip, "requests", int64(h.cfg.MaxRequestsPerDay)) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited,
				"daily request quota exceeded", map[string]any{
					"max_requests_per_day": h.cfg.MaxRequestsPerDay,
				})
			return
		}
		h.quota.IncrUsage(r.Context(), ip, "requests")
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
		return false
	}
	return true
}

func (h *Handlers) featureEnabled(w http.ResponseWriter, enabled bool, name string) bool {
	if !enabled {
		writeError(w, http.StatusNotImplemented, CodeFeatureDisabled, name+" is disabled", nil)
		return false
	}
	return true
}

func (h *Handlers) GenerateImages(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableImageGeneration, "image generation") {
		return
	}
	var req imagegen.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.images.Generate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) UpscaleImage(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableUpscaling, "image upscaling") {
		return
	}
	var req imagegen.UpscaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.images.Upscale(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableBackgroundRemoval, "background removal") {
		return
	}
	var req background.RemoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.backgrounds.Remove(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) BatchRemoveBackground(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableBackgroundRemoval, "background removal") {
		return
	}
	var req background.BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.backgrounds.RemoveBatch(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GenerateText(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableTextGeneration, "text generation") {
		return
	}
	var req text.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.texts.Generate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GenerateABTest(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableTextGeneration, "text generation") {
		return
	}
	var req text.ABTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.texts.ABTest(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AnalyzeContent(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableTextGeneration, "text generation") {
		return
	}
	var req text.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.texts.AnalyzeContent(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GenerateIndustryOptimized(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableTextGeneration, "text generation") {
		return
	}
	var req text.IndustryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.texts.IndustryOptimized(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Translate(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableTranslation, "translation") {
		return
	}
	var req text.TranslateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.texts.Translate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AnimateSmartGenerate(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableAnimator, "magic animator") {
		return
	}
	var req animator.SmartGenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.animations.SmartGenerate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AnimateVariations(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableAnimator, "magic animator") {
		return
	}
	var req animator.VariationsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.animations.Variations(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) AnimateContextualPresets(w http.ResponseWriter, r *http.Request) {
	if !h.featureEnabled(w, h.cfg.EnableAnimator, "magic animator") {
		return
	}
	var req animator.ContextualPresetsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.animations.ContextualPresets(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.Get(chi.URLParam(r, "job_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, CodeValidation,
			"limit and offset must not be negative", nil)
		return
	}
	status := r.URL.Query().Get("status")

	jobs, total := h.store.List(limit, offset, status)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if err := h.store.Cancel(id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": id,
		"status": string(job.StatusCancelled),
	})
}

func (h *Handlers) InfoStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"image_styles": imagegen.Styles(),
		"text_tones":   text.Tones(),
		"text_formats": text.Formats(),
	})
}

func (h *Handlers) InfoLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"max_image_size":          h.cfg.MaxImageSize,
		"min_image_size":          256,
		"dimension_step":          8,
		"max_batch_size":          h.cfg.MaxBatchSize,
		"max_requests_per_minute": h.cfg.MaxRequestsPerMinute,
		"max_requests_per_day":    h.cfg.MaxRequestsPerDay,
		"poll_budget_seconds":     int(h.cfg.PollInterval.Seconds()) * h.cfg.PollMaxAttempts,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
