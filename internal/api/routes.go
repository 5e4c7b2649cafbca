package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kreativo/ai-gateway/internal/assets"
	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/config"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/ratelimit"
	"github.com/kreativo/ai-gateway/internal/service/animator"
	"github.com/kreativo/ai-gateway/internal/service/background"
	"github.com/kreativo/ai-gateway/internal/service/imagegen"
	"github.com/kreativo/ai-gateway/internal/service/text"
	"github.com/kreativo/ai-gateway/internal/ws"
)

// Deps carries everything the router needs; constructed in cmd/gateway.
type Deps struct {
	Config  *config.Config
	Store   job.Store
	Limiter *ratelimit.Limiter
	Cache   *cache.Cache

	Images      *imagegen.Service
	Backgrounds *background.Service
	Texts       *text.Service
	Animations  *animator.Service

	Assets *assets.Store
	WS     *ws.Server

	// Probes map capability names to credential checks for /health.
	Probes map[string]ProbeFunc
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	h := NewHandlers(d.Config, d.Store, d.Limiter, d.Cache, d.Images, d.Backgrounds, d.Texts, d.Animations, d.Probes)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.HealthReady)
	r.Get("/health/live", h.HealthLive)
	r.Get("/stats", h.Stats)

	r.Route("/api/v1", func(r chi.Router) {
		// Admission control runs before any job is created.
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)

			r.Post("/generate/images", h.GenerateImages)
			r.Post("/generate/text", h.GenerateText)
			r.Post("/generate/text/ab-test", h.GenerateABTest)
			r.Post("/generate/text/content-analysis", h.AnalyzeContent)
			r.Post("/generate/text/industry-optimized", h.GenerateIndustryOptimized)
			r.Post("/translate", h.Translate)
			r.Post("/process/upscale", h.UpscaleImage)
			r.Post("/process/remove-background", h.RemoveBackground)
			r.Post("/process/batch-background-removal", h.BatchRemoveBackground)
			r.Post("/animate/smart-generate", h.AnimateSmartGenerate)
			r.Post("/animate/variations", h.AnimateVariations)
			r.Post("/animate/contextual-presets", h.AnimateContextualPresets)
		})

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{job_id}", h.GetJob)
		r.Delete("/jobs/{job_id}", h.CancelJob)

		r.Get("/info/styles", h.InfoStyles)
		r.Get("/info/limits", h.InfoLimits)
	})

	if d.WS != nil {
		r.Get("/ws/jobs/{job_id}", d.WS.HandleJob)
	}

	if d.Assets != nil {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(d.Assets.Dir())))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
