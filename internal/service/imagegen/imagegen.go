// Package imagegen generates and upscales images through Replicate-hosted
// Stable Diffusion and Real-ESRGAN models.
package imagegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/kreativo/ai-gateway/internal/assets"
	"github.com/kreativo/ai-gateway/internal/cache"
	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/provider/replicate"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Style selects the model version and prompt treatment for a generation.
type Style string

const (
	StyleRealistic  Style = "realistic"
	StyleDigitalArt Style = "digital_art"
	Style3DModel    Style = "3d_model"
	StyleIsometric  Style = "isometric"
	StylePixelArt   Style = "pixel_art"
	StyleAnime      Style = "anime"
	StyleVaporwave  Style = "vaporwave"
)

type styleConfig struct {
	Version        string
	Scheduler      string
	Steps          int
	GuidanceScale  float64
	PositiveSuffix string
	NegativePrompt string
}

var styleConfigs = map[Style]styleConfig{
	StyleRealistic: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "DPMSolverMultistep",
		Steps:          50,
		GuidanceScale:  7.5,
		PositiveSuffix: ", photorealistic, 8K, ultra detailed, professional photography, DSLR, cinematic lighting",
		NegativePrompt: "cartoon, anime, painting, sketch, low quality, blurry, watermark, text, signature",
	},
	StyleDigitalArt: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "K_EULER_ANCESTRAL",
		Steps:          40,
		GuidanceScale:  8.0,
		PositiveSuffix: ", digital art, concept art, trending on artstation, detailed illustration, vibrant colors",
		NegativePrompt: "photograph, realistic, low quality, blurry, pixelated, amateur",
	},
	Style3DModel: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "DPMSolverMultistep",
		Steps:          45,
		GuidanceScale:  7.0,
		PositiveSuffix: ", 3D render, octane render, volumetric lighting, cinema4d, blender, unreal engine 5",
		NegativePrompt: "2D, flat, low quality, blurry, cartoon, sketch",
	},
	StyleIsometric: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "K_EULER",
		Steps:          40,
		GuidanceScale:  8.5,
		PositiveSuffix: ", isometric view, game art, clean design, low poly, geometric, bright colors",
		NegativePrompt: "perspective, realistic, complex, cluttered, dark, blurry",
	},
	StylePixelArt: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "K_EULER",
		Steps:          30,
		GuidanceScale:  9.0,
		PositiveSuffix: ", pixel art, 8-bit, 16-bit, retro game style, sprite art, crisp pixels",
		NegativePrompt: "smooth, realistic, high resolution, blurry, anti-aliased, 3D",
	},
	StyleAnime: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "K_EULER_ANCESTRAL",
		Steps:          40,
		GuidanceScale:  8.0,
		PositiveSuffix: ", anime style, manga, high quality anime art, studio ghibli style, cel shading",
		NegativePrompt: "realistic, photograph, western cartoon, low quality, ugly, distorted",
	},
	StyleVaporwave: {
		Version:        replicate.ModelSDXL,
		Scheduler:      "K_EULER_ANCESTRAL",
		Steps:          45,
		GuidanceScale:  8.5,
		PositiveSuffix: ", vaporwave aesthetic, synthwave, neon colors, retro futuristic, 80s style, neon grid",
		NegativePrompt: "modern, realistic, dull colors, low quality, dark, monochrome",
	},
}

const baseNegativePrompt = "low quality, blurry, pixelated, distorted, watermark, text, " +
	"signature, username, artist name, copyright, logo, " +
	"bad anatomy, deformed, ugly, gross, disgusting"

// Styles lists supported style names, sorted for stable output.
func Styles() []string {
	names := make([]string, 0, len(styleConfigs))
	for s := range styleConfigs {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

const (
	minDimension  = 256
	dimensionStep = 8
	minScale      = 2
	maxScale      = 4
)

type GenerateRequest struct {
	Prompt            string `json:"prompt"`
	Style             Style  `json:"style"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	BatchSize         int    `json:"batch_size"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	Seed              *int   `json:"seed,omitempty"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
}

type GeneratedImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   *int   `json:"seed,omitempty"`
}

type GenerateResponse struct {
	Images []GeneratedImage `json:"images"`
	Prompt string           `json:"prompt"`
	Style  Style            `json:"style"`
	JobID  string           `json:"job_id"`
}

type UpscaleRequest struct {
	ImageURL    string `json:"image_url"`
	ScaleFactor int    `json:"scale_factor"`
	FaceEnhance bool   `json:"face_enhance,omitempty"`
}

type UpscaleResponse struct {
	ResultURL   string `json:"result_url"`
	OriginalURL string `json:"original_url"`
	JobID       string `json:"job_id"`
	Fallback    bool   `json:"fallback"`
}

// Service drives image generation and upscaling jobs.
type Service struct {
	store     job.Store
	poller    *poll.Poller
	replicate *replicate.Client
	cache     *cache.Cache
	assets    *assets.Store

	maxImageSize int
	maxBatchSize int
	resultTTL    time.Duration
}

type Options struct {
	Store     job.Store
	Poller    *poll.Poller
	Replicate *replicate.Client
	Cache     *cache.Cache
	Assets    *assets.Store

	MaxImageSize int
	MaxBatchSize int
	ResultTTL    time.Duration
}

func New(opts Options) *Service {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = 2048
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 4
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewDisabled()
	}
	return &Service{
		store:        opts.Store,
		poller:       opts.Poller,
		replicate:    opts.Replicate,
		cache:        opts.Cache,
		assets:       opts.Assets,
		maxImageSize: opts.MaxImageSize,
		maxBatchSize: opts.MaxBatchSize,
		resultTTL:    opts.ResultTTL,
	}
}

// Generate validates the request, submits a Stable Diffusion prediction and
// polls it to completion, recording progress on the tracker throughout.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	cfg, err := s.validateGenerate(req)
	if err != nil {
		return nil, err
	}
	if !s.replicate.Configured() {
		return nil, service.ErrNotConfigured
	}

	cacheKey := generateCacheKey(req)
	var cached GenerateResponse
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		log.Printf("Image generation cache hit for prompt %q", req.Prompt)
		return &cached, nil
	}

	j := job.New("image_generation", map[string]any{
		"prompt":     req.Prompt,
		"style":      string(req.Style),
		"dimensions": fmt.Sprintf("%dx%d", req.Width, req.Height),
		"batch_size": req.BatchSize,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: image_generation style=%s %dx%d", j.ID, req.Style, req.Width, req.Height)
	s.store.SetProcessing(j.ID, 10.0)

	input := map[string]any{
		"prompt":              req.Prompt + cfg.PositiveSuffix,
		"negative_prompt":     negativePrompt(cfg, req.NegativePrompt),
		"width":               req.Width,
		"height":              req.Height,
		"num_outputs":         req.BatchSize,
		"scheduler":           cfg.Scheduler,
		"num_inference_steps": cfg.Steps,
		"guidance_scale":      cfg.GuidanceScale,
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}
	if req.ReferenceImageURL != "" {
		input["image"] = req.ReferenceImageURL
	}
	s.store.SetProcessing(j.ID, 25.0)

	pred, err := s.replicate.CreatePrediction(ctx, cfg.Version, input)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		return nil, err
	}
	s.store.SetProcessing(j.ID, 50.0)

	urls, err := s.poller.Poll(ctx, pred.ID, j.ID, s.fetchPrediction)
	if err != nil {
		return nil, s.failJob(ctx, j.ID, pred.ID, err)
	}

	images := make([]GeneratedImage, 0, len(urls))
	for i, url := range urls {
		img := GeneratedImage{URL: url, Width: req.Width, Height: req.Height}
		if req.Seed != nil {
			seed := *req.Seed + i
			img.Seed = &seed
		}
		images = append(images, img)
	}

	first := ""
	if len(urls) > 0 {
		first = urls[0]
	}
	s.store.SetCompleted(j.ID, first)
	log.Printf("Job %s completed: %d images", j.ID, len(images))

	resp := &GenerateResponse{Images: images, Prompt: req.Prompt, Style: req.Style, JobID: j.ID}
	s.cache.SetJSON(ctx, cacheKey, resp, s.resultTTL)
	return resp, nil
}

// Upscale runs Real-ESRGAN when Replicate is configured; otherwise it falls
// back to a plain resize stored under /static/.
func (s *Service) Upscale(ctx context.Context, req UpscaleRequest) (*UpscaleResponse, error) {
	if req.ImageURL == "" {
		return nil, service.Invalid("image_url", "must not be empty")
	}
	if req.ScaleFactor < minScale || req.ScaleFactor > maxScale {
		return nil, service.Invalid("scale_factor", "must be between %d and %d", minScale, maxScale)
	}

	j := job.New("image_upscaling", map[string]any{
		"image_url":    req.ImageURL,
		"scale_factor": req.ScaleFactor,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: image_upscaling scale=%d", j.ID, req.ScaleFactor)
	s.store.SetProcessing(j.ID, 10.0)

	if !s.replicate.Configured() {
		url, err := s.upscaleFallback(ctx, req)
		if err != nil {
			s.store.SetFailed(j.ID, err.Error())
			return nil, err
		}
		s.store.SetCompleted(j.ID, url)
		log.Printf("Job %s completed via resize fallback", j.ID)
		return &UpscaleResponse{ResultURL: url, OriginalURL: req.ImageURL, JobID: j.ID, Fallback: true}, nil
	}

	input := map[string]any{
		"image":        req.ImageURL,
		"scale":        req.ScaleFactor,
		"face_enhance": req.FaceEnhance,
	}
	pred, err := s.replicate.CreatePrediction(ctx, replicate.ModelRealESRGAN, input)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		return nil, err
	}
	s.store.SetProcessing(j.ID, 50.0)

	urls, err := s.poller.Poll(ctx, pred.ID, j.ID, s.fetchPrediction)
	if err != nil {
		return nil, s.failJob(ctx, j.ID, pred.ID, err)
	}
	if len(urls) == 0 {
		err := fmt.Errorf("upscale produced no output")
		s.store.SetFailed(j.ID, err.Error())
		return nil, err
	}

	s.store.SetCompleted(j.ID, urls[0])
	log.Printf("Job %s completed: upscaled image", j.ID)
	return &UpscaleResponse{ResultURL: urls[0], OriginalURL: req.ImageURL, JobID: j.ID}, nil
}

// fetchPrediction adapts the Replicate client to the poller's FetchFunc.
func (s *Service) fetchPrediction(ctx context.Context, predictionID string) (poll.Result, error) {
	pred, err := s.replicate.GetPrediction(ctx, predictionID)
	if err != nil {
		return poll.Result{}, err
	}
	return poll.Result{
		Status: poll.Status(pred.Status),
		Output: pred.OutputURLs(),
		Err:    pred.ErrorMessage(),
	}, nil
}

// failJob marks the job failed and, on cancellation, tells Replicate to stop
// the prediction.
func (s *Service) failJob(ctx context.Context, jobID, predictionID string, err error) error {
	if err == poll.ErrCancelled {
		if cerr := s.replicate.CancelPrediction(ctx, predictionID); cerr != nil {
			log.Printf("Cancel of prediction %s failed: %v", predictionID, cerr)
		}
		return err
	}
	s.store.SetFailed(jobID, err.Error())
	log.Printf("Job %s failed: %v", jobID, err)
	return err
}

func (s *Service) validateGenerate(req GenerateRequest) (styleConfig, error) {
	if req.Prompt == "" {
		return styleConfig{}, service.Invalid("prompt", "must not be empty")
	}
	cfg, ok := styleConfigs[req.Style]
	if !ok {
		return styleConfig{}, service.Invalid("style", "unsupported style %q", req.Style)
	}
	for _, dim := range []struct {
		name  string
		value int
	}{{"width", req.Width}, {"height", req.Height}} {
		if dim.value < minDimension || dim.value > s.maxImageSize {
			return styleConfig{}, service.Invalid(dim.name, "must be between %d and %d", minDimension, s.maxImageSize)
		}
		if dim.value%dimensionStep != 0 {
			return styleConfig{}, service.Invalid(dim.name, "must be a multiple of %d", dimensionStep)
		}
	}
	if req.BatchSize < 1 || req.BatchSize > s.maxBatchSize {
		return styleConfig{}, service.Invalid("batch_size", "must be between 1 and %d", s.maxBatchSize)
	}
	return cfg, nil
}

func negativePrompt(cfg styleConfig, custom string) string {
	negative := baseNegativePrompt + ", " + cfg.NegativePrompt
	if custom != "" {
		negative += ", " + custom
	}
	return negative
}

func generateCacheKey(req GenerateRequest) string {
	seed := -1
	if req.Seed != nil {
		seed = *req.Seed
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%dx%d|%d|%s|%d",
		req.Prompt, req.Style, req.Width, req.Height, req.BatchSize, req.NegativePrompt, seed))
	return "imagegen:" + hex.EncodeToString(sum[:16])
}
