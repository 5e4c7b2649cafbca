// Package animator synthesizes animation keyframes for design elements from
// heuristic presets: no external model is required, though GPT refinement
// can be layered on by callers that have one.
package animator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Keyframe is one point on an animation timeline. Properties hold CSS-like
// values keyed by property name.
type Keyframe struct {
	TimeMs     int               `json:"time_ms"`
	Properties map[string]string `json:"properties"`
}

// Template is a reusable named animation.
type Template struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"` // entry, emphasis, exit
	Easing    string     `json:"easing"`
	Impact    string     `json:"impact"`
	Keyframes []Keyframe `json:"keyframes"`
}

var templates = map[string]Template{
	"fade_in": {
		Name: "fade_in", Kind: "entry", Easing: "ease-out", Impact: "subtle",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"opacity": "0"}},
			{TimeMs: 1000, Properties: map[string]string{"opacity": "1"}},
		},
	},
	"slide_in_left": {
		Name: "slide_in_left", Kind: "entry", Easing: "cubic-bezier(0.25, 0.46, 0.45, 0.94)", Impact: "moderate",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "translateX(-100px)", "opacity": "0"}},
			{TimeMs: 800, Properties: map[string]string{"transform": "translateX(0)", "opacity": "1"}},
		},
	},
	"zoom_in": {
		Name: "zoom_in", Kind: "entry", Easing: "cubic-bezier(0.68, -0.55, 0.265, 1.55)", Impact: "high",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "scale(0.3)", "opacity": "0"}},
			{TimeMs: 600, Properties: map[string]string{"transform": "scale(1.05)", "opacity": "0.8"}},
			{TimeMs: 800, Properties: map[string]string{"transform": "scale(1)", "opacity": "1"}},
		},
	},
	"bounce_in": {
		Name: "bounce_in", Kind: "entry", Easing: "ease-out", Impact: "very_high",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "scale(0)"}},
			{TimeMs: 200, Properties: map[string]string{"transform": "scale(1.1)"}},
			{TimeMs: 400, Properties: map[string]string{"transform": "scale(0.95)"}},
			{TimeMs: 600, Properties: map[string]string{"transform": "scale(1.02)"}},
			{TimeMs: 800, Properties: map[string]string{"transform": "scale(1)"}},
		},
	},
	"pulse": {
		Name: "pulse", Kind: "emphasis", Easing: "ease-in-out", Impact: "moderate",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "scale(1)"}},
			{TimeMs: 300, Properties: map[string]string{"transform": "scale(1.1)"}},
			{TimeMs: 600, Properties: map[string]string{"transform": "scale(1)"}},
		},
	},
	"shake": {
		Name: "shake", Kind: "emphasis", Easing: "linear", Impact: "high",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "translateX(0)"}},
			{TimeMs: 100, Properties: map[string]string{"transform": "translateX(-5px)"}},
			{TimeMs: 200, Properties: map[string]string{"transform": "translateX(5px)"}},
			{TimeMs: 300, Properties: map[string]string{"transform": "translateX(-3px)"}},
			{TimeMs: 400, Properties: map[string]string{"transform": "translateX(3px)"}},
			{TimeMs: 500, Properties: map[string]string{"transform": "translateX(0)"}},
		},
	},
	"glow": {
		Name: "glow", Kind: "emphasis", Easing: "ease-in-out", Impact: "moderate",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"filter": "drop-shadow(0 0 0 rgba(255,255,255,0))"}},
			{TimeMs: 500, Properties: map[string]string{"filter": "drop-shadow(0 0 20px rgba(255,255,255,0.8))"}},
			{TimeMs: 1000, Properties: map[string]string{"filter": "drop-shadow(0 0 0 rgba(255,255,255,0))"}},
		},
	},
	"fade_out": {
		Name: "fade_out", Kind: "exit", Easing: "ease-in", Impact: "subtle",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"opacity": "1"}},
			{TimeMs: 500, Properties: map[string]string{"opacity": "0"}},
		},
	},
	"slide_out_right": {
		Name: "slide_out_right", Kind: "exit", Easing: "ease-in", Impact: "moderate",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "translateX(0)", "opacity": "1"}},
			{TimeMs: 600, Properties: map[string]string{"transform": "translateX(100px)", "opacity": "0"}},
		},
	},
	"zoom_out": {
		Name: "zoom_out", Kind: "exit", Easing: "ease-in", Impact: "high",
		Keyframes: []Keyframe{
			{TimeMs: 0, Properties: map[string]string{"transform": "scale(1)", "opacity": "1"}},
			{TimeMs: 400, Properties: map[string]string{"transform": "scale(0.8)", "opacity": "0.3"}},
			{TimeMs: 600, Properties: map[string]string{"transform": "scale(0)", "opacity": "0"}},
		},
	},
}

type stylePreference struct {
	Preferred []string
	MinMs     int
	MaxMs     int
}

var stylePreferences = map[string]stylePreference{
	"smooth":       {Preferred: []string{"fade_in", "slide_in_left", "fade_out"}, MinMs: 600, MaxMs: 1200},
	"bouncy":       {Preferred: []string{"bounce_in", "zoom_in", "pulse"}, MinMs: 400, MaxMs: 800},
	"elastic":      {Preferred: []string{"zoom_in", "bounce_in", "slide_in_left"}, MinMs: 800, MaxMs: 1500},
	"dramatic":     {Preferred: []string{"zoom_in", "slide_in_left", "zoom_out"}, MinMs: 1000, MaxMs: 2000},
	"subtle":       {Preferred: []string{"fade_in", "fade_out", "glow"}, MinMs: 300, MaxMs: 600},
	"energetic":    {Preferred: []string{"bounce_in", "shake", "pulse"}, MinMs: 200, MaxMs: 600},
	"professional": {Preferred: []string{"fade_in", "slide_in_left", "fade_out"}, MinMs: 400, MaxMs: 800},
	"playful":      {Preferred: []string{"bounce_in", "shake", "zoom_in", "pulse"}, MinMs: 300, MaxMs: 1000},
}

var purposeSuggestions = map[string][]string{
	"attention":        {"pulse", "shake", "glow", "bounce_in"},
	"engagement":       {"slide_in_left", "zoom_in", "pulse"},
	"conversion":       {"glow", "pulse", "bounce_in"},
	"branding":         {"fade_in", "slide_in_left", "glow"},
	"storytelling":     {"fade_in", "slide_in_left", "fade_out"},
	"product_showcase": {"zoom_in", "glow", "pulse"},
}

// elementPriorities orders elements on the timeline: higher priority
// animates earlier and with stronger impact.
var elementPriorities = map[string]int{
	"cta":        4,
	"product":    4,
	"headline":   3,
	"logo":       2,
	"subheading": 2,
	"body":       1,
	"background": 0,
	"decoration": 0,
}

// DesignElement is one item on the canvas being animated.
type DesignElement struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ElementAnimation is the plan for one element.
type ElementAnimation struct {
	ElementID string     `json:"element_id"`
	Template  string     `json:"template"`
	Easing    string     `json:"easing"`
	DelayMs   int        `json:"delay_ms"`
	Duration  int        `json:"duration_ms"`
	Keyframes []Keyframe `json:"keyframes"`
	Priority  int        `json:"priority"`
}

type SmartGenerateRequest struct {
	DesignElements  []DesignElement `json:"design_elements"`
	Style           string          `json:"style"`
	Purpose         string          `json:"purpose"`
	DurationSeconds float64         `json:"duration_seconds"`
}

type SmartGenerateResponse struct {
	Animations      []ElementAnimation `json:"animations"`
	Style           string             `json:"style"`
	Purpose         string             `json:"purpose"`
	DurationSeconds float64            `json:"total_duration"`
	JobID           string             `json:"job_id"`
}

type VariationsRequest struct {
	BaseAnimation   BaseAnimation `json:"base_animation"`
	VariationCount  int           `json:"variation_count"`
	CreativityLevel float64       `json:"creativity_level"`
}

type BaseAnimation struct {
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
	Easing     string `json:"easing,omitempty"`
}

type AnimationVariation struct {
	Name               string     `json:"name"`
	DurationMs         int        `json:"duration_ms"`
	Easing             string     `json:"easing"`
	Keyframes          []Keyframe `json:"keyframes,omitempty"`
	CreativityScore    float64    `json:"creativity_score"`
	EffectivenessScore float64    `json:"effectiveness_score"`
}

type VariationsResponse struct {
	Variations     []AnimationVariation `json:"variations"`
	TotalGenerated int                  `json:"total_generated"`
	JobID          string               `json:"job_id"`
}

type ContextualPresetsRequest struct {
	Industry         string   `json:"industry"`
	BrandPersonality []string `json:"brand_personality"`
	ContentType      string   `json:"content_type"`
}

type Preset struct {
	Name      string   `json:"name"`
	Style     string   `json:"style"`
	Templates []string `json:"templates"`
	Rationale string   `json:"rationale"`
}

type ContextualPresetsResponse struct {
	Presets     []Preset `json:"presets"`
	Industry    string   `json:"industry"`
	ContentType string   `json:"content_type"`
	JobID       string   `json:"job_id"`
}

type Service struct {
	store job.Store
}

func New(store job.Store) *Service {
	return &Service{store: store}
}

// SmartGenerate plans one animation per design element: template choice
// from the style/purpose tables, stagger delays by element priority, and
// durations scaled into the requested total.
func (s *Service) SmartGenerate(ctx context.Context, req SmartGenerateRequest) (*SmartGenerateResponse, error) {
	if len(req.DesignElements) == 0 {
		return nil, service.Invalid("design_elements", "must not be empty")
	}
	pref, ok := stylePreferences[req.Style]
	if !ok {
		return nil, service.Invalid("style", "unsupported style %q", req.Style)
	}
	suggested, ok := purposeSuggestions[req.Purpose]
	if !ok {
		return nil, service.Invalid("purpose", "unsupported purpose %q", req.Purpose)
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 5.0
	}

	j := job.New("smart_animation_generation", map[string]any{
		"element_count": len(req.DesignElements),
		"style":         req.Style,
		"purpose":       req.Purpose,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: smart_animation_generation elements=%d", j.ID, len(req.DesignElements))
	s.store.SetProcessing(j.ID, 10.0)

	candidates := pickCandidates(pref.Preferred, suggested)
	animations := make([]ElementAnimation, 0, len(req.DesignElements))
	for i, el := range req.DesignElements {
		tpl := templates[candidates[i%len(candidates)]]
		priority := elementPriorities[el.Type]

		// Higher-priority elements enter first; stagger within the total
		// duration budget.
		delay := (4 - priority) * int(req.DurationSeconds*1000) / (len(req.DesignElements) + 4)
		duration := clampInt(templateDuration(tpl), pref.MinMs, pref.MaxMs)

		animations = append(animations, ElementAnimation{
			ElementID: el.ID,
			Template:  tpl.Name,
			Easing:    tpl.Easing,
			DelayMs:   delay,
			Duration:  duration,
			Keyframes: scaleKeyframes(tpl.Keyframes, duration),
			Priority:  priority,
		})

		progress := 10.0 + float64(i+1)/float64(len(req.DesignElements))*85.0
		s.store.SetProcessing(j.ID, progress)
	}

	s.store.SetCompleted(j.ID, fmt.Sprintf("generated %d animations", len(animations)))
	log.Printf("Job %s completed: %d animations", j.ID, len(animations))

	return &SmartGenerateResponse{
		Animations:      animations,
		Style:           req.Style,
		Purpose:         req.Purpose,
		DurationSeconds: req.DurationSeconds,
		JobID:           j.ID,
	}, nil
}

// Variations derives alternatives from a base animation by bending duration
// and easing with an increasing creativity factor, ranked by a heuristic
// effectiveness score.
func (s *Service) Variations(ctx context.Context, req VariationsRequest) (*VariationsResponse, error) {
	if req.BaseAnimation.Name == "" {
		return nil, service.Invalid("base_animation", "name must not be empty")
	}
	if req.VariationCount < 1 || req.VariationCount > 10 {
		return nil, service.Invalid("variation_count", "must be between 1 and 10")
	}
	if req.CreativityLevel <= 0 {
		req.CreativityLevel = 0.7
	}
	if req.CreativityLevel > 1 {
		return nil, service.Invalid("creativity_level", "must be at most 1.0")
	}

	j := job.New("animation_variations", map[string]any{
		"base_animation":  req.BaseAnimation.Name,
		"variation_count": req.VariationCount,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: animation_variations base=%s", j.ID, req.BaseAnimation.Name)

	base := req.BaseAnimation
	if base.DurationMs <= 0 {
		base.DurationMs = 800
	}
	baseTpl, hasTemplate := templates[base.Name]

	easings := []string{"ease-out", "ease-in-out", "cubic-bezier(0.68, -0.55, 0.265, 1.55)", "cubic-bezier(0.25, 0.46, 0.45, 0.94)", "linear"}

	variations := make([]AnimationVariation, 0, req.VariationCount)
	for i := 0; i < req.VariationCount; i++ {
		creativity := req.CreativityLevel * (float64(i)/float64(req.VariationCount) + 0.2)
		if creativity > 1 {
			creativity = 1
		}

		// More creative variations drift further from the base duration.
		duration := int(float64(base.DurationMs) * (1 + creativity*0.5*float64(1-2*(i%2))))
		if duration < 100 {
			duration = 100
		}

		v := AnimationVariation{
			Name:            fmt.Sprintf("%s_v%d", base.Name, i+1),
			DurationMs:      duration,
			Easing:          easings[i%len(easings)],
			CreativityScore: creativity,
			// Mild variations score higher: they keep the base's intent.
			EffectivenessScore: clampFloat(0.9-creativity*0.3, 0, 1),
		}
		if hasTemplate {
			v.Keyframes = scaleKeyframes(baseTpl.Keyframes, duration)
		}
		variations = append(variations, v)

		progress := float64(i+1) / float64(req.VariationCount) * 90.0
		s.store.SetProcessing(j.ID, progress)
	}

	sort.SliceStable(variations, func(a, b int) bool {
		return variations[a].EffectivenessScore > variations[b].EffectivenessScore
	})

	s.store.SetCompleted(j.ID, fmt.Sprintf("generated %d variations", len(variations)))
	log.Printf("Job %s completed: %d variations", j.ID, len(variations))

	return &VariationsResponse{
		Variations:     variations,
		TotalGenerated: len(variations),
		JobID:          j.ID,
	}, nil
}

// industryStyles biases preset styles per industry; personalities refine
// the pick further.
var industryStyles = map[string][]string{
	"finance":       {"professional", "subtle", "smooth"},
	"healthcare":    {"smooth", "subtle", "professional"},
	"ecommerce":     {"energetic", "bouncy", "playful"},
	"saas":          {"professional", "smooth", "elastic"},
	"entertainment": {"playful", "energetic", "dramatic"},
	"education":     {"smooth", "professional", "subtle"},
}

var personalityStyles = map[string]string{
	"bold":        "dramatic",
	"playful":     "playful",
	"elegant":     "smooth",
	"trustworthy": "professional",
	"innovative":  "elastic",
	"calm":        "subtle",
	"energetic":   "energetic",
	"fun":         "bouncy",
}

// ContextualPresets tailors preset bundles to an industry and brand
// personality.
func (s *Service) ContextualPresets(ctx context.Context, req ContextualPresetsRequest) (*ContextualPresetsResponse, error) {
	if req.Industry == "" {
		return nil, service.Invalid("industry", "must not be empty")
	}
	if req.ContentType == "" {
		return nil, service.Invalid("content_type", "must not be empty")
	}

	j := job.New("contextual_presets", map[string]any{
		"industry":     req.Industry,
		"content_type": req.ContentType,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: contextual_presets industry=%s", j.ID, req.Industry)
	s.store.SetProcessing(j.ID, 30.0)

	styles, ok := industryStyles[strings.ToLower(req.Industry)]
	if !ok {
		styles = []string{"professional", "smooth"}
	}
	for _, personality := range req.BrandPersonality {
		if style, ok := personalityStyles[strings.ToLower(personality)]; ok && !containsString(styles, style) {
			styles = append(styles, style)
		}
	}
	s.store.SetProcessing(j.ID, 50.0)

	presets := make([]Preset, 0, len(styles))
	for i, style := range styles {
		pref := stylePreferences[style]
		presets = append(presets, Preset{
			Name:      fmt.Sprintf("%s_%s_%d", strings.ToLower(req.Industry), style, i+1),
			Style:     style,
			Templates: pref.Preferred,
			Rationale: fmt.Sprintf("%s pacing suits %s content in the %s industry", style, req.ContentType, req.Industry),
		})
		progress := 50.0 + float64(i+1)/float64(len(styles))*40.0
		s.store.SetProcessing(j.ID, progress)
	}

	s.store.SetCompleted(j.ID, fmt.Sprintf("generated %d presets", len(presets)))
	log.Printf("Job %s completed: %d presets", j.ID, len(presets))

	return &ContextualPresetsResponse{
		Presets:     presets,
		Industry:    req.Industry,
		ContentType: req.ContentType,
		JobID:       j.ID,
	}, nil
}

// pickCandidates prefers templates favored by both style and purpose, then
// pads with the style's own list.
func pickCandidates(preferred, suggested []string) []string {
	var both []string
	for _, name := range preferred {
		if containsString(suggested, name) {
			both = append(both, name)
		}
	}
	for _, name := range preferred {
		if !containsString(both, name) {
			both = append(both, name)
		}
	}
	return both
}

func templateDuration(tpl Template) int {
	last := 0
	for _, kf := range tpl.Keyframes {
		if kf.TimeMs > last {
			last = kf.TimeMs
		}
	}
	return last
}

// scaleKeyframes stretches a template's timeline to the target duration.
func scaleKeyframes(frames []Keyframe, durationMs int) []Keyframe {
	total := 0
	for _, kf := range frames {
		if kf.TimeMs > total {
			total = kf.TimeMs
		}
	}
	if total == 0 {
		return frames
	}
	scaled := make([]Keyframe, len(frames))
	for i, kf := range frames {
		scaled[i] = Keyframe{
			TimeMs:     kf.TimeMs * durationMs / total,
			Properties: kf.Properties,
		}
	}
	return scaled
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
