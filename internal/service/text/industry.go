package text

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

type industryProfile struct {
	keywords   []string
	painPoints []string
	benefits   []string
}

var industryProfiles = map[string]industryProfile{
	"ecommerce": {
		keywords:   []string{"buy", "shop", "order", "purchase", "cart", "checkout", "deals", "offers"},
		painPoints: []string{"price", "quality", "shipping", "returns", "trust", "reviews"},
		benefits:   []string{"convenience", "savings", "selection", "quality", "fast delivery"},
	},
	"saas": {
		keywords:   []string{"solution", "platform", "tool", "software", "dashboard", "integration", "automation"},
		painPoints: []string{"efficiency", "productivity", "scalability", "costs", "complexity"},
		benefits:   []string{"streamline", "optimize", "scale", "reduce costs", "simplify"},
	},
	"healthcare": {
		keywords:   []string{"health", "wellness", "treatment", "care", "medicine", "therapy", "prevention"},
		painPoints: []string{"pain", "symptoms", "condition", "health concerns", "treatment options"},
		benefits:   []string{"healing", "relief", "improvement", "prevention", "quality of life"},
	},
	"finance": {
		keywords:   []string{"investment", "savings", "loan", "credit", "financial", "money", "wealth"},
		painPoints: []string{"debt", "expenses", "financial stress", "planning", "security"},
		benefits:   []string{"financial freedom", "security", "growth", "stability", "peace of mind"},
	},
}

// Longer copy builds trust in regulated industries; commerce wants it short.
var industryLengthFactor = map[string]float64{
	"healthcare": 1.2,
	"finance":    1.1,
	"ecommerce":  0.9,
	"saas":       1.0,
}

var formatBaseLength = map[string]int{
	"headline": 60,
	"body":     200,
	"cta":      25,
	"social":   150,
}

const industryVariationCount = 5

type IndustryRequest struct {
	Context        string `json:"context"`
	Industry       string `json:"industry"`
	FormatType     string `json:"format_type"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// IndustryOptimized generates copy with industry context folded into the
// prompt and re-scores the variations against industry vocabulary. Unknown
// industries degrade to plain generation.
func (s *Service) IndustryOptimized(ctx context.Context, req IndustryRequest) (*GenerateResponse, error) {
	if req.Industry == "" {
		req.Industry = "general"
	}
	if err := validateIndustry(req); err != nil {
		return nil, err
	}
	if !s.completer.Configured() {
		return nil, service.ErrNotConfigured
	}

	j := job.New("industry_optimized_generation", map[string]any{
		"industry":    req.Industry,
		"format_type": req.FormatType,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: industry_optimized_generation industry=%s", j.ID, req.Industry)
	s.store.SetProcessing(j.ID, 10.0)

	profile := industryProfiles[strings.ToLower(req.Industry)]
	enhanced := enhanceContext(req.Context, profile, req.TargetAudience)

	generated, err := s.generateVariations(ctx, j.ID, GenerateRequest{
		Context:        enhanced,
		Tone:           req.Tone,
		FormatType:     req.FormatType,
		MaxLength:      industryOptimalLength(req.Industry, req.FormatType),
		VariationCount: industryVariationCount,
		TargetAudience: req.TargetAudience,
	}, 20.0, 60.0)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		log.Printf("Job %s failed: %v", j.ID, err)
		return nil, err
	}

	variations := make([]Variation, 0, len(generated))
	for _, v := range generated {
		variations = append(variations, Variation{
			Text:            v.Text,
			ConfidenceScore: industryConfidence(v.Text, profile),
		})
	}
	sort.SliceStable(variations, func(a, b int) bool {
		return variations[a].ConfidenceScore > variations[b].ConfidenceScore
	})

	s.store.SetCompleted(j.ID, variations[0].Text)
	log.Printf("Job %s completed: industry-optimized copy for %s", j.ID, req.Industry)

	return &GenerateResponse{
		Variations: variations,
		Context:    enhanced,
		Tone:       req.Tone,
		JobID:      j.ID,
	}, nil
}

func validateIndustry(req IndustryRequest) error {
	if req.Context == "" {
		return service.Invalid("context", "must not be empty")
	}
	if _, ok := tonePrompts[req.Tone]; !ok {
		return service.Invalid("tone", "unsupported tone %q", req.Tone)
	}
	if _, ok := formatInstructions[req.FormatType]; !ok {
		return service.Invalid("format_type", "unsupported format %q", req.FormatType)
	}
	return nil
}

func enhanceContext(context string, profile industryProfile, targetAudience string) string {
	enhanced := context
	if len(profile.keywords) > 0 {
		enhanced += fmt.Sprintf("\n\nIndustry context: Focus on %s.", strings.Join(head(profile.keywords, 3), ", "))
		enhanced += fmt.Sprintf(" Address pain points: %s.", strings.Join(head(profile.painPoints, 2), ", "))
		enhanced += fmt.Sprintf(" Highlight benefits: %s.", strings.Join(head(profile.benefits, 2), ", "))
	}
	if targetAudience != "" {
		enhanced += "\n\nTarget audience: " + targetAudience
	}
	return enhanced
}

func head(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}

func industryOptimalLength(industry, formatType string) int {
	base, ok := formatBaseLength[formatType]
	if !ok {
		base = 200
	}
	factor, ok := industryLengthFactor[strings.ToLower(industry)]
	if !ok {
		factor = 1.0
	}
	return int(float64(base) * factor)
}

// industryConfidence rewards copy that speaks the industry's vocabulary.
func industryConfidence(text string, profile industryProfile) float64 {
	score := 0.8
	lower := strings.ToLower(text)
	for _, kw := range profile.keywords {
		if strings.Contains(lower, kw) {
			score += 0.05
		}
	}
	for _, b := range profile.benefits {
		if strings.Contains(lower, b) {
			score += 0.03
		}
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
