package text

import (
	"context"
	"log"
	"strings"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Each test type compares two psychological approaches.
var abTestApproaches = map[string][]string{
	"emotional_vs_rational": {"emotional appeal", "logical reasoning"},
	"benefit_vs_feature":    {"benefit-focused", "feature-focused"},
	"urgency_vs_value":      {"urgency-driven", "value-proposition"},
	"question_vs_statement": {"question format", "statement format"},
	"long_vs_short":         {"detailed copy", "concise copy"},
}

var approachModifiers = map[string]string{
	"emotional appeal":  "Focus on emotional benefits and feelings",
	"logical reasoning": "Use facts, statistics, and logical arguments",
	"benefit-focused":   "Emphasize outcomes and benefits for the user",
	"feature-focused":   "Highlight specific features and capabilities",
	"urgency-driven":    "Create sense of urgency and scarcity",
	"value-proposition": "Focus on value and long-term benefits",
	"question format":   "Use questions to engage and provoke thought",
	"statement format":  "Use confident statements and declarations",
}

const (
	defaultTestType    = "emotional_vs_rational"
	defaultPerApproach = 2
	maxPerApproach     = 5
	abTestMaxLength    = 200
)

type ABTestRequest struct {
	Context               string `json:"context"`
	FormatType            string `json:"format_type"`
	Tone                  string `json:"tone"`
	TestType              string `json:"test_type"`
	VariationsPerApproach int    `json:"variations_per_approach"`
}

type ABTestResponse struct {
	Variations        map[string][]Variation `json:"variations"`
	TestType          string                 `json:"test_type"`
	RecommendedWinner string                 `json:"recommended_winner"`
	JobID             string                 `json:"job_id"`
}

// ABTest generates copy for each approach of a test type and predicts the
// likely winner from approach-specific confidence scoring.
func (s *Service) ABTest(ctx context.Context, req ABTestRequest) (*ABTestResponse, error) {
	if req.TestType == "" {
		req.TestType = defaultTestType
	}
	if req.VariationsPerApproach == 0 {
		req.VariationsPerApproach = defaultPerApproach
	}
	if err := validateABTest(req); err != nil {
		return nil, err
	}
	if !s.completer.Configured() {
		return nil, service.ErrNotConfigured
	}

	approaches := abTestApproaches[req.TestType]
	j := job.New("ab_test_generation", map[string]any{
		"context":          req.Context,
		"test_type":        req.TestType,
		"total_variations": len(approaches) * req.VariationsPerApproach,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: ab_test_generation type=%s", j.ID, req.TestType)

	results := make(map[string][]Variation, len(approaches))
	for i, approach := range approaches {
		specialized := GenerateRequest{
			Context:        req.Context + ". " + approachModifiers[approach],
			Tone:           req.Tone,
			FormatType:     req.FormatType,
			MaxLength:      abTestMaxLength,
			VariationCount: 1,
		}
		systemPrompt := buildSystemPrompt(specialized)
		userPrompt := buildUserPrompt(specialized)

		variations := make([]Variation, 0, req.VariationsPerApproach)
		for v := 0; v < req.VariationsPerApproach; v++ {
			raw, err := s.completeVariation(ctx, systemPrompt, userPrompt, v)
			if err != nil {
				s.store.SetFailed(j.ID, err.Error())
				log.Printf("Job %s failed: %v", j.ID, err)
				return nil, err
			}
			variations = append(variations, Variation{
				Text:            truncate(raw, abTestMaxLength),
				ConfidenceScore: abConfidenceScore(raw, specialized, approach),
			})
		}
		results[approach] = variations

		progress := float64(i+1) / float64(len(approaches)) * 90.0
		s.store.SetProcessing(j.ID, progress)
	}

	winner := predictWinner(approaches, results)
	s.store.SetCompleted(j.ID, winner)
	log.Printf("Job %s completed: ab test winner %q", j.ID, winner)

	return &ABTestResponse{
		Variations:        results,
		TestType:          req.TestType,
		RecommendedWinner: winner,
		JobID:             j.ID,
	}, nil
}

func validateABTest(req ABTestRequest) error {
	if req.Context == "" {
		return service.Invalid("context", "must not be empty")
	}
	if _, ok := tonePrompts[req.Tone]; !ok {
		return service.Invalid("tone", "unsupported tone %q", req.Tone)
	}
	if _, ok := formatInstructions[req.FormatType]; !ok {
		return service.Invalid("format_type", "unsupported format %q", req.FormatType)
	}
	if _, ok := abTestApproaches[req.TestType]; !ok {
		return service.Invalid("test_type", "unsupported test type %q", req.TestType)
	}
	if req.VariationsPerApproach < 1 || req.VariationsPerApproach > maxPerApproach {
		return service.Invalid("variations_per_approach", "must be between 1 and %d", maxPerApproach)
	}
	return nil
}

// abConfidenceScore layers an approach-specific bonus over the base heuristic.
func abConfidenceScore(text string, req GenerateRequest, approach string) float64 {
	score := confidenceScore(text, req)

	var bonus float64
	switch approach {
	case "emotional appeal":
		bonus = wordHitScore(text, powerWords["emotion"], 0.05)
	case "logical reasoning":
		bonus = wordHitScore(text, []string{"because", "therefore", "proven", "research", "data", "fact"}, 0.04)
	case "urgency-driven":
		bonus = wordHitScore(text, powerWords["urgency"], 0.06)
	case "benefit-focused":
		bonus = wordHitScore(text, []string{"you get", "you'll", "your", "benefit", "advantage", "save", "gain"}, 0.04)
	}

	if score += bonus; score > 1.0 {
		return 1.0
	}
	return score
}

// wordHitScore counts phrase occurrences and awards perHit each, capped at 0.2.
func wordHitScore(text string, phrases []string, perHit float64) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			hits++
		}
	}
	score := float64(hits) * perHit
	if score > 0.2 {
		return 0.2
	}
	return score
}

// predictWinner picks the approach with the highest average confidence.
func predictWinner(approaches []string, results map[string][]Variation) string {
	best, bestAvg := "", -1.0
	for _, approach := range approaches {
		variations := results[approach]
		if len(variations) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range variations {
			sum += v.ConfidenceScore
		}
		if avg := sum / float64(len(variations)); avg > bestAvg {
			best, bestAvg = approach, avg
		}
	}
	return best
}
