package text

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Power words grouped by the effect they push on.
var powerWords = map[string][]string{
	"urgency":   {"now", "today", "instant", "immediately", "limited", "exclusive", "urgent", "deadline"},
	"value":     {"free", "save", "discount", "bonus", "extra", "valuable", "premium", "guaranteed"},
	"emotion":   {"amazing", "incredible", "stunning", "revolutionary", "breakthrough", "life-changing"},
	"trust":     {"proven", "trusted", "verified", "certified", "authentic", "genuine", "reliable"},
	"curiosity": {"secret", "hidden", "revealed", "discover", "unlock", "expose", "insider"},
}

var emotionalTriggers = map[string][]string{
	"fear":      {"worry", "fear", "concern", "risk", "danger", "threat"},
	"desire":    {"want", "wish", "dream", "desire", "crave", "yearn"},
	"pride":     {"proud", "achievement", "success", "accomplishment", "victory"},
	"curiosity": {"wonder", "discover", "explore", "reveal", "secret", "mystery"},
}

var actionVerbs = []string{"buy", "get", "start", "join", "download", "subscribe", "call", "click", "try", "order"}

var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
}

type AnalyzeRequest struct {
	Text string `json:"text"`
}

type Sentiment struct {
	Polarity      string   `json:"polarity"`
	Intensity     float64  `json:"intensity"`
	EmotionalTone []string `json:"emotional_tone"`
}

type LengthInfo struct {
	CharacterCount int      `json:"character_count"`
	WordCount      int      `json:"word_count"`
	Suggestions    []string `json:"optimization_suggestions"`
}

type Analysis struct {
	Readability         float64             `json:"readability"`
	Sentiment           Sentiment           `json:"sentiment"`
	PowerWords          map[string][]string `json:"power_words"`
	EmotionalTriggers   []string            `json:"emotional_triggers"`
	CTAStrength         float64             `json:"call_to_action_strength"`
	KeywordDensity      map[string]float64  `json:"keyword_density"`
	LengthOptimization  LengthInfo          `json:"length_optimization"`
	ConversionPotential float64             `json:"conversion_potential"`
}

type Priority struct {
	Priority string `json:"priority"`
	Area     string `json:"area"`
	Impact   string `json:"impact"`
	Effort   string `json:"effort"`
}

type AnalyzeResponse struct {
	Analysis             Analysis   `json:"analysis"`
	Suggestions          []string   `json:"suggestions"`
	OverallScore         float64    `json:"overall_score"`
	OptimizationPriority []Priority `json:"optimization_priority"`
	JobID                string     `json:"job_id"`
}

// AnalyzeContent scores a piece of copy for optimization opportunities. All
// signals except sentiment are computed locally; sentiment asks the model
// and falls back to neutral when it cannot.
func (s *Service) AnalyzeContent(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	if req.Text == "" {
		return nil, service.Invalid("text", "must not be empty")
	}

	j := job.New("content_analysis", map[string]any{"text_length": len(req.Text)})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: content_analysis", j.ID)
	s.store.SetProcessing(j.ID, 20.0)

	analysis := Analysis{
		Readability:        readabilityScore(req.Text),
		Sentiment:          s.analyzeSentiment(ctx, req.Text),
		PowerWords:         detectPowerWords(req.Text),
		EmotionalTriggers:  detectTriggers(req.Text),
		CTAStrength:        ctaStrength(req.Text),
		KeywordDensity:     keywordDensity(req.Text),
		LengthOptimization: lengthInfo(req.Text),
	}
	analysis.ConversionPotential = conversionPotential(req.Text, analysis)
	s.store.SetProcessing(j.ID, 70.0)

	suggestions := improvementSuggestions(analysis)
	overall := overallScore(analysis)

	s.store.SetCompleted(j.ID, fmt.Sprintf("Content analysis complete - Score: %.2f", overall))
	log.Printf("Job %s completed: content_analysis score=%.2f", j.ID, overall)

	return &AnalyzeResponse{
		Analysis:             analysis,
		Suggestions:          suggestions,
		OverallScore:         overall,
		OptimizationPriority: prioritize(analysis),
		JobID:                j.ID,
	}, nil
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// readabilityScore is a simplified Flesch Reading Ease, normalized to [0, 1].
func readabilityScore(text string) float64 {
	words := strings.Fields(text)
	sentences := 0
	for _, part := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}
	if sentences == 0 || len(words) == 0 {
		return 0
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	score := 206.835 - 1.015*(float64(len(words))/float64(sentences)) - 84.6*(float64(syllables)/float64(len(words)))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score / 100.0
}

func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count < 1 {
		return 1
	}
	return count
}

// analyzeSentiment asks the model for a JSON verdict. Any failure, including
// an unconfigured completer or unparsable output, yields neutral.
func (s *Service) analyzeSentiment(ctx context.Context, text string) Sentiment {
	neutral := Sentiment{Polarity: "neutral", Intensity: 0.5, EmotionalTone: []string{}}

	prompt := "Analyze the sentiment of this text and return a JSON object with 'polarity' " +
		"(positive/negative/neutral), 'intensity' (0.0-1.0), and 'emotional_tone' (list of emotions): " + text
	raw, err := s.completer.Complete(ctx, "", prompt, 100, 0.1)
	if err != nil {
		return neutral
	}

	var out Sentiment
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Polarity == "" {
		return neutral
	}
	if out.EmotionalTone == nil {
		out.EmotionalTone = []string{}
	}
	return out
}

func detectPowerWords(text string) map[string][]string {
	lower := strings.ToLower(text)
	detected := map[string][]string{}
	for category, words := range powerWords {
		var found []string
		for _, w := range words {
			if strings.Contains(lower, w) {
				found = append(found, w)
			}
		}
		if len(found) > 0 {
			detected[category] = found
		}
	}
	return detected
}

func detectTriggers(text string) []string {
	lower := strings.ToLower(text)
	var detected []string
	for trigger, words := range emotionalTriggers {
		for _, w := range words {
			if strings.Contains(lower, w) {
				detected = append(detected, trigger)
				break
			}
		}
	}
	sort.Strings(detected)
	return detected
}

func ctaStrength(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, verb := range actionVerbs {
		if strings.Contains(lower, verb) {
			score += 0.2
		}
	}
	for _, w := range powerWords["urgency"] {
		if strings.Contains(lower, w) {
			score += 0.1
		}
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// keywordDensity reports the share (percent) of the most frequent
// non-stopword terms.
func keywordDensity(text string) map[string]float64 {
	words := strings.Fields(strings.ToLower(text))
	counts := map[string]int{}
	for _, w := range words {
		counts[w]++
	}

	type wc struct {
		word  string
		count int
	}
	var ranked []wc
	for w, c := range counts {
		if stopWords[w] || len(w) <= 2 {
			continue
		}
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}

	densities := map[string]float64{}
	for _, r := range ranked {
		densities[r.word] = float64(r.count) / float64(len(words)) * 100.0
	}
	return densities
}

func lengthInfo(text string) LengthInfo {
	chars := len(text)
	words := len(strings.Fields(text))

	var suggestions []string
	if chars > 300 {
		suggestions = append(suggestions, "Consider shortening for better readability")
	} else if chars < 50 {
		suggestions = append(suggestions, "Consider adding more detail or context")
	}
	if words > 50 {
		suggestions = append(suggestions, "Break into shorter sentences for impact")
	} else if words < 5 {
		suggestions = append(suggestions, "Consider expanding for clarity")
	}

	return LengthInfo{CharacterCount: chars, WordCount: words, Suggestions: suggestions}
}

func conversionPotential(text string, a Analysis) float64 {
	lengthFactor := float64(len(strings.Fields(text))) / 30.0
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}
	score := a.CTAStrength*0.3 +
		float64(len(a.PowerWords))*0.2 +
		float64(len(a.EmotionalTriggers))*0.1 +
		a.Readability*0.2 +
		lengthFactor*0.2
	if score > 1.0 {
		return 1.0
	}
	return score
}

func improvementSuggestions(a Analysis) []string {
	var suggestions []string
	if a.Readability < 0.6 {
		suggestions = append(suggestions, "Simplify language for better readability")
	}
	if len(a.PowerWords) == 0 {
		suggestions = append(suggestions, "Add power words to increase impact")
	}
	if a.CTAStrength < 0.5 {
		suggestions = append(suggestions, "Strengthen call-to-action with action verbs")
	}
	if len(a.EmotionalTriggers) == 0 {
		suggestions = append(suggestions, "Add emotional triggers to connect with audience")
	}
	return suggestions
}

func overallScore(a Analysis) float64 {
	powerWordScore := float64(len(a.PowerWords)) * 0.2
	if powerWordScore > 1.0 {
		powerWordScore = 1.0
	}
	triggerScore := float64(len(a.EmotionalTriggers)) * 0.3
	if triggerScore > 1.0 {
		triggerScore = 1.0
	}

	return a.Readability*0.2 +
		a.ConversionPotential*0.3 +
		a.CTAStrength*0.2 +
		a.Sentiment.Intensity*0.1 +
		powerWordScore*0.1 +
		triggerScore*0.1
}

func prioritize(a Analysis) []Priority {
	var priorities []Priority
	if a.CTAStrength < 0.5 {
		priorities = append(priorities, Priority{Priority: "high", Area: "call_to_action", Impact: "high", Effort: "low"})
	}
	if a.Readability < 0.6 {
		priorities = append(priorities, Priority{Priority: "medium", Area: "readability", Impact: "medium", Effort: "medium"})
	}
	if len(a.PowerWords) == 0 {
		priorities = append(priorities, Priority{Priority: "medium", Area: "power_words", Impact: "medium", Effort: "low"})
	}
	rank := map[string]int{"high": 3, "medium": 2, "low": 1}
	sort.SliceStable(priorities, func(i, j int) bool {
		return rank[priorities[i].Priority] > rank[priorities[j].Priority]
	})
	return priorities
}
