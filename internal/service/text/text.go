// Package text generates marketing copy variations through GPT-4 and
// translates text through DeepL.
package text

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/provider/deepl"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Completer produces one chat completion. Satisfied by the gpt client;
// tests substitute a fake.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error)
}

// Translator is the translation capability. Satisfied by the deepl client.
type Translator interface {
	Configured() bool
	Translate(ctx context.Context, text, sourceLang, targetLang string, preserveFormatting bool) (*deepl.Translation, error)
}

var tonePrompts = map[string]string{
	"friendly":     "Write in a warm, approachable, and friendly tone that builds trust and rapport",
	"formal":       "Write in a professional, formal, and business-appropriate tone that commands respect",
	"casual":       "Write in a relaxed, conversational, and casual tone that feels personal and relatable",
	"professional": "Write in a confident, expert, and professional tone that demonstrates authority",
	"optimistic":   "Write with enthusiasm, positivity, and optimism that inspires hope and action",
	"confident":    "Write with authority, certainty, and confidence that builds credibility",
	"assertive":    "Write with directness, clarity, and assertiveness that drives immediate action",
	"emotional":    "Write with emotional resonance and personal connection that creates empathy",
	"serious":      "Write with gravity, importance, and seriousness that conveys urgency",
	"humorous":     "Write with wit, humor, and lightheartedness that entertains and engages",
}

var formatInstructions = map[string]string{
	"headline":      "Create a compelling headline that grabs attention and drives clicks (5-10 words, use power words)",
	"subheading":    "Write a descriptive subheading that supports the main message and builds curiosity (10-15 words)",
	"body":          "Write clear, engaging body text that informs, persuades, and addresses pain points",
	"cta":           "Create a strong call-to-action that motivates immediate response using action verbs (2-5 words)",
	"tagline":       "Write a memorable tagline that captures brand essence and sticks in memory (3-8 words)",
	"social":        "Write engaging social media copy that encourages interaction and sharing",
	"email_subject": "Create an email subject line that increases open rates (30-50 characters)",
	"ad_copy":       "Write persuasive ad copy that drives conversions with clear benefits and urgency",
}

// Tones lists supported tone names, sorted for stable output.
func Tones() []string {
	names := make([]string, 0, len(tonePrompts))
	for t := range tonePrompts {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// Formats lists supported format types, sorted for stable output.
func Formats() []string {
	names := make([]string, 0, len(formatInstructions))
	for f := range formatInstructions {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

const (
	minLength         = 10
	maxLength         = 500
	maxVariationCount = 10
	completionTokens  = 150
)

type GenerateRequest struct {
	Context        string `json:"context"`
	Tone           string `json:"tone"`
	FormatType     string `json:"format_type"`
	MaxLength      int    `json:"max_length"`
	VariationCount int    `json:"variation_count"`
	TargetAudience string `json:"target_audience,omitempty"`
}

type Variation struct {
	Text            string  `json:"text"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type GenerateResponse struct {
	Variations []Variation `json:"variations"`
	Context    string      `json:"context"`
	Tone       string      `json:"tone"`
	JobID      string      `json:"job_id"`
}

type TranslateRequest struct {
	Text               string `json:"text"`
	SourceLanguage     string `json:"source_language"`
	TargetLanguage     string `json:"target_language"`
	PreserveFormatting bool   `json:"preserve_formatting"`
}

type TranslateResponse struct {
	TranslatedText  string  `json:"translated_text"`
	SourceLanguage  string  `json:"source_language"`
	TargetLanguage  string  `json:"target_language"`
	ConfidenceScore float64 `json:"confidence_score"`
	JobID           string  `json:"job_id"`
}

type Service struct {
	store      job.Store
	completer  Completer
	translator Translator
}

func New(store job.Store, completer Completer, translator Translator) *Service {
	return &Service{store: store, completer: completer, translator: translator}
}

func (s *Service) Configured() bool {
	return s.completer.Configured()
}

func (s *Service) TranslationConfigured() bool {
	return s.translator.Configured()
}

// Generate produces variation_count copy candidates, scores them, and
// returns them ranked best-first. Every variation is hard-truncated to
// max_length characters regardless of what the model produced.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateGenerate(req); err != nil {
		return nil, err
	}
	if !s.completer.Configured() {
		return nil, service.ErrNotConfigured
	}

	j := job.New("text_generation", map[string]any{
		"context":         req.Context,
		"tone":            req.Tone,
		"format_type":     req.FormatType,
		"variation_count": req.VariationCount,
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: text_generation tone=%s format=%s", j.ID, req.Tone, req.FormatType)
	s.store.SetProcessing(j.ID, 10.0)

	s.store.SetProcessing(j.ID, 25.0)

	variations, err := s.generateVariations(ctx, j.ID, req, 25.0, 65.0)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		log.Printf("Job %s failed: %v", j.ID, err)
		return nil, err
	}

	sort.SliceStable(variations, func(a, b int) bool {
		return variations[a].ConfidenceScore > variations[b].ConfidenceScore
	})

	s.store.SetCompleted(j.ID, variations[0].Text)
	log.Printf("Job %s completed: %d variations", j.ID, len(variations))

	return &GenerateResponse{
		Variations: variations,
		Context:    req.Context,
		Tone:       req.Tone,
		JobID:      j.ID,
	}, nil
}

// generateVariations runs the completion loop for a request and reports
// progress into [base, base+span] on the given job. Variations come back
// unranked; callers sort.
func (s *Service) generateVariations(ctx context.Context, jobID string, req GenerateRequest, base, span float64) ([]Variation, error) {
	systemPrompt := buildSystemPrompt(req)
	userPrompt := buildUserPrompt(req)

	variations := make([]Variation, 0, req.VariationCount)
	for i := 0; i < req.VariationCount; i++ {
		raw, err := s.completeVariation(ctx, systemPrompt, userPrompt, i)
		if err != nil {
			return nil, err
		}

		variations = append(variations, Variation{
			Text:            truncate(raw, req.MaxLength),
			ConfidenceScore: confidenceScore(raw, req),
		})

		progress := base + float64(i+1)/float64(req.VariationCount)*span
		s.store.SetProcessing(jobID, progress)
	}
	return variations, nil
}

// completeVariation issues one completion. Temperature ramps up with the
// variation index for diversity; later indexes also get an explicit nudge
// toward a different angle.
func (s *Service) completeVariation(ctx context.Context, systemPrompt, userPrompt string, index int) (string, error) {
	prompt := userPrompt
	if index > 0 {
		prompt += fmt.Sprintf("\n\n(Variation %d: Provide a different approach/angle)", index+1)
	}
	temperature := 0.8 + float32(index)*0.1
	return s.completer.Complete(ctx, systemPrompt, prompt, completionTokens, temperature)
}

// Translate proxies DeepL. "auto" as source language lets DeepL detect it;
// the detected language comes back in the response.
func (s *Service) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if req.Text == "" {
		return nil, service.Invalid("text", "must not be empty")
	}
	if req.TargetLanguage == "" {
		return nil, service.Invalid("target_language", "must not be empty")
	}
	if !s.translator.Configured() {
		return nil, service.ErrNotConfigured
	}

	j := job.New("translation", map[string]any{
		"source_language": req.SourceLanguage,
		"target_language": req.TargetLanguage,
		"text_length":     len(req.Text),
	})
	if err := s.store.Create(j); err != nil {
		return nil, err
	}
	log.Printf("Job %s started: translation %s->%s", j.ID, req.SourceLanguage, req.TargetLanguage)
	s.store.SetProcessing(j.ID, 25.0)

	source := req.SourceLanguage
	if strings.EqualFold(source, "auto") {
		source = ""
	}

	s.store.SetProcessing(j.ID, 50.0)
	translation, err := s.translator.Translate(ctx, req.Text, source, req.TargetLanguage, req.PreserveFormatting)
	if err != nil {
		s.store.SetFailed(j.ID, err.Error())
		log.Printf("Job %s failed: %v", j.ID, err)
		return nil, err
	}
	s.store.SetProcessing(j.ID, 90.0)

	detected := translation.DetectedSourceLanguage
	if detected == "" {
		detected = req.SourceLanguage
	}

	s.store.SetCompleted(j.ID, translation.Text)
	log.Printf("Job %s completed: translation", j.ID)

	return &TranslateResponse{
		TranslatedText: translation.Text,
		SourceLanguage: detected,
		TargetLanguage: req.TargetLanguage,
		// DeepL reports no per-request quality signal; this reflects its
		// generally high accuracy.
		ConfidenceScore: 0.95,
		JobID:           j.ID,
	}, nil
}

func validateGenerate(req GenerateRequest) error {
	if req.Context == "" {
		return service.Invalid("context", "must not be empty")
	}
	if _, ok := tonePrompts[req.Tone]; !ok {
		return service.Invalid("tone", "unsupported tone %q", req.Tone)
	}
	if _, ok := formatInstructions[req.FormatType]; !ok {
		return service.Invalid("format_type", "unsupported format %q", req.FormatType)
	}
	if req.MaxLength < minLength || req.MaxLength > maxLength {
		return service.Invalid("max_length", "must be between %d and %d", minLength, maxLength)
	}
	if req.VariationCount < 1 || req.VariationCount > maxVariationCount {
		return service.Invalid("variation_count", "must be between 1 and %d", maxVariationCount)
	}
	return nil
}

func buildSystemPrompt(req GenerateRequest) string {
	audience := req.TargetAudience
	if audience == "" {
		audience = "General audience"
	}
	return fmt.Sprintf(`You are an expert copywriter and marketing professional. Your task is to create compelling advertising copy.

Context Guidelines:
- %s
- %s
- Maximum length: %d characters
- Target audience: %s

Quality Requirements:
- Clear and concise messaging
- Action-oriented language
- Engaging and memorable
- Appropriate for advertising use
- No controversial or inappropriate content

Return only the text content without quotes, explanations, or additional formatting.`,
		tonePrompts[req.Tone], formatInstructions[req.FormatType], req.MaxLength, audience)
}

func buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %s copy for the following:\n\nContext: %s\n\nRequirements:\n- Tone: %s\n- Format: %s\n- Maximum length: %d characters",
		req.FormatType, req.Context, req.Tone, req.FormatType, req.MaxLength)
	if req.TargetAudience != "" {
		fmt.Fprintf(&b, "\n- Target audience: %s", req.TargetAudience)
	}
	fmt.Fprintf(&b, "\n\nGenerate compelling %s copy:", req.FormatType)
	return b.String()
}

// truncate enforces the character budget in runes so multi-byte text is
// never cut mid-character.
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

// confidenceScore is a heuristic ranking signal: length fit plus format
// appropriateness, clamped to [0, 1]. Scored on the raw model output so an
// overshoot costs the variation its rank even after truncation.
func confidenceScore(text string, req GenerateRequest) float64 {
	score := 0.8

	if len([]rune(text)) <= req.MaxLength {
		score += 0.1
	} else {
		score -= 0.2
	}

	words := len(strings.Fields(text))
	switch req.FormatType {
	case "headline":
		if words <= 10 {
			score += 0.05
		}
	case "cta":
		if words <= 5 {
			score += 0.05
		}
	case "tagline":
		if words <= 8 {
			score += 0.05
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
