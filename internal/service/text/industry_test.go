package text

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/service"
)

func TestIndustryOptimized(t *testing.T) {
	tracker := job.NewTracker(100)
	svc := New(tracker, &fakeCompleter{}, fakeTranslator{})

	resp, err := svc.IndustryOptimized(context.Background(), IndustryRequest{
		Context:    "Launch of a new savings account",
		Industry:   "finance",
		Tone:       "professional",
		FormatType: "body",
	})
	if err != nil {
		t.Fatalf("IndustryOptimized: %v", err)
	}

	if len(resp.Variations) != 5 {
		t.Fatalf("expected 5 variations, got %d", len(resp.Variations))
	}
	if !strings.Contains(resp.Context, "Industry context") {
		t.Errorf("expected industry insights folded into context, got %q", resp.Context)
	}
	for i := 1; i < len(resp.Variations); i++ {
		if resp.Variations[i].ConfidenceScore > resp.Variations[i-1].ConfidenceScore {
			t.Errorf("variations not ranked at index %d", i)
		}
	}

	j, _ := tracker.Get(resp.JobID)
	if j.Status != job.StatusCompleted {
		t.Errorf("expected completed job, got %s", j.Status)
	}
}

func TestIndustryOptimized_KeywordsRaiseConfidence(t *testing.T) {
	// The fake's "buy now" copy hits the ecommerce keyword list.
	svc := New(job.NewTracker(100), &fakeCompleter{}, fakeTranslator{})

	resp, err := svc.IndustryOptimized(context.Background(), IndustryRequest{
		Context:    "Weekend flash sale",
		Industry:   "ecommerce",
		Tone:       "casual",
		FormatType: "cta",
	})
	if err != nil {
		t.Fatalf("IndustryOptimized: %v", err)
	}
	if resp.Variations[0].ConfidenceScore <= 0.8 {
		t.Errorf("expected keyword bonus above the 0.8 base, got %f", resp.Variations[0].ConfidenceScore)
	}
}

func TestIndustryOptimized_UnknownIndustryDegrades(t *testing.T) {
	svc := New(job.NewTracker(100), &fakeCompleter{}, fakeTranslator{})

	resp, err := svc.IndustryOptimized(context.Background(), IndustryRequest{
		Context:    "Artisanal cheese subscription",
		Industry:   "dairy",
		Tone:       "friendly",
		FormatType: "body",
	})
	if err != nil {
		t.Fatalf("IndustryOptimized: %v", err)
	}
	if strings.Contains(resp.Context, "Industry context") {
		t.Errorf("unknown industry must not inject insights, got %q", resp.Context)
	}
	for _, v := range resp.Variations {
		if v.ConfidenceScore != 0.8 {
			t.Errorf("unknown industry must score the 0.8 base, got %f", v.ConfidenceScore)
		}
	}
}

func TestIndustryOptimized_Validation(t *testing.T) {
	svc := New(job.NewTracker(100), &fakeCompleter{}, fakeTranslator{})
	_, err := svc.IndustryOptimized(context.Background(), IndustryRequest{
		Context: "x", Industry: "saas", Tone: "sarcastic", FormatType: "body",
	})
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestIndustryOptimalLength(t *testing.T) {
	if got := industryOptimalLength("healthcare", "body"); got != 240 {
		t.Errorf("healthcare body: expected 240, got %d", got)
	}
	if got := industryOptimalLength("ecommerce", "headline"); got != 54 {
		t.Errorf("ecommerce headline: expected 54, got %d", got)
	}
	if got := industryOptimalLength("dairy", "tagline"); got != 200 {
		t.Errorf("unknown combination: expected 200, got %d", got)
	}
}
