package priority_test

import (
	"testing"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/priority"
)

func TestCalculateBaseScoreWithNoSignals(t *testing.T) {
	p := priority.Calculate(priority.Request{Text: "hello, just a quick question"})
	if p.Score != 3 {
		t.Fatalf("expected base score 3, got %d", p.Score)
	}
	if p.Level != models.PriorityMedium {
		t.Fatalf("expected medium level, got %v", p.Level)
	}
}

func TestCalculateUrgentKeywordRaisesScore(t *testing.T) {
	p := priority.Calculate(priority.Request{Text: "this is urgent, I need help immediately"})
	if p.Score <= 3 {
		t.Fatalf("expected urgent keyword to raise score above base, got %d", p.Score)
	}
	found := false
	for _, f := range p.Factors {
		if f == "urgent_keyword" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected urgent_keyword factor, got %+v", p.Factors)
	}
}

func TestCalculateAngrySentimentAndTierCompound(t *testing.T) {
	p := priority.Calculate(priority.Request{
		Text:         "I am furious about this outage!!!",
		Sentiment:    models.SentimentAngry,
		AngerLevel:   0.9,
		CustomerTier: models.TierVIP,
	})
	if p.Score != 5 {
		t.Fatalf("expected clamped max score 5, got %d", p.Score)
	}
}

func TestCalculateClampsToFloorAndCeiling(t *testing.T) {
	low := priority.Calculate(priority.Request{
		Text:         "just a general inquiry, no rush",
		CustomerTier: models.TierFree,
		Category:     "general_inquiry",
	})
	if low.Score < 1 {
		t.Fatalf("score must never drop below 1, got %d", low.Score)
	}

	high := priority.Calculate(priority.Request{
		Text:          "URGENT!!! CRITICAL OUTAGE DOWN RIGHT NOW!!!",
		Sentiment:     models.SentimentAngry,
		AngerLevel:    1.0,
		CustomerTier:  models.TierEnterprise,
		Category:      "technical_issue",
		CategoryBoost: 2,
	})
	if high.Score != 5 {
		t.Fatalf("score must clamp at 5, got %d", high.Score)
	}
}

func TestCalculateCustomRuleContributesFactor(t *testing.T) {
	p := priority.Calculate(priority.Request{
		Text: "please escalate this to legal",
		CustomRules: []priority.CustomRule{
			{Name: "legal_mention", Weight: 1, Test: func(text string) bool { return true }},
		},
	})
	found := false
	for _, f := range p.Factors {
		if f == "custom_legal_mention" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected custom_legal_mention factor, got %+v", p.Factors)
	}
}

func TestRecalculateWithOverrideShiftsOneLevel(t *testing.T) {
	base := priority.Calculate(priority.Request{Text: "routine question"})
	up := priority.RecalculateWithOverride(base, "up", "customer escalated by phone")
	if up.Score != base.Score+1 {
		t.Fatalf("expected score+1, got base=%d up=%d", base.Score, up.Score)
	}
	down := priority.RecalculateWithOverride(base, "down", "customer confirmed it's not urgent")
	if down.Score != base.Score-1 {
		t.Fatalf("expected score-1, got base=%d down=%d", base.Score, down.Score)
	}
}
