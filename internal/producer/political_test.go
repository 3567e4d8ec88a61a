package producer

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestPoliticalProducer_BlackSwanOverridesWeightedBlend(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	now := time.Now()

	if err := s.News().Upsert(ctx, domain.NewsItem{
		Timestamp: now.Add(-10 * time.Minute), Source: "wire", HeadlineHash: "h1",
		Category: "regulation", Sentiment: -0.9, Relevance: 0.95, Urgency: 0.95,
	}); err != nil {
		t.Fatalf("seed news: %v", err)
	}

	p := NewPolitical(s)
	result, err := p.Produce(ctx, "", "", now)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Row.Score != -0.8 {
		t.Errorf("expected black-swan override score -0.8, got %v", result.Row.Score)
	}
	if override, _ := result.Row.Indicators["black_swan_override"].(bool); !override {
		t.Error("expected black_swan_override indicator to be true")
	}
}

func TestPoliticalProducer_NoInputsScoresZero(t *testing.T) {
	s := storetest.New()
	p := NewPolitical(s)
	result, err := p.Produce(context.Background(), "", "", time.Now())
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Row.Score != 0 {
		t.Errorf("expected a neutral score with no news or events, got %v", result.Row.Score)
	}
}

func TestScoreCalendarProximity_ExtremeUnknownDirectionForcesHighVolZone(t *testing.T) {
	now := time.Now()
	events := []domain.PoliticalEvent{
		{ScheduledAt: now.Add(2 * time.Hour), Volatility: domain.VolatilityExtreme, ExpectedDirection: 0, CryptoRelevance: 1},
	}
	score, highVol := scoreCalendarProximity(events, now)
	if !highVol {
		t.Error("expected high-vol-zone override for an extreme, direction-unknown event within 24h")
	}
	if score != 0 {
		t.Errorf("expected score 0 under the high-vol override, got %v", score)
	}
}
