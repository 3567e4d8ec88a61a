package producer

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestSentimentProducer_ExtremeFearIsContrarianBullish(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	now := time.Now()

	if err := s.RawMetrics().Upsert(ctx, domain.RawMetricRow{
		Source: sentimentSource, Symbol: &sym, Timestamp: now,
		Metrics: map[string]float64{"fear_greed_index": 10},
	}); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	p := NewSentiment(s)
	result, err := p.Produce(ctx, sym, domain.TF1h, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Row.Score != 0.8 {
		t.Errorf("expected extreme fear (index=10) to score +0.8, got %v", result.Row.Score)
	}
}

func TestSentimentProducer_BlendsSocialSentimentAtFixedWeight(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	now := time.Now()

	if err := s.RawMetrics().Upsert(ctx, domain.RawMetricRow{
		Source: sentimentSource, Symbol: &sym, Timestamp: now,
		Metrics: map[string]float64{"fear_greed_index": 90, "social_sentiment": 1.0},
	}); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	p := NewSentiment(s)
	result, err := p.Produce(ctx, sym, domain.TF1h, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	// contrarian(90) = -0.8, blended 0.8*(-0.8) + 0.2*1.0 = -0.44
	want := -0.44
	if diff := result.Row.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected blended score %v, got %v", want, result.Row.Score)
	}
}

func TestSentimentProducer_BlendsTrendsSentimentAtFixedWeight(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	now := time.Now()

	if err := s.RawMetrics().Upsert(ctx, domain.RawMetricRow{
		Source: sentimentSource, Symbol: &sym, Timestamp: now,
		Metrics: map[string]float64{"fear_greed_index": 90, "trends_sentiment": 1.0},
	}); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	p := NewSentiment(s)
	result, err := p.Produce(ctx, sym, domain.TF1h, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	// contrarian(90) = -0.8, blended 0.8*(-0.8) + 0.2*1.0 = -0.44
	want := -0.44
	if diff := result.Row.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected blended score %v, got %v", want, result.Row.Score)
	}
}

func TestSentimentProducer_AveragesSocialAndTrendsWhenBothPresent(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	now := time.Now()

	if err := s.RawMetrics().Upsert(ctx, domain.RawMetricRow{
		Source: sentimentSource, Symbol: &sym, Timestamp: now,
		Metrics: map[string]float64{"fear_greed_index": 90, "social_sentiment": 1.0, "trends_sentiment": -1.0},
	}); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	p := NewSentiment(s)
	result, err := p.Produce(ctx, sym, domain.TF1h, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	// contrarian(90) = -0.8, optional average = (1.0 + -1.0)/2 = 0, blended 0.8*(-0.8) + 0.2*0 = -0.64
	want := -0.64
	if diff := result.Row.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected blended score %v, got %v", want, result.Row.Score)
	}
}
