package producer

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestOnChainProducer_DegradedWhenNoMetrics(t *testing.T) {
	s := storetest.New()
	sym := domain.SymbolId("BTC/USDT")
	p := NewOnChain(s)

	result, err := p.Produce(context.Background(), sym, domain.TF1h, time.Now())
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded=true with no raw metrics seeded")
	}
}

func TestOnChainProducer_BearishNetflowAndNUPLProduceNegativeScore(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	now := time.Now()

	if err := s.RawMetrics().Upsert(ctx, domain.RawMetricRow{
		Source: onchainSource, Symbol: &sym, Timestamp: now,
		Metrics: map[string]float64{"netflow": 1.0, "nupl": 0.9},
	}); err != nil {
		t.Fatalf("seed metrics: %v", err)
	}

	p := NewOnChain(s)
	result, err := p.Produce(ctx, sym, domain.TF1h, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Degraded {
		t.Fatal("expected a non-degraded result")
	}
	if result.Row.Score >= 0 {
		t.Errorf("expected a negative score for heavy exchange inflow + euphoric NUPL, got %v", result.Row.Score)
	}
}

func TestScoreSOPR_RampsBetweenKnownKnots(t *testing.T) {
	if v := scoreSOPR(0.9); v != 0.5 {
		t.Errorf("SOPR<1 should score +0.5, got %v", v)
	}
	if v := scoreSOPR(1.05); v != -0.3 {
		t.Errorf("SOPR>=1.05 should score -0.3, got %v", v)
	}
	if v := scoreSOPR(1.025); v >= 0 || v <= -0.3 {
		t.Errorf("SOPR midpoint should be strictly between 0 and -0.3, got %v", v)
	}
}
