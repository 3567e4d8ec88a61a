package confluence

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func seedProfile(t *testing.T, s *storetest.Store, weights map[domain.Layer]float64) {
	t.Helper()
	if err := s.WeightProfiles().Upsert(context.Background(), domain.WeightProfile{
		ID: "default", Name: "default", Weights: weights, Active: true,
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func seedLayer(t *testing.T, s *storetest.Store, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, ts time.Time, score float64) {
	t.Helper()
	if err := s.LayerScores().Upsert(context.Background(), domain.LayerScoreRow{
		Layer: layer, Symbol: symbol, Timeframe: tf, Timestamp: ts, Score: score,
	}); err != nil {
		t.Fatalf("seed layer %s: %v", layer, err)
	}
}

func TestComputeComposite_WeightedSumAllLayersFresh(t *testing.T) {
	s := storetest.New()
	seedProfile(t, s, domain.DefaultWeights())

	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	seedLayer(t, s, domain.LayerTA, &sym, &tf, now, 0.8)
	seedLayer(t, s, domain.LayerOnChain, &sym, nil, now, 0.5)
	seedLayer(t, s, domain.LayerCelestial, nil, nil, now, 0.2)
	seedLayer(t, s, domain.LayerNumerology, nil, nil, now, -0.3)
	seedLayer(t, s, domain.LayerSentiment, &sym, nil, now, 0.1)
	seedLayer(t, s, domain.LayerPolitical, nil, nil, now, 0.0)
	seedLayer(t, s, domain.LayerMacro, nil, nil, now, -0.4)

	engine := NewEngine(s)
	out, err := engine.ComputeComposite(context.Background(), sym, tf, now)
	if err != nil {
		t.Fatalf("ComputeComposite: %v", err)
	}
	if len(out.StaleLayers) != 0 {
		t.Errorf("expected no stale layers, got %v", out.StaleLayers)
	}

	weights := domain.DefaultWeights()
	want := weights[domain.LayerTA]*0.8 + weights[domain.LayerOnChain]*0.5 +
		weights[domain.LayerCelestial]*0.2 + weights[domain.LayerNumerology]*-0.3 +
		weights[domain.LayerSentiment]*0.1 + weights[domain.LayerPolitical]*0.0 +
		weights[domain.LayerMacro]*-0.4
	if diff := out.Composite - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("composite = %v, want %v", out.Composite, want)
	}
}

func TestComputeComposite_StaleLayerTreatedAsZero(t *testing.T) {
	s := storetest.New()
	seedProfile(t, s, domain.DefaultWeights())

	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// TA score written 10 hours ago — stale for a 1h timeframe (window is 2h).
	stale := now.Add(-10 * time.Hour)
	seedLayer(t, s, domain.LayerTA, &sym, &tf, stale, 0.9)

	engine := NewEngine(s)
	out, err := engine.ComputeComposite(context.Background(), sym, tf, now)
	if err != nil {
		t.Fatalf("ComputeComposite: %v", err)
	}

	found := false
	for _, l := range out.StaleLayers {
		if l == domain.LayerTA {
			found = true
		}
	}
	if !found {
		t.Errorf("expected TA to be marked stale, stale layers: %v", out.StaleLayers)
	}
	if out.LayerScores[domain.LayerTA] != 0 {
		t.Errorf("expected stale TA score treated as 0, got %v", out.LayerScores[domain.LayerTA])
	}
}

func TestComputeComposite_NoActiveProfileErrors(t *testing.T) {
	s := storetest.New()
	engine := NewEngine(s)
	_, err := engine.ComputeComposite(context.Background(), "BTC/USDT", domain.TF1h, time.Now())
	if err == nil {
		t.Fatal("expected error when no active weight profile exists")
	}
}

func TestComputeComposite_InvalidWeightSumErrors(t *testing.T) {
	s := storetest.New()
	seedProfile(t, s, map[domain.Layer]float64{domain.LayerTA: 0.5}) // sums to 0.5, not 1

	engine := NewEngine(s)
	_, err := engine.ComputeComposite(context.Background(), "BTC/USDT", domain.TF1h, time.Now())
	if err == nil {
		t.Fatal("expected error for weight sum violation")
	}
}

func TestAlignedLayers_NeutralCompositePicksMaxCardinalitySubset(t *testing.T) {
	scores := map[domain.Layer]float64{
		domain.LayerTA:         0.3,
		domain.LayerOnChain:    0.25,
		domain.LayerCelestial:  -0.3,
		domain.LayerNumerology: 0.1, // below threshold, excluded
		domain.LayerSentiment:  0,
		domain.LayerPolitical:  0,
		domain.LayerMacro:      0,
	}
	aligned := alignedLayers(scores, 0.05) // neutral composite

	if len(aligned) != 2 {
		t.Fatalf("expected 2 aligned layers (positive subset wins), got %v", aligned)
	}
	for _, l := range aligned {
		if l != domain.LayerTA && l != domain.LayerOnChain {
			t.Errorf("unexpected layer in aligned set: %v", l)
		}
	}
}

func TestAlignedLayers_DirectionalCompositeUsesSameSign(t *testing.T) {
	scores := map[domain.Layer]float64{
		domain.LayerTA:         0.7,
		domain.LayerOnChain:    0.5,
		domain.LayerCelestial:  -0.6, // opposite sign, excluded
		domain.LayerNumerology: 0.1,  // below threshold, excluded
	}
	aligned := alignedLayers(scores, 0.6)

	if len(aligned) != 2 {
		t.Fatalf("expected 2 aligned layers, got %v", aligned)
	}
}
