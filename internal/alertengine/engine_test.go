package alertengine

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func compositeAt(sym domain.SymbolId, tf domain.Timeframe, ts time.Time, composite float64, aligned []domain.Layer) domain.CompositeScore {
	return domain.CompositeScore{
		Symbol: sym, Timeframe: tf, Timestamp: ts,
		Composite: composite, AlignedLayers: aligned,
		LayerScores: map[domain.Layer]float64{}, WeightsUsed: map[domain.Layer]float64{},
	}
}

func TestProcessComposite_ThresholdCrossingEmitsAlert(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	prev := compositeAt(sym, tf, t0, 0.3, nil)
	if err := s.Composites().Insert(ctx, prev); err != nil {
		t.Fatalf("seed prev composite: %v", err)
	}

	cur := compositeAt(sym, tf, t0.Add(time.Hour), 0.55, nil)

	engine := NewEngine(s)
	alerts, err := engine.ProcessComposite(ctx, cur)
	if err != nil {
		t.Fatalf("ProcessComposite: %v", err)
	}

	foundThreshold := false
	for _, a := range alerts {
		if a.Kind == domain.AlertConfluenceThreshold {
			foundThreshold = true
		}
	}
	if !foundThreshold {
		t.Fatalf("expected a confluence_threshold alert, got %+v", alerts)
	}
}

func TestProcessComposite_NoCrossingEmitsNothing(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	prev := compositeAt(sym, tf, t0, 0.3, nil)
	if err := s.Composites().Insert(ctx, prev); err != nil {
		t.Fatalf("seed prev composite: %v", err)
	}
	cur := compositeAt(sym, tf, t0.Add(time.Hour), 0.35, nil)

	engine := NewEngine(s)
	alerts, err := engine.ProcessComposite(ctx, cur)
	if err != nil {
		t.Fatalf("ProcessComposite: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts for a non-crossing move, got %+v", alerts)
	}
}

func TestProcessComposite_LayerAlignmentRequiresFourLayers(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	aligned := []domain.Layer{domain.LayerTA, domain.LayerOnChain, domain.LayerSentiment, domain.LayerMacro}
	cur := compositeAt(sym, tf, t0, 0.1, aligned)

	engine := NewEngine(s)
	alerts, err := engine.ProcessComposite(ctx, cur)
	if err != nil {
		t.Fatalf("ProcessComposite: %v", err)
	}

	found := false
	for _, a := range alerts {
		if a.Kind == domain.AlertLayerAlignment {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a layer_alignment alert with 4 aligned layers, got %+v", alerts)
	}
}

func TestProcessComposite_CursorBlocksReplayOfSameEdge(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	tf := domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cur := compositeAt(sym, tf, t0, 0.9, []domain.Layer{domain.LayerTA, domain.LayerOnChain, domain.LayerSentiment, domain.LayerMacro})

	engine := NewEngine(s)
	first, err := engine.ProcessComposite(ctx, cur)
	if err != nil {
		t.Fatalf("first ProcessComposite: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected first evaluation to emit at least one alert")
	}

	// Replaying the exact same composite (e.g. after a scheduler restart)
	// must not re-trigger: the cursor has already advanced past this timestamp.
	second, err := engine.ProcessComposite(ctx, cur)
	if err != nil {
		t.Fatalf("second ProcessComposite: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected replay to be a no-op, got %+v", second)
	}
}
