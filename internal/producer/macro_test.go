package producer

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestMacroProducer_DegradedWhenNoMetrics(t *testing.T) {
	s := storetest.New()
	p := NewMacro(s)
	result, err := p.Produce(context.Background(), "", "", time.Now())
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded=true with no macro metrics seeded")
	}
}

func TestClassifyRegime_CarryUnwindTakesPriorityOverLiquidity(t *testing.T) {
	if regime := classifyRegime(0.5, 0.5, 0, -0.6); regime != domain.RegimeCarryUnwind {
		t.Errorf("expected carry unwind to take priority, got %v", regime)
	}
}

func TestScoreMacro_WeightsFiveSubSignals(t *testing.T) {
	metrics := map[string]float64{
		"liquidity": 1, "treasury": 0, "dollar": 0, "oil": 0, "carry_trade_stress": 0,
	}
	score, regime, _ := scoreMacro(metrics)
	if score != 0.3 {
		t.Errorf("expected composite 0.3 from liquidity weight alone, got %v", score)
	}
	if regime != domain.RegimeEasing {
		t.Errorf("expected easing regime for liquidity=1, got %v", regime)
	}
}
