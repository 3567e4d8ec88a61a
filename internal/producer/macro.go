package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

const macroSource = "macro"

// macroProducer blends five macro sub-signals into a composite score and
// derives a discrete regime label (spec §4.2 Macro).
type macroProducer struct {
	store store.Store
}

func NewMacro(s store.Store) Producer { return &macroProducer{store: s} }

func (p *macroProducer) Layer() domain.Layer      { return domain.LayerMacro }
func (p *macroProducer) Cadence() time.Duration   { return 15 * time.Minute }
func (p *macroProducer) Staleness() time.Duration { return 2 * time.Hour }

func (p *macroProducer) Produce(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, at time.Time) (ProduceResult, error) {
	metrics, err := p.store.RawMetrics().Newest(ctx, macroSource, nil, at)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("macro producer: fetch metrics: %w", err)
	}
	if metrics == nil {
		row := domain.LayerScoreRow{
			Layer: domain.LayerMacro, Timestamp: at, Score: 0, Degraded: true,
			Indicators: map[string]interface{}{"reason": "no_metrics"},
		}
		if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
			return ProduceResult{}, err
		}
		return ProduceResult{Row: row, Degraded: true}, nil
	}

	score, regime, payload := scoreMacro(metrics.Metrics)
	row := domain.LayerScoreRow{Layer: domain.LayerMacro, Timestamp: at, Score: score, Indicators: payload}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("macro producer: upsert: %w", err)
	}
	_ = regime
	return ProduceResult{Row: row}, nil
}

// macroSubWeights mirrors spec §4.2: liquidity, treasury, dollar, oil, carry.
var macroSubWeights = [5]float64{0.3, 0.2, 0.2, 0.1, 0.2}

func scoreMacro(metrics map[string]float64) (float64, domain.MacroRegime, map[string]interface{}) {
	liquidity := domain.ClampScore(metrics["liquidity"])
	treasury := domain.ClampScore(metrics["treasury"])
	dollar := domain.ClampScore(metrics["dollar"])
	oil := domain.ClampScore(metrics["oil"])
	carry := domain.ClampScore(metrics["carry_trade_stress"])

	subs := [5]float64{liquidity, treasury, dollar, oil, carry}
	sum := 0.0
	for i, s := range subs {
		sum += s * macroSubWeights[i]
	}
	composite := domain.ClampScore(sum)
	regime := classifyRegime(composite, liquidity, treasury, carry)

	payload := map[string]interface{}{
		"liquidity":           liquidity,
		"treasury":            treasury,
		"dollar":              dollar,
		"oil":                 oil,
		"carry_trade_stress":  carry,
		"regime":              string(regime),
		"regime_confidence":   mathAbs(composite),
	}
	return composite, regime, payload
}

func mathAbs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// classifyRegime derives a discrete label from the composite and the
// sub-signals most diagnostic of each regime.
func classifyRegime(composite, liquidity, treasury, carry float64) domain.MacroRegime {
	switch {
	case carry < -0.5:
		return domain.RegimeCarryUnwind
	case liquidity > 0.3:
		return domain.RegimeEasing
	case liquidity < -0.3:
		return domain.RegimeTightening
	case composite >= 0.2:
		return domain.RegimeRiskOn
	case composite <= -0.2:
		return domain.RegimeRiskOff
	case treasury < -0.3:
		return domain.RegimeRiskOff
	default:
		return domain.RegimeNeutral
	}
}

func (p *macroProducer) Backfill(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, r domain.TimeRange) (int, error) {
	rows, err := p.store.RawMetrics().Range(ctx, macroSource, nil, r)
	if err != nil {
		return 0, fmt.Errorf("macro producer: backfill range: %w", err)
	}
	n := 0
	for _, row := range rows {
		if _, err := p.Produce(ctx, "", "", row.Timestamp); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
