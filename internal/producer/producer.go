// Package producer implements the seven score producers: one deterministic
// scoring routine per layer, reading raw inputs from the store and writing a
// LayerScoreRow. Dynamic dispatch is modeled as a closed set rather than a
// plugin architecture — the scheduler iterates domain.Layers statically.
package producer

import (
	"context"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

// ProduceResult is the outcome of one producer tick.
type ProduceResult struct {
	Row      domain.LayerScoreRow
	Degraded bool
}

// Producer is the uniform capability every layer implements.
type Producer interface {
	Layer() domain.Layer
	Cadence() time.Duration
	Staleness() time.Duration
	Produce(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, at time.Time) (ProduceResult, error)
	Backfill(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) (int, error)
}

// subSignal is one named contribution to a layer's composite score, used by
// the TA producer to keep the "arithmetic mean of contributing non-zero
// sub-signals" rule (spec §4.2) uniform and auditable in Indicators payloads.
type subSignal struct {
	name  string
	value float64
}

// compositeFromSubSignals implements the "mean of non-zero sub-signals,
// clamped" rule of the TA layer. The celestial layer does not use it: it
// sums its contributions and clamps the sum.
func compositeFromSubSignals(signals []subSignal) (float64, map[string]interface{}) {
	sum, n := 0.0, 0
	indicators := make(map[string]interface{}, len(signals))
	for _, s := range signals {
		indicators[s.name] = s.value
		if s.value != 0 {
			sum += s.value
			n++
		}
	}
	if n == 0 {
		return 0, indicators
	}
	return domain.ClampScore(sum / float64(n)), indicators
}
