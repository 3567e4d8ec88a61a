package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

const onchainSource = "onchain"

// onchainProducer maps the newest available on-chain metrics to [-1,+1]
// piecewise curves and averages them (spec §4.2 On-chain).
type onchainProducer struct {
	store store.Store
}

func NewOnChain(s store.Store) Producer { return &onchainProducer{store: s} }

func (p *onchainProducer) Layer() domain.Layer    { return domain.LayerOnChain }
func (p *onchainProducer) Cadence() time.Duration { return 4 * time.Hour }
func (p *onchainProducer) Staleness() time.Duration { return 24 * time.Hour }

func (p *onchainProducer) Produce(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, at time.Time) (ProduceResult, error) {
	metrics, err := p.store.RawMetrics().Newest(ctx, onchainSource, &symbol, at)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("onchain producer: fetch metrics: %w", err)
	}
	if metrics == nil {
		row := domain.LayerScoreRow{
			Layer: domain.LayerOnChain, Symbol: &symbol, Timestamp: at,
			Score: 0, Degraded: true, Indicators: map[string]interface{}{"reason": "no_metrics"},
		}
		if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
			return ProduceResult{}, err
		}
		return ProduceResult{Row: row, Degraded: true}, nil
	}

	score, payload := scoreOnChain(metrics.Metrics)
	row := domain.LayerScoreRow{
		Layer: domain.LayerOnChain, Symbol: &symbol, Timestamp: at,
		Score: score, Indicators: payload,
	}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("onchain producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

func scoreOnChain(metrics map[string]float64) (float64, map[string]interface{}) {
	payload := make(map[string]interface{}, len(metrics))
	sum, n := 0.0, 0

	if v, ok := metrics["netflow"]; ok {
		mapped := domain.ClampScore(-v)
		payload["netflow"] = mapped
		sum += mapped
		n++
	}
	if v, ok := metrics["nupl"]; ok {
		mapped := piecewiseLinear(v, []point{{0, 1}, {0.5, 0}, {0.75, -1}})
		payload["nupl"] = mapped
		sum += mapped
		n++
	}
	if v, ok := metrics["mvrv_z"]; ok {
		mapped := piecewiseLinear(v, []point{{0, 1}, {3.5, 0}, {7, -1}})
		payload["mvrv_z"] = mapped
		sum += mapped
		n++
	}
	if v, ok := metrics["sopr"]; ok {
		mapped := scoreSOPR(v)
		payload["sopr"] = mapped
		sum += mapped
		n++
	}

	if n == 0 {
		return 0, payload
	}
	return domain.ClampScore(sum / float64(n)), payload
}

// point is one knot of a piecewise-linear mapping curve.
type point struct {
	x, y float64
}

// piecewiseLinear interpolates v through a set of knots ordered by ascending
// x, clamping to the first/last knot's y outside the range.
func piecewiseLinear(v float64, knots []point) float64 {
	if len(knots) == 0 {
		return 0
	}
	if v <= knots[0].x {
		return knots[0].y
	}
	for i := 1; i < len(knots); i++ {
		if v <= knots[i].x {
			a, b := knots[i-1], knots[i]
			if b.x == a.x {
				return b.y
			}
			t := (v - a.x) / (b.x - a.x)
			return a.y + t*(b.y-a.y)
		}
	}
	return knots[len(knots)-1].y
}

// scoreSOPR implements "+0.5 at <1, 0 at 1, -0.3 at >1.05" with a linear
// ramp between 1 and 1.05 and flat extremes outside that band.
func scoreSOPR(v float64) float64 {
	switch {
	case v < 1:
		return 0.5
	case v >= 1.05:
		return -0.3
	default:
		t := (v - 1) / 0.05
		return 0 + t*(-0.3)
	}
}

func (p *onchainProducer) Backfill(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) (int, error) {
	rows, err := p.store.RawMetrics().Range(ctx, onchainSource, &symbol, r)
	if err != nil {
		return 0, fmt.Errorf("onchain producer: backfill range: %w", err)
	}
	n := 0
	for _, row := range rows {
		if _, err := p.Produce(ctx, symbol, tf, row.Timestamp); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
