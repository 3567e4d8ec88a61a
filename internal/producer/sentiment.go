package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

const (
	sentimentSource      = "fear_greed"
	optionalSourceWeight = 0.2
)

// sentimentProducer applies the contrarian Fear & Greed mapping, optionally
// blending in social/trends sources at a fixed weight (spec §4.2 Sentiment).
type sentimentProducer struct {
	store store.Store
}

func NewSentiment(s store.Store) Producer { return &sentimentProducer{store: s} }

func (p *sentimentProducer) Layer() domain.Layer      { return domain.LayerSentiment }
func (p *sentimentProducer) Cadence() time.Duration   { return 4 * time.Hour }
func (p *sentimentProducer) Staleness() time.Duration { return 24 * time.Hour }

func (p *sentimentProducer) Produce(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, at time.Time) (ProduceResult, error) {
	metrics, err := p.store.RawMetrics().Newest(ctx, sentimentSource, &symbol, at)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("sentiment producer: fetch metrics: %w", err)
	}
	if metrics == nil {
		row := domain.LayerScoreRow{
			Layer: domain.LayerSentiment, Symbol: &symbol, Timestamp: at,
			Score: 0, Degraded: true, Indicators: map[string]interface{}{"reason": "no_metrics"},
		}
		if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
			return ProduceResult{}, err
		}
		return ProduceResult{Row: row, Degraded: true}, nil
	}

	score, payload := scoreSentiment(metrics.Metrics)
	row := domain.LayerScoreRow{Layer: domain.LayerSentiment, Symbol: &symbol, Timestamp: at, Score: score, Indicators: payload}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("sentiment producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

func scoreSentiment(metrics map[string]float64) (float64, map[string]interface{}) {
	payload := map[string]interface{}{}

	fearGreed, ok := metrics["fear_greed_index"]
	if !ok {
		return 0, payload
	}
	contrarian := contrarianFearGreed(fearGreed)
	payload["fear_greed_index"] = fearGreed
	payload["fear_greed_score"] = contrarian

	var optional []float64
	if social, ok := metrics["social_sentiment"]; ok {
		optional = append(optional, domain.ClampScore(social))
		payload["social_sentiment"] = social
	}
	if trends, ok := metrics["trends_sentiment"]; ok {
		optional = append(optional, domain.ClampScore(trends))
		payload["trends_sentiment"] = trends
	}

	score := contrarian
	if len(optional) > 0 {
		sum := 0.0
		for _, v := range optional {
			sum += v
		}
		avgOptional := sum / float64(len(optional))
		score = (1-optionalSourceWeight)*contrarian + optionalSourceWeight*avgOptional
	}

	return domain.ClampScore(score), payload
}

// contrarianFearGreed implements the [0,20)->+0.8 ... (80,100]->-0.8 table.
func contrarianFearGreed(v float64) float64 {
	switch {
	case v < 20:
		return 0.8
	case v < 40:
		return 0.3
	case v <= 60:
		return 0
	case v <= 80:
		return -0.3
	default:
		return -0.8
	}
}

func (p *sentimentProducer) Backfill(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) (int, error) {
	rows, err := p.store.RawMetrics().Range(ctx, sentimentSource, &symbol, r)
	if err != nil {
		return 0, fmt.Errorf("sentiment producer: backfill range: %w", err)
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
