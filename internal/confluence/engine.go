// Package confluence fuses the seven layer scores for a (symbol, timeframe,
// instant) into one composite row, implementing spec §4.3 verbatim.
package confluence

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// stalenessByLayer mirrors spec §4.3 step 1 for every layer except TA, whose
// staleness window scales with the timeframe being evaluated.
var stalenessByLayer = map[domain.Layer]time.Duration{
	domain.LayerOnChain:    24 * time.Hour,
	domain.LayerSentiment:  24 * time.Hour,
	domain.LayerCelestial:  48 * time.Hour,
	domain.LayerNumerology: 48 * time.Hour,
	domain.LayerPolitical:  2 * time.Hour,
	domain.LayerMacro:      2 * time.Hour,
}

// Engine computes composite rows from the newest per-layer score rows.
type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine { return &Engine{store: s} }

// ComputeComposite implements the five numbered steps of spec §4.3.
func (e *Engine) ComputeComposite(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, at time.Time) (domain.CompositeScore, error) {
	profile, err := e.store.WeightProfiles().Active(ctx)
	if err != nil {
		return domain.CompositeScore{}, fmt.Errorf("confluence: load active profile: %w", err)
	}
	if profile == nil {
		return domain.CompositeScore{}, fmt.Errorf("confluence: no active weight profile")
	}
	if err := domain.ValidateWeightSum(profile.Weights); err != nil {
		return domain.CompositeScore{}, fmt.Errorf("confluence: %w", err)
	}

	layerScores := make(map[domain.Layer]float64, len(domain.Layers))
	var staleLayers []domain.Layer

	for _, layer := range domain.Layers {
		var layerSymbol *domain.SymbolId
		var layerTF *domain.Timeframe
		if layer.RequiresSymbol() {
			layerSymbol = &symbol
		}
		if layer.RequiresTimeframe() {
			layerTF = &tf
		}

		row, err := e.store.LayerScores().Newest(ctx, layer, layerSymbol, layerTF, at)
		if err != nil {
			return domain.CompositeScore{}, fmt.Errorf("confluence: fetch %s score: %w", layer, err)
		}

		window := staleness(layer, tf)
		if row == nil || at.Sub(row.Timestamp) > window {
			staleLayers = append(staleLayers, layer)
			layerScores[layer] = 0
			continue
		}
		layerScores[layer] = row.Score
	}

	composite := 0.0
	for layer, score := range layerScores {
		composite += profile.Weights[layer] * score
	}
	composite = domain.ClampScore(composite)
	strength := domain.ClassifyStrength(composite)
	aligned := alignedLayers(layerScores, composite)

	out := domain.CompositeScore{
		Symbol: symbol, Timeframe: tf, Timestamp: at,
		LayerScores: layerScores, WeightsUsed: cloneWeights(profile.Weights),
		Composite: composite, Strength: strength,
		AlignedLayers: aligned, StaleLayers: staleLayers,
	}
	if err := e.store.Composites().Insert(ctx, out); err != nil {
		return domain.CompositeScore{}, fmt.Errorf("confluence: insert composite: %w", err)
	}
	return out, nil
}

func staleness(layer domain.Layer, tf domain.Timeframe) time.Duration {
	if layer == domain.LayerTA {
		return 2 * tf.Duration()
	}
	return stalenessByLayer[layer]
}

// alignedLayers implements step 5: same-sign-as-composite layers with
// |score|>=0.2, or — when composite is neutral — the max-cardinality
// same-sign subset with |score|>=0.2 and no asserted direction (Open
// Question 2, locked in SPEC_FULL.md).
func alignedLayers(scores map[domain.Layer]float64, composite float64) []domain.Layer {
	const threshold = 0.2

	if composite > -0.2 && composite < 0.2 {
		var positive, negative []domain.Layer
		for _, layer := range domain.Layers {
			s := scores[layer]
			switch {
			case s >= threshold:
				positive = append(positive, layer)
			case s <= -threshold:
				negative = append(negative, layer)
			}
		}
		if len(positive) >= len(negative) {
			return positive
		}
		return negative
	}

	sign := 1.0
	if composite < 0 {
		sign = -1.0
	}
	var aligned []domain.Layer
	for _, layer := range domain.Layers {
		s := scores[layer]
		if s*sign >= threshold {
			aligned = append(aligned, layer)
		}
	}
	return aligned
}

func cloneWeights(w map[domain.Layer]float64) map[domain.Layer]float64 {
	out := make(map[domain.Layer]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
