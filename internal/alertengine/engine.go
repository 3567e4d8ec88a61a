// Package alertengine evaluates the ten alert conditions of spec §4.5 and
// inserts idempotent alert rows keyed so that a re-evaluation of the same
// window never duplicates a firing.
package alertengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// Engine evaluates alert conditions and writes idempotent alert rows.
type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine { return &Engine{store: s} }

// candidate is a not-yet-persisted firing; the idempotency key determines
// whether it actually produces a new row.
type candidate struct {
	symbol         *domain.SymbolId
	kind           domain.AlertKind
	windowBucket   string
	entityID       string
	title          string
	description    string
	triggerContext map[string]interface{}
}

func (c candidate) idempotencyKey() string {
	symbol := "_"
	if c.symbol != nil {
		symbol = string(*c.symbol)
	}
	return fmt.Sprintf("%s|%s|%s|%s", c.kind, symbol, c.windowBucket, c.entityID)
}

// emit inserts c unless an active alert already holds its idempotency key.
func (e *Engine) emit(ctx context.Context, at time.Time, c candidate) (*domain.Alert, error) {
	key := c.idempotencyKey()
	existing, err := e.store.Alerts().FindActiveByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("alertengine: check idempotency key: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	alert := domain.Alert{
		ID: uuid.NewString(), CreatedAt: at, TriggeredAt: at,
		Symbol: c.symbol, Kind: c.kind, Severity: c.kind.Severity(),
		Title: c.title, Description: c.description, TriggerContext: c.triggerContext,
		Status: domain.AlertActive, IdempotencyKey: key,
	}
	if err := e.store.Alerts().Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("alertengine: insert alert: %w", err)
	}
	log.Info().Str("kind", string(c.kind)).Str("key", key).Msg("alert emitted")
	return &alert, nil
}

// hourBucket floors t to the hour, the windowBucket granularity for
// threshold-crossing and alignment conditions.
func hourBucket(t time.Time) string { return t.UTC().Format("2006010215") }

// dayBucket floors t to the civil UTC day, used by cycle/celestial/numerology conditions.
func dayBucket(t time.Time) string { return t.UTC().Format("20060102") }

// ProcessComposite evaluates the confluence_threshold and layer_alignment
// conditions against the leading edge of the composite stream for
// (symbol, timeframe), guarded by the persisted cursor so a scheduler
// restart neither replays nor misses an edge (O2, Open Question 3).
func (e *Engine) ProcessComposite(ctx context.Context, composite domain.CompositeScore) ([]domain.Alert, error) {
	lastTriggered, err := e.store.Cursors().LastTriggeredAt(ctx, composite.Symbol, composite.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("alertengine: load cursor: %w", err)
	}
	if !composite.Timestamp.After(lastTriggered) {
		return nil, nil
	}

	var prevComposite *domain.CompositeScore
	if prev, err := e.store.Composites().Latest(ctx, composite.Symbol, composite.Timeframe, composite.Timestamp.Add(-time.Nanosecond)); err != nil {
		return nil, fmt.Errorf("alertengine: load previous composite: %w", err)
	} else {
		prevComposite = prev
	}

	var alerts []domain.Alert

	if a, err := e.evaluateThreshold(ctx, composite, prevComposite); err != nil {
		return nil, err
	} else if a != nil {
		alerts = append(alerts, *a)
	}

	if a, err := e.evaluateLayerAlignment(ctx, composite); err != nil {
		return nil, err
	} else if a != nil {
		alerts = append(alerts, *a)
	}

	if err := e.store.Cursors().Advance(ctx, composite.Symbol, composite.Timeframe, composite.Timestamp); err != nil {
		return nil, fmt.Errorf("alertengine: advance cursor: %w", err)
	}
	return alerts, nil
}

// evaluateThreshold fires confluence_threshold when the composite crosses
// +0.5 or -0.5 relative to the previous composite (edge-triggered).
func (e *Engine) evaluateThreshold(ctx context.Context, cur domain.CompositeScore, prev *domain.CompositeScore) (*domain.Alert, error) {
	if prev == nil {
		return nil, nil
	}
	crossedUp := prev.Composite < 0.5 && cur.Composite >= 0.5
	crossedDown := prev.Composite > -0.5 && cur.Composite <= -0.5
	if !crossedUp && !crossedDown {
		return nil, nil
	}

	symbol := cur.Symbol
	return e.emit(ctx, cur.Timestamp, candidate{
		symbol: &symbol, kind: domain.AlertConfluenceThreshold,
		windowBucket: hourBucket(cur.Timestamp), entityID: string(cur.Timeframe),
		title:       fmt.Sprintf("Confluence threshold crossed for %s", cur.Symbol),
		description: fmt.Sprintf("composite moved from %.3f to %.3f", prev.Composite, cur.Composite),
		triggerContext: map[string]interface{}{
			"previous_composite": prev.Composite, "composite": cur.Composite,
		},
	})
}

// evaluateLayerAlignment fires when >=4 layers align on the same tick.
func (e *Engine) evaluateLayerAlignment(ctx context.Context, cur domain.CompositeScore) (*domain.Alert, error) {
	if len(cur.AlignedLayers) < 4 {
		return nil, nil
	}
	symbol := cur.Symbol
	return e.emit(ctx, cur.Timestamp, candidate{
		symbol: &symbol, kind: domain.AlertLayerAlignment,
		windowBucket: hourBucket(cur.Timestamp), entityID: string(cur.Timeframe),
		title:       fmt.Sprintf("%d layers aligned for %s", len(cur.AlignedLayers), cur.Symbol),
		description: "multiple independent layers agree on direction",
		triggerContext: map[string]interface{}{
			"aligned_layers": cur.AlignedLayers, "composite": cur.Composite,
		},
	})
}
