package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

// ErrLookahead is returned by a BoundedView when a caller's query parameters
// could return rows at or after the walker's current instant.
var ErrLookahead = fmt.Errorf("store: query would read at or past the backtest walker's current instant")

// BoundedView wraps a Store so that reads of timestamped rows stop before
// asOf: point reads asked for an instant at or after asOf return
// ErrLookahead, and range reads are cut off at asOf. UpcomingWithin still
// returns events scheduled after asOf within its horizon, and the alert,
// cursor, weight-profile, cycle, lease and political-event Get reads pass
// through unbounded. Only the backtester constructs one; production code depends
// on the plain Store interface and is handed a BoundedView transparently
// during replay (spec §4.6 "no-lookahead discipline").
type BoundedView struct {
	inner Store
	asOf  time.Time
}

// NewBoundedView returns a Store restricted to data strictly before asOf.
func NewBoundedView(inner Store, asOf time.Time) *BoundedView {
	return &BoundedView{inner: inner, asOf: asOf}
}

func (b *BoundedView) Candles() CandleStore { return boundedCandles{b.inner.Candles(), b.asOf} }
func (b *BoundedView) LayerScores() LayerScoreStore {
	return boundedLayerScores{b.inner.LayerScores(), b.asOf}
}
func (b *BoundedView) Composites() CompositeStore { return boundedComposites{b.inner.Composites(), b.asOf} }
func (b *BoundedView) Alerts() AlertStore               { return b.inner.Alerts() }
func (b *BoundedView) Cursors() ConfluenceCursorStore   { return b.inner.Cursors() }
func (b *BoundedView) WeightProfiles() WeightProfileStore { return b.inner.WeightProfiles() }
func (b *BoundedView) Cycles() CycleStore               { return b.inner.Cycles() }
func (b *BoundedView) PoliticalEvents() PoliticalEventStore {
	return boundedPoliticalEvents{b.inner.PoliticalEvents(), b.asOf}
}
func (b *BoundedView) News() NewsStore           { return boundedNews{b.inner.News(), b.asOf} }
func (b *BoundedView) Celestial() CelestialStore { return boundedCelestial{b.inner.Celestial(), b.asOf} }
func (b *BoundedView) Numerology() NumerologyStore {
	return boundedNumerology{b.inner.Numerology(), b.asOf}
}
func (b *BoundedView) Leases() LeaseStore { return b.inner.Leases() }
func (b *BoundedView) RawMetrics() RawMetricStore {
	return boundedRawMetrics{b.inner.RawMetrics(), b.asOf}
}

type boundedRawMetrics struct {
	inner RawMetricStore
	asOf  time.Time
}

func (b boundedRawMetrics) Upsert(ctx context.Context, row domain.RawMetricRow) error {
	return b.inner.Upsert(ctx, row)
}
func (b boundedRawMetrics) Newest(ctx context.Context, source string, symbol *domain.SymbolId, asOf time.Time) (*domain.RawMetricRow, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.Newest(ctx, source, symbol, clamped)
}
func (b boundedRawMetrics) Range(ctx context.Context, source string, symbol *domain.SymbolId, r domain.TimeRange) ([]domain.RawMetricRow, error) {
	if r.To.After(b.asOf) {
		r.To = b.asOf
	}
	return b.inner.Range(ctx, source, symbol, r)
}

// clampAsOf returns the tighter of the caller's requested asOf and the
// walker's instant, rejecting any requested asOf that is not strictly before
// the walker's instant.
func clampAsOf(walkerAsOf, requested time.Time) (time.Time, error) {
	if !requested.Before(walkerAsOf) {
		return time.Time{}, ErrLookahead
	}
	return requested, nil
}

type boundedCandles struct {
	inner CandleStore
	asOf  time.Time
}

func (b boundedCandles) Upsert(ctx context.Context, c domain.Candle) error { return b.inner.Upsert(ctx, c) }
func (b boundedCandles) UpsertBatch(ctx context.Context, cs []domain.Candle) (int, error) {
	return b.inner.UpsertBatch(ctx, cs)
}
func (b boundedCandles) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.Candle, error) {
	if r.To.After(b.asOf) {
		r.To = b.asOf
	}
	return b.inner.Range(ctx, symbol, tf, r)
}
func (b boundedCandles) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time, limit int) ([]domain.Candle, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.Latest(ctx, symbol, tf, clamped, limit)
}

type boundedLayerScores struct {
	inner LayerScoreStore
	asOf  time.Time
}

func (b boundedLayerScores) Upsert(ctx context.Context, row domain.LayerScoreRow) error {
	return b.inner.Upsert(ctx, row)
}
func (b boundedLayerScores) Newest(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, asOf time.Time) (*domain.LayerScoreRow, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.Newest(ctx, layer, symbol, tf, clamped)
}
func (b boundedLayerScores) Range(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, r domain.TimeRange) ([]domain.LayerScoreRow, error) {
	if r.To.After(b.asOf) {
		r.To = b.asOf
	}
	return b.inner.Range(ctx, layer, symbol, tf, r)
}

type boundedComposites struct {
	inner CompositeStore
	asOf  time.Time
}

func (b boundedComposites) Insert(ctx context.Context, row domain.CompositeScore) error {
	return b.inner.Insert(ctx, row)
}
func (b boundedComposites) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time) (*domain.CompositeScore, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.Latest(ctx, symbol, tf, clamped)
}
func (b boundedComposites) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.CompositeScore, error) {
	if r.To.After(b.asOf) {
		r.To = b.asOf
	}
	return b.inner.Range(ctx, symbol, tf, r)
}

type boundedPoliticalEvents struct {
	inner PoliticalEventStore
	asOf  time.Time
}

func (b boundedPoliticalEvents) Upsert(ctx context.Context, e domain.PoliticalEvent) error {
	return b.inner.Upsert(ctx, e)
}
func (b boundedPoliticalEvents) UpcomingWithin(ctx context.Context, asOf time.Time, horizon time.Duration) ([]domain.PoliticalEvent, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.UpcomingWithin(ctx, clamped, horizon)
}
func (b boundedPoliticalEvents) Get(ctx context.Context, id string) (*domain.PoliticalEvent, error) {
	return b.inner.Get(ctx, id)
}

type boundedNews struct {
	inner NewsStore
	asOf  time.Time
}

func (b boundedNews) Upsert(ctx context.Context, n domain.NewsItem) error { return b.inner.Upsert(ctx, n) }
func (b boundedNews) Since(ctx context.Context, asOf time.Time, lookback time.Duration) ([]domain.NewsItem, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.Since(ctx, clamped, lookback)
}

type boundedCelestial struct {
	inner CelestialStore
	asOf  time.Time
}

func (b boundedCelestial) Upsert(ctx context.Context, s domain.CelestialState) error {
	return b.inner.Upsert(ctx, s)
}
func (b boundedCelestial) Get(ctx context.Context, date time.Time) (*domain.CelestialState, error) {
	if !date.Before(b.asOf) {
		return nil, ErrLookahead
	}
	return b.inner.Get(ctx, date)
}
func (b boundedCelestial) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.CelestialState, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.RangeBack(ctx, clamped, days)
}

type boundedNumerology struct {
	inner NumerologyStore
	asOf  time.Time
}

func (b boundedNumerology) Upsert(ctx context.Context, n domain.NumerologyDay) error {
	return b.inner.Upsert(ctx, n)
}
func (b boundedNumerology) Get(ctx context.Context, date time.Time) (*domain.NumerologyDay, error) {
	if !date.Before(b.asOf) {
		return nil, ErrLookahead
	}
	return b.inner.Get(ctx, date)
}
func (b boundedNumerology) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.NumerologyDay, error) {
	clamped, err := clampAsOf(b.asOf, asOf)
	if err != nil {
		return nil, err
	}
	return b.inner.RangeBack(ctx, clamped, days)
}
