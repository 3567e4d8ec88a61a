// Package store defines the time-series store contract: append-only,
// hypertable-shaped tables keyed by (timestamp, symbol, timeframe), with
// idempotent upsert-by-primary-key semantics and range scans. Implementations
// live in subpackages (postgres today); producers, the confluence engine, the
// alert engine, the scheduler, and the backtester all depend on the
// interfaces here, never on a concrete implementation.
package store

import (
	"context"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

// CandleStore persists OHLCV bars with late-correction upsert semantics.
type CandleStore interface {
	Upsert(ctx context.Context, c domain.Candle) error
	UpsertBatch(ctx context.Context, cs []domain.Candle) (int, error)
	Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.Candle, error)
	Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time, limit int) ([]domain.Candle, error)
}

// LayerScoreStore persists per-layer score rows. symbol/timeframe are nil for
// global layers (celestial, numerology, macro, political).
type LayerScoreStore interface {
	Upsert(ctx context.Context, row domain.LayerScoreRow) error
	Newest(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, asOf time.Time) (*domain.LayerScoreRow, error)
	Range(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, r domain.TimeRange) ([]domain.LayerScoreRow, error)
}

// CompositeStore persists fused composite rows, append-only per (symbol, tf, ts).
type CompositeStore interface {
	Insert(ctx context.Context, row domain.CompositeScore) error
	Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time) (*domain.CompositeScore, error)
	Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.CompositeScore, error)
}

// AlertStore persists alerts and their idempotency keys.
type AlertStore interface {
	Insert(ctx context.Context, a domain.Alert) error
	FindActiveByKey(ctx context.Context, idempotencyKey string) (*domain.Alert, error)
	SetStatus(ctx context.Context, id string, status domain.AlertStatus) error
	ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error)
	Get(ctx context.Context, id string) (*domain.Alert, error)
}

// ConfluenceCursorStore persists the per-(symbol,timeframe) leading-edge
// cursor the alert engine uses for edge-triggering (spec §9 Open Questions,
// resolved in SPEC_FULL.md).
type ConfluenceCursorStore interface {
	LastTriggeredAt(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe) (time.Time, error)
	Advance(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, triggeredAt time.Time) error
}

// WeightProfileStore manages the single active weight profile plus history.
type WeightProfileStore interface {
	Active(ctx context.Context) (*domain.WeightProfile, error)
	Upsert(ctx context.Context, p domain.WeightProfile) error
	Activate(ctx context.Context, id string) error
}

// CycleStore manages custom numerological/price cycles and their hit/miss counters.
type CycleStore interface {
	Get(ctx context.Context, id string) (*domain.CustomCycle, error)
	List(ctx context.Context) ([]domain.CustomCycle, error)
	Upsert(ctx context.Context, c domain.CustomCycle) error
	RecordOutcome(ctx context.Context, id string, hit bool) error
}

// PoliticalEventStore manages curated scheduled events.
type PoliticalEventStore interface {
	Upsert(ctx context.Context, e domain.PoliticalEvent) error
	UpcomingWithin(ctx context.Context, asOf time.Time, horizon time.Duration) ([]domain.PoliticalEvent, error)
	Get(ctx context.Context, id string) (*domain.PoliticalEvent, error)
}

// NewsStore manages classified articles keyed by (timestamp, source, headlineHash).
type NewsStore interface {
	Upsert(ctx context.Context, n domain.NewsItem) error
	Since(ctx context.Context, asOf time.Time, lookback time.Duration) ([]domain.NewsItem, error)
}

// RawMetricStore persists vendor-sourced numeric readings keyed by (source,
// symbol?, timestamp). The onchain, sentiment, and macro producers all read
// through this one interface instead of one bespoke store per vendor.
type RawMetricStore interface {
	Upsert(ctx context.Context, row domain.RawMetricRow) error
	Newest(ctx context.Context, source string, symbol *domain.SymbolId, asOf time.Time) (*domain.RawMetricRow, error)
	Range(ctx context.Context, source string, symbol *domain.SymbolId, r domain.TimeRange) ([]domain.RawMetricRow, error)
}

// CelestialStore persists one row per civil day.
type CelestialStore interface {
	Upsert(ctx context.Context, s domain.CelestialState) error
	Get(ctx context.Context, date time.Time) (*domain.CelestialState, error)
	RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.CelestialState, error)
}

// NumerologyStore persists one row per civil day.
type NumerologyStore interface {
	Upsert(ctx context.Context, n domain.NumerologyDay) error
	Get(ctx context.Context, date time.Time) (*domain.NumerologyDay, error)
	RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.NumerologyDay, error)
}

// JobLease is a lease row granting one scheduler worker exclusive ownership
// of a job instance until ExpiresAt, enforced by a conditional put (spec §4.4).
type JobLease struct {
	JobName   string
	OwnerID   string
	ExpiresAt time.Time
}

// LeaseStore is the only mutex primitive in the system (spec §5).
type LeaseStore interface {
	// Acquire attempts to take or renew the lease for jobName as ownerID.
	// Succeeds if no lease exists, the existing lease is expired, or the
	// existing lease is already held by ownerID. Returns ok=false if another
	// owner holds a live lease.
	Acquire(ctx context.Context, jobName, ownerID string, ttl time.Duration) (ok bool, err error)
	Release(ctx context.Context, jobName, ownerID string) error
}

// Store aggregates every sub-store. Producers, the confluence engine, the
// alert engine, the scheduler, and the backtester all depend on this
// interface (or the narrower ones above) rather than a concrete type, so the
// backtester can substitute a BoundedView transparently.
type Store interface {
	Candles() CandleStore
	LayerScores() LayerScoreStore
	Composites() CompositeStore
	Alerts() AlertStore
	Cursors() ConfluenceCursorStore
	WeightProfiles() WeightProfileStore
	Cycles() CycleStore
	PoliticalEvents() PoliticalEventStore
	News() NewsStore
	Celestial() CelestialStore
	Numerology() NumerologyStore
	Leases() LeaseStore
	RawMetrics() RawMetricStore
}
