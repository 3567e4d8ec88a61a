// Package storetest provides an in-memory store.Store for unit tests that
// need to exercise the confluence engine, alert engine, producers, or
// scheduler without a live Postgres instance, mirroring the role the
// teacher's sqlmock-backed fixtures play for its own repository tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// Store is a plain in-memory implementation of store.Store. Every sub-store
// is exported as a field so tests can seed or inspect rows directly.
type Store struct {
	CandlesStore    *CandleStore
	LayerScoresImpl *LayerScoreStore
	CompositesImpl  *CompositeStore
	AlertsImpl      *AlertStore
	CursorsImpl     *CursorStore
	WeightsImpl     *WeightProfileStore
	CyclesImpl      *CycleStore
	PoliticalImpl   *PoliticalEventStore
	NewsImpl        *NewsStore
	CelestialImpl   *CelestialStore
	NumerologyImpl  *NumerologyStore
	LeasesImpl      *LeaseStore
	RawMetricsImpl  *RawMetricStore
}

// New returns an empty fake store ready to be seeded.
func New() *Store {
	return &Store{
		CandlesStore:    &CandleStore{},
		LayerScoresImpl: &LayerScoreStore{rows: map[string]domain.LayerScoreRow{}},
		CompositesImpl:  &CompositeStore{},
		AlertsImpl:      &AlertStore{rows: map[string]domain.Alert{}},
		CursorsImpl:     &CursorStore{cursors: map[string]time.Time{}},
		WeightsImpl:     &WeightProfileStore{profiles: map[string]domain.WeightProfile{}},
		CyclesImpl:      &CycleStore{cycles: map[string]domain.CustomCycle{}},
		PoliticalImpl:   &PoliticalEventStore{events: map[string]domain.PoliticalEvent{}},
		NewsImpl:        &NewsStore{},
		CelestialImpl:   &CelestialStore{days: map[string]domain.CelestialState{}},
		NumerologyImpl:  &NumerologyStore{days: map[string]domain.NumerologyDay{}},
		LeasesImpl:      &LeaseStore{leases: map[string]leaseRow{}},
		RawMetricsImpl:  &RawMetricStore{},
	}
}

func (s *Store) Candles() store.CandleStore               { return s.CandlesStore }
func (s *Store) LayerScores() store.LayerScoreStore        { return s.LayerScoresImpl }
func (s *Store) Composites() store.CompositeStore          { return s.CompositesImpl }
func (s *Store) Alerts() store.AlertStore                  { return s.AlertsImpl }
func (s *Store) Cursors() store.ConfluenceCursorStore       { return s.CursorsImpl }
func (s *Store) WeightProfiles() store.WeightProfileStore  { return s.WeightsImpl }
func (s *Store) Cycles() store.CycleStore                  { return s.CyclesImpl }
func (s *Store) PoliticalEvents() store.PoliticalEventStore { return s.PoliticalImpl }
func (s *Store) News() store.NewsStore                      { return s.NewsImpl }
func (s *Store) Celestial() store.CelestialStore            { return s.CelestialImpl }
func (s *Store) Numerology() store.NumerologyStore          { return s.NumerologyImpl }
func (s *Store) Leases() store.LeaseStore                   { return s.LeasesImpl }
func (s *Store) RawMetrics() store.RawMetricStore           { return s.RawMetricsImpl }

var _ store.Store = (*Store)(nil)

// CandleStore fake.
type CandleStore struct {
	mu   sync.Mutex
	rows []domain.Candle
}

func (c *CandleStore) Upsert(ctx context.Context, candle domain.Candle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, candle)
	return nil
}

func (c *CandleStore) UpsertBatch(ctx context.Context, cs []domain.Candle) (int, error) {
	for _, candle := range cs {
		if err := c.Upsert(ctx, candle); err != nil {
			return 0, err
		}
	}
	return len(cs), nil
}

func (c *CandleStore) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.Candle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Candle
	for _, row := range c.rows {
		if row.Symbol == symbol && row.Timeframe == tf && r.Contains(row.Timestamp) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (c *CandleStore) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time, limit int) ([]domain.Candle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Candle
	for _, row := range c.rows {
		if row.Symbol == symbol && row.Timeframe == tf && !row.Timestamp.After(asOf) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LayerScoreStore fake, keyed by layer|symbol|timeframe|timestamp.
type LayerScoreStore struct {
	mu   sync.Mutex
	rows map[string]domain.LayerScoreRow
}

func layerScoreKey(layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, ts time.Time) string {
	sym, tfs := "", ""
	if symbol != nil {
		sym = string(*symbol)
	}
	if tf != nil {
		tfs = string(*tf)
	}
	return string(layer) + "|" + sym + "|" + tfs + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (l *LayerScoreStore) Upsert(ctx context.Context, row domain.LayerScoreRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[layerScoreKey(row.Layer, row.Symbol, row.Timeframe, row.Timestamp)] = row
	return nil
}

func (l *LayerScoreStore) Newest(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, asOf time.Time) (*domain.LayerScoreRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var best *domain.LayerScoreRow
	for _, row := range l.rows {
		if row.Layer != layer || row.Timestamp.After(asOf) {
			continue
		}
		if !sameSymbol(row.Symbol, symbol) || !sameTimeframe(row.Timeframe, tf) {
			continue
		}
		r := row
		if best == nil || r.Timestamp.After(best.Timestamp) {
			best = &r
		}
	}
	return best, nil
}

func (l *LayerScoreStore) Range(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, r domain.TimeRange) ([]domain.LayerScoreRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LayerScoreRow
	for _, row := range l.rows {
		if row.Layer == layer && sameSymbol(row.Symbol, symbol) && sameTimeframe(row.Timeframe, tf) && r.Contains(row.Timestamp) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func sameSymbol(a, b *domain.SymbolId) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameTimeframe(a, b *domain.Timeframe) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CompositeStore fake.
type CompositeStore struct {
	mu   sync.Mutex
	rows []domain.CompositeScore
}

func (c *CompositeStore) Insert(ctx context.Context, row domain.CompositeScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
	return nil
}

func (c *CompositeStore) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time) (*domain.CompositeScore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *domain.CompositeScore
	for i := range c.rows {
		row := c.rows[i]
		if row.Symbol != symbol || row.Timeframe != tf || row.Timestamp.After(asOf) {
			continue
		}
		if best == nil || row.Timestamp.After(best.Timestamp) {
			r := row
			best = &r
		}
	}
	return best, nil
}

func (c *CompositeStore) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) ([]domain.CompositeScore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.CompositeScore
	for _, row := range c.rows {
		if row.Symbol == symbol && row.Timeframe == tf && r.Contains(row.Timestamp) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AlertStore fake.
type AlertStore struct {
	mu   sync.Mutex
	rows map[string]domain.Alert
}

func (a *AlertStore) Insert(ctx context.Context, al domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[al.ID] = al
	return nil
}

func (a *AlertStore) FindActiveByKey(ctx context.Context, idempotencyKey string) (*domain.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, al := range a.rows {
		if al.IdempotencyKey == idempotencyKey && al.Status == domain.AlertActive {
			out := al
			return &out, nil
		}
	}
	return nil, nil
}

func (a *AlertStore) SetStatus(ctx context.Context, id string, status domain.AlertStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	al, ok := a.rows[id]
	if !ok {
		return nil
	}
	al.Status = status
	a.rows[id] = al
	return nil
}

func (a *AlertStore) ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.Alert
	for _, al := range a.rows {
		if al.Status == status {
			out = append(out, al)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.Before(out[j].TriggeredAt) })
	return out, nil
}

func (a *AlertStore) Get(ctx context.Context, id string) (*domain.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	al, ok := a.rows[id]
	if !ok {
		return nil, nil
	}
	out := al
	return &out, nil
}

// CursorStore fake.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[string]time.Time
}

func cursorKey(symbol domain.SymbolId, tf domain.Timeframe) string {
	return string(symbol) + "|" + string(tf)
}

func (c *CursorStore) LastTriggeredAt(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[cursorKey(symbol, tf)], nil
}

func (c *CursorStore) Advance(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, triggeredAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[cursorKey(symbol, tf)] = triggeredAt
	return nil
}

// WeightProfileStore fake.
type WeightProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]domain.WeightProfile
	activeID  string
}

func (w *WeightProfileStore) Active(ctx context.Context) (*domain.WeightProfile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.profiles[w.activeID]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (w *WeightProfileStore) Upsert(ctx context.Context, p domain.WeightProfile) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.profiles[p.ID] = p
	if p.Active {
		w.activeID = p.ID
	}
	return nil
}

func (w *WeightProfileStore) Activate(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.profiles[id]; !ok {
		return nil
	}
	w.activeID = id
	return nil
}

// CycleStore fake.
type CycleStore struct {
	mu     sync.Mutex
	cycles map[string]domain.CustomCycle
}

func (c *CycleStore) Get(ctx context.Context, id string) (*domain.CustomCycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cyc, ok := c.cycles[id]
	if !ok {
		return nil, nil
	}
	out := cyc
	return &out, nil
}

func (c *CycleStore) List(ctx context.Context) ([]domain.CustomCycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.CustomCycle
	for _, cyc := range c.cycles {
		out = append(out, cyc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *CycleStore) Upsert(ctx context.Context, cyc domain.CustomCycle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles[cyc.ID] = cyc
	return nil
}

func (c *CycleStore) RecordOutcome(ctx context.Context, id string, hit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cyc, ok := c.cycles[id]
	if !ok {
		return nil
	}
	if hit {
		cyc.Hits++
	} else {
		cyc.Misses++
	}
	c.cycles[id] = cyc
	return nil
}

// PoliticalEventStore fake.
type PoliticalEventStore struct {
	mu     sync.Mutex
	events map[string]domain.PoliticalEvent
}

func (p *PoliticalEventStore) Upsert(ctx context.Context, e domain.PoliticalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[e.ID] = e
	return nil
}

func (p *PoliticalEventStore) UpcomingWithin(ctx context.Context, asOf time.Time, horizon time.Duration) ([]domain.PoliticalEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PoliticalEvent
	for _, e := range p.events {
		if !e.ScheduledAt.Before(asOf) && e.ScheduledAt.Before(asOf.Add(horizon)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (p *PoliticalEventStore) Get(ctx context.Context, id string) (*domain.PoliticalEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.events[id]
	if !ok {
		return nil, nil
	}
	out := e
	return &out, nil
}

// NewsStore fake.
type NewsStore struct {
	mu   sync.Mutex
	rows []domain.NewsItem
}

func (n *NewsStore) Upsert(ctx context.Context, item domain.NewsItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rows = append(n.rows, item)
	return nil
}

func (n *NewsStore) Since(ctx context.Context, asOf time.Time, lookback time.Duration) ([]domain.NewsItem, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := asOf.Add(-lookback)
	var out []domain.NewsItem
	for _, item := range n.rows {
		if item.Timestamp.After(cutoff) && !item.Timestamp.After(asOf) {
			out = append(out, item)
		}
	}
	return out, nil
}

// RawMetricStore fake.
type RawMetricStore struct {
	mu   sync.Mutex
	rows []domain.RawMetricRow
}

func (r *RawMetricStore) Upsert(ctx context.Context, row domain.RawMetricRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *RawMetricStore) Newest(ctx context.Context, source string, symbol *domain.SymbolId, asOf time.Time) (*domain.RawMetricRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.RawMetricRow
	for i := range r.rows {
		row := r.rows[i]
		if row.Source != source || row.Timestamp.After(asOf) || !sameSymbol(row.Symbol, symbol) {
			continue
		}
		if best == nil || row.Timestamp.After(best.Timestamp) {
			out := row
			best = &out
		}
	}
	return best, nil
}

func (r *RawMetricStore) Range(ctx context.Context, source string, symbol *domain.SymbolId, tr domain.TimeRange) ([]domain.RawMetricRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RawMetricRow
	for _, row := range r.rows {
		if row.Source == source && sameSymbol(row.Symbol, symbol) && tr.Contains(row.Timestamp) {
			out = append(out, row)
		}
	}
	return out, nil
}

// CelestialStore fake.
type CelestialStore struct {
	mu   sync.Mutex
	days map[string]domain.CelestialState
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (c *CelestialStore) Upsert(ctx context.Context, s domain.CelestialState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[dayKey(s.Date)] = s
	return nil
}

func (c *CelestialStore) Get(ctx context.Context, date time.Time) (*domain.CelestialState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.days[dayKey(date)]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (c *CelestialStore) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.CelestialState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.CelestialState
	for d := 0; d < days; d++ {
		if s, ok := c.days[dayKey(asOf.AddDate(0, 0, -d))]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// NumerologyStore fake.
type NumerologyStore struct {
	mu   sync.Mutex
	days map[string]domain.NumerologyDay
}

func (n *NumerologyStore) Upsert(ctx context.Context, day domain.NumerologyDay) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.days[dayKey(day.Date)] = day
	return nil
}

func (n *NumerologyStore) Get(ctx context.Context, date time.Time) (*domain.NumerologyDay, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.days[dayKey(date)]
	if !ok {
		return nil, nil
	}
	out := d
	return &out, nil
}

func (n *NumerologyStore) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.NumerologyDay, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.NumerologyDay
	for d := 0; d < days; d++ {
		if day, ok := n.days[dayKey(asOf.AddDate(0, 0, -d))]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

type leaseRow struct {
	ownerID   string
	expiresAt time.Time
}

// LeaseStore fake.
type LeaseStore struct {
	mu      sync.Mutex
	leases  map[string]leaseRow
}

func (l *LeaseStore) Acquire(ctx context.Context, jobName, ownerID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	existing, ok := l.leases[jobName]
	if ok && existing.ownerID != ownerID && existing.expiresAt.After(now) {
		return false, nil
	}
	l.leases[jobName] = leaseRow{ownerID: ownerID, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *LeaseStore) Release(ctx context.Context, jobName, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.leases[jobName]; ok && existing.ownerID == ownerID {
		delete(l.leases, jobName)
	}
	return nil
}
