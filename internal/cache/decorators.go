package cache

import (
	"context"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// celestialTTL/numerologyTTL keep a day's row cached for six hours; both rows
// are immutable once computed for a given date, and the cache exists purely
// to spare recomputation/DB round-trips for the same day's repeated reads.
const (
	celestialTTL  = 6 * time.Hour
	numerologyTTL = 6 * time.Hour
	weightsTTL    = 30 * time.Second
)

// CachedCelestialStore wraps a store.CelestialStore with a read-through
// cache keyed by civil day, since the ephemeris math behind each row is pure
// but not free to recompute on every /api/celestial/current hit.
type CachedCelestialStore struct {
	store.CelestialStore
	cache *Cache
}

func WrapCelestialStore(s store.CelestialStore, c *Cache) *CachedCelestialStore {
	return &CachedCelestialStore{CelestialStore: s, cache: c}
}

func (w *CachedCelestialStore) Get(ctx context.Context, date time.Time) (*domain.CelestialState, error) {
	key := CelestialKey(date)
	var cached domain.CelestialState
	if hit, err := w.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}
	state, err := w.CelestialStore.Get(ctx, date)
	if err != nil || state == nil {
		return state, err
	}
	_ = w.cache.SetJSON(ctx, key, state, celestialTTL)
	return state, nil
}

func (w *CachedCelestialStore) Upsert(ctx context.Context, s domain.CelestialState) error {
	if err := w.CelestialStore.Upsert(ctx, s); err != nil {
		return err
	}
	return w.cache.Delete(ctx, CelestialKey(s.Date))
}

// CachedNumerologyStore mirrors CachedCelestialStore for the numerology layer.
type CachedNumerologyStore struct {
	store.NumerologyStore
	cache *Cache
}

func WrapNumerologyStore(s store.NumerologyStore, c *Cache) *CachedNumerologyStore {
	return &CachedNumerologyStore{NumerologyStore: s, cache: c}
}

func (w *CachedNumerologyStore) Get(ctx context.Context, date time.Time) (*domain.NumerologyDay, error) {
	key := NumerologyKey(date)
	var cached domain.NumerologyDay
	if hit, err := w.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}
	day, err := w.NumerologyStore.Get(ctx, date)
	if err != nil || day == nil {
		return day, err
	}
	_ = w.cache.SetJSON(ctx, key, day, numerologyTTL)
	return day, nil
}

func (w *CachedNumerologyStore) Upsert(ctx context.Context, n domain.NumerologyDay) error {
	if err := w.NumerologyStore.Upsert(ctx, n); err != nil {
		return err
	}
	return w.cache.Delete(ctx, NumerologyKey(n.Date))
}

// CachedWeightProfileStore caches the active profile with a short TTL: the
// confluence engine calls Active() on every composite computation (every
// symbol, every cadence tick), so a 30s cache absorbs that read-amplification
// without materially delaying a weight change's effect.
type CachedWeightProfileStore struct {
	store.WeightProfileStore
	cache *Cache
}

func WrapWeightProfileStore(s store.WeightProfileStore, c *Cache) *CachedWeightProfileStore {
	return &CachedWeightProfileStore{WeightProfileStore: s, cache: c}
}

func (w *CachedWeightProfileStore) Active(ctx context.Context) (*domain.WeightProfile, error) {
	var cached domain.WeightProfile
	if hit, err := w.cache.GetJSON(ctx, ActiveWeightProfileKey, &cached); err == nil && hit {
		return &cached, nil
	}
	profile, err := w.WeightProfileStore.Active(ctx)
	if err != nil || profile == nil {
		return profile, err
	}
	_ = w.cache.SetJSON(ctx, ActiveWeightProfileKey, profile, weightsTTL)
	return profile, nil
}

func (w *CachedWeightProfileStore) Activate(ctx context.Context, id string) error {
	if err := w.WeightProfileStore.Activate(ctx, id); err != nil {
		return err
	}
	return w.cache.Delete(ctx, ActiveWeightProfileKey)
}
