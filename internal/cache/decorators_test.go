package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestCachedWeightProfileStore_ActivateInvalidatesCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewFromClient(db)
	inner := storetest.New()
	ctx := context.Background()

	if err := inner.WeightProfiles().Upsert(ctx, domain.WeightProfile{ID: "p1", Name: "default", Active: true}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	wrapped := WrapWeightProfileStore(inner.WeightProfiles(), c)

	mock.ExpectGet(ActiveWeightProfileKey).RedisNil()
	mock.Regexp().ExpectSet(ActiveWeightProfileKey, `.*`, weightsTTL).SetVal("OK")
	if _, err := wrapped.Active(ctx); err != nil {
		t.Fatalf("Active (miss, populates cache): %v", err)
	}

	mock.ExpectDel(ActiveWeightProfileKey).SetVal(1)
	if err := wrapped.Activate(ctx, "p1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet redis expectations: %v", err)
	}
}

func TestCachedCelestialStore_UpsertInvalidatesDayKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewFromClient(db)
	inner := storetest.New()
	ctx := context.Background()
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	wrapped := WrapCelestialStore(inner.Celestial(), c)

	mock.ExpectDel(CelestialKey(day)).SetVal(0)
	if err := wrapped.Upsert(ctx, domain.CelestialState{Date: day, LunarPhaseAngle: 100}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := inner.Celestial().Get(ctx, day)
	if err != nil {
		t.Fatalf("Get from inner store: %v", err)
	}
	if got == nil {
		t.Fatal("expected the write to reach the underlying store")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet redis expectations: %v", err)
	}
}

func TestCachedCelestialStore_GetPopulatesCacheOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewFromClient(db)
	inner := storetest.New()
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	if err := inner.Celestial().Upsert(ctx, domain.CelestialState{Date: day, LunarPhaseAngle: 42}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wrapped := WrapCelestialStore(inner.Celestial(), c)

	mock.ExpectGet(CelestialKey(day)).RedisNil()
	mock.Regexp().ExpectSet(CelestialKey(day), `.*`, celestialTTL).SetVal("OK")

	got, err := wrapped.Get(ctx, day)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.LunarPhaseAngle != 42 {
		t.Fatalf("expected the underlying store's value to pass through, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet redis expectations: %v", err)
	}
}
