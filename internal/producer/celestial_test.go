package producer

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestCelestialProducer_NewMoonContributesPositively(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Celestial().Upsert(ctx, domain.CelestialState{
		Date: day, LunarPhaseAngle: 2, Retrograde: map[string]bool{},
	}); err != nil {
		t.Fatalf("seed celestial state: %v", err)
	}

	p := NewCelestial(s)
	result, err := p.Produce(ctx, "", "", day)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Row.Score <= 0 {
		t.Errorf("expected a positive score from a new moon with no other factors, got %v", result.Row.Score)
	}
}

func TestCelestialProducer_EclipseAndMercuryRetrogradeAreBearish(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Celestial().Upsert(ctx, domain.CelestialState{
		Date: day, LunarPhaseAngle: 180,
		Retrograde:   map[string]bool{"mercury": true},
		SolarEclipse: true,
	}); err != nil {
		t.Fatalf("seed celestial state: %v", err)
	}

	p := NewCelestial(s)
	result, err := p.Produce(ctx, "", "", day)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Row.Score >= 0 {
		t.Errorf("expected a negative score for full moon + mercury retrograde + eclipse, got %v", result.Row.Score)
	}
}

func TestIsPair_MatchesEitherOrder(t *testing.T) {
	a := domain.Aspect{BodyA: "mars", BodyB: "saturn", Kind: "square"}
	if !isPair(a, "saturn", "mars") {
		t.Error("expected isPair to be order-independent")
	}
}
