package alertengine

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

// TestEvaluateCycleAlignment_47DayCycle covers spec scenario 5: anchor
// 2025-10-10 tolerance 2, days 47 and 49 align, day 50 does not.
func TestEvaluateCycleAlignment_47DayCycle(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	anchor := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	if err := s.Cycles().Upsert(ctx, domain.CustomCycle{ID: "c1", Name: "47-day", PeriodDays: 47, AnchorDate: anchor, ToleranceDays: 2}); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	e := NewEngine(s)

	day47 := time.Date(2025, 11, 26, 0, 0, 0, 0, time.UTC)
	a, err := e.evaluateCycleAlignment(ctx, day47)
	if err != nil {
		t.Fatalf("day 47: %v", err)
	}
	if a == nil || a.Kind != domain.AlertCycleAlignment {
		t.Fatalf("expected a cycle_alignment alert on day 47, got %+v", a)
	}

	day49 := time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC)
	a, err = e.evaluateCycleAlignment(ctx, day49)
	if err != nil {
		t.Fatalf("day 49: %v", err)
	}
	if a == nil || a.Kind != domain.AlertCycleAlignment {
		t.Fatalf("expected a cycle_alignment alert on day 49, got %+v", a)
	}

	day50 := time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC)
	a, err = e.evaluateCycleAlignment(ctx, day50)
	if err != nil {
		t.Fatalf("day 50: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert on day 50 (outside tolerance), got %+v", a)
	}
}

func TestEvaluateCycleAlignment_IdempotentWithinSameDayBucket(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	anchor := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	if err := s.Cycles().Upsert(ctx, domain.CustomCycle{ID: "c1", Name: "47-day", PeriodDays: 47, AnchorDate: anchor, ToleranceDays: 2}); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	e := NewEngine(s)
	day47 := time.Date(2025, 11, 26, 0, 0, 0, 0, time.UTC)

	first, err := e.evaluateCycleAlignment(ctx, day47)
	if err != nil || first == nil {
		t.Fatalf("first evaluation: a=%+v err=%v", first, err)
	}
	second, err := e.evaluateCycleAlignment(ctx, day47.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if second != nil {
		t.Errorf("expected the same day's re-evaluation to be suppressed by idempotency, got %+v", second)
	}
}

func TestEvaluateCelestialEvent_FiresOnEclipse(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: at, SolarEclipse: true}); err != nil {
		t.Fatalf("seed celestial state: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateCelestialEvent(ctx, at)
	if err != nil {
		t.Fatalf("evaluateCelestialEvent: %v", err)
	}
	if a == nil || a.Kind != domain.AlertCelestialEvent {
		t.Fatalf("expected a celestial_event alert for a solar eclipse, got %+v", a)
	}
}

func TestEvaluateCelestialEvent_NoAlertWithoutSignificantConfiguration(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: at, Retrograde: map[string]bool{"mercury": true}}); err != nil {
		t.Fatalf("seed celestial state: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateCelestialEvent(ctx, at)
	if err != nil {
		t.Fatalf("evaluateCelestialEvent: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert for a single retrograde planet, got %+v", a)
	}
}

func TestEvaluateNumerologyDate_FiresOnMasterNumber(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Numerology().Upsert(ctx, domain.NumerologyDay{Date: at, UniversalDayNumber: 11, IsMasterNumber: true}); err != nil {
		t.Fatalf("seed numerology day: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateNumerologyDate(ctx, at)
	if err != nil {
		t.Fatalf("evaluateNumerologyDate: %v", err)
	}
	if a == nil || a.Kind != domain.AlertNumerologyDate {
		t.Fatalf("expected a numerology_date alert for a master number day, got %+v", a)
	}
}

func TestEvaluateNumerologyDate_NoAlertOnNonMasterNumber(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Numerology().Upsert(ctx, domain.NumerologyDay{Date: at, UniversalDayNumber: 5, IsMasterNumber: false}); err != nil {
		t.Fatalf("seed numerology day: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateNumerologyDate(ctx, at)
	if err != nil {
		t.Fatalf("evaluateNumerologyDate: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert for a non-master universal day number, got %+v", a)
	}
}

// TestEvaluatePoliticalBlackSwan_MirrorsProducerOverride covers spec scenario
// 4: urgency=0.95, relevance=0.95, sentiment=-0.9 overrides political to
// -0.72, firing one critical political_black_swan alert.
func TestEvaluatePoliticalBlackSwan_MirrorsProducerOverride(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Now()
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: at, Score: -0.72,
		Indicators: map[string]interface{}{"black_swan_override": true},
	}); err != nil {
		t.Fatalf("seed political score: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluatePoliticalBlackSwan(ctx, at)
	if err != nil {
		t.Fatalf("evaluatePoliticalBlackSwan: %v", err)
	}
	if a == nil || a.Kind != domain.AlertPoliticalBlackSwan {
		t.Fatalf("expected a political_black_swan alert, got %+v", a)
	}
	if a.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %v", a.Severity)
	}
}

func TestEvaluatePoliticalBlackSwan_NoAlertWithoutOverrideFlag(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Now()
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: at, Score: 0.1,
	}); err != nil {
		t.Fatalf("seed political score: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluatePoliticalBlackSwan(ctx, at)
	if err != nil {
		t.Fatalf("evaluatePoliticalBlackSwan: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert without the override flag, got %+v", a)
	}
}

func TestEvaluateScheduledMacroEvent_FiresWithinWindow(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.PoliticalEvents().Upsert(ctx, domain.PoliticalEvent{
		ID: "fomc", Title: "FOMC rate decision", Category: "macro",
		Volatility: domain.VolatilityHigh, ScheduledAt: at.Add(12 * time.Hour),
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateScheduledMacroEvent(ctx, at)
	if err != nil {
		t.Fatalf("evaluateScheduledMacroEvent: %v", err)
	}
	if a == nil || a.Kind != domain.AlertScheduledMacroEvent {
		t.Fatalf("expected a scheduled_macro_event alert, got %+v", a)
	}
}

func TestEvaluateScheduledMacroEvent_IgnoresLowVolatilityOrNonMacro(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.PoliticalEvents().Upsert(ctx, domain.PoliticalEvent{
		ID: "cpi", Title: "CPI release", Category: "macro",
		Volatility: domain.VolatilityLow, ScheduledAt: at.Add(12 * time.Hour),
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateScheduledMacroEvent(ctx, at)
	if err != nil {
		t.Fatalf("evaluateScheduledMacroEvent: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert for a low-volatility macro event, got %+v", a)
	}
}

func TestEvaluateNarrativeShift_FiresOnSignFlipAboveThreshold(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: t0, Score: 0.1,
		Indicators: map[string]interface{}{"narrative": -0.5},
	}); err != nil {
		t.Fatalf("seed t0: %v", err)
	}
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: t1, Score: 0.2,
		Indicators: map[string]interface{}{"narrative": 0.5},
	}); err != nil {
		t.Fatalf("seed t1: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateNarrativeShift(ctx, t1)
	if err != nil {
		t.Fatalf("evaluateNarrativeShift: %v", err)
	}
	if a == nil || a.Kind != domain.AlertNarrativeShift {
		t.Fatalf("expected a narrative_shift alert on the sign flip, got %+v", a)
	}
}

func TestEvaluateNarrativeShift_NoAlertWhenSignUnchanged(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: t0, Indicators: map[string]interface{}{"narrative": 0.4},
	}); err != nil {
		t.Fatalf("seed t0: %v", err)
	}
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerPolitical, Timestamp: t1, Indicators: map[string]interface{}{"narrative": 0.5},
	}); err != nil {
		t.Fatalf("seed t1: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateNarrativeShift(ctx, t1)
	if err != nil {
		t.Fatalf("evaluateNarrativeShift: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert when narrative sign is unchanged, got %+v", a)
	}
}

func TestEvaluateEsotericPolitical_FiresOnCelestialPlusRelevantEvent(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: at, LunarEclipse: true}); err != nil {
		t.Fatalf("seed celestial: %v", err)
	}
	if err := s.PoliticalEvents().Upsert(ctx, domain.PoliticalEvent{
		ID: "sec-ruling", Title: "SEC ruling", CryptoRelevance: 0.9, ScheduledAt: at.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateEsotericPolitical(ctx, at)
	if err != nil {
		t.Fatalf("evaluateEsotericPolitical: %v", err)
	}
	if a == nil || a.Kind != domain.AlertEsotericPolitical {
		t.Fatalf("expected an esoteric_political alert, got %+v", a)
	}
}

func TestEvaluateEsotericPolitical_NoAlertWithoutSignificantCelestialState(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: at}); err != nil {
		t.Fatalf("seed celestial: %v", err)
	}
	if err := s.PoliticalEvents().Upsert(ctx, domain.PoliticalEvent{
		ID: "sec-ruling", Title: "SEC ruling", CryptoRelevance: 0.9, ScheduledAt: at.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	e := NewEngine(s)
	a, err := e.evaluateEsotericPolitical(ctx, at)
	if err != nil {
		t.Fatalf("evaluateEsotericPolitical: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert without a significant celestial configuration, got %+v", a)
	}
}

func TestEvaluateSentiment_FiresOnExtremeReading(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	at := time.Now()
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerSentiment, Symbol: &sym, Timestamp: at,
		Indicators: map[string]interface{}{"fear_greed_index": 5.0},
	}); err != nil {
		t.Fatalf("seed sentiment score: %v", err)
	}

	e := NewEngine(s)
	a, err := e.EvaluateSentiment(ctx, sym, at)
	if err != nil {
		t.Fatalf("EvaluateSentiment: %v", err)
	}
	if a == nil || a.Kind != domain.AlertExtremeSentiment {
		t.Fatalf("expected an extreme_sentiment alert for index=5, got %+v", a)
	}
}

func TestEvaluateSentiment_NoAlertWithinNormalRange(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym := domain.SymbolId("BTC/USDT")
	at := time.Now()
	if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{
		Layer: domain.LayerSentiment, Symbol: &sym, Timestamp: at,
		Indicators: map[string]interface{}{"fear_greed_index": 50.0},
	}); err != nil {
		t.Fatalf("seed sentiment score: %v", err)
	}

	e := NewEngine(s)
	a, err := e.EvaluateSentiment(ctx, sym, at)
	if err != nil {
		t.Fatalf("EvaluateSentiment: %v", err)
	}
	if a != nil {
		t.Errorf("expected no alert for a neutral fear/greed reading, got %+v", a)
	}
}

func TestEvaluateGlobal_AggregatesAllSevenConditions(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: at, SolarEclipse: true}); err != nil {
		t.Fatalf("seed celestial: %v", err)
	}
	if err := s.Numerology().Upsert(ctx, domain.NumerologyDay{Date: at, UniversalDayNumber: 22, IsMasterNumber: true}); err != nil {
		t.Fatalf("seed numerology: %v", err)
	}

	e := NewEngine(s)
	alerts, err := e.EvaluateGlobal(ctx, at)
	if err != nil {
		t.Fatalf("EvaluateGlobal: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts (celestial_event + numerology_date), got %d: %+v", len(alerts), alerts)
	}
}
