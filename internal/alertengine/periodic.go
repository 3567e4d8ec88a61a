package alertengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

// EvaluateGlobal runs the seven alert conditions that aren't tied to a single
// composite tick: cycle, celestial, numerology, and political/macro
// conditions are symbol-independent, so the scheduler calls this once per
// tick rather than once per watched symbol.
func (e *Engine) EvaluateGlobal(ctx context.Context, at time.Time) ([]domain.Alert, error) {
	var alerts []domain.Alert

	checks := []func(context.Context, time.Time) (*domain.Alert, error){
		e.evaluateCycleAlignment,
		e.evaluateCelestialEvent,
		e.evaluateNumerologyDate,
		e.evaluatePoliticalBlackSwan,
		e.evaluateScheduledMacroEvent,
		e.evaluateNarrativeShift,
		e.evaluateEsotericPolitical,
	}
	for _, check := range checks {
		a, err := check(ctx, at)
		if err != nil {
			return nil, err
		}
		if a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts, nil
}

// EvaluateSentiment runs extreme_sentiment, the one remaining condition,
// which is keyed per symbol since the sentiment layer is symbol-scoped.
func (e *Engine) EvaluateSentiment(ctx context.Context, symbol domain.SymbolId, at time.Time) (*domain.Alert, error) {
	row, err := e.store.LayerScores().Newest(ctx, domain.LayerSentiment, &symbol, nil, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch sentiment score: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	fearGreed, ok := row.Indicators["fear_greed_index"].(float64)
	if !ok || (fearGreed >= 10 && fearGreed <= 90) {
		return nil, nil
	}

	return e.emit(ctx, at, candidate{
		symbol: &symbol, kind: domain.AlertExtremeSentiment,
		windowBucket: hourBucket(at), entityID: "fear_greed",
		title:       fmt.Sprintf("Extreme Fear & Greed reading for %s", symbol),
		description: fmt.Sprintf("fear_greed_index=%.1f", fearGreed),
		triggerContext: map[string]interface{}{
			"fear_greed_index": fearGreed,
		},
	})
}

// evaluateCycleAlignment fires when any custom cycle is within its tolerance
// window of an anchor-relative alignment, mirroring the numerology producer's
// own alignment check (internal/producer/numerology.go).
func (e *Engine) evaluateCycleAlignment(ctx context.Context, at time.Time) (*domain.Alert, error) {
	cycles, err := e.store.Cycles().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("alertengine: list cycles: %w", err)
	}
	for _, c := range cycles {
		if !cycleAligned(c, at) {
			continue
		}
		return e.emit(ctx, at, candidate{
			kind: domain.AlertCycleAlignment, windowBucket: dayBucket(at), entityID: c.ID,
			title:       fmt.Sprintf("Cycle %q aligned", c.Name),
			description: fmt.Sprintf("period=%dd tolerance=%dd hit_rate=%.2f", c.PeriodDays, c.ToleranceDays, c.HitRate()),
			triggerContext: map[string]interface{}{
				"cycle_id": c.ID, "period_days": c.PeriodDays, "hit_rate": c.HitRate(),
			},
		})
	}
	return nil, nil
}

func cycleAligned(c domain.CustomCycle, at time.Time) bool {
	if c.PeriodDays <= 0 {
		return false
	}
	daysSince := int(at.Sub(c.AnchorDate).Hours() / 24)
	mod := daysSince % c.PeriodDays
	if mod < 0 {
		mod += c.PeriodDays
	}
	distance := mod
	if c.PeriodDays-mod < distance {
		distance = c.PeriodDays - mod
	}
	return distance <= c.ToleranceDays
}

// evaluateCelestialEvent fires on eclipses or a 3+ planet retrograde cluster.
func (e *Engine) evaluateCelestialEvent(ctx context.Context, at time.Time) (*domain.Alert, error) {
	state, err := e.store.Celestial().Get(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch celestial state: %w", err)
	}
	if state == nil || !celestialSignificant(*state) {
		return nil, nil
	}
	return e.emit(ctx, at, candidate{
		kind: domain.AlertCelestialEvent, windowBucket: dayBucket(at), entityID: "daily",
		title:       "Significant celestial configuration",
		description: celestialDescription(*state),
		triggerContext: map[string]interface{}{
			"solar_eclipse": state.SolarEclipse, "lunar_eclipse": state.LunarEclipse,
			"retrograde": state.Retrograde,
		},
	})
}

func celestialSignificant(s domain.CelestialState) bool {
	if s.SolarEclipse || s.LunarEclipse {
		return true
	}
	count := 0
	for _, retro := range s.Retrograde {
		if retro {
			count++
		}
	}
	return count >= 3
}

func celestialDescription(s domain.CelestialState) string {
	switch {
	case s.SolarEclipse:
		return "solar eclipse"
	case s.LunarEclipse:
		return "lunar eclipse"
	default:
		return "three or more planets retrograde"
	}
}

// evaluateNumerologyDate fires on master-number universal day numbers.
func (e *Engine) evaluateNumerologyDate(ctx context.Context, at time.Time) (*domain.Alert, error) {
	day, err := e.store.Numerology().Get(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch numerology day: %w", err)
	}
	if day == nil || !day.IsMasterNumber {
		return nil, nil
	}
	return e.emit(ctx, at, candidate{
		kind: domain.AlertNumerologyDate, windowBucket: dayBucket(at), entityID: "master_number",
		title:       fmt.Sprintf("Master number day: %d", day.UniversalDayNumber),
		description: fmt.Sprintf("universal day number %d, aligned cycles: %v", day.UniversalDayNumber, day.AlignedCycles),
		triggerContext: map[string]interface{}{
			"universal_day_number": day.UniversalDayNumber, "aligned_cycles": day.AlignedCycles,
		},
	})
}

// evaluatePoliticalBlackSwan mirrors the producer's override flag surfaced in
// the political layer score's indicators, rather than re-deriving it from
// news (internal/producer/political.go's detectBlackSwan is the source of truth).
func (e *Engine) evaluatePoliticalBlackSwan(ctx context.Context, at time.Time) (*domain.Alert, error) {
	row, err := e.store.LayerScores().Newest(ctx, domain.LayerPolitical, nil, nil, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch political score: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	override, _ := row.Indicators["black_swan_override"].(bool)
	if !override {
		return nil, nil
	}
	return e.emit(ctx, at, candidate{
		kind: domain.AlertPoliticalBlackSwan, windowBucket: hourBucket(at), entityID: "news",
		title:       "Black swan political event detected",
		description: fmt.Sprintf("political score=%.3f", row.Score),
		triggerContext: map[string]interface{}{"score": row.Score},
	})
}

// evaluateScheduledMacroEvent fires when a high/extreme-volatility event
// categorized as macro is imminent (within 24h).
func (e *Engine) evaluateScheduledMacroEvent(ctx context.Context, at time.Time) (*domain.Alert, error) {
	events, err := e.store.PoliticalEvents().UpcomingWithin(ctx, at, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch upcoming events: %w", err)
	}
	for _, ev := range events {
		if ev.Category != "macro" {
			continue
		}
		if ev.Volatility != domain.VolatilityHigh && ev.Volatility != domain.VolatilityExtreme {
			continue
		}
		return e.emit(ctx, at, candidate{
			kind: domain.AlertScheduledMacroEvent, windowBucket: dayBucket(ev.ScheduledAt), entityID: ev.ID,
			title:       fmt.Sprintf("Macro event imminent: %s", ev.Title),
			description: fmt.Sprintf("scheduled_at=%s volatility=%s", ev.ScheduledAt.Format(time.RFC3339), ev.Volatility),
			triggerContext: map[string]interface{}{
				"event_id": ev.ID, "scheduled_at": ev.ScheduledAt, "volatility": string(ev.Volatility),
			},
		})
	}
	return nil, nil
}

// evaluateNarrativeShift fires when the political layer's narrative
// sub-signal flips sign and crosses |0.3| relative to the previous tick.
func (e *Engine) evaluateNarrativeShift(ctx context.Context, at time.Time) (*domain.Alert, error) {
	cur, err := e.store.LayerScores().Newest(ctx, domain.LayerPolitical, nil, nil, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch political score: %w", err)
	}
	if cur == nil {
		return nil, nil
	}
	curNarrative, ok := cur.Indicators["narrative"].(float64)
	if !ok {
		return nil, nil
	}
	prev, err := e.store.LayerScores().Newest(ctx, domain.LayerPolitical, nil, nil, cur.Timestamp.Add(-time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch previous political score: %w", err)
	}
	if prev == nil {
		return nil, nil
	}
	prevNarrative, ok := prev.Indicators["narrative"].(float64)
	if !ok {
		return nil, nil
	}
	if math.Abs(curNarrative) < 0.3 || sign(curNarrative) == sign(prevNarrative) {
		return nil, nil
	}

	return e.emit(ctx, at, candidate{
		kind: domain.AlertNarrativeShift, windowBucket: hourBucket(at), entityID: "narrative",
		title:       "Political narrative shift",
		description: fmt.Sprintf("narrative moved from %.3f to %.3f", prevNarrative, curNarrative),
		triggerContext: map[string]interface{}{
			"previous_narrative": prevNarrative, "narrative": curNarrative,
		},
	})
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// evaluateEsotericPolitical fires when a significant celestial configuration
// coincides with a highly relevant upcoming political event, the one
// condition that genuinely straddles two layers.
func (e *Engine) evaluateEsotericPolitical(ctx context.Context, at time.Time) (*domain.Alert, error) {
	state, err := e.store.Celestial().Get(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch celestial state: %w", err)
	}
	if state == nil || !celestialSignificant(*state) {
		return nil, nil
	}
	events, err := e.store.PoliticalEvents().UpcomingWithin(ctx, at, 48*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("alertengine: fetch upcoming events: %w", err)
	}
	for _, ev := range events {
		if ev.CryptoRelevance < 0.7 {
			continue
		}
		return e.emit(ctx, at, candidate{
			kind: domain.AlertEsotericPolitical, windowBucket: dayBucket(at), entityID: ev.ID,
			title:       fmt.Sprintf("Celestial configuration coincides with %q", ev.Title),
			description: celestialDescription(*state),
			triggerContext: map[string]interface{}{
				"event_id": ev.ID, "crypto_relevance": ev.CryptoRelevance,
			},
		})
	}
	return nil, nil
}
