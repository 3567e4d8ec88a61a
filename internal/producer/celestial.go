package producer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/ephemeris"
	"github.com/sawpanic/confluence/internal/store"
)

// celestialProducer derives a global (no-symbol) score from the current
// day's ephemeris state (spec §4.2 Celestial).
type celestialProducer struct {
	store store.Store
}

func NewCelestial(s store.Store) Producer { return &celestialProducer{store: s} }

func (p *celestialProducer) Layer() domain.Layer      { return domain.LayerCelestial }
func (p *celestialProducer) Cadence() time.Duration   { return 24 * time.Hour }
func (p *celestialProducer) Staleness() time.Duration { return 48 * time.Hour }

func (p *celestialProducer) Produce(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, at time.Time) (ProduceResult, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	state, err := p.store.Celestial().Get(ctx, day)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("celestial producer: fetch state: %w", err)
	}
	if state == nil {
		computed := ephemeris.At(at)
		state = &computed
		if err := p.store.Celestial().Upsert(ctx, computed); err != nil {
			return ProduceResult{}, fmt.Errorf("celestial producer: persist ephemeris: %w", err)
		}
	}

	trend, err := p.priorTrendSign(ctx, day)
	if err != nil {
		return ProduceResult{}, err
	}

	score, payload := scoreCelestial(*state, trend)
	row := domain.LayerScoreRow{Layer: domain.LayerCelestial, Timestamp: at, Score: score, Indicators: payload}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("celestial producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

// priorTrendSign reads the sign of the prior 30-day celestial composite, used
// by the Saturn-Jupiter conjunction sub-signal's direction rule.
func (p *celestialProducer) priorTrendSign(ctx context.Context, day time.Time) (float64, error) {
	rows, err := p.store.LayerScores().Range(ctx, domain.LayerCelestial, nil, nil, domain.TimeRange{
		From: day.AddDate(0, 0, -30), To: day,
	})
	if err != nil {
		return 0, fmt.Errorf("celestial producer: prior trend: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.Score
	}
	mean := sum / float64(len(rows))
	switch {
	case mean > 0:
		return 1, nil
	case mean < 0:
		return -1, nil
	default:
		return 0, nil
	}
}

func scoreCelestial(s domain.CelestialState, trend float64) (float64, map[string]interface{}) {
	payload := map[string]interface{}{}
	sum := 0.0

	isNewMoon := s.LunarPhaseAngle < 10 || s.LunarPhaseAngle > 350
	isFullMoon := math.Abs(s.LunarPhaseAngle-180) < 10
	if isNewMoon {
		sum += 0.2
		payload["new_moon"] = true
	}
	if isFullMoon {
		sum -= 0.2
		payload["full_moon"] = true
	}

	if s.Retrograde["mercury"] {
		sum -= 0.3
		payload["mercury_retrograde"] = true
	}
	retroCount := 0
	for _, retro := range s.Retrograde {
		if retro {
			retroCount++
		}
	}
	if retroCount >= 3 {
		sum -= 0.2
		payload["multi_retrograde_count"] = retroCount
	}

	if s.SolarEclipse || s.LunarEclipse {
		sum -= 0.4
		payload["eclipse_window"] = true
	}

	for _, a := range s.Aspects {
		if a.Kind == "square" && isPair(a, "mars", "saturn") {
			sum -= 0.3
			payload["mars_saturn_square"] = true
		}
		if a.Kind == "conjunction" && isPair(a, "saturn", "jupiter") {
			sum += trend * 0.4
			payload["saturn_jupiter_conjunction"] = true
		}
	}

	payload["lunar_phase_angle"] = s.LunarPhaseAngle
	return domain.ClampScore(sum), payload
}

func isPair(a domain.Aspect, x, y string) bool {
	return (a.BodyA == x && a.BodyB == y) || (a.BodyA == y && a.BodyB == x)
}

// Backfill recomputes the celestial score for each civil day in r.
func (p *celestialProducer) Backfill(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, r domain.TimeRange) (int, error) {
	n := 0
	for day := r.From.UTC().Truncate(24 * time.Hour); day.Before(r.To); day = day.AddDate(0, 0, 1) {
		if _, err := p.Produce(ctx, "", "", day); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
