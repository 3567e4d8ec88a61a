package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// numerologyProducer derives a global score from the UTC calendar date plus
// any custom cycles in alignment (spec §4.2 Numerology). benchmarkSymbol and
// watchedNumber parameterize the daily-close digit-sum sub-signal, which is
// the one numerology rule that reaches into price data despite the layer
// otherwise being symbol-less.
type numerologyProducer struct {
	store           store.Store
	benchmarkSymbol domain.SymbolId
	benchmarkTF     domain.Timeframe
	watchedNumber   int
}

func NewNumerology(s store.Store, benchmarkSymbol domain.SymbolId, benchmarkTF domain.Timeframe, watchedNumber int) Producer {
	return &numerologyProducer{store: s, benchmarkSymbol: benchmarkSymbol, benchmarkTF: benchmarkTF, watchedNumber: watchedNumber}
}

func (p *numerologyProducer) Layer() domain.Layer      { return domain.LayerNumerology }
func (p *numerologyProducer) Cadence() time.Duration   { return 24 * time.Hour }
func (p *numerologyProducer) Staleness() time.Duration { return 48 * time.Hour }

// UniversalDayNumber implements the locked algorithm: iterated digit sum of
// YYYYMMDD, reducing to a single digit except that an intermediate 11, 22,
// or 33 is preserved as a master number rather than reduced further.
func UniversalDayNumber(date time.Time) (value int, isMaster bool) {
	date = date.UTC()
	n := date.Year()*10000 + int(date.Month())*100 + date.Day()
	s := digitSum(n)
	for s > 9 {
		if s == 11 || s == 22 || s == 33 {
			return s, true
		}
		s = digitSum(s)
	}
	return s, false
}

func digitSum(n int) int {
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

func (p *numerologyProducer) Produce(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, at time.Time) (ProduceResult, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	value, isMaster := UniversalDayNumber(day)

	cycles, err := p.store.Cycles().List(ctx)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("numerology producer: list cycles: %w", err)
	}
	aligned := alignedCycles(day, cycles)

	trend, err := p.priorTrendSign(ctx, day)
	if err != nil {
		return ProduceResult{}, err
	}

	watchedMatch := false
	if p.benchmarkSymbol != "" {
		candles, err := p.store.Candles().Latest(ctx, p.benchmarkSymbol, p.benchmarkTF, at, 1)
		if err != nil {
			return ProduceResult{}, fmt.Errorf("numerology producer: benchmark close: %w", err)
		}
		if len(candles) == 1 {
			watchedMatch = priceDigitSum(candles[0].Close) == p.watchedNumber
		}
	}

	numerologyDay := domain.NumerologyDay{
		Date: day, DigitSum: digitSum(value), UniversalDayNumber: value, IsMasterNumber: isMaster,
		AlignedCycles: cycleNames(aligned),
	}
	if err := p.store.Numerology().Upsert(ctx, numerologyDay); err != nil {
		return ProduceResult{}, fmt.Errorf("numerology producer: persist day: %w", err)
	}

	score, payload := scoreNumerology(numerologyDay, aligned, trend, watchedMatch)
	row := domain.LayerScoreRow{Layer: domain.LayerNumerology, Timestamp: at, Score: score, Indicators: payload}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("numerology producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

func (p *numerologyProducer) priorTrendSign(ctx context.Context, day time.Time) (float64, error) {
	rows, err := p.store.LayerScores().Range(ctx, domain.LayerNumerology, nil, nil, domain.TimeRange{
		From: day.AddDate(0, 0, -30), To: day,
	})
	if err != nil {
		return 0, fmt.Errorf("numerology producer: prior trend: %w", err)
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

// alignedCycles returns every custom cycle currently in alignment: the
// number of days since its anchor, modulo its period, falls within its
// tolerance of zero.
func alignedCycles(day time.Time, cycles []domain.CustomCycle) []domain.CustomCycle {
	var aligned []domain.CustomCycle
	for _, c := range cycles {
		if c.PeriodDays <= 0 {
			continue
		}
		daysSince := int(day.Sub(c.AnchorDate.UTC().Truncate(24*time.Hour)).Hours() / 24)
		mod := daysSince % c.PeriodDays
		if mod < 0 {
			mod += c.PeriodDays
		}
		dist := mod
		if c.PeriodDays-mod < dist {
			dist = c.PeriodDays - mod
		}
		if dist <= c.ToleranceDays {
			aligned = append(aligned, c)
		}
	}
	return aligned
}

func cycleNames(cycles []domain.CustomCycle) []string {
	names := make([]string, len(cycles))
	for i, c := range cycles {
		names[i] = c.Name
	}
	return names
}

func scoreNumerology(day domain.NumerologyDay, aligned []domain.CustomCycle, trend float64, watchedMatch bool) (float64, map[string]interface{}) {
	payload := map[string]interface{}{
		"universal_day_number": day.UniversalDayNumber,
		"is_master_number":     day.IsMasterNumber,
	}
	sum := 0.0

	if day.IsMasterNumber {
		sum += trend * 0.2
		payload["master_number_contribution"] = trend * 0.2
	}

	if len(aligned) > 0 {
		multiplier := len(aligned)
		if multiplier > 3 {
			multiplier = 3
		}
		contribution := -0.4 * float64(multiplier)
		sum += contribution
		payload["cycle_alignment_contribution"] = contribution
		payload["aligned_cycle_count"] = len(aligned)
	}

	if watchedMatch {
		sum += 0.1
		payload["watched_number_match"] = true
	}

	return domain.ClampScore(sum), payload
}

// priceDigitSum computes the digit sum of a close price's integer cents
// representation, reduced to a single digit (no master-number preservation —
// that rule applies only to the calendar date per spec).
func priceDigitSum(price float64) int {
	cents := int64(price*100 + 0.5)
	if cents < 0 {
		cents = -cents
	}
	s := int(cents)
	for s > 9 {
		s = digitSum(s)
	}
	return s
}

func (p *numerologyProducer) Backfill(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, r domain.TimeRange) (int, error) {
	n := 0
	for day := r.From.UTC().Truncate(24 * time.Hour); day.Before(r.To); day = day.AddDate(0, 0, 1) {
		if _, err := p.Produce(ctx, "", "", day); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
