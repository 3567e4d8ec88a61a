package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// DefaultDrawdownPct and DefaultDrawdownWindow are the significance rule's
// defaults: a peak-to-trough move of 10% or more within 48 hours (spec §4.6).
const (
	DefaultDrawdownPct    = 10.0
	DefaultDrawdownWindow = 48 * time.Hour
)

// RunCycleBacktest discovers whether unlabeled historical drawdown events
// cluster near multiples of candidatePeriodDays, the primary hypothesis
// validation spec §4.6 describes: detect events via a rolling-peak drawdown
// rule, bucket their pairwise day-intervals, flag buckets near k*period,
// chi-squared test the bucketed counts against a uniform-interval null, and
// cross-join each event with the celestial/numerology state on its date.
func RunCycleBacktest(ctx context.Context, live store.Store, symbol domain.SymbolId, tf domain.Timeframe, from, to time.Time, candidatePeriodDays, toleranceDays int, drawdownPct float64, drawdownWindow time.Duration) (CycleBacktestReport, error) {
	if drawdownPct <= 0 {
		drawdownPct = DefaultDrawdownPct
	}
	if drawdownWindow <= 0 {
		drawdownWindow = DefaultDrawdownWindow
	}

	candles, err := live.Candles().Range(ctx, symbol, tf, domain.TimeRange{From: from, To: to})
	if err != nil {
		return CycleBacktestReport{}, fmt.Errorf("backtest: load candle range: %w", err)
	}

	events := detectDrawdownEvents(candles, drawdownPct, drawdownWindow)
	intervals := pairwiseIntervals(events)
	observedVsExpected, chi2, p := intervalSignificance(intervals, candidatePeriodDays, toleranceDays)

	enrichments := make([]Enrichment, 0, len(events))
	for _, ev := range events {
		enr := Enrichment{EventTimestamp: ev.Timestamp}
		if cs, err := live.Celestial().Get(ctx, ev.Timestamp); err == nil {
			enr.Celestial = cs
		}
		if nd, err := live.Numerology().Get(ctx, ev.Timestamp); err == nil {
			enr.Numerology = nd
		}
		enrichments = append(enrichments, enr)
	}

	return CycleBacktestReport{
		Period:             candidatePeriodDays,
		Tolerance:          toleranceDays,
		EventCount:         len(events),
		Events:             events,
		Intervals:          intervals,
		ObservedVsExpected: observedVsExpected,
		Chi2:               chi2,
		PValue:             p,
		Enrichments:        enrichments,
	}, nil
}

// detectDrawdownEvents walks the candle series tracking a rolling peak and
// emits one event each time price falls drawdownPct or more off that peak
// within window, per candle close. A single sustained drawdown below the
// threshold emits only its first crossing, then waits for a new peak before
// it can fire again.
func detectDrawdownEvents(candles []domain.Candle, drawdownPct float64, window time.Duration) []DrawdownEvent {
	var events []DrawdownEvent
	if len(candles) == 0 {
		return events
	}

	type peak struct {
		price float64
		at    time.Time
	}
	cur := peak{price: candles[0].Close, at: candles[0].Timestamp}
	armed := true // re-arms once a new peak is set after the last event

	for _, c := range candles {
		if c.Close >= cur.price {
			cur = peak{price: c.Close, at: c.Timestamp}
			armed = true
			continue
		}
		if !armed || c.Timestamp.Sub(cur.at) > window {
			continue
		}
		drop := (cur.price - c.Close) / cur.price * 100
		if drop >= drawdownPct {
			events = append(events, DrawdownEvent{
				Timestamp: c.Timestamp, PeakPrice: cur.price, TroughPrice: c.Close, DrawdownPct: drop,
			})
			armed = false
		}
	}
	return events
}

// pairwiseIntervals returns the day-distance between every distinct pair of
// detected events, the frequency distribution spec §4.6 calls for.
func pairwiseIntervals(events []DrawdownEvent) []int {
	var out []int
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			d := int(math.Round(events[j].Timestamp.Sub(events[i].Timestamp).Hours() / 24))
			if d > 0 {
				out = append(out, d)
			}
		}
	}
	sort.Ints(out)
	return out
}

// intervalSignificance buckets the observed intervals, flags buckets within
// toleranceDays of any k*candidatePeriodDays multiple, and chi-squared tests
// the bucketed counts against a null of intervals drawn uniformly over the
// observed range.
func intervalSignificance(intervals []int, candidatePeriodDays, toleranceDays int) ([]ObservedVsExpected, float64, float64) {
	if len(intervals) == 0 {
		return nil, 0, 1
	}

	counts := map[int]int{}
	for _, d := range intervals {
		counts[d]++
	}
	buckets := make([]int, 0, len(counts))
	for d := range counts {
		buckets = append(buckets, d)
	}
	sort.Ints(buckets)

	minD, maxD := intervals[0], intervals[len(intervals)-1]
	span := maxD - minD + 1
	n := len(intervals)

	ove := make([]ObservedVsExpected, 0, len(buckets))
	chi2 := 0.0
	for _, d := range buckets {
		observed := counts[d]
		expected := float64(n) / float64(span)
		if expected <= 0 {
			expected = 1e-9
		}
		chi2 += math.Pow(float64(observed)-expected, 2) / expected
		ove = append(ove, ObservedVsExpected{
			IntervalDays: d, Observed: observed, Expected: expected,
			NearMultiple: nearPeriodMultiple(d, candidatePeriodDays, toleranceDays),
		})
	}

	dof := float64(len(buckets) - 1)
	if dof < 1 {
		dof = 1
	}
	p := chiSquaredUpperTail(chi2, dof)
	return ove, chi2, p
}

func nearPeriodMultiple(intervalDays, period, tolerance int) bool {
	if period <= 0 {
		return false
	}
	k := int(math.Round(float64(intervalDays) / float64(period)))
	if k <= 0 {
		return false
	}
	return abs(float64(intervalDays-k*period)) <= float64(tolerance)
}

// chiSquaredUpperTail returns P(X > x) for a chi-squared distribution with
// dof degrees of freedom via the Wilson-Hilferty cube-root approximation,
// adequate for the bucket counts this backtester produces.
func chiSquaredUpperTail(x, dof float64) float64 {
	if x <= 0 {
		return 1
	}
	h := 2.0 / (9.0 * dof)
	z := (math.Pow(x/dof, 1.0/3.0) - (1 - h)) / math.Sqrt(h)
	return 1 - standardNormalCDF(z)
}

// standardNormalCDF uses math.Erf directly, since Go's standard library
// exposes it without pulling in a separate stats dependency.
func standardNormalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
