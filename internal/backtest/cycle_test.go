package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestDetectDrawdownEvents_FiresOnceAboveThreshold(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Timestamp: start, Close: 100},
		{Timestamp: start.Add(12 * time.Hour), Close: 95},
		{Timestamp: start.Add(24 * time.Hour), Close: 89}, // 11% off peak, within 48h
		{Timestamp: start.Add(36 * time.Hour), Close: 85}, // still below threshold, already armed=false
	}
	events := detectDrawdownEvents(candles, 10, 48*time.Hour)
	if len(events) != 1 {
		t.Fatalf("expected exactly one drawdown event, got %d: %+v", len(events), events)
	}
	if events[0].Timestamp != start.Add(24*time.Hour) {
		t.Errorf("expected the event at the first crossing, got %v", events[0].Timestamp)
	}
}

func TestDetectDrawdownEvents_IgnoresDropsOutsideWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Timestamp: start, Close: 100},
		{Timestamp: start.Add(72 * time.Hour), Close: 85}, // 15% off peak but 72h later, outside 48h
	}
	events := detectDrawdownEvents(candles, 10, 48*time.Hour)
	if len(events) != 0 {
		t.Errorf("expected no event once the drawdown window has elapsed, got %+v", events)
	}
}

func TestDetectDrawdownEvents_RearmsAfterNewPeak(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Timestamp: start, Close: 100},
		{Timestamp: start.Add(12 * time.Hour), Close: 88},  // event 1
		{Timestamp: start.Add(24 * time.Hour), Close: 105}, // new peak, re-arms
		{Timestamp: start.Add(36 * time.Hour), Close: 92},  // 12% off new peak, event 2
	}
	events := detectDrawdownEvents(candles, 10, 48*time.Hour)
	if len(events) != 2 {
		t.Fatalf("expected two independent drawdown events across two peaks, got %d: %+v", len(events), events)
	}
}

func TestPairwiseIntervals_ComputesDayDistancesBetweenAllPairs(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []DrawdownEvent{
		{Timestamp: base},
		{Timestamp: base.AddDate(0, 0, 47)},
		{Timestamp: base.AddDate(0, 0, 94)},
	}
	intervals := pairwiseIntervals(events)
	if len(intervals) != 3 {
		t.Fatalf("expected 3 pairwise intervals for 3 events, got %d: %v", len(intervals), intervals)
	}
	want := map[int]bool{47: true, 94: true}
	for _, d := range intervals {
		if !want[d] {
			t.Errorf("unexpected interval %d, want one of 47/47/94", d)
		}
	}
}

func TestNearPeriodMultiple(t *testing.T) {
	cases := []struct {
		interval, period, tolerance int
		want                        bool
	}{
		{47, 47, 2, true},
		{49, 47, 2, true},
		{50, 47, 2, false},
		{94, 47, 2, true}, // k=2
		{20, 47, 2, false},
	}
	for _, c := range cases {
		if got := nearPeriodMultiple(c.interval, c.period, c.tolerance); got != c.want {
			t.Errorf("nearPeriodMultiple(%d,%d,%d) = %v, want %v", c.interval, c.period, c.tolerance, got, c.want)
		}
	}
}

func TestIntervalSignificance_NoIntervalsReturnsPValueOne(t *testing.T) {
	ove, chi2, p := intervalSignificance(nil, 47, 2)
	if ove != nil || chi2 != 0 || p != 1 {
		t.Errorf("expected a degenerate result for no intervals, got ove=%v chi2=%v p=%v", ove, chi2, p)
	}
}

func TestIntervalSignificance_ClusteredIntervalsYieldLowPValue(t *testing.T) {
	// Every interval lands exactly on the 47-day period or its double: a
	// maximally non-uniform distribution relative to the uniform null.
	intervals := make([]int, 0, 40)
	for i := 0; i < 20; i++ {
		intervals = append(intervals, 47)
	}
	for i := 0; i < 20; i++ {
		intervals = append(intervals, 94)
	}
	ove, chi2, p := intervalSignificance(intervals, 47, 2)
	if chi2 <= 0 {
		t.Errorf("expected a positive chi-squared statistic for a clustered distribution, got %v", chi2)
	}
	if p >= 0.05 {
		t.Errorf("expected a significant (low) p-value for a two-spike distribution, got %v", p)
	}
	for _, o := range ove {
		if !o.NearMultiple {
			t.Errorf("expected every bucket to be flagged near a multiple of 47, got %+v", o)
		}
	}
}

func TestRunCycleBacktest_DiscoversEventsAndEnrichesThem(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1d
	start := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

	seedCandle := func(ts time.Time, close float64) {
		if err := s.Candles().Upsert(ctx, domain.Candle{Symbol: sym, Timeframe: tf, Timestamp: ts, Close: close}); err != nil {
			t.Fatalf("seed candle: %v", err)
		}
	}
	seedCandle(start, 100)
	seedCandle(start.Add(24*time.Hour), 88) // event 1
	next := start.AddDate(0, 0, 47)
	seedCandle(next, 105)
	seedCandle(next.Add(24*time.Hour), 92) // event 2

	if err := s.Celestial().Upsert(ctx, domain.CelestialState{Date: start.Add(24 * time.Hour), SolarEclipse: true}); err != nil {
		t.Fatalf("seed celestial: %v", err)
	}

	report, err := RunCycleBacktest(ctx, s, sym, tf, start.Add(-time.Hour), next.AddDate(0, 0, 2), 47, 2, 10, 48*time.Hour)
	if err != nil {
		t.Fatalf("RunCycleBacktest: %v", err)
	}
	if report.EventCount != 2 {
		t.Fatalf("expected 2 discovered drawdown events, got %d: %+v", report.EventCount, report.Events)
	}
	if len(report.Intervals) != 1 || report.Intervals[0] != 47 {
		t.Errorf("expected a single 47-day interval between the two events, got %v", report.Intervals)
	}
	if len(report.Enrichments) != 2 {
		t.Fatalf("expected one enrichment per event, got %d", len(report.Enrichments))
	}
	if report.Enrichments[0].Celestial == nil || !report.Enrichments[0].Celestial.SolarEclipse {
		t.Errorf("expected the first event's enrichment to carry the seeded solar eclipse, got %+v", report.Enrichments[0])
	}
}

func TestChiSquaredUpperTail_ZeroStatReturnsPValueOne(t *testing.T) {
	if p := chiSquaredUpperTail(0, 3); p != 1 {
		t.Errorf("expected p=1 for chi2=0, got %v", p)
	}
}
