// Package backtest replays history through the confluence engine and the
// custom-cycle significance machinery without ever letting either see a row
// from its own future, grounded on the teacher's smoke90/march_aug runners
// (internal/backtest/smoke90, internal/backtest/march_aug in the retrieved
// copy) but driven by store.BoundedView instead of a cache-file walker.
package backtest

import (
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

// Trade is one simulated enter/exit pair from the signal backtest.
type Trade struct {
	Symbol    domain.SymbolId `json:"symbol"`
	EnterAt   time.Time       `json:"enter_at"`
	ExitAt    time.Time       `json:"exit_at"`
	EnterSide float64         `json:"enter_side"` // +1 long, -1 short
	ReturnPct float64         `json:"return_pct"`
}

// SignalBacktestConfig parameterizes a walk-forward replay (spec §4.6).
type SignalBacktestConfig struct {
	Symbol        domain.SymbolId
	Timeframe     domain.Timeframe
	From          time.Time
	To            time.Time
	Step          time.Duration
	EnterAt       float64 // composite threshold to enter, e.g. 0.5
	ExitAt        float64 // composite threshold to exit, e.g. 0.1 (a position closes once |composite| <= ExitAt)
	MaxHold       time.Duration
}

// SignalBacktestReport summarizes a walk-forward replay.
type SignalBacktestReport struct {
	Config      SignalBacktestConfig `json:"config"`
	Trades      []Trade              `json:"trades"`
	WinRate     float64              `json:"win_rate"`
	AvgReturn   float64              `json:"avg_return_pct"`
	TotalReturn float64              `json:"total_return_pct"`
	MaxDrawdown float64              `json:"max_drawdown_pct"`
	SharpeRatio float64              `json:"sharpe_ratio"` // mean(trade return) / stddev(trade return), 0 when fewer than 2 trades
}

// WeightSearchResult is one candidate weight profile tried by the optimizer.
type WeightSearchResult struct {
	Weights     map[domain.Layer]float64 `json:"weights"`
	TotalReturn float64                  `json:"total_return_pct"`
	WinRate     float64                  `json:"win_rate"`
	SharpeRatio float64                  `json:"sharpe_ratio"`
}

// DrawdownEvent is one occurrence of the significance rule: price fell
// drawdownPct or more off its rolling peak within the lookback window.
type DrawdownEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	PeakPrice   float64   `json:"peak_price"`
	TroughPrice float64   `json:"trough_price"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// Enrichment pairs a drawdown event with the celestial/numerology state on
// its date, for the cycle backtester's cross-join step.
type Enrichment struct {
	EventTimestamp time.Time              `json:"event_timestamp"`
	Celestial      *domain.CelestialState `json:"celestial,omitempty"`
	Numerology     *domain.NumerologyDay  `json:"numerology,omitempty"`
}

// ObservedVsExpected is one bucket of the interval histogram compared
// against the uniform-interval null.
type ObservedVsExpected struct {
	IntervalDays int     `json:"interval_days"`
	Observed     int     `json:"observed"`
	Expected     float64 `json:"expected"`
	NearMultiple bool    `json:"near_multiple"` // within tolerance of a k*period candidate
}

// CycleBacktestReport is the output of the cycle significance test: given a
// daily drawdown rule, it discovers whether the resulting event timestamps
// cluster near multiples of a candidate period, rather than validating a
// pre-registered named cycle (spec §4.6).
type CycleBacktestReport struct {
	Period             int                  `json:"period_days"`
	Tolerance          int                  `json:"tolerance_days"`
	EventCount         int                  `json:"event_count"`
	Events             []DrawdownEvent      `json:"events"`
	Intervals          []int                `json:"intervals_days"`
	ObservedVsExpected []ObservedVsExpected `json:"observed_vs_expected"`
	Chi2               float64              `json:"chi2"`
	PValue             float64              `json:"p"`
	Enrichments        []Enrichment         `json:"enrichments"`
}
