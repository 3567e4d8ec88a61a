package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/confluence"
	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// RunSignalBacktest walks [cfg.From, cfg.To) in cfg.Step increments, handing
// the confluence engine a fresh BoundedView clamped to the walker's current
// instant at every step so it can never read a layer score or composite from
// its own future.
func RunSignalBacktest(ctx context.Context, live store.Store, cfg SignalBacktestConfig) (SignalBacktestReport, error) {
	report := SignalBacktestReport{Config: cfg}

	var open *Trade
	closePrice := func(symbol domain.SymbolId, at time.Time) (float64, error) {
		candles, err := live.Candles().Latest(ctx, symbol, cfg.Timeframe, at.Add(time.Nanosecond), 1)
		if err != nil || len(candles) == 0 {
			return 0, fmt.Errorf("backtest: no close at %s: %w", at, err)
		}
		return candles[0].Close, nil
	}

	for t := cfg.From; t.Before(cfg.To); t = t.Add(cfg.Step) {
		// BoundedView rejects any read at or after its asOf, so it must be
		// set one instant past t: the engine computing the composite AT t
		// needs to read layer scores timestamped AT OR BEFORE t.
		bounded := store.NewBoundedView(live, t.Add(time.Nanosecond))
		engine := confluence.NewEngine(bounded)

		composite, err := engine.ComputeComposite(ctx, cfg.Symbol, cfg.Timeframe, t)
		if err != nil {
			continue // missing weight profile or total staleness at this instant; skip the tick
		}

		switch {
		case open == nil && composite.Composite >= cfg.EnterAt:
			price, err := closePrice(cfg.Symbol, t)
			if err != nil {
				continue
			}
			_ = price
			open = &Trade{Symbol: cfg.Symbol, EnterAt: t, EnterSide: 1}
		case open == nil && composite.Composite <= -cfg.EnterAt:
			open = &Trade{Symbol: cfg.Symbol, EnterAt: t, EnterSide: -1}

		case open != nil && (abs(composite.Composite) <= cfg.ExitAt || t.Sub(open.EnterAt) >= cfg.MaxHold):
			open.ExitAt = t
			entryPrice, errE := closePrice(cfg.Symbol, open.EnterAt)
			exitPrice, errX := closePrice(cfg.Symbol, t)
			if errE == nil && errX == nil && entryPrice != 0 {
				open.ReturnPct = open.EnterSide * (exitPrice - entryPrice) / entryPrice * 100
			}
			report.Trades = append(report.Trades, *open)
			open = nil
		}
	}

	report.WinRate, report.AvgReturn, report.TotalReturn, report.MaxDrawdown, report.SharpeRatio = summarize(report.Trades)
	return report, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func summarize(trades []Trade) (winRate, avgReturn, totalReturn, maxDrawdown, sharpe float64) {
	if len(trades) == 0 {
		return 0, 0, 0, 0, 0
	}
	wins := 0
	equity := 0.0
	peak := 0.0
	for _, tr := range trades {
		if tr.ReturnPct > 0 {
			wins++
		}
		totalReturn += tr.ReturnPct
		equity += tr.ReturnPct
		if equity > peak {
			peak = equity
		}
		if drawdown := peak - equity; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	winRate = float64(wins) / float64(len(trades))
	avgReturn = totalReturn / float64(len(trades))
	sharpe = sharpeRatio(trades, avgReturn)
	return winRate, avgReturn, totalReturn, maxDrawdown, sharpe
}

// sharpeRatio is the mean trade return over its sample standard deviation, a
// risk-adjusted ratio in the spirit of the Sharpe ratio but computed per
// trade rather than per period (spec §4.6). Returns 0 for fewer than two
// trades or a zero-variance sample.
func sharpeRatio(trades []Trade, meanReturn float64) float64 {
	if len(trades) < 2 {
		return 0
	}
	var sumSq float64
	for _, tr := range trades {
		d := tr.ReturnPct - meanReturn
		sumSq += d * d
	}
	variance := sumSq / float64(len(trades)-1)
	if variance <= 0 {
		return 0
	}
	return meanReturn / math.Sqrt(variance)
}

// OptimizeWeights grid-searches candidate weight profiles, running a full
// signal backtest under each and returning the results sorted best-first by
// the risk-adjusted Sharpe ratio rather than raw total return, so a
// volatile high-return candidate doesn't outrank a steadier one. Candidates
// are the caller's responsibility to generate (a coarse grid over the
// simplex is cheap enough to enumerate outside this function) since the
// search space's resolution is a deployment choice, not a fixed algorithm
// property.
func OptimizeWeights(ctx context.Context, live store.Store, cfg SignalBacktestConfig, candidates []map[domain.Layer]float64) ([]WeightSearchResult, error) {
	results := make([]WeightSearchResult, 0, len(candidates))
	for _, weights := range candidates {
		if err := domain.ValidateWeightSum(weights); err != nil {
			continue
		}
		profile := domain.WeightProfile{ID: "backtest-candidate", Name: "candidate", Weights: weights, Active: true}
		if err := live.WeightProfiles().Upsert(ctx, profile); err != nil {
			return nil, fmt.Errorf("backtest: stage candidate weights: %w", err)
		}
		if err := live.WeightProfiles().Activate(ctx, profile.ID); err != nil {
			return nil, fmt.Errorf("backtest: activate candidate weights: %w", err)
		}

		report, err := RunSignalBacktest(ctx, live, cfg)
		if err != nil {
			return nil, err
		}
		results = append(results, WeightSearchResult{
			Weights: weights, TotalReturn: report.TotalReturn, WinRate: report.WinRate, SharpeRatio: report.SharpeRatio,
		})
	}

	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].SharpeRatio > results[i].SharpeRatio {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	return results, nil
}
