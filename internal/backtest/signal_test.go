package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func seedAllLayers(t *testing.T, s *storetest.Store, sym domain.SymbolId, tf domain.Timeframe, ts time.Time, score float64) {
	t.Helper()
	ctx := context.Background()
	write := func(layer domain.Layer, symbol *domain.SymbolId, timeframe *domain.Timeframe) {
		if err := s.LayerScores().Upsert(ctx, domain.LayerScoreRow{Layer: layer, Symbol: symbol, Timeframe: timeframe, Timestamp: ts, Score: score}); err != nil {
			t.Fatalf("seed layer %s: %v", layer, err)
		}
	}
	write(domain.LayerTA, &sym, &tf)
	write(domain.LayerOnChain, &sym, nil)
	write(domain.LayerSentiment, &sym, nil)
	write(domain.LayerCelestial, nil, nil)
	write(domain.LayerNumerology, nil, nil)
	write(domain.LayerPolitical, nil, nil)
	write(domain.LayerMacro, nil, nil)
}

func TestRunSignalBacktest_OpensAndForceClosesAtMaxHold(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.WeightProfiles().Upsert(ctx, domain.WeightProfile{ID: "default", Weights: domain.DefaultWeights(), Active: true}); err != nil {
		t.Fatalf("seed weights: %v", err)
	}
	seedAllLayers(t, s, sym, tf, t0, 0.9)

	if err := s.Candles().Upsert(ctx, domain.Candle{Symbol: sym, Timeframe: tf, Timestamp: t0, Close: 100}); err != nil {
		t.Fatalf("seed entry candle: %v", err)
	}
	if err := s.Candles().Upsert(ctx, domain.Candle{Symbol: sym, Timeframe: tf, Timestamp: t0.Add(2 * time.Hour), Close: 110}); err != nil {
		t.Fatalf("seed exit candle: %v", err)
	}

	cfg := SignalBacktestConfig{
		Symbol: sym, Timeframe: tf,
		From: t0, To: t0.Add(3 * time.Hour), Step: time.Hour,
		EnterAt: 0.5, ExitAt: 0.1, MaxHold: 2 * time.Hour,
	}
	report, err := RunSignalBacktest(ctx, s, cfg)
	if err != nil {
		t.Fatalf("RunSignalBacktest: %v", err)
	}
	if len(report.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade forced closed at max hold, got %d: %+v", len(report.Trades), report.Trades)
	}
	tr := report.Trades[0]
	if tr.EnterSide != 1 {
		t.Errorf("expected a long entry given a strongly positive composite, got side=%v", tr.EnterSide)
	}
	if tr.ReturnPct <= 0 {
		t.Errorf("expected a positive return (100 -> 110 long), got %v", tr.ReturnPct)
	}
}

func TestSummarize_ComputesSharpeRatioFromTradeDispersion(t *testing.T) {
	trades := []Trade{{ReturnPct: 5}, {ReturnPct: -2}, {ReturnPct: 3}, {ReturnPct: 1}}
	winRate, avgReturn, totalReturn, _, sharpe := summarize(trades)
	if winRate != 0.75 {
		t.Errorf("expected win rate 0.75, got %v", winRate)
	}
	if totalReturn != 7 {
		t.Errorf("expected total return 7, got %v", totalReturn)
	}
	if avgReturn != 1.75 {
		t.Errorf("expected avg return 1.75, got %v", avgReturn)
	}
	if sharpe == 0 {
		t.Error("expected a nonzero Sharpe ratio for a dispersed, net-positive trade series")
	}
}

func TestSummarize_SharpeRatioZeroForFewerThanTwoTrades(t *testing.T) {
	_, _, _, _, sharpe := summarize([]Trade{{ReturnPct: 5}})
	if sharpe != 0 {
		t.Errorf("expected Sharpe ratio 0 for a single trade, got %v", sharpe)
	}
}

func TestOptimizeWeights_RanksBySharpeRatioDescending(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedAllLayers(t, s, sym, tf, t0, 0.9)
	if err := s.Candles().Upsert(ctx, domain.Candle{Symbol: sym, Timeframe: tf, Timestamp: t0, Close: 100}); err != nil {
		t.Fatalf("seed entry candle: %v", err)
	}
	if err := s.Candles().Upsert(ctx, domain.Candle{Symbol: sym, Timeframe: tf, Timestamp: t0.Add(time.Hour), Close: 110}); err != nil {
		t.Fatalf("seed exit candle: %v", err)
	}

	cfg := SignalBacktestConfig{
		Symbol: sym, Timeframe: tf,
		From: t0, To: t0.Add(2 * time.Hour), Step: time.Hour,
		EnterAt: 0.5, ExitAt: 0.1, MaxHold: time.Hour,
	}
	candidates := []map[domain.Layer]float64{domain.DefaultWeights(), domain.DefaultWeights()}
	results, err := OptimizeWeights(ctx, s, cfg, candidates)
	if err != nil {
		t.Fatalf("OptimizeWeights: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].SharpeRatio > results[i-1].SharpeRatio {
			t.Errorf("expected results sorted by Sharpe ratio descending, got %+v", results)
		}
	}
}

func TestRunSignalBacktest_NoTradesWhenCompositeNeverCrossesEntry(t *testing.T) {
	s := storetest.New()
	ctx := context.Background()
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1h
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.WeightProfiles().Upsert(ctx, domain.WeightProfile{ID: "default", Weights: domain.DefaultWeights(), Active: true}); err != nil {
		t.Fatalf("seed weights: %v", err)
	}
	seedAllLayers(t, s, sym, tf, t0, 0.05) // near-zero, never crosses 0.5

	cfg := SignalBacktestConfig{
		Symbol: sym, Timeframe: tf,
		From: t0, To: t0.Add(2 * time.Hour), Step: time.Hour,
		EnterAt: 0.5, ExitAt: 0.1, MaxHold: time.Hour,
	}
	report, err := RunSignalBacktest(ctx, s, cfg)
	if err != nil {
		t.Fatalf("RunSignalBacktest: %v", err)
	}
	if len(report.Trades) != 0 {
		t.Errorf("expected no trades, got %+v", report.Trades)
	}
}
