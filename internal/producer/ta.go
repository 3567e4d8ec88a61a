package producer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/domain/indicators"
	"github.com/sawpanic/confluence/internal/store"
)

// lookbackBars is the candle history pulled per Produce call — enough for
// SMA200 plus the zig-zag/Fibonacci swing detection window.
const lookbackBars = 260

// taProducer computes the TA layer score from OHLCV history (spec §4.2 TA).
type taProducer struct {
	store store.Store
}

func NewTA(s store.Store) Producer { return &taProducer{store: s} }

func (p *taProducer) Layer() domain.Layer    { return domain.LayerTA }
func (p *taProducer) Cadence() time.Duration { return time.Hour }

// Staleness reports the 1h-timeframe default (2x a 1h bar); the confluence
// engine applies the timeframe-scaled 2·timeframe rule directly per spec
// §4.3 step 1 rather than through this interface, since staleness there
// depends on the timeframe being evaluated, not a producer-wide constant.
func (p *taProducer) Staleness() time.Duration { return 2 * time.Hour }

func (p *taProducer) Produce(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, at time.Time) (ProduceResult, error) {
	candles, err := p.store.Candles().Latest(ctx, symbol, tf, at, lookbackBars)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("ta producer: fetch candles: %w", err)
	}
	if len(candles) < 210 {
		row := domain.LayerScoreRow{
			Layer: domain.LayerTA, Symbol: &symbol, Timeframe: &tf, Timestamp: at,
			Score: 0, Degraded: true,
			Indicators: map[string]interface{}{"reason": "insufficient_history", "bars": len(candles)},
		}
		if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
			return ProduceResult{}, err
		}
		return ProduceResult{Row: row, Degraded: true}, nil
	}

	closes := make([]float64, len(candles))
	bars := make([]indicators.PriceBar, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		bars[i] = indicators.PriceBar{High: c.High, Low: c.Low, Close: c.Close}
	}

	score, payload := scoreTA(closes, bars)

	row := domain.LayerScoreRow{
		Layer: domain.LayerTA, Symbol: &symbol, Timeframe: &tf, Timestamp: at,
		Score: score, Indicators: payload,
	}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("ta producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

// scoreTA implements the TA sub-signal table and composite rule of spec §4.2.
func scoreTA(closes []float64, bars []indicators.PriceBar) (float64, map[string]interface{}) {
	last := len(closes) - 1

	rsi := indicators.CalculateRSI(closes, 14)
	atr := indicators.CalculateATR(bars, 14)

	var signals []subSignal

	if rsi.IsValid {
		switch {
		case rsi.Value > 70:
			signals = append(signals, subSignal{"rsi", -(rsi.Value - 70) / 30})
		case rsi.Value < 30:
			signals = append(signals, subSignal{"rsi", (30 - rsi.Value) / 30})
		}
	}

	macd := indicators.CalculateMACD(closes, 12, 26, 9)
	if len(macd) > last && macd[last].IsValid && last > 0 && macd[last-1].IsValid {
		prevDiff := macd[last-1].Line - macd[last-1].Signal
		curDiff := macd[last].Line - macd[last].Signal
		if prevDiff <= 0 && curDiff > 0 {
			signals = append(signals, subSignal{"macd_cross", 0.3})
		} else if prevDiff >= 0 && curDiff < 0 {
			signals = append(signals, subSignal{"macd_cross", -0.3})
		}
	}

	bb := indicators.CalculateBollinger(closes, 20, 2)
	if bb.IsValid {
		switch {
		case closes[last] < bb.Lower:
			signals = append(signals, subSignal{"bollinger", 0.3})
		case closes[last] > bb.Upper:
			signals = append(signals, subSignal{"bollinger", -0.3})
		}
	}

	sma20 := indicators.SMASeries(closes, 20)
	sma50 := indicators.SMASeries(closes, 50)
	sma200 := indicators.SMASeries(closes, 200)
	if goldenCross, deathCross := crossWithinBars(sma50, sma200, 3); goldenCross {
		signals = append(signals, subSignal{"sma_cross", 0.4})
	} else if deathCross {
		signals = append(signals, subSignal{"sma_cross", -0.4})
	}

	if atr.IsValid {
		if swings := indicators.ZigZagSwings(bars, 20); len(swings) >= 2 {
			hi, lo := recentSwingHighLow(swings)
			if hi > lo {
				levels := indicators.FibonacciLevels(hi, lo)
				trend := trendSign(sma20)
				if nearFib(closes[last], levels, 0.25*atr.Value) && trend != 0 {
					signals = append(signals, subSignal{"fibonacci", trend * 0.2})
				}
			}
		}
	}

	score, payload := compositeFromSubSignals(signals)
	payload["rsi14"] = rsi.Value
	payload["atr14"] = atr.Value
	return score, payload
}

// crossWithinBars reports whether fast crossed above (golden) or below
// (death) slow at any of the trailing `window` aligned points.
func crossWithinBars(fast, slow []float64, window int) (golden, death bool) {
	n := minInt(len(fast), len(slow))
	if n < 2 {
		return false, false
	}
	fast = fast[len(fast)-n:]
	slow = slow[len(slow)-n:]
	start := n - window
	if start < 1 {
		start = 1
	}
	for i := start; i < n; i++ {
		prevDiff := fast[i-1] - slow[i-1]
		curDiff := fast[i] - slow[i]
		if prevDiff <= 0 && curDiff > 0 {
			golden = true
		}
		if prevDiff >= 0 && curDiff < 0 {
			death = true
		}
	}
	return golden, death
}

func recentSwingHighLow(swings []indicators.SwingPoint) (high, low float64) {
	last := swings[len(swings)-1]
	prev := swings[len(swings)-2]
	if last.High {
		return last.Price, prev.Price
	}
	return prev.Price, last.Price
}

func nearFib(price float64, levels map[string]float64, tolerance float64) bool {
	for _, lv := range levels {
		if math.Abs(price-lv) <= tolerance {
			return true
		}
	}
	return false
}

func trendSign(sma []float64) float64 {
	if len(sma) < 2 {
		return 0
	}
	diff := sma[len(sma)-1] - sma[len(sma)-2]
	switch {
	case diff > 0:
		return 1
	case diff < 0:
		return -1
	default:
		return 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Backfill recomputes the TA layer score for every candle close in r,
// re-upserting at each timestamp — repeat runs converge to the same row
// count (spec §8 scenario 6).
func (p *taProducer) Backfill(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, r domain.TimeRange) (int, error) {
	candles, err := p.store.Candles().Range(ctx, symbol, tf, r)
	if err != nil {
		return 0, fmt.Errorf("ta producer: backfill range: %w", err)
	}
	n := 0
	for _, c := range candles {
		if _, err := p.Produce(ctx, symbol, tf, c.Timestamp); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
