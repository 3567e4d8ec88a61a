// Package indicators implements the technical-analysis math the TA score
// producer consumes. Adapted from the teacher's plain-math, Wilder-smoothing
// style (no third-party TA library surfaced anywhere in the retrieved
// examples, so this stays on math.* by necessity — see DESIGN.md).
package indicators

import "math"

// RSIResult is the outcome of a Wilder-smoothed RSI calculation.
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateRSI computes the Relative Strength Index over prices.
func CalculateRSI(prices []float64, period int) RSIResult {
	if len(prices) < period+1 {
		return RSIResult{Value: 50.0, Period: period, IsValid: false, DataCount: len(prices)}
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
	}

	if avgLoss == 0 {
		return RSIResult{Value: 100.0, Period: period, IsValid: true, DataCount: len(prices)}
	}
	rs := avgGain / avgLoss
	return RSIResult{Value: 100.0 - (100.0 / (1.0 + rs)), Period: period, IsValid: true, DataCount: len(prices)}
}

// PriceBar is an OHLC bar for indicators that need the full range.
type PriceBar struct {
	High  float64
	Low   float64
	Close float64
}

// ATRResult is the outcome of a Wilder-smoothed Average True Range.
type ATRResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateATR computes the Average True Range over bars.
func CalculateATR(bars []PriceBar, period int) ATRResult {
	if len(bars) < period+1 {
		return ATRResult{Period: period, IsValid: false, DataCount: len(bars)}
	}

	trueRanges := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		atr = atr*(1-alpha) + trueRanges[i]*alpha
	}

	return ATRResult{Value: atr, Period: period, IsValid: true, DataCount: len(bars)}
}

// ADXResult is the outcome of an Average Directional Index calculation.
type ADXResult struct {
	ADX       float64 `json:"adx"`
	PDI       float64 `json:"pdi"`
	MDI       float64 `json:"mdi"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateADX computes trend strength via the Average Directional Index.
func CalculateADX(bars []PriceBar, period int) ADXResult {
	if len(bars) < period*2+1 {
		return ADXResult{Period: period, IsValid: false, DataCount: len(bars)}
	}

	trueRanges := make([]float64, len(bars)-1)
	plusDM := make([]float64, len(bars)-1)
	minusDM := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))

		plusMove := bars[i].High - bars[i-1].High
		minusMove := bars[i-1].Low - bars[i].Low
		if plusMove > minusMove && plusMove > 0 {
			plusDM[i-1] = plusMove
		}
		if minusMove > plusMove && minusMove > 0 {
			minusDM[i-1] = minusMove
		}
	}

	smoothedTR, smoothedPlus, smoothedMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smoothedTR += trueRanges[i]
		smoothedPlus += plusDM[i]
		smoothedMinus += minusDM[i]
	}

	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		smoothedTR = smoothedTR*(1-alpha) + trueRanges[i]*alpha
		smoothedPlus = smoothedPlus*(1-alpha) + plusDM[i]*alpha
		smoothedMinus = smoothedMinus*(1-alpha) + minusDM[i]*alpha
	}

	var pdi, mdi, adx float64
	if smoothedTR > 0 {
		pdi = 100.0 * smoothedPlus / smoothedTR
		mdi = 100.0 * smoothedMinus / smoothedTR
		if sum := pdi + mdi; sum > 0 {
			adx = 100.0 * math.Abs(pdi-mdi) / sum
		}
	}

	return ADXResult{ADX: adx, PDI: pdi, MDI: mdi, Period: period, IsValid: true, DataCount: len(bars)}
}

// HurstResult is the outcome of an R/S Hurst exponent estimate.
type HurstResult struct {
	Exponent  float64 `json:"exponent"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
	Strength  string  `json:"strength"`
}

// CalculateHurstExponent estimates trend persistence via rescaled-range analysis.
func CalculateHurstExponent(prices []float64, period int) HurstResult {
	if len(prices) < period {
		return HurstResult{Exponent: 0.5, Period: period, IsValid: false, DataCount: len(prices), Strength: "insufficient_data"}
	}
	recent := prices
	if len(prices) > period {
		recent = prices[len(prices)-period:]
	}

	logReturns := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		if recent[i] > 0 && recent[i-1] > 0 {
			logReturns = append(logReturns, math.Log(recent[i]/recent[i-1]))
		}
	}
	if len(logReturns) < 10 {
		return HurstResult{Exponent: 0.5, Period: period, IsValid: false, DataCount: len(prices), Strength: "insufficient_data"}
	}

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	cum := make([]float64, len(logReturns))
	cum[0] = logReturns[0] - mean
	for i := 1; i < len(logReturns); i++ {
		cum[i] = cum[i-1] + (logReturns[i] - mean)
	}

	maxDev, minDev := cum[0], cum[0]
	for _, d := range cum {
		maxDev = math.Max(maxDev, d)
		minDev = math.Min(minDev, d)
	}
	rRange := maxDev - minDev

	variance := 0.0
	for _, r := range logReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(logReturns) - 1)
	stdDev := math.Sqrt(variance)

	rsRatio := 1.0
	if stdDev > 0 {
		rsRatio = rRange / stdDev
	}

	hurst := 0.5
	n := float64(len(logReturns))
	if rsRatio > 0 && n > 1 {
		hurst = math.Log(rsRatio) / math.Log(n)
	}
	hurst = math.Max(0, math.Min(1, hurst))

	strength := "random"
	switch {
	case hurst > 0.55:
		strength = "persistent"
	case hurst < 0.45:
		strength = "mean_reverting"
	}

	return HurstResult{Exponent: hurst, Period: period, IsValid: true, DataCount: len(prices), Strength: strength}
}

// MACDResult is the outcome of a Moving Average Convergence/Divergence calculation.
type MACDResult struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateMACD computes MACD(fast, slow, signal) over the full price series,
// returning one result per bar so the caller can detect a signal-line cross
// on the most recent two bars.
func CalculateMACD(prices []float64, fast, slow, signal int) []MACDResult {
	if len(prices) < slow+signal {
		return nil
	}
	emaFast := ema(prices, fast)
	emaSlow := ema(prices, slow)

	// ema() returns len(prices)-period+1 points, the first at bar period-1, so
	// the MACD line starts at bar slow-1.
	macdLine := make([]float64, len(prices))
	for i := slow - 1; i < len(prices); i++ {
		macdLine[i] = emaFast[i-fast+1] - emaSlow[i-slow+1]
	}
	signalLine := ema(macdLine[slow-1:], signal)

	out := make([]MACDResult, len(prices))
	for i := range prices {
		out[i] = MACDResult{Line: macdLine[i], DataCount: i + 1}
	}
	for i, sig := range signalLine {
		idx := slow - 1 + signal - 1 + i
		if idx >= len(out) {
			break
		}
		out[idx].Signal = sig
		out[idx].Histogram = out[idx].Line - sig
		out[idx].IsValid = true
	}
	return out
}

// ema computes the exponential moving average series of prices with the
// given period, seeding with an SMA of the first `period` values exactly as
// Wilder-style smoothing is seeded elsewhere in this package.
func ema(prices []float64, period int) []float64 {
	if len(prices) < period {
		return nil
	}
	out := make([]float64, len(prices)-period+1)
	sma := 0.0
	for i := 0; i < period; i++ {
		sma += prices[i]
	}
	sma /= float64(period)
	out[0] = sma

	k := 2.0 / float64(period+1)
	prev := sma
	for i := period; i < len(prices); i++ {
		prev = prices[i]*k + prev*(1-k)
		out[i-period+1] = prev
	}
	return out
}

// StochResult is the outcome of a slow stochastic oscillator calculation.
type StochResult struct {
	K         float64 `json:"k"`
	D         float64 `json:"d"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateStochastic computes %K (smoothed over kSmooth) and %D (SMA of %K
// over dPeriod) for the most recent bar.
func CalculateStochastic(bars []PriceBar, lookback, kSmooth, dPeriod int) StochResult {
	if len(bars) < lookback+kSmooth+dPeriod {
		return StochResult{IsValid: false, DataCount: len(bars)}
	}

	rawK := make([]float64, len(bars)-lookback+1)
	for i := lookback - 1; i < len(bars); i++ {
		window := bars[i-lookback+1 : i+1]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if hi == lo {
			rawK[i-lookback+1] = 50.0
			continue
		}
		rawK[i-lookback+1] = 100.0 * (bars[i].Close - lo) / (hi - lo)
	}

	smoothedK := sma(rawK, kSmooth)
	if len(smoothedK) < dPeriod {
		return StochResult{IsValid: false, DataCount: len(bars)}
	}
	dLine := sma(smoothedK, dPeriod)

	return StochResult{
		K:         smoothedK[len(smoothedK)-1],
		D:         dLine[len(dLine)-1],
		IsValid:   true,
		DataCount: len(bars),
	}
}

func sma(series []float64, period int) []float64 {
	if len(series) < period {
		return nil
	}
	out := make([]float64, len(series)-period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += series[i]
	}
	out[0] = sum / float64(period)
	for i := period; i < len(series); i++ {
		sum += series[i] - series[i-period]
		out[i-period+1] = sum / float64(period)
	}
	return out
}

// SMASeries is a thin exported wrapper around sma for callers outside this
// package that need the full moving-average series (e.g. golden-cross detection).
func SMASeries(prices []float64, period int) []float64 { return sma(prices, period) }

// BollingerResult is the outcome of a Bollinger Bands calculation for the
// most recent bar.
type BollingerResult struct {
	Middle    float64 `json:"middle"`
	Upper     float64 `json:"upper"`
	Lower     float64 `json:"lower"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateBollinger computes Bollinger Bands(period, numStdDev) for the most
// recent close.
func CalculateBollinger(prices []float64, period int, numStdDev float64) BollingerResult {
	if len(prices) < period {
		return BollingerResult{IsValid: false, DataCount: len(prices)}
	}
	window := prices[len(prices)-period:]
	mean := 0.0
	for _, p := range window {
		mean += p
	}
	mean /= float64(period)

	variance := 0.0
	for _, p := range window {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)

	return BollingerResult{
		Middle:    mean,
		Upper:     mean + numStdDev*stdDev,
		Lower:     mean - numStdDev*stdDev,
		IsValid:   true,
		DataCount: len(prices),
	}
}

// SwingPoint is a zig-zag pivot: a local high or low surviving the N-bar
// reversal filter.
type SwingPoint struct {
	Index int
	Price float64
	High  bool
}

// ZigZagSwings detects local pivots using an N-bar lookback/lookahead window:
// a bar is a swing high if it is the maximum high within N bars on either
// side (swing low symmetrically for lows). Consecutive same-direction
// candidates collapse to the most extreme one.
func ZigZagSwings(bars []PriceBar, n int) []SwingPoint {
	if n < 1 || len(bars) < 2*n+1 {
		return nil
	}
	var swings []SwingPoint
	for i := n; i < len(bars)-n; i++ {
		window := bars[i-n : i+n+1]
		isHigh, isLow := true, true
		for _, b := range window {
			if b.High > bars[i].High {
				isHigh = false
			}
			if b.Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, SwingPoint{Index: i, Price: bars[i].High, High: true})
		} else if isLow {
			swings = append(swings, SwingPoint{Index: i, Price: bars[i].Low, High: false})
		}
	}
	return collapseSwings(swings)
}

func collapseSwings(swings []SwingPoint) []SwingPoint {
	if len(swings) == 0 {
		return nil
	}
	out := []SwingPoint{swings[0]}
	for _, s := range swings[1:] {
		last := &out[len(out)-1]
		if s.High == last.High {
			if (s.High && s.Price > last.Price) || (!s.High && s.Price < last.Price) {
				*last = s
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// FibonacciLevels computes retracement levels between a swing's high and low.
func FibonacciLevels(high, low float64) map[string]float64 {
	diff := high - low
	return map[string]float64{
		"0.0":   high,
		"0.236": high - 0.236*diff,
		"0.382": high - 0.382*diff,
		"0.5":   high - 0.5*diff,
		"0.618": high - 0.618*diff,
		"0.786": high - 0.786*diff,
		"1.0":   low,
	}
}
