package indicators

import "testing"

func TestCalculateRSI_AllGainsIsHundred(t *testing.T) {
	prices := make([]float64, 0, 15)
	p := 100.0
	for i := 0; i < 15; i++ {
		prices = append(prices, p)
		p += 1
	}
	out := CalculateRSI(prices, 14)
	if !out.IsValid {
		t.Fatal("expected a valid RSI result")
	}
	if out.Value != 100.0 {
		t.Errorf("expected RSI=100 for an unbroken uptrend, got %v", out.Value)
	}
}

func TestCalculateRSI_InsufficientDataIsInvalid(t *testing.T) {
	out := CalculateRSI([]float64{1, 2, 3}, 14)
	if out.IsValid {
		t.Error("expected IsValid=false with fewer than period+1 prices")
	}
}

func TestSMASeries_GoldenCross(t *testing.T) {
	// A rising price series should eventually show a short SMA crossing
	// above a long SMA — the golden-cross condition the TA producer watches.
	prices := make([]float64, 220)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	sma50 := SMASeries(prices, 50)
	sma200 := SMASeries(prices, 200)

	lastShort := sma50[len(sma50)-1]
	// Align sma200 to the same final index: sma200 has 21 points (220-200+1=21),
	// sma50 has 171 points (220-50+1=171); both end at index len(prices)-1.
	lastLong := sma200[len(sma200)-1]

	if lastShort <= lastLong {
		t.Errorf("expected SMA50 (%v) above SMA200 (%v) in a sustained uptrend", lastShort, lastLong)
	}
}

func TestCalculateBollinger_FlatSeriesHasZeroWidth(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 50.0
	}
	out := CalculateBollinger(prices, 20, 2.0)
	if !out.IsValid {
		t.Fatal("expected a valid Bollinger result")
	}
	if out.Upper != out.Lower {
		t.Errorf("expected zero-width bands on a flat series, got upper=%v lower=%v", out.Upper, out.Lower)
	}
}

func TestZigZagSwings_DetectsSingleVShape(t *testing.T) {
	bars := []PriceBar{
		{High: 110, Low: 105, Close: 108},
		{High: 108, Low: 100, Close: 102},
		{High: 102, Low: 90, Close: 95}, // the low pivot
		{High: 108, Low: 95, Close: 105},
		{High: 115, Low: 105, Close: 112},
	}
	swings := ZigZagSwings(bars, 2)
	if len(swings) == 0 {
		t.Fatal("expected at least one swing point")
	}
	found := false
	for _, s := range swings {
		if !s.High && s.Index == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the V-shape's low at index 2 to register as a swing low, got %+v", swings)
	}
}

func TestFibonacciLevels_EndpointsMatchHighLow(t *testing.T) {
	levels := FibonacciLevels(200, 100)
	if levels["0.0"] != 200 {
		t.Errorf("expected 0.0 level to equal high, got %v", levels["0.0"])
	}
	if levels["1.0"] != 100 {
		t.Errorf("expected 1.0 level to equal low, got %v", levels["1.0"])
	}
	if levels["0.5"] != 150 {
		t.Errorf("expected 0.5 retracement at midpoint, got %v", levels["0.5"])
	}
}
