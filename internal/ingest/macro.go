package ingest

import "github.com/sawpanic/confluence/internal/store"

// NewMacro pulls the five macro sub-signal inputs (liquidity, treasury,
// dollar, oil, carry-trade stress) from a vendor such as FRED or a
// commercial macro data aggregator.
func NewMacro(s store.RawMetricStore, fetch RawMetricFetchFunc, rps float64, burst int) Ingestor {
	return newRawMetricIngestor("macro", s, fetch, rps, burst)
}
