package ingest

import "github.com/sawpanic/confluence/internal/store"

// NewSentiment pulls the Fear & Greed index plus optional social sentiment
// scores from a vendor such as Alternative.me or LunarCrush.
func NewSentiment(s store.RawMetricStore, fetch RawMetricFetchFunc, rps float64, burst int) Ingestor {
	return newRawMetricIngestor("sentiment", s, fetch, rps, burst)
}
