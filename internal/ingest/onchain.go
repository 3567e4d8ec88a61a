package ingest

import (
	"context"
	"fmt"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// RawMetricFetchFunc fetches one batch of named numeric readings from a
// single vendor for an optional symbol.
type RawMetricFetchFunc func(ctx context.Context) (domain.RawMetricRow, error)

type rawMetricIngestor struct {
	guard *guard
	store store.RawMetricStore
	fetch RawMetricFetchFunc
}

func newRawMetricIngestor(source string, s store.RawMetricStore, fetch RawMetricFetchFunc, rps float64, burst int) Ingestor {
	return &rawMetricIngestor{guard: newGuard(source, rps, burst), store: s, fetch: fetch}
}

func (r *rawMetricIngestor) Name() string { return r.guard.name }

func (r *rawMetricIngestor) Pull(ctx context.Context) (int, error) {
	result, err := r.guard.call(ctx, func() (interface{}, error) {
		return r.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	row := result.(domain.RawMetricRow)
	if err := r.store.Upsert(ctx, row); err != nil {
		return 0, fmt.Errorf("ingest %s: upsert: %w", r.guard.name, err)
	}
	return 1, nil
}

// NewOnChain pulls on-chain analytics (netflow, NUPL, MVRV-Z, SOPR) from a
// vendor such as Glassnode or CryptoQuant.
func NewOnChain(s store.RawMetricStore, fetch RawMetricFetchFunc, rps float64, burst int) Ingestor {
	return newRawMetricIngestor("onchain", s, fetch, rps, burst)
}
