package ingest

import (
	"context"
	"fmt"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// CandleFetchFunc fetches the newest OHLCV bars for a symbol/timeframe from
// whatever exchange or aggregator adapter the deployment wires in.
type CandleFetchFunc func(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe) ([]domain.Candle, error)

type candleIngestor struct {
	guard   *guard
	store   store.CandleStore
	symbol  domain.SymbolId
	tf      domain.Timeframe
	fetch   CandleFetchFunc
}

// NewCandles builds an Ingestor pulling OHLCV bars for one symbol/timeframe
// pair at up to rps requests/sec (burst capacity burst).
func NewCandles(s store.CandleStore, symbol domain.SymbolId, tf domain.Timeframe, fetch CandleFetchFunc, rps float64, burst int) Ingestor {
	name := fmt.Sprintf("candles.%s.%s", symbol, tf)
	return &candleIngestor{guard: newGuard(name, rps, burst), store: s, symbol: symbol, tf: tf, fetch: fetch}
}

func (c *candleIngestor) Name() string { return c.guard.name }

func (c *candleIngestor) Pull(ctx context.Context) (int, error) {
	result, err := c.guard.call(ctx, func() (interface{}, error) {
		return c.fetch(ctx, c.symbol, c.tf)
	})
	if err != nil {
		return 0, err
	}
	candles := result.([]domain.Candle)
	return c.store.UpsertBatch(ctx, candles)
}
