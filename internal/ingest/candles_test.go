package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/storetest"
)

func TestCandleIngestor_PullUpsertsFetchedBars(t *testing.T) {
	s := storetest.New()
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1h
	now := time.Now()

	fetch := func(ctx context.Context, symbol domain.SymbolId, timeframe domain.Timeframe) ([]domain.Candle, error) {
		return []domain.Candle{
			{Symbol: symbol, Timeframe: timeframe, Timestamp: now, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		}, nil
	}

	ing := NewCandles(s.Candles(), sym, tf, fetch, 100, 10)
	rows, err := ing.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected 1 row upserted, got %d", rows)
	}

	got, err := s.Candles().Latest(context.Background(), sym, tf, now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stored candle, got %d", len(got))
	}
}

func TestCandleIngestor_PullRetriesThenFails(t *testing.T) {
	s := storetest.New()
	sym, tf := domain.SymbolId("ETH/USDT"), domain.TF1h

	attempts := 0
	fetch := func(ctx context.Context, symbol domain.SymbolId, timeframe domain.Timeframe) ([]domain.Candle, error) {
		attempts++
		return nil, errors.New("upstream unavailable")
	}

	ing := NewCandles(s.Candles(), sym, tf, fetch, 100, 10)
	_, err := ing.Pull(context.Background())
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (bounded retry), got %d", attempts)
	}
}
