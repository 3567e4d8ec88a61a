package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

type candleRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type candleRow struct {
	Symbol    string    `db:"symbol"`
	Timeframe string    `db:"timeframe"`
	Ts        time.Time `db:"ts"`
	Open      float64   `db:"open"`
	High      float64   `db:"high"`
	Low       float64   `db:"low"`
	Close     float64   `db:"close"`
	Volume    float64   `db:"volume"`
	Partition int       `db:"partition_key"`
}

// Upsert inserts or, on a late correction, overwrites the candle at the
// primary key (symbol, timeframe, ts) — spec §3.2 lifecycle.
func (r *candleRepo) Upsert(ctx context.Context, c domain.Candle) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candles (symbol, timeframe, ts, open, high, low, close, volume, partition_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`,
		string(c.Symbol), string(c.Timeframe), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, partitionKey(c.Timestamp))
	if err != nil {
		return fmt.Errorf("postgres: upsert candle: %w", err)
	}
	return nil
}

// UpsertBatch upserts many candles; re-running it on the same batch yields
// exactly one row per primary key (spec §8 round-trip property).
func (r *candleRepo) UpsertBatch(ctx context.Context, cs []domain.Candle) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin batch upsert: %w", err)
	}
	defer tx.Rollback()

	n := 0
	for _, c := range cs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO candles (symbol, timeframe, ts, open, high, low, close, volume, partition_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume`,
			string(c.Symbol), string(c.Timeframe), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, partitionKey(c.Timestamp))
		if err != nil {
			return n, fmt.Errorf("postgres: batch upsert candle %s/%s@%s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit batch upsert: %w", err)
	}
	return n, nil
}

func (r *candleRepo) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []candleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT symbol, timeframe, ts, open, high, low, close, volume, partition_key
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts < $4
		ORDER BY ts ASC`,
		string(symbol), string(tf), tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("postgres: range candles: %w", err)
	}
	return candleRowsToDomain(rows), nil
}

func (r *candleRepo) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time, limit int) ([]domain.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []candleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT symbol, timeframe, ts, open, high, low, close, volume, partition_key
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND ts < $3
		ORDER BY ts DESC
		LIMIT $4`,
		string(symbol), string(tf), asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest candles: %w", err)
	}
	out := candleRowsToDomain(rows)
	// reverse to chronological order for indicator math
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func candleRowsToDomain(rows []candleRow) []domain.Candle {
	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Candle{
			Symbol:    domain.SymbolId(row.Symbol),
			Timeframe: domain.Timeframe(row.Timeframe),
			Timestamp: row.Ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	return out
}
