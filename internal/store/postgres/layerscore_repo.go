package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

type layerScoreRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type layerScoreRowDB struct {
	Layer      string          `db:"layer"`
	Symbol     sql.NullString  `db:"symbol"`
	Timeframe  sql.NullString  `db:"timeframe"`
	Ts         time.Time       `db:"ts"`
	Score      float64         `db:"score"`
	Degraded   bool            `db:"degraded"`
	Indicators json.RawMessage `db:"indicators"`
}

// Upsert overwrites the row for (layer, symbol?, timeframe?, ts) — layer
// producer reruns at the same key are idempotent (spec §3.2 lifecycle, §8
// round-trip property).
func (r *layerScoreRepo) Upsert(ctx context.Context, row domain.LayerScoreRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	indicatorsJSON, err := json.Marshal(row.Indicators)
	if err != nil {
		return fmt.Errorf("postgres: marshal indicators: %w", err)
	}

	symbol, tf := symbolTFNullable(row.Symbol, row.Timeframe)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO layer_scores (layer, symbol, timeframe, ts, score, degraded, indicators)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (layer, symbol, timeframe, ts) DO UPDATE SET
			score = EXCLUDED.score, degraded = EXCLUDED.degraded, indicators = EXCLUDED.indicators`,
		string(row.Layer), symbol, tf, row.Timestamp, domain.ClampScore(row.Score), row.Degraded, indicatorsJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert layer score: %w", err)
	}
	return nil
}

func (r *layerScoreRepo) Newest(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, asOf time.Time) (*domain.LayerScoreRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s, t := symbolTFNullable(symbol, tf)

	var row layerScoreRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT layer, symbol, timeframe, ts, score, degraded, indicators
		FROM layer_scores
		WHERE layer = $1 AND symbol IS NOT DISTINCT FROM $2 AND timeframe IS NOT DISTINCT FROM $3 AND ts <= $4
		ORDER BY ts DESC
		LIMIT 1`,
		string(layer), s, t, asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: newest layer score: %w", err)
	}
	out := layerScoreRowFromDB(row)
	return &out, nil
}

func (r *layerScoreRepo) Range(ctx context.Context, layer domain.Layer, symbol *domain.SymbolId, tf *domain.Timeframe, tr domain.TimeRange) ([]domain.LayerScoreRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s, t := symbolTFNullable(symbol, tf)

	var rows []layerScoreRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT layer, symbol, timeframe, ts, score, degraded, indicators
		FROM layer_scores
		WHERE layer = $1 AND symbol IS NOT DISTINCT FROM $2 AND timeframe IS NOT DISTINCT FROM $3
		  AND ts >= $4 AND ts < $5
		ORDER BY ts ASC`,
		string(layer), s, t, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("postgres: range layer scores: %w", err)
	}
	out := make([]domain.LayerScoreRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, layerScoreRowFromDB(row))
	}
	return out, nil
}

func symbolTFNullable(symbol *domain.SymbolId, tf *domain.Timeframe) (sql.NullString, sql.NullString) {
	var s, t sql.NullString
	if symbol != nil {
		s = sql.NullString{String: string(*symbol), Valid: true}
	}
	if tf != nil {
		t = sql.NullString{String: string(*tf), Valid: true}
	}
	return s, t
}

func layerScoreRowFromDB(row layerScoreRowDB) domain.LayerScoreRow {
	out := domain.LayerScoreRow{
		Layer:     domain.Layer(row.Layer),
		Timestamp: row.Ts,
		Score:     row.Score,
		Degraded:  row.Degraded,
	}
	if row.Symbol.Valid {
		s := domain.SymbolId(row.Symbol.String)
		out.Symbol = &s
	}
	if row.Timeframe.Valid {
		t := domain.Timeframe(row.Timeframe.String)
		out.Timeframe = &t
	}
	if len(row.Indicators) > 0 {
		_ = json.Unmarshal(row.Indicators, &out.Indicators)
	}
	return out
}
