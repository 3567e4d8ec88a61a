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

type rawMetricRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type rawMetricRowDB struct {
	Source  string          `db:"source"`
	Symbol  sql.NullString  `db:"symbol"`
	Ts      time.Time       `db:"ts"`
	Metrics json.RawMessage `db:"metrics"`
}

func (r *rawMetricRepo) Upsert(ctx context.Context, row domain.RawMetricRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metricsJSON, err := json.Marshal(row.Metrics)
	if err != nil {
		return fmt.Errorf("postgres: marshal raw metrics: %w", err)
	}

	var symbol sql.NullString
	if row.Symbol != nil {
		symbol = sql.NullString{String: string(*row.Symbol), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO raw_metrics (source, symbol, ts, metrics)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, symbol, ts) DO UPDATE SET metrics = EXCLUDED.metrics`,
		row.Source, symbol, row.Timestamp, metricsJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert raw metric: %w", err)
	}
	return nil
}

func (r *rawMetricRepo) Newest(ctx context.Context, source string, symbol *domain.SymbolId, asOf time.Time) (*domain.RawMetricRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s sql.NullString
	if symbol != nil {
		s = sql.NullString{String: string(*symbol), Valid: true}
	}

	var row rawMetricRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT source, symbol, ts, metrics FROM raw_metrics
		WHERE source = $1 AND symbol IS NOT DISTINCT FROM $2 AND ts <= $3
		ORDER BY ts DESC LIMIT 1`, source, s, asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: newest raw metric: %w", err)
	}
	out := rawMetricRowFromDB(row)
	return &out, nil
}

func (r *rawMetricRepo) Range(ctx context.Context, source string, symbol *domain.SymbolId, tr domain.TimeRange) ([]domain.RawMetricRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s sql.NullString
	if symbol != nil {
		s = sql.NullString{String: string(*symbol), Valid: true}
	}

	var rows []rawMetricRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT source, symbol, ts, metrics FROM raw_metrics
		WHERE source = $1 AND symbol IS NOT DISTINCT FROM $2 AND ts >= $3 AND ts < $4
		ORDER BY ts ASC`, source, s, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("postgres: range raw metrics: %w", err)
	}
	out := make([]domain.RawMetricRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, rawMetricRowFromDB(row))
	}
	return out, nil
}

func rawMetricRowFromDB(row rawMetricRowDB) domain.RawMetricRow {
	out := domain.RawMetricRow{Source: row.Source, Timestamp: row.Ts}
	if row.Symbol.Valid {
		s := domain.SymbolId(row.Symbol.String)
		out.Symbol = &s
	}
	_ = json.Unmarshal(row.Metrics, &out.Metrics)
	return out
}
