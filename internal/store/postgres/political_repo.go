package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

type politicalEventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type politicalEventRowDB struct {
	ID                string          `db:"id"`
	Title             string          `db:"title"`
	ScheduledAt       time.Time       `db:"scheduled_at"`
	Category          string          `db:"category"`
	Volatility        string          `db:"volatility"`
	ExpectedDirection float64         `db:"expected_direction"`
	CryptoRelevance   float64         `db:"crypto_relevance"`
	ActualDirection   sql.NullFloat64 `db:"actual_direction"`
	ActualImpact      sql.NullFloat64 `db:"actual_impact"`
}

func (r *politicalEventRepo) Upsert(ctx context.Context, e domain.PoliticalEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var actualDir, actualImpact sql.NullFloat64
	if e.ActualDirection != nil {
		actualDir = sql.NullFloat64{Float64: *e.ActualDirection, Valid: true}
	}
	if e.ActualImpact != nil {
		actualImpact = sql.NullFloat64{Float64: *e.ActualImpact, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO political_events (id, title, scheduled_at, category, volatility, expected_direction, crypto_relevance, actual_direction, actual_impact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, scheduled_at = EXCLUDED.scheduled_at, category = EXCLUDED.category,
			volatility = EXCLUDED.volatility, expected_direction = EXCLUDED.expected_direction,
			crypto_relevance = EXCLUDED.crypto_relevance, actual_direction = EXCLUDED.actual_direction,
			actual_impact = EXCLUDED.actual_impact`,
		e.ID, e.Title, e.ScheduledAt, e.Category, string(e.Volatility), e.ExpectedDirection, e.CryptoRelevance,
		actualDir, actualImpact)
	if err != nil {
		return fmt.Errorf("postgres: upsert political event: %w", err)
	}
	return nil
}

func (r *politicalEventRepo) UpcomingWithin(ctx context.Context, asOf time.Time, horizon time.Duration) ([]domain.PoliticalEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []politicalEventRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, title, scheduled_at, category, volatility, expected_direction, crypto_relevance, actual_direction, actual_impact
		FROM political_events
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`,
		asOf, asOf.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("postgres: upcoming political events: %w", err)
	}
	out := make([]domain.PoliticalEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, politicalEventRowFromDB(row))
	}
	return out, nil
}

func (r *politicalEventRepo) Get(ctx context.Context, id string) (*domain.PoliticalEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row politicalEventRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT id, title, scheduled_at, category, volatility, expected_direction, crypto_relevance, actual_direction, actual_impact
		FROM political_events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get political event: %w", err)
	}
	out := politicalEventRowFromDB(row)
	return &out, nil
}

func politicalEventRowFromDB(row politicalEventRowDB) domain.PoliticalEvent {
	out := domain.PoliticalEvent{
		ID:                row.ID,
		Title:             row.Title,
		ScheduledAt:       row.ScheduledAt,
		Category:          row.Category,
		Volatility:        domain.PoliticalEventVolatility(row.Volatility),
		ExpectedDirection: row.ExpectedDirection,
		CryptoRelevance:   row.CryptoRelevance,
	}
	if row.ActualDirection.Valid {
		v := row.ActualDirection.Float64
		out.ActualDirection = &v
	}
	if row.ActualImpact.Valid {
		v := row.ActualImpact.Float64
		out.ActualImpact = &v
	}
	return out
}
