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

type cycleRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type cycleRowDB struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	PeriodDays    int       `db:"period_days"`
	AnchorDate    time.Time `db:"anchor_date"`
	ToleranceDays int       `db:"tolerance_days"`
	Direction     string    `db:"direction"`
	Hits          int64     `db:"hits"`
	Misses        int64     `db:"misses"`
}

func (r *cycleRepo) Get(ctx context.Context, id string) (*domain.CustomCycle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row cycleRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, period_days, anchor_date, tolerance_days, direction, hits, misses
		FROM cycles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get cycle: %w", err)
	}
	out := cycleRowFromDB(row)
	return &out, nil
}

func (r *cycleRepo) List(ctx context.Context) ([]domain.CustomCycle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []cycleRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, period_days, anchor_date, tolerance_days, direction, hits, misses
		FROM cycles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles: %w", err)
	}
	out := make([]domain.CustomCycle, 0, len(rows))
	for _, row := range rows {
		out = append(out, cycleRowFromDB(row))
	}
	return out, nil
}

func (r *cycleRepo) Upsert(ctx context.Context, c domain.CustomCycle) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles (id, name, period_days, anchor_date, tolerance_days, direction, hits, misses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, period_days = EXCLUDED.period_days, anchor_date = EXCLUDED.anchor_date,
			tolerance_days = EXCLUDED.tolerance_days, direction = EXCLUDED.direction`,
		c.ID, c.Name, c.PeriodDays, c.AnchorDate, c.ToleranceDays, string(c.Direction), c.Hits, c.Misses)
	if err != nil {
		return fmt.Errorf("postgres: upsert cycle: %w", err)
	}
	return nil
}

// RecordOutcome atomically increments the hit or miss counter (invariant I4).
func (r *cycleRepo) RecordOutcome(ctx context.Context, id string, hit bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	col := "misses"
	if hit {
		col = "hits"
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE cycles SET %s = %s + 1 WHERE id = $1`, col, col), id)
	if err != nil {
		return fmt.Errorf("postgres: record cycle outcome: %w", err)
	}
	return nil
}

func cycleRowFromDB(row cycleRowDB) domain.CustomCycle {
	return domain.CustomCycle{
		ID:            row.ID,
		Name:          row.Name,
		PeriodDays:    row.PeriodDays,
		AnchorDate:    row.AnchorDate,
		ToleranceDays: row.ToleranceDays,
		Direction:     domain.CycleDirection(row.Direction),
		Hits:          row.Hits,
		Misses:        row.Misses,
	}
}
