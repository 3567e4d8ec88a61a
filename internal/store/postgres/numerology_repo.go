package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/confluence/internal/domain"
)

type numerologyRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type numerologyRowDB struct {
	Date               time.Time      `db:"date"`
	DigitSum           int            `db:"digit_sum"`
	UniversalDayNumber int            `db:"universal_day_number"`
	IsMasterNumber     bool           `db:"is_master_number"`
	AlignedCycles      pq.StringArray `db:"aligned_cycles"`
}

func (r *numerologyRepo) Upsert(ctx context.Context, n domain.NumerologyDay) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO numerology_days (date, digit_sum, universal_day_number, is_master_number, aligned_cycles)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			digit_sum = EXCLUDED.digit_sum, universal_day_number = EXCLUDED.universal_day_number,
			is_master_number = EXCLUDED.is_master_number, aligned_cycles = EXCLUDED.aligned_cycles`,
		n.Date, n.DigitSum, n.UniversalDayNumber, n.IsMasterNumber, pq.StringArray(n.AlignedCycles))
	if err != nil {
		return fmt.Errorf("postgres: upsert numerology day: %w", err)
	}
	return nil
}

func (r *numerologyRepo) Get(ctx context.Context, date time.Time) (*domain.NumerologyDay, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row numerologyRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT date, digit_sum, universal_day_number, is_master_number, aligned_cycles
		FROM numerology_days WHERE date = $1`, date.UTC().Truncate(24*time.Hour))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get numerology day: %w", err)
	}
	out := numerologyRowFromDB(row)
	return &out, nil
}

func (r *numerologyRepo) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.NumerologyDay, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	from := asOf.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)

	var rows []numerologyRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date, digit_sum, universal_day_number, is_master_number, aligned_cycles
		FROM numerology_days
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC`, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: range back numerology days: %w", err)
	}
	out := make([]domain.NumerologyDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, numerologyRowFromDB(row))
	}
	return out, nil
}

func numerologyRowFromDB(row numerologyRowDB) domain.NumerologyDay {
	out := domain.NumerologyDay{
		Date:               row.Date,
		DigitSum:           row.DigitSum,
		UniversalDayNumber: row.UniversalDayNumber,
		IsMasterNumber:     row.IsMasterNumber,
	}
	for _, c := range row.AlignedCycles {
		out.AlignedCycles = append(out.AlignedCycles, c)
	}
	return out
}
