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

type weightProfileRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type weightProfileRowDB struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Weights   json.RawMessage `db:"weights"`
	Active    bool            `db:"active"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r *weightProfileRepo) Active(ctx context.Context) (*domain.WeightProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row weightProfileRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, weights, active, created_at FROM weight_profiles WHERE active = true LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: active weight profile: %w", err)
	}
	out := weightProfileRowFromDB(row)
	return &out, nil
}

// Upsert writes a profile without changing its active flag.
func (r *weightProfileRepo) Upsert(ctx context.Context, p domain.WeightProfile) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	weightsJSON, err := json.Marshal(p.Weights)
	if err != nil {
		return fmt.Errorf("postgres: marshal weights: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO weight_profiles (id, name, weights, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, weights = EXCLUDED.weights`,
		p.ID, p.Name, weightsJSON, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert weight profile: %w", err)
	}
	return nil
}

// Activate flips exactly one profile to active, enforcing the single-active
// invariant (spec I2) inside one transaction.
func (r *weightProfileRepo) Activate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin activate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE weight_profiles SET active = false WHERE active = true`); err != nil {
		return fmt.Errorf("postgres: deactivate profiles: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE weight_profiles SET active = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: activate profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: activate profile rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres: weight profile %q not found", id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit activate: %w", err)
	}
	return nil
}

func weightProfileRowFromDB(row weightProfileRowDB) domain.WeightProfile {
	out := domain.WeightProfile{
		ID:        row.ID,
		Name:      row.Name,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
	_ = json.Unmarshal(row.Weights, &out.Weights)
	return out
}
