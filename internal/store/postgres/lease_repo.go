package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type leaseRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Acquire is the scheduler's only mutex primitive (spec §5): a conditional
// UPDATE-or-INSERT that succeeds exactly when no live lease is held by a
// different owner. now() is evaluated inside Postgres so concurrent callers
// race on a single authoritative clock rather than drifting worker clocks.
func (r *leaseRepo) Acquire(ctx context.Context, jobName, ownerID string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	expiresAt := fmt.Sprintf("now() + interval '%d seconds'", int(ttl.Seconds()))

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO job_leases (job_name, owner_id, expires_at)
		VALUES ($1, $2, %s)
		ON CONFLICT (job_name) DO UPDATE SET
			owner_id = EXCLUDED.owner_id, expires_at = EXCLUDED.expires_at
		WHERE job_leases.expires_at < now() OR job_leases.owner_id = EXCLUDED.owner_id`, expiresAt),
		jobName, ownerID)
	if err != nil {
		return false, fmt.Errorf("postgres: acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: acquire lease rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// INSERT ... ON CONFLICT DO UPDATE with a WHERE clause reports zero rows
	// affected both when blocked by a live foreign lease and, on some
	// Postgres versions, when the conflicting row is this owner's own
	// still-live lease. Disambiguate with a direct read.
	var currentOwner string
	err = r.db.GetContext(ctx, &currentOwner, `
		SELECT owner_id FROM job_leases WHERE job_name = $1 AND expires_at >= now()`, jobName)
	if err != nil {
		return false, nil
	}
	return currentOwner == ownerID, nil
}

func (r *leaseRepo) Release(ctx context.Context, jobName, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM job_leases WHERE job_name = $1 AND owner_id = $2`, jobName, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: release lease: %w", err)
	}
	return nil
}
