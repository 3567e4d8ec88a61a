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

type cursorRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// LastTriggeredAt returns the zero time when no cursor row exists yet, so the
// alert engine's edge-trigger comparison treats an unseen (symbol, timeframe)
// pair as "anything is an edge" on its first evaluation.
func (r *cursorRepo) LastTriggeredAt(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ts time.Time
	err := r.db.GetContext(ctx, &ts, `
		SELECT last_triggered_at FROM confluence_cursors WHERE symbol = $1 AND timeframe = $2`,
		string(symbol), string(tf))
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last triggered at: %w", err)
	}
	return ts, nil
}

func (r *cursorRepo) Advance(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, triggeredAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO confluence_cursors (symbol, timeframe, last_triggered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, timeframe) DO UPDATE SET
			last_triggered_at = GREATEST(confluence_cursors.last_triggered_at, EXCLUDED.last_triggered_at)`,
		string(symbol), string(tf), triggeredAt)
	if err != nil {
		return fmt.Errorf("postgres: advance cursor: %w", err)
	}
	return nil
}
