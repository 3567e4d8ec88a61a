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

type alertRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type alertRowDB struct {
	ID             string          `db:"id"`
	CreatedAt      time.Time       `db:"created_at"`
	TriggeredAt    time.Time       `db:"triggered_at"`
	Symbol         sql.NullString  `db:"symbol"`
	Kind           string          `db:"kind"`
	Severity       string          `db:"severity"`
	Title          string          `db:"title"`
	Description    string          `db:"description"`
	TriggerContext json.RawMessage `db:"trigger_context"`
	Status         string          `db:"status"`
	IdempotencyKey string          `db:"idempotency_key"`
}

// Insert writes a brand new alert. Callers must have already checked
// FindActiveByKey for the alert's idempotency key (spec §4.5 step 2) — a
// unique index on (idempotency_key) WHERE status = 'active' backstops the
// invariant against racing schedulers.
func (r *alertRepo) Insert(ctx context.Context, a domain.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctxJSON, err := json.Marshal(a.TriggerContext)
	if err != nil {
		return fmt.Errorf("postgres: marshal trigger context: %w", err)
	}

	var symbol sql.NullString
	if a.Symbol != nil {
		symbol = sql.NullString{String: string(*a.Symbol), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, created_at, triggered_at, symbol, kind, severity, title, description, trigger_context, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) WHERE status = 'active' DO NOTHING`,
		a.ID, a.CreatedAt, a.TriggeredAt, symbol, string(a.Kind), string(a.Severity), a.Title, a.Description,
		ctxJSON, string(a.Status), a.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("postgres: insert alert: %w", err)
	}
	return nil
}

func (r *alertRepo) FindActiveByKey(ctx context.Context, idempotencyKey string) (*domain.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row alertRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT id, created_at, triggered_at, symbol, kind, severity, title, description, trigger_context, status, idempotency_key
		FROM alerts
		WHERE idempotency_key = $1 AND status = 'active'
		LIMIT 1`, idempotencyKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find active alert: %w", err)
	}
	out := alertRowFromDB(row)
	return &out, nil
}

func (r *alertRepo) SetStatus(ctx context.Context, id string, status domain.AlertStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: set alert status: %w", err)
	}
	return nil
}

func (r *alertRepo) ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []alertRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, triggered_at, symbol, kind, severity, title, description, trigger_context, status, idempotency_key
		FROM alerts
		WHERE status = $1
		ORDER BY triggered_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts by status: %w", err)
	}
	out := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, alertRowFromDB(row))
	}
	return out, nil
}

func (r *alertRepo) Get(ctx context.Context, id string) (*domain.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row alertRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT id, created_at, triggered_at, symbol, kind, severity, title, description, trigger_context, status, idempotency_key
		FROM alerts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get alert: %w", err)
	}
	out := alertRowFromDB(row)
	return &out, nil
}

func alertRowFromDB(row alertRowDB) domain.Alert {
	out := domain.Alert{
		ID:             row.ID,
		CreatedAt:      row.CreatedAt,
		TriggeredAt:    row.TriggeredAt,
		Kind:           domain.AlertKind(row.Kind),
		Severity:       domain.AlertSeverity(row.Severity),
		Title:          row.Title,
		Description:    row.Description,
		Status:         domain.AlertStatus(row.Status),
		IdempotencyKey: row.IdempotencyKey,
	}
	if row.Symbol.Valid {
		s := domain.SymbolId(row.Symbol.String)
		out.Symbol = &s
	}
	if len(row.TriggerContext) > 0 {
		_ = json.Unmarshal(row.TriggerContext, &out.TriggerContext)
	}
	return out
}
