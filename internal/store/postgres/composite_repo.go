package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/confluence/internal/domain"
)

type compositeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type compositeRowDB struct {
	Symbol        string          `db:"symbol"`
	Timeframe     string          `db:"timeframe"`
	Ts            time.Time       `db:"ts"`
	LayerScores   json.RawMessage `db:"layer_scores"`
	WeightsUsed   json.RawMessage `db:"weights_used"`
	Composite     float64         `db:"composite"`
	Strength      string          `db:"strength"`
	AlignedLayers pq.StringArray  `db:"aligned_layers"`
	StaleLayers   pq.StringArray  `db:"stale_layers"`
}

// Insert appends a composite row. Composite rows for a given (symbol,
// timeframe) are append-only per timestamp (spec O2); out-of-order backfill
// writes are permitted, so this upserts on the primary key rather than
// rejecting duplicates outright, keeping backfill idempotent (spec §8 scenario 6).
func (r *compositeRepo) Insert(ctx context.Context, row domain.CompositeScore) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	layerScoresJSON, err := json.Marshal(row.LayerScores)
	if err != nil {
		return fmt.Errorf("postgres: marshal layer scores: %w", err)
	}
	weightsJSON, err := json.Marshal(row.WeightsUsed)
	if err != nil {
		return fmt.Errorf("postgres: marshal weights used: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO composite_scores (symbol, timeframe, ts, layer_scores, weights_used, composite, strength, aligned_layers, stale_layers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			layer_scores = EXCLUDED.layer_scores, weights_used = EXCLUDED.weights_used,
			composite = EXCLUDED.composite, strength = EXCLUDED.strength,
			aligned_layers = EXCLUDED.aligned_layers, stale_layers = EXCLUDED.stale_layers`,
		string(row.Symbol), string(row.Timeframe), row.Timestamp, layerScoresJSON, weightsJSON,
		domain.ClampScore(row.Composite), string(row.Strength),
		pq.StringArray(layersToStrings(row.AlignedLayers)), pq.StringArray(layersToStrings(row.StaleLayers)))
	if err != nil {
		return fmt.Errorf("postgres: insert composite: %w", err)
	}
	return nil
}

func (r *compositeRepo) Latest(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, asOf time.Time) (*domain.CompositeScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row compositeRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT symbol, timeframe, ts, layer_scores, weights_used, composite, strength, aligned_layers, stale_layers
		FROM composite_scores
		WHERE symbol = $1 AND timeframe = $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT 1`,
		string(symbol), string(tf), asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest composite: %w", err)
	}
	out := compositeRowFromDB(row)
	return &out, nil
}

func (r *compositeRepo) Range(ctx context.Context, symbol domain.SymbolId, tf domain.Timeframe, tr domain.TimeRange) ([]domain.CompositeScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []compositeRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT symbol, timeframe, ts, layer_scores, weights_used, composite, strength, aligned_layers, stale_layers
		FROM composite_scores
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts < $4
		ORDER BY ts ASC`,
		string(symbol), string(tf), tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("postgres: range composites: %w", err)
	}
	out := make([]domain.CompositeScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, compositeRowFromDB(row))
	}
	return out, nil
}

func layersToStrings(layers []domain.Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = string(l)
	}
	return out
}

func compositeRowFromDB(row compositeRowDB) domain.CompositeScore {
	out := domain.CompositeScore{
		Symbol:    domain.SymbolId(row.Symbol),
		Timeframe: domain.Timeframe(row.Timeframe),
		Timestamp: row.Ts,
		Composite: row.Composite,
		Strength:  domain.Strength(row.Strength),
	}
	_ = json.Unmarshal(row.LayerScores, &out.LayerScores)
	_ = json.Unmarshal(row.WeightsUsed, &out.WeightsUsed)
	for _, l := range row.AlignedLayers {
		out.AlignedLayers = append(out.AlignedLayers, domain.Layer(l))
	}
	for _, l := range row.StaleLayers {
		out.StaleLayers = append(out.StaleLayers, domain.Layer(l))
	}
	return out
}
