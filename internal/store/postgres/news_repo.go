package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

type newsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type newsRowDB struct {
	Ts              time.Time `db:"ts"`
	Source          string    `db:"source"`
	HeadlineHash    string    `db:"headline_hash"`
	Headline        string    `db:"headline"`
	Category        string    `db:"category"`
	Subcategory     string    `db:"subcategory"`
	Sentiment       float64   `db:"sentiment"`
	Relevance       float64   `db:"relevance"`
	Urgency         float64   `db:"urgency"`
	MentionVelocity float64   `db:"mention_velocity"`
}

// Upsert keys on (ts, source, headline_hash) so a re-ingested article from
// the same source never duplicates (spec §3.1 ingestion dedup).
func (r *newsRepo) Upsert(ctx context.Context, n domain.NewsItem) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO news_items (ts, source, headline_hash, headline, category, subcategory, sentiment, relevance, urgency, mention_velocity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ts, source, headline_hash) DO UPDATE SET
			headline = EXCLUDED.headline, category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
			sentiment = EXCLUDED.sentiment, relevance = EXCLUDED.relevance, urgency = EXCLUDED.urgency,
			mention_velocity = EXCLUDED.mention_velocity`,
		n.Timestamp, n.Source, n.HeadlineHash, n.Headline, n.Category, n.Subcategory,
		domain.ClampScore(n.Sentiment), n.Relevance, n.Urgency, n.MentionVelocity)
	if err != nil {
		return fmt.Errorf("postgres: upsert news item: %w", err)
	}
	return nil
}

func (r *newsRepo) Since(ctx context.Context, asOf time.Time, lookback time.Duration) ([]domain.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []newsRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT ts, source, headline_hash, headline, category, subcategory, sentiment, relevance, urgency, mention_velocity
		FROM news_items
		WHERE ts > $1 AND ts <= $2
		ORDER BY ts ASC`,
		asOf.Add(-lookback), asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: news since: %w", err)
	}
	out := make([]domain.NewsItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NewsItem{
			Timestamp:       row.Ts,
			Source:          row.Source,
			HeadlineHash:    row.HeadlineHash,
			Headline:        row.Headline,
			Category:        row.Category,
			Subcategory:     row.Subcategory,
			Sentiment:       row.Sentiment,
			Relevance:       row.Relevance,
			Urgency:         row.Urgency,
			MentionVelocity: row.MentionVelocity,
		})
	}
	return out, nil
}
