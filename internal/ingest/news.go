package ingest

import (
	"context"
	"fmt"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// NewsFetchFunc fetches newly classified articles (headline, category,
// sentiment, relevance, urgency, mention velocity) since the ingestor's last
// successful pull.
type NewsFetchFunc func(ctx context.Context) ([]domain.NewsItem, error)

type newsIngestor struct {
	guard *guard
	store store.NewsStore
	fetch NewsFetchFunc
}

// NewNews pulls classified news/social articles from a vendor's NLP feed.
func NewNews(s store.NewsStore, fetch NewsFetchFunc, rps float64, burst int) Ingestor {
	return &newsIngestor{guard: newGuard("news", rps, burst), store: s, fetch: fetch}
}

func (n *newsIngestor) Name() string { return n.guard.name }

func (n *newsIngestor) Pull(ctx context.Context) (int, error) {
	result, err := n.guard.call(ctx, func() (interface{}, error) {
		return n.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	items := result.([]domain.NewsItem)
	for _, item := range items {
		if err := n.store.Upsert(ctx, item); err != nil {
			return 0, fmt.Errorf("ingest news: upsert: %w", err)
		}
	}
	return len(items), nil
}
