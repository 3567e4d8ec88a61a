package ingest

import (
	"context"
	"fmt"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// PoliticalEventFetchFunc fetches curated scheduled events (elections,
// central bank decisions, regulatory deadlines) from a calendar vendor.
type PoliticalEventFetchFunc func(ctx context.Context) ([]domain.PoliticalEvent, error)

type politicalEventIngestor struct {
	guard *guard
	store store.PoliticalEventStore
	fetch PoliticalEventFetchFunc
}

// NewPoliticalEvents pulls the scheduled-event calendar.
func NewPoliticalEvents(s store.PoliticalEventStore, fetch PoliticalEventFetchFunc, rps float64, burst int) Ingestor {
	return &politicalEventIngestor{guard: newGuard("political_events", rps, burst), store: s, fetch: fetch}
}

func (p *politicalEventIngestor) Name() string { return p.guard.name }

func (p *politicalEventIngestor) Pull(ctx context.Context) (int, error) {
	result, err := p.guard.call(ctx, func() (interface{}, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	events := result.([]domain.PoliticalEvent)
	for _, ev := range events {
		if err := p.store.Upsert(ctx, ev); err != nil {
			return 0, fmt.Errorf("ingest political_events: upsert: %w", err)
		}
	}
	return len(events), nil
}
