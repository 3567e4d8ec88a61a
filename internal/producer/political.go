package producer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// politicalProducer blends scheduled-event proximity, recent news flow, and
// narrative clustering into a single global score, with a black-swan
// override that bypasses the weighted blend entirely (spec §4.2 Political).
type politicalProducer struct {
	store store.Store
}

func NewPolitical(s store.Store) Producer { return &politicalProducer{store: s} }

func (p *politicalProducer) Layer() domain.Layer      { return domain.LayerPolitical }
func (p *politicalProducer) Cadence() time.Duration   { return time.Hour }
func (p *politicalProducer) Staleness() time.Duration { return 2 * time.Hour }

func (p *politicalProducer) Produce(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, at time.Time) (ProduceResult, error) {
	news, err := p.store.News().Since(ctx, at, 72*time.Hour)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("political producer: fetch news: %w", err)
	}

	if blackSwan, sign := detectBlackSwan(news, at); blackSwan {
		score := domain.ClampScore(0.8 * sign)
		row := domain.LayerScoreRow{
			Layer: domain.LayerPolitical, Timestamp: at, Score: score,
			Indicators: map[string]interface{}{"black_swan_override": true},
		}
		if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
			return ProduceResult{}, fmt.Errorf("political producer: upsert: %w", err)
		}
		return ProduceResult{Row: row}, nil
	}

	events, err := p.store.PoliticalEvents().UpcomingWithin(ctx, at, 7*24*time.Hour)
	if err != nil {
		return ProduceResult{}, fmt.Errorf("political producer: fetch events: %w", err)
	}

	calendarProximity, highVolZone := scoreCalendarProximity(events, at)
	newsFlow := scoreNewsFlow(news, at)
	narrative := scoreNarrative(news, at)

	score := domain.ClampScore(0.30*calendarProximity + 0.35*newsFlow + 0.35*narrative)
	payload := map[string]interface{}{
		"calendar_proximity": calendarProximity,
		"news_flow":          newsFlow,
		"narrative":          narrative,
		"high_vol_zone":      highVolZone,
	}

	row := domain.LayerScoreRow{Layer: domain.LayerPolitical, Timestamp: at, Score: score, Indicators: payload}
	if err := p.store.LayerScores().Upsert(ctx, row); err != nil {
		return ProduceResult{}, fmt.Errorf("political producer: upsert: %w", err)
	}
	return ProduceResult{Row: row}, nil
}

// detectBlackSwan finds any article within the last hour with urgency>0.9
// and relevance>0.9, returning the override sign from that article's sentiment.
func detectBlackSwan(news []domain.NewsItem, at time.Time) (bool, float64) {
	for _, item := range news {
		if at.Sub(item.Timestamp) > time.Hour {
			continue
		}
		if item.Urgency > 0.9 && item.Relevance > 0.9 {
			if item.Sentiment >= 0 {
				return true, 1
			}
			return true, -1
		}
	}
	return false, 0
}

// scoreCalendarProximity sums expectedDirection*relevance*decay(hours) over
// events in the next 7 days, with the extreme-unknown-direction override.
func scoreCalendarProximity(events []domain.PoliticalEvent, at time.Time) (score float64, highVolZone bool) {
	for _, e := range events {
		hours := e.ScheduledAt.Sub(at).Hours()
		if hours < 0 {
			hours = 0
		}
		if hours <= 24 && e.Volatility == domain.VolatilityExtreme && e.ExpectedDirection == 0 {
			highVolZone = true
			continue
		}
		decay := math.Max(0, 1-hours/168)
		score += e.ExpectedDirection * e.CryptoRelevance * decay
	}
	if highVolZone {
		return 0, true
	}
	return domain.ClampScore(score), false
}

// scoreNewsFlow weights relevant articles from the last 24h by sentiment,
// relevance, urgency, and a 6h half-life age decay, boosting 1.5x on high
// mention velocity.
func scoreNewsFlow(news []domain.NewsItem, at time.Time) float64 {
	const halfLifeHours = 6.0
	const velocityThreshold = 5.0

	sum, n := 0.0, 0
	for _, item := range news {
		age := at.Sub(item.Timestamp)
		if age > 24*time.Hour || age < 0 {
			continue
		}
		if item.Relevance <= 0.3 {
			continue
		}
		ageHours := age.Hours()
		decay := math.Exp(-math.Ln2 * ageHours / halfLifeHours)
		weight := item.Sentiment * item.Relevance * item.Urgency * decay
		if item.MentionVelocity > velocityThreshold {
			weight *= 1.5
		}
		sum += weight
		n++
	}
	if n == 0 {
		return 0
	}
	return domain.ClampScore(sum / float64(n))
}

// scoreNarrative identifies clusters of >=5 articles in the last 72h sharing
// a category+subcategory with consistent sentiment sign, and scores the
// dominant cluster by article-count saturation.
func scoreNarrative(news []domain.NewsItem, at time.Time) float64 {
	type clusterKey struct{ category, subcategory string }
	clusters := map[clusterKey][]domain.NewsItem{}
	for _, item := range news {
		if at.Sub(item.Timestamp) > 72*time.Hour {
			continue
		}
		k := clusterKey{item.Category, item.Subcategory}
		clusters[k] = append(clusters[k], item)
	}

	var dominant float64
	var dominantCount int
	for _, items := range clusters {
		if len(items) < 5 {
			continue
		}
		sign := consistentSign(items)
		if sign == 0 {
			continue
		}
		if len(items) > dominantCount {
			dominantCount = len(items)
			dominant = sign
		}
	}
	if dominantCount == 0 {
		return 0
	}
	magnitude := math.Min(1, float64(dominantCount)/20.0)
	return domain.ClampScore(magnitude * dominant)
}

func consistentSign(items []domain.NewsItem) float64 {
	pos, neg := 0, 0
	for _, item := range items {
		switch {
		case item.Sentiment > 0:
			pos++
		case item.Sentiment < 0:
			neg++
		}
	}
	switch {
	case pos > 0 && neg == 0:
		return 1
	case neg > 0 && pos == 0:
		return -1
	default:
		return 0
	}
}

func (p *politicalProducer) Backfill(ctx context.Context, _ domain.SymbolId, _ domain.Timeframe, r domain.TimeRange) (int, error) {
	n := 0
	for ts := r.From; ts.Before(r.To); ts = ts.Add(time.Hour) {
		if _, err := p.Produce(ctx, "", "", ts); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
