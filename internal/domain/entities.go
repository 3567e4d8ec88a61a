package domain

import "time"

// Candle is one OHLCV bar, keyed by (symbol, timeframe, timestamp).
type Candle struct {
	Symbol    SymbolId  `db:"symbol" json:"symbol"`
	Timeframe Timeframe `db:"timeframe" json:"timeframe"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
	Open      float64   `db:"open" json:"open"`
	High      float64   `db:"high" json:"high"`
	Low       float64   `db:"low" json:"low"`
	Close     float64   `db:"close" json:"close"`
	Volume    float64   `db:"volume" json:"volume"`
}

// LayerScoreRow is the common shape written by every producer. Layer-specific
// indicator payloads live in Indicators as a free-form map so the store's
// primary-key/upsert/staleness logic stays uniform across all seven layers.
type LayerScoreRow struct {
	Layer      Layer                  `db:"layer" json:"layer"`
	Symbol     *SymbolId              `db:"symbol" json:"symbol,omitempty"`
	Timeframe  *Timeframe             `db:"timeframe" json:"timeframe,omitempty"`
	Timestamp  time.Time              `db:"ts" json:"timestamp"`
	Score      float64                `db:"score" json:"score"`
	Degraded   bool                   `db:"degraded" json:"degraded"`
	Indicators map[string]interface{} `db:"indicators" json:"indicators,omitempty"`
}

// CelestialState is one civil day's ephemeris-derived snapshot.
type CelestialState struct {
	Date              time.Time          `db:"date" json:"date"`
	LunarPhaseAngle   float64            `db:"lunar_phase_angle" json:"lunar_phase_angle"` // [0,360)
	Illumination      float64            `db:"illumination" json:"illumination"`           // [0,1]
	SolarEclipse      bool               `db:"solar_eclipse" json:"solar_eclipse"`
	LunarEclipse      bool               `db:"lunar_eclipse" json:"lunar_eclipse"`
	Retrograde        map[string]bool    `db:"retrograde" json:"retrograde"`         // planet -> retrograde
	EclipticLongitude map[string]float64 `db:"ecliptic_longitude" json:"ecliptic_longitude"` // planet -> [0,360)
	Aspects           []Aspect           `db:"aspects" json:"aspects"`
	Ingresses         []Ingress          `db:"ingresses" json:"ingresses"`
}

// Aspect is an angular relationship between two bodies within an orb.
type Aspect struct {
	BodyA   string  `json:"body_a"`
	BodyB   string  `json:"body_b"`
	Kind    string  `json:"kind"` // conjunction, square, opposition, trine, sextile
	OrbDeg  float64 `json:"orb_deg"`
}

// Ingress marks a body crossing into a new zodiac sign on this date.
type Ingress struct {
	Body string `json:"body"`
	Sign string `json:"sign"`
}

// NumerologyDay is one civil day's numerological derivation.
type NumerologyDay struct {
	Date               time.Time `db:"date" json:"date"`
	DigitSum           int       `db:"digit_sum" json:"digit_sum"`
	UniversalDayNumber int       `db:"universal_day_number" json:"universal_day_number"`
	IsMasterNumber      bool      `db:"is_master_number" json:"is_master_number"`
	AlignedCycles      []string  `db:"aligned_cycles" json:"aligned_cycles"`
}

// CycleDirection is the expected sign of a custom cycle's contribution.
type CycleDirection string

const (
	CycleDirectionUp   CycleDirection = "up"
	CycleDirectionDown CycleDirection = "down"
	CycleDirectionAny  CycleDirection = "any"
)

// CustomCycle is a named, anchored periodic alignment watched by the
// numerology producer and the alert engine.
type CustomCycle struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	PeriodDays    int            `db:"period_days" json:"period_days"`
	AnchorDate    time.Time      `db:"anchor_date" json:"anchor_date"`
	ToleranceDays int            `db:"tolerance_days" json:"tolerance_days"`
	Direction     CycleDirection `db:"direction" json:"direction"`
	Hits          int64          `db:"hits" json:"hits"`
	Misses        int64          `db:"misses" json:"misses"`
}

// HitRate computes hits/(hits+misses), per invariant I4. Returns 0 when the
// denominator is 0 (no observations yet).
func (c CustomCycle) HitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}

// PoliticalEventVolatility classifies the expected market impact of a
// scheduled political/macro event.
type PoliticalEventVolatility string

const (
	VolatilityLow      PoliticalEventVolatility = "low"
	VolatilityMedium   PoliticalEventVolatility = "medium"
	VolatilityHigh     PoliticalEventVolatility = "high"
	VolatilityExtreme  PoliticalEventVolatility = "extreme"
)

// PoliticalEvent is a curated, scheduled event with pre/post-event fields.
type PoliticalEvent struct {
	ID                string                   `db:"id" json:"id"`
	Title             string                   `db:"title" json:"title"`
	ScheduledAt       time.Time                `db:"scheduled_at" json:"scheduled_at"`
	Category          string                   `db:"category" json:"category"`
	Volatility        PoliticalEventVolatility `db:"volatility" json:"volatility"`
	ExpectedDirection float64                  `db:"expected_direction" json:"expected_direction"` // -1, 0 (unknown), +1
	CryptoRelevance   float64                  `db:"crypto_relevance" json:"crypto_relevance"`     // [0,1]
	ActualDirection   *float64                 `db:"actual_direction" json:"actual_direction,omitempty"`
	ActualImpact      *float64                 `db:"actual_impact" json:"actual_impact,omitempty"`
}

// NewsItem is a classified article keyed by (timestamp, source, headlineHash).
type NewsItem struct {
	Timestamp       time.Time `db:"ts" json:"timestamp"`
	Source          string    `db:"source" json:"source"`
	HeadlineHash    string    `db:"headline_hash" json:"headline_hash"`
	Headline        string    `db:"headline" json:"headline"`
	Category        string    `db:"category" json:"category"`
	Subcategory     string    `db:"subcategory" json:"subcategory"`
	Sentiment       float64   `db:"sentiment" json:"sentiment"` // [-1,1]
	Relevance       float64   `db:"relevance" json:"relevance"` // [0,1]
	Urgency         float64   `db:"urgency" json:"urgency"`     // [0,1]
	MentionVelocity float64   `db:"mention_velocity" json:"mention_velocity"`
}

// CompositeScore is the fused (symbol, timeframe, timestamp) row written by
// the confluence engine.
type CompositeScore struct {
	Symbol        SymbolId           `db:"symbol" json:"symbol"`
	Timeframe     Timeframe          `db:"timeframe" json:"timeframe"`
	Timestamp     time.Time          `db:"ts" json:"timestamp"`
	LayerScores   map[Layer]float64  `db:"layer_scores" json:"layer_scores"`
	WeightsUsed   map[Layer]float64  `db:"weights_used" json:"weights_used"`
	Composite     float64            `db:"composite" json:"composite"`
	Strength      Strength           `db:"strength" json:"strength"`
	AlignedLayers []Layer            `db:"aligned_layers" json:"aligned_layers"`
	StaleLayers   []Layer            `db:"stale_layers" json:"stale_layers,omitempty"`
}

// Alert is a derived notification with a lifecycle status.
type Alert struct {
	ID             string                 `db:"id" json:"id"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	TriggeredAt    time.Time              `db:"triggered_at" json:"triggered_at"`
	Symbol         *SymbolId              `db:"symbol" json:"symbol,omitempty"`
	Kind           AlertKind              `db:"kind" json:"kind"`
	Severity       AlertSeverity          `db:"severity" json:"severity"`
	Title          string                 `db:"title" json:"title"`
	Description    string                 `db:"description" json:"description"`
	TriggerContext map[string]interface{} `db:"trigger_context" json:"trigger_context,omitempty"`
	Status         AlertStatus            `db:"status" json:"status"`
	IdempotencyKey string                 `db:"idempotency_key" json:"idempotency_key"`
}

// WeightProfile is the active set of seven layer weights, summing to 1.
type WeightProfile struct {
	ID        string            `db:"id" json:"id"`
	Name      string            `db:"name" json:"name"`
	Weights   map[Layer]float64 `db:"weights" json:"weights"`
	Active    bool              `db:"active" json:"active"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// DefaultWeights mirrors spec §8 scenario 3's default profile.
func DefaultWeights() map[Layer]float64 {
	return map[Layer]float64{
		LayerTA:         0.22,
		LayerOnChain:    0.18,
		LayerCelestial:  0.14,
		LayerNumerology: 0.10,
		LayerSentiment:  0.14,
		LayerPolitical:  0.14,
		LayerMacro:      0.08,
	}
}

// RawMetricRow is one ingested batch of named numeric readings from an
// external collaborator (on-chain analytics, fear & greed, macro series).
// Producers read the newest row per source to compute their layer score;
// this keeps raw-input storage uniform across onchain/sentiment/macro
// without a bespoke table per upstream vendor.
type RawMetricRow struct {
	Source    string             `db:"source" json:"source"`
	Symbol    *SymbolId          `db:"symbol" json:"symbol,omitempty"`
	Timestamp time.Time          `db:"ts" json:"timestamp"`
	Metrics   map[string]float64 `db:"metrics" json:"metrics"`
}

// MacroRegime is the derived label for the macro producer (spec §4.2).
type MacroRegime string

const (
	RegimeRiskOn      MacroRegime = "risk_on"
	RegimeRiskOff     MacroRegime = "risk_off"
	RegimeEasing      MacroRegime = "easing"
	RegimeTightening  MacroRegime = "tightening"
	RegimeCarryUnwind MacroRegime = "carry_unwind"
	RegimeNeutral     MacroRegime = "neutral"
)
