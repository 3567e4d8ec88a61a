// Package postgres implements the time-series store contract on Postgres
// using sqlx and lib/pq, upserting on declared primary keys exactly as the
// store's hypertable semantics require (spec §2, §6.3).
package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/confluence/internal/store"
)

// Config mirrors the teacher's db.Config shape (internal/infrastructure/db).
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Open connects to Postgres and returns a Store backed by it.
func Open(cfg Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("postgres store connected")

	return NewStore(db, cfg.QueryTimeout), nil
}

// pgStore aggregates every sub-repository over one *sqlx.DB.
type pgStore struct {
	db      *sqlx.DB
	timeout time.Duration

	candles     *candleRepo
	layerScores *layerScoreRepo
	composites  *compositeRepo
	alerts      *alertRepo
	cursors     *cursorRepo
	weights     *weightProfileRepo
	cycles      *cycleRepo
	political   *politicalEventRepo
	news        *newsRepo
	celestial   *celestialRepo
	numerology  *numerologyRepo
	leases      *leaseRepo
	rawMetrics  *rawMetricRepo
}

// NewStore wires every sub-repository over a shared *sqlx.DB connection.
func NewStore(db *sqlx.DB, timeout time.Duration) store.Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &pgStore{
		db:          db,
		timeout:     timeout,
		candles:     &candleRepo{db, timeout},
		layerScores: &layerScoreRepo{db, timeout},
		composites:  &compositeRepo{db, timeout},
		alerts:      &alertRepo{db, timeout},
		cursors:     &cursorRepo{db, timeout},
		weights:     &weightProfileRepo{db, timeout},
		cycles:      &cycleRepo{db, timeout},
		political:   &politicalEventRepo{db, timeout},
		news:        &newsRepo{db, timeout},
		celestial:   &celestialRepo{db, timeout},
		numerology:  &numerologyRepo{db, timeout},
		leases:      &leaseRepo{db, timeout},
		rawMetrics:  &rawMetricRepo{db, timeout},
	}
}

func (s *pgStore) Candles() store.CandleStore                     { return s.candles }
func (s *pgStore) LayerScores() store.LayerScoreStore              { return s.layerScores }
func (s *pgStore) Composites() store.CompositeStore                { return s.composites }
func (s *pgStore) Alerts() store.AlertStore                        { return s.alerts }
func (s *pgStore) Cursors() store.ConfluenceCursorStore            { return s.cursors }
func (s *pgStore) WeightProfiles() store.WeightProfileStore        { return s.weights }
func (s *pgStore) Cycles() store.CycleStore                        { return s.cycles }
func (s *pgStore) PoliticalEvents() store.PoliticalEventStore      { return s.political }
func (s *pgStore) News() store.NewsStore                           { return s.news }
func (s *pgStore) Celestial() store.CelestialStore                 { return s.celestial }
func (s *pgStore) Numerology() store.NumerologyStore               { return s.numerology }
func (s *pgStore) Leases() store.LeaseStore                        { return s.leases }
func (s *pgStore) RawMetrics() store.RawMetricStore                { return s.rawMetrics }

// partitionKey derives the logical monthly partition key for a timestamp
// (spec §6.3, decided in SPEC_FULL.md Open Questions over physical partitioning).
func partitionKey(t time.Time) int {
	return t.UTC().Year()*100 + int(t.UTC().Month())
}
