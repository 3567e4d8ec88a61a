// Package config loads the application's single YAML configuration file and
// applies environment variable overrides, grounded on the teacher's
// internal/infrastructure/db.LoadAppConfig (gopkg.in/yaml.v3, a nested
// per-concern section struct, env overrides applied after parse, defaults
// filled in afterward) — expanded from database-only to every subsystem
// this program wires at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/confluence/internal/cache"
	"github.com/sawpanic/confluence/internal/httpapi"
	"github.com/sawpanic/confluence/internal/scheduler"
	"github.com/sawpanic/confluence/internal/store/postgres"
)

// AppConfig is the root of the YAML document.
type AppConfig struct {
	Database  postgres.Config   `yaml:"database"`
	HTTP      HTTPSection       `yaml:"http"`
	Cache     CacheSection      `yaml:"cache"`
	Scheduler scheduler.Config  `yaml:"scheduler"`
	Ingest    map[string]RateLimitSection `yaml:"ingest"`
	Universe  UniverseSection   `yaml:"universe"`
}

// UniverseSection lists the symbols/timeframes the scheduler iterates over
// for every symbol-scoped layer and the confluence engine, plus the
// benchmark symbol/timeframe the numerology producer's price-cycle
// sub-signal checks against.
type UniverseSection struct {
	Symbols             []string `yaml:"symbols"`
	Timeframes          []string `yaml:"timeframes"`
	BenchmarkSymbol     string   `yaml:"benchmark_symbol"`
	BenchmarkTimeframe  string   `yaml:"benchmark_timeframe"`
	NumerologyWatchedNumber int  `yaml:"numerology_watched_number"`
}

func (u UniverseSection) withDefaults() UniverseSection {
	if len(u.Symbols) == 0 {
		u.Symbols = []string{"BTC/USDT", "ETH/USDT"}
	}
	if len(u.Timeframes) == 0 {
		u.Timeframes = []string{"1h"}
	}
	if u.BenchmarkSymbol == "" {
		u.BenchmarkSymbol = u.Symbols[0]
	}
	if u.BenchmarkTimeframe == "" {
		u.BenchmarkTimeframe = "1d"
	}
	if u.NumerologyWatchedNumber == 0 {
		u.NumerologyWatchedNumber = 11
	}
	return u
}

// HTTPSection mirrors httpapi.Config but with YAML-friendly string durations.
type HTTPSection struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	IdleTimeout  string `yaml:"idle_timeout"`
}

// CacheSection mirrors cache.Options for YAML decoding.
type CacheSection struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitSection configures one ingestor's token-bucket limiter.
type RateLimitSection struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func defaultRateLimit() RateLimitSection {
	return RateLimitSection{RequestsPerSecond: 1, Burst: 2}
}

// Resolved is AppConfig after env overrides, defaulting, and type
// conversion into the shapes each subsystem's constructor expects.
type Resolved struct {
	Database  postgres.Config
	HTTP      httpapi.Config
	Cache     cache.Options
	Scheduler scheduler.Resolved
	Ingest    map[string]RateLimitSection
	Universe  UniverseSection
}

// Load reads path (if it exists), applies CONFLUENCE_*-prefixed env
// overrides plus the unprefixed HTTP_PORT the way the teacher overrides PG_*
// variables, fills in
// defaults, and resolves every section into its runtime shape.
func Load(path string) (Resolved, error) {
	var raw AppConfig
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return Resolved{}, fmt.Errorf("config: read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return Resolved{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyDatabaseEnvOverrides(&raw.Database)
	applyHTTPEnvOverrides(&raw.HTTP)
	applyCacheEnvOverrides(&raw.Cache)

	fillDatabaseDefaults(&raw.Database)
	fillHTTPDefaults(&raw.HTTP)

	httpCfg, err := resolveHTTP(raw.HTTP)
	if err != nil {
		return Resolved{}, err
	}

	schedulerCfg, err := scheduler.LoadFromValue(raw.Scheduler)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: scheduler section: %w", err)
	}

	if raw.Ingest == nil {
		raw.Ingest = map[string]RateLimitSection{}
	}

	return Resolved{
		Database: raw.Database,
		HTTP:     httpCfg,
		Cache: cache.Options{
			Addr:         orDefault(raw.Cache.Addr, "127.0.0.1:6379"),
			Password:     raw.Cache.Password,
			DB:           raw.Cache.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		},
		Scheduler: schedulerCfg,
		Ingest:    raw.Ingest,
		Universe:  raw.Universe.withDefaults(),
	}, nil
}

// RateLimitFor returns the configured limiter settings for source, or a
// conservative default (1 req/s, burst 2) when unconfigured.
func (r Resolved) RateLimitFor(source string) RateLimitSection {
	if rl, ok := r.Ingest[source]; ok {
		return rl
	}
	return defaultRateLimit()
}

func applyDatabaseEnvOverrides(cfg *postgres.Config) {
	if dsn := os.Getenv("CONFLUENCE_PG_DSN"); dsn != "" {
		cfg.DSN = dsn
	}
	if v := os.Getenv("CONFLUENCE_PG_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxOpenConns = n
		}
	}
	if v := os.Getenv("CONFLUENCE_PG_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIdleConns = n
		}
	}
	if v := os.Getenv("CONFLUENCE_PG_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("CONFLUENCE_PG_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueryTimeout = d
		}
	}
}

func fillDatabaseDefaults(cfg *postgres.Config) {
	def := postgres.DefaultConfig()
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = def.MaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
}

func applyHTTPEnvOverrides(cfg *HTTPSection) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("CONFLUENCE_HTTP_HOST"); v != "" {
		cfg.Host = v
	}
}

func fillHTTPDefaults(cfg *HTTPSection) {
	def := httpapi.DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.ReadTimeout == "" {
		cfg.ReadTimeout = def.ReadTimeout.String()
	}
	if cfg.WriteTimeout == "" {
		cfg.WriteTimeout = def.WriteTimeout.String()
	}
	if cfg.IdleTimeout == "" {
		cfg.IdleTimeout = def.IdleTimeout.String()
	}
}

func resolveHTTP(s HTTPSection) (httpapi.Config, error) {
	read, err := time.ParseDuration(s.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, fmt.Errorf("config: http.read_timeout: %w", err)
	}
	write, err := time.ParseDuration(s.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, fmt.Errorf("config: http.write_timeout: %w", err)
	}
	idle, err := time.ParseDuration(s.IdleTimeout)
	if err != nil {
		return httpapi.Config{}, fmt.Errorf("config: http.idle_timeout: %w", err)
	}
	return httpapi.Config{
		Host: s.Host, Port: s.Port,
		ReadTimeout: read, WriteTimeout: write, IdleTimeout: idle,
	}, nil
}

func applyCacheEnvOverrides(cfg *CacheSection) {
	if v := os.Getenv("CONFLUENCE_REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CONFLUENCE_REDIS_PASSWORD"); v != "" {
		cfg.Password = v
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
