package scheduler

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk scheduler configuration (spec §5), generalizing the
// teacher's jobs.yaml global block to the fixed producer/confluence/alert
// pipeline this system runs instead of ad-hoc scan jobs.
type Config struct {
	Global GlobalConfig `yaml:"global"`
}

// GlobalConfig holds tunables that apply to every job rather than being
// per-job configuration, mirroring the teacher's GlobalConfig split.
type GlobalConfig struct {
	Workers            int     `yaml:"workers"`
	DefaultLeaseTTL    string  `yaml:"default_lease_ttl"`
	DrainTimeout       string  `yaml:"drain_timeout"`
	JitterFraction     float64 `yaml:"jitter_fraction"`
	ConfluenceOffset   string  `yaml:"confluence_offset"`
}

// Resolved is Config with its duration strings parsed and defaults applied.
type Resolved struct {
	Workers          int
	DefaultLeaseTTL  time.Duration
	DrainTimeout     time.Duration
	JitterFraction   float64
	ConfluenceOffset time.Duration
}

// LoadConfig reads and resolves the scheduler's YAML configuration,
// defaulting anything left unset the way the teacher's loadConfig does.
func LoadConfig(path string) (Resolved, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Resolved{}, fmt.Errorf("scheduler: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Resolved{}, fmt.Errorf("scheduler: parse config: %w", err)
	}
	return resolve(cfg)
}

// LoadFromValue resolves an already-decoded Config, for callers (like
// internal/config) that parse one combined YAML document themselves rather
// than handing this package a file path.
func LoadFromValue(cfg Config) (Resolved, error) {
	return resolve(cfg)
}

func resolve(cfg Config) (Resolved, error) {
	out := Resolved{
		Workers:        cfg.Global.Workers,
		JitterFraction: cfg.Global.JitterFraction,
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.JitterFraction <= 0 {
		out.JitterFraction = 0.1
	}

	var err error
	if out.DefaultLeaseTTL, err = parseDurationOr(cfg.Global.DefaultLeaseTTL, 5*time.Minute); err != nil {
		return Resolved{}, fmt.Errorf("scheduler: default_lease_ttl: %w", err)
	}
	if out.DrainTimeout, err = parseDurationOr(cfg.Global.DrainTimeout, 30*time.Second); err != nil {
		return Resolved{}, fmt.Errorf("scheduler: drain_timeout: %w", err)
	}
	if out.ConfluenceOffset, err = parseDurationOr(cfg.Global.ConfluenceOffset, 30*time.Second); err != nil {
		return Resolved{}, fmt.Errorf("scheduler: confluence_offset: %w", err)
	}
	return out, nil
}

func parseDurationOr(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
