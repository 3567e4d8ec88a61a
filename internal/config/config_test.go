package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port == 0 {
		t.Error("expected a default HTTP port")
	}
	if cfg.Scheduler.Workers <= 0 {
		t.Error("expected a default worker count")
	}
	if cfg.Cache.Addr == "" {
		t.Error("expected a default redis address")
	}
}

func TestLoad_ParsesYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "confluence.yaml")
	yaml := `
database:
  dsn: "postgres://localhost/confluence"
http:
  port: 9001
scheduler:
  global:
    workers: 4
    jitter_fraction: 0.2
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFLUENCE_PG_DSN", "postgres://override/confluence")
	t.Setenv("HTTP_PORT", "9500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://override/confluence" {
		t.Errorf("expected env override to win, got %q", cfg.Database.DSN)
	}
	if cfg.HTTP.Port != 9500 {
		t.Errorf("expected HTTP_PORT override to win, got %d", cfg.HTTP.Port)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Errorf("expected workers=4 from yaml, got %d", cfg.Scheduler.Workers)
	}
}

func TestRateLimitFor_DefaultsWhenUnconfigured(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rl := cfg.RateLimitFor("news")
	if rl.RequestsPerSecond <= 0 || rl.Burst <= 0 {
		t.Errorf("expected a conservative default rate limit, got %+v", rl)
	}
}
