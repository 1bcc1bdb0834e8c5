package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"ENV", "PORT", "RESET_SCHEDULE", "RATE_LIMIT_BURST", "ENTITLEMENT_CACHE_TTL", "DEFAULT_PLAN", "COUNT_ON_RESET"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.ResetSchedule != "5 0 * * *" {
		t.Fatalf("unexpected reset schedule %q", cfg.ResetSchedule)
	}
	if cfg.RateLimitBurst != 10 {
		t.Fatalf("expected burst 10, got %d", cfg.RateLimitBurst)
	}
	if cfg.EntitlementCacheTTL != time.Minute {
		t.Fatalf("expected cache ttl 1m, got %s", cfg.EntitlementCacheTTL)
	}
	if cfg.DefaultPlan != "free" {
		t.Fatalf("expected default plan free, got %q", cfg.DefaultPlan)
	}
	if cfg.CountOnReset {
		t.Fatalf("expected count-on-reset disabled by default")
	}
}

func TestLoadOverridesAndInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost/mealplan")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("ENTITLEMENT_CACHE_TTL", "30s")
	t.Setenv("COUNT_ON_RESET", "true")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Fatalf("expected rps 0.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 10 {
		t.Fatalf("expected invalid burst to fall back to 10, got %d", cfg.RateLimitBurst)
	}
	if cfg.EntitlementCacheTTL != 30*time.Second {
		t.Fatalf("expected ttl 30s, got %s", cfg.EntitlementCacheTTL)
	}
	if !cfg.CountOnReset {
		t.Fatalf("expected count-on-reset enabled")
	}
	if len(cfg.CORSAllowOrigin) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowOrigin)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CRON_SECRET", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nCRON_SECRET=\"from-file\"\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg := Load()
	if cfg.CronSecret != "from-file" {
		t.Fatalf("expected cron secret from .env, got %q", cfg.CronSecret)
	}
}

func TestDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("REDIS_URL", "redis://deployed:6379/0")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("export REDIS_URL='redis://local:6379/0'\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg := Load()
	if cfg.RedisURL != "redis://deployed:6379/0" {
		t.Fatalf("expected process env to win, got %q", cfg.RedisURL)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"PORT=9090", "PORT", "9090", true},
		{"export ENV=staging", "ENV", "staging", true},
		{`DEFAULT_PLAN="pro"`, "DEFAULT_PLAN", "pro", true},
		{"CRON_SECRET='s3cr=t'", "CRON_SECRET", "s3cr=t", true},
		{"# comment", "", "", false},
		{"NOVALUE", "", "", false},
		{"=orphan", "", "orphan", false},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if ok != tc.ok || (ok && (key != tc.key || val != tc.val)) {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, val, ok)
		}
	}
}
