package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear envs that Load reads
	os.Unsetenv("APP_ENV")
	os.Unsetenv("HTTP_PORT")
	os.Unsetenv("UPSTREAM_URL")
	os.Unsetenv("UPSTREAM_TIMEOUT_MS")
	os.Unsetenv("PROVIDERS")
	os.Unsetenv("LEDGER_DRIVER")
	os.Unsetenv("DB_PATH")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("DB_DSN")
	os.Unsetenv("RECONCILE_INTERVAL_SEC")
	cfg := Load()
	if cfg.Env != "dev" { t.Fatalf("expected dev, got %s", cfg.Env) }
	if cfg.HttpPort != "8080" { t.Fatalf("expected 8080, got %s", cfg.HttpPort) }
	if cfg.UpstreamTimeout != 10*time.Second { t.Fatalf("expected 10s timeout, got %s", cfg.UpstreamTimeout) }
	if cfg.LedgerDriver != "sqlite" { t.Fatalf("expected sqlite, got %s", cfg.LedgerDriver) }
	if len(cfg.Providers) != 1 || cfg.Providers[0] != "azure" { t.Fatalf("expected default azure provider, got %v", cfg.Providers) }
	if cfg.ReconcileInterval != 5*time.Minute { t.Fatalf("expected 5m reconcile interval, got %s", cfg.ReconcileInterval) }
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("APP_ENV", "prod")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("UPSTREAM_URL", "https://provisioner.example.com/")
	os.Setenv("UPSTREAM_TIMEOUT_MS", "2500")
	os.Setenv("PROVIDERS", "azure, aws ,gcp")
	os.Setenv("LEDGER_DRIVER", "postgres")
	os.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	os.Setenv("RECONCILE_INTERVAL_SEC", "0")
	t.Cleanup(func() {
		os.Unsetenv("APP_ENV"); os.Unsetenv("HTTP_PORT"); os.Unsetenv("UPSTREAM_URL")
		os.Unsetenv("UPSTREAM_TIMEOUT_MS"); os.Unsetenv("PROVIDERS"); os.Unsetenv("LEDGER_DRIVER")
		os.Unsetenv("DATABASE_URL"); os.Unsetenv("RECONCILE_INTERVAL_SEC")
	})
	cfg := Load()
	if cfg.Env != "prod" { t.Fatalf("env override failed") }
	if cfg.HttpPort != "9999" { t.Fatalf("port override failed") }
	if cfg.UpstreamURL != "https://provisioner.example.com" { t.Fatalf("trailing slash should be stripped, got %s", cfg.UpstreamURL) }
	if cfg.UpstreamTimeout != 2500*time.Millisecond { t.Fatalf("timeout override failed: %s", cfg.UpstreamTimeout) }
	if len(cfg.Providers) != 3 || cfg.Providers[1] != "aws" { t.Fatalf("provider list parse failed: %v", cfg.Providers) }
	if cfg.LedgerDriver != "postgres" { t.Fatalf("driver override failed") }
	if cfg.DBDsn == "" { t.Fatalf("DATABASE_URL should be set") }
	if cfg.ReconcileInterval != 0 { t.Fatalf("reconcile interval should be disabled") }
}
