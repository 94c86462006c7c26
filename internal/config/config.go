package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env               string
	HttpPort          string
	UpstreamURL       string        // base URL of the provisioning service
	UpstreamTimeout   time.Duration // covers connect+response for a single call
	Providers         []string      // provider names registered in the registry
	LedgerDriver      string        // sqlite|postgres|redis
	DBPath            string        // used when LedgerDriver=sqlite
	DBDsn             string        // used when LedgerDriver=postgres (e.g., DATABASE_URL)
	RedisAddr         string        // used when LedgerDriver=redis
	RedisDB           int
	ReconcileInterval time.Duration // 0 disables the reconciliation sweeper
}

func Load() *Config {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "dev"),
		HttpPort:          getEnv("HTTP_PORT", "8080"),
		UpstreamURL:       strings.TrimRight(getEnv("UPSTREAM_URL", "http://localhost:3000"), "/"),
		UpstreamTimeout:   time.Duration(getEnvInt("UPSTREAM_TIMEOUT_MS", 10000)) * time.Millisecond,
		Providers:         splitList(getEnv("PROVIDERS", "azure")),
		LedgerDriver:      getEnv("LEDGER_DRIVER", "sqlite"),
		DBPath:            getEnv("DB_PATH", "data/sandbox.db"),
		DBDsn:             getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		ReconcileInterval: time.Duration(getEnvInt("RECONCILE_INTERVAL_SEC", 300)) * time.Second,
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" { return v }
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil { return i }
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
	}
	return out
}
