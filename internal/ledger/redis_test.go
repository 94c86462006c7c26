package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"
)

// requires a local redis; skipped when unavailable
func newTestRedisLedger(t *testing.T) Ledger {
	t.Helper()
	cfg := &config.Config{Env: "test", LedgerDriver: "redis", RedisAddr: "localhost:6379", RedisDB: 15}
	led, err := openRedis(cfg, logging.New("test"))
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return led
}

func TestRedisPutGetDelete(t *testing.T) {
	led := newTestRedisLedger(t)
	ctx := context.Background()
	rec := &models.InstanceRecord{ID: "test-i-1", Address: "10.0.0.9", Provider: "azure"}
	if err := led.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	defer led.Delete(ctx, "test-i-1")
	got, err := led.Get(ctx, "test-i-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Address != "10.0.0.9" || got.Provider != "azure" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if err := led.Delete(ctx, "test-i-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := led.Get(ctx, "test-i-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := led.Delete(ctx, "test-i-1"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}
