package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tilinna/clock"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/ledger"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"
)

type fakeLister struct {
	mu        sync.Mutex
	instances []models.InstanceRecord
	err       error
	calls     chan struct{}
}

func (f *fakeLister) ListInstances(ctx context.Context) ([]models.InstanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls != nil {
		select {
		case f.calls <- struct{}{}:
		default:
		}
	}
	return f.instances, f.err
}

func newTestLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	cfg := &config.Config{Env: "test", LedgerDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "test.db")}
	led, err := ledger.Open(cfg, logging.New("test"))
	if err != nil {
		t.Fatalf("ledger open: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return led
}

func TestSweepRemovesStaleRecords(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()
	for _, id := range []string{"i-1", "i-2"} {
		if err := led.Put(ctx, &models.InstanceRecord{ID: id, Provider: "azure"}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	lister := &fakeLister{instances: []models.InstanceRecord{{ID: "i-1", Provider: "azure"}}}
	r := New(led, lister, time.Minute, logging.New("test"))
	r.Sweep(ctx)

	if _, err := led.Get(ctx, "i-1"); err != nil {
		t.Fatalf("live record must stay: %v", err)
	}
	if _, err := led.Get(ctx, "i-2"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("stale record should be dropped, got %v", err)
	}
}

func TestSweepDoesNotAdoptUntracked(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()
	lister := &fakeLister{instances: []models.InstanceRecord{{ID: "i-9", Provider: "azure"}}}
	r := New(led, lister, time.Minute, logging.New("test"))
	r.Sweep(ctx)

	// surfaced as a log event only; never written to the ledger
	if _, err := led.Get(ctx, "i-9"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("untracked instance must not be adopted, got %v", err)
	}
}

func TestSweepListingFailureLeavesLedgerAlone(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()
	if err := led.Put(ctx, &models.InstanceRecord{ID: "i-1", Provider: "azure"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	lister := &fakeLister{err: errors.New("boom")}
	r := New(led, lister, time.Minute, logging.New("test"))
	r.listMaxElapsed = 10 * time.Millisecond
	r.Sweep(ctx)

	if _, err := led.Get(ctx, "i-1"); err != nil {
		t.Fatalf("listing failure must not touch the ledger: %v", err)
	}
}

func TestRunSweepsOnTicks(t *testing.T) {
	led := newTestLedger(t)
	lister := &fakeLister{calls: make(chan struct{}, 1)}
	r := New(led, lister, time.Minute, logging.New("test"))

	mock := clock.NewMock(time.Unix(1, 0))
	ctx, cancel := context.WithCancel(clock.Context(context.Background(), mock))
	defer cancel()
	go r.Run(ctx)

	// advance mock time until the ticker fires and a sweep happens
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-lister.calls:
			return
		case <-deadline:
			t.Fatal("no sweep observed after advancing the clock")
		default:
			mock.Add(time.Minute)
			time.Sleep(time.Millisecond)
		}
	}
}
