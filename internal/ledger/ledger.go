package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"
)

// ErrNotFound is returned by Get when no record exists for the given id.
var ErrNotFound = errors.New("instance not found")

// Ledger is the durable key-value store tracking live instance records.
// All operations are idempotent under retry: Put overwrites, Delete of an
// absent key is a no-op. List exists for the reconciliation sweep.
type Ledger interface {
	Put(ctx context.Context, rec *models.InstanceRecord) error
	Get(ctx context.Context, id string) (*models.InstanceRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.InstanceRecord, error)
	Close() error
}

func Open(cfg *config.Config, logger logging.Logger) (Ledger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LedgerDriver)) {
	case "redis":
		return openRedis(cfg, logger)
	case "", "sqlite", "postgres", "postgresql":
		return openGorm(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
}
