package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type gormLedger struct {
	db *gorm.DB
}

func openGorm(cfg *config.Config, logger logging.Logger) (*gormLedger, error) {
	// Configure GORM to use our structured logger so SQL logs are not plain text
	var gormLevel gormlogger.LogLevel
	switch strings.ToLower(logging.GetLevel()) {
	case "debug":
		gormLevel = gormlogger.Info // log SQL traces at debug level
	case "error", "fatal":
		gormLevel = gormlogger.Error
	default:
		gormLevel = gormlogger.Warn
	}
	gormLogger := newGormLogger(logger, gormLevel)

	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.LedgerDriver))
	if driver == "postgres" || driver == "postgresql" {
		if cfg.DBDsn == "" {
			return nil, &os.PathError{Op: "open", Path: "DATABASE_URL/DB_DSN", Err: os.ErrInvalid}
		}
		dialector = postgres.Open(cfg.DBDsn)
		logger.Info("ledger connect", "driver", "postgres")
	} else {
		// Default to sqlite
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DBPath)
		logger.Info("ledger connect", "driver", "sqlite", "path", cfg.DBPath)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&models.InstanceRecord{}, &models.LogEntry{}); err != nil {
		return nil, err
	}
	// Hook logging persistence into the DB (non-blocking)
	logging.SetPersist(func(e any) error {
		b, _ := json.Marshal(e)
		var tmp struct {
			Time   time.Time      `json:"time"`
			Level  string         `json:"level"`
			Msg    string         `json:"msg"`
			Fields map[string]any `json:"fields"`
		}
		if err := json.Unmarshal(b, &tmp); err != nil {
			return nil
		}
		fieldsBytes, _ := json.Marshal(tmp.Fields)
		le := models.LogEntry{Time: tmp.Time, Level: tmp.Level, Msg: tmp.Msg, Fields: string(fieldsBytes)}
		return gdb.Create(&le).Error
	})
	return &gormLedger{db: gdb}, nil
}

// Put upserts the record keyed by id. Writing the same record twice is a
// no-op rather than an error so client retries stay safe.
func (l *gormLedger) Put(ctx context.Context, rec *models.InstanceRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (l *gormLedger) Get(ctx context.Context, id string) (*models.InstanceRecord, error) {
	var rec models.InstanceRecord
	if err := l.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (l *gormLedger) Delete(ctx context.Context, id string) error {
	// deleting an absent key affects zero rows and is not an error
	return l.db.WithContext(ctx).Delete(&models.InstanceRecord{}, "id = ?", id).Error
}

func (l *gormLedger) List(ctx context.Context) ([]models.InstanceRecord, error) {
	var recs []models.InstanceRecord
	if err := l.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (l *gormLedger) Close() error {
	logging.SetPersist(nil)
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
