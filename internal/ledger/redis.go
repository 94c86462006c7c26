package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "instance:"

type redisLedger struct {
	client *redis.Client
	logger logging.Logger
}

func openRedis(cfg *config.Config, logger logging.Logger) (*redisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("ledger connect", "driver", "redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return &redisLedger{client: client, logger: logger}, nil
}

func (l *redisLedger) Put(ctx context.Context, rec *models.InstanceRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// A positive TTL lets redis expire the record together with the instance.
	var expiry time.Duration
	if rec.TTL > 0 {
		expiry = time.Duration(rec.TTL) * time.Second
	}
	return l.client.Set(ctx, keyPrefix+rec.ID, b, expiry).Err()
}

func (l *redisLedger) Get(ctx context.Context, id string) (*models.InstanceRecord, error) {
	b, err := l.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec models.InstanceRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *redisLedger) Delete(ctx context.Context, id string) error {
	// DEL of an absent key returns 0, not an error
	return l.client.Del(ctx, keyPrefix+id).Err()
}

func (l *redisLedger) List(ctx context.Context) ([]models.InstanceRecord, error) {
	var out []models.InstanceRecord
	iter := l.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		b, err := l.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, err
		}
		var rec models.InstanceRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			l.logger.Error("ledger skipping malformed record", "key", iter.Val(), "error", err.Error())
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *redisLedger) Close() error {
	return l.client.Close()
}
