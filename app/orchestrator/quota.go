package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/redis/go-redis/v9"
)

// QuotaCounter tracks provider dispatches, first sends and retries, per campaign per UTC day
type QuotaCounter interface {
	Used(ctx context.Context, campaignID uint, at time.Time) (int64, error)
	// Add records one dispatch and returns the new total
	Add(ctx context.Context, campaignID uint, at time.Time) (int64, error)
}

// LedgerQuotaCounter counts today's dispatches straight from the ledger
type LedgerQuotaCounter struct {
	attempts repository.OutreachAttemptRepository
}

func NewLedgerQuotaCounter(attempts repository.OutreachAttemptRepository) *LedgerQuotaCounter {
	return &LedgerQuotaCounter{attempts: attempts}
}

func (c *LedgerQuotaCounter) Used(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	return c.attempts.CountDispatchedSince(ctx, campaignID, utils.StartOfUTCDay(at))
}

// Add is a read: the ledger records every dispatch before it happens
func (c *LedgerQuotaCounter) Add(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	return c.Used(ctx, campaignID, at)
}

// RedisQuotaCounter keeps a per-day counter in Redis, seeded from the ledger on first use
type RedisQuotaCounter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	seed   QuotaCounter
}

func NewRedisQuotaCounter(client *redis.Client, prefix string, seed QuotaCounter) *RedisQuotaCounter {
	return &RedisQuotaCounter{client: client, prefix: prefix, ttl: 48 * time.Hour, seed: seed}
}

func (c *RedisQuotaCounter) key(campaignID uint, at time.Time) string {
	if c.prefix == "" {
		return fmt.Sprintf("quota:%d:%s", campaignID, utils.UTCDayKey(at))
	}
	return fmt.Sprintf("%s:quota:%d:%s", c.prefix, campaignID, utils.UTCDayKey(at))
}

func (c *RedisQuotaCounter) Used(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	key := c.key(campaignID, at)
	n, err := c.client.Get(ctx, key).Int64()
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read quota counter %s: %w", key, err)
	}
	if err := c.ensureSeeded(ctx, key, campaignID, at); err != nil {
		return 0, err
	}
	n, err = c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0, fmt.Errorf("read quota counter %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisQuotaCounter) Add(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	key := c.key(campaignID, at)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("check quota counter %s: %w", key, err)
	}
	if exists == 0 {
		// The seed already includes the dispatch being added
		if err := c.ensureSeeded(ctx, key, campaignID, at); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment quota counter %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisQuotaCounter) ensureSeeded(ctx context.Context, key string, campaignID uint, at time.Time) error {
	var seed int64
	if c.seed != nil {
		n, err := c.seed.Used(ctx, campaignID, at)
		if err != nil {
			return fmt.Errorf("seed quota counter %s: %w", key, err)
		}
		seed = n
	}
	// SetNX keeps a value another writer set first
	if err := c.client.SetNX(ctx, key, seed, c.ttl).Err(); err != nil {
		return fmt.Errorf("seed quota counter %s: %w", key, err)
	}
	return nil
}
