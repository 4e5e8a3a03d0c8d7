package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisStats implements ActivityStats on redis sorted sets so multiple
// processes share one sliding window. Members carry the amount as an exact
// decimal string; scores are event timestamps used for eviction.
type RedisStats struct {
	client *redis.Client
}

func NewRedisStats(client *redis.Client) *RedisStats {
	return &RedisStats{client: client}
}

const (
	attemptKeyPrefix   = "stratum:stats:attempts:"
	completedKeyPrefix = "stratum:stats:completed:"
	statsRetention     = 48 * time.Hour
)

func (s *RedisStats) RecordAttempt(ctx context.Context, entityID string, amount decimal.Decimal, at time.Time) error {
	key := attemptKeyPrefix + entityID
	member := fmt.Sprintf("%s:%s", uuid.NewString(), amount.String())
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.Expire(ctx, key, statsRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *RedisStats) RecordCompleted(ctx context.Context, entityID string, amount decimal.Decimal, at time.Time) error {
	key := completedKeyPrefix + entityID
	member := fmt.Sprintf("%s:%s", uuid.NewString(), amount.String())
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.Expire(ctx, key, statsRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record completed: %w", err)
	}
	return nil
}

func (s *RedisStats) HourlyWindow(ctx context.Context, entityID string, now time.Time) (WindowStats, error) {
	return s.sumSince(ctx, attemptKeyPrefix+entityID, now.Add(-time.Hour), now)
}

func (s *RedisStats) CompletedTotalOn(ctx context.Context, entityID string, now time.Time) (decimal.Decimal, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	stats, err := s.sumSince(ctx, completedKeyPrefix+entityID, dayStart, now)
	if err != nil {
		return decimal.Zero, err
	}
	return stats.Total, nil
}

func (s *RedisStats) sumSince(ctx context.Context, key string, from, now time.Time) (WindowStats, error) {
	stats := WindowStats{Total: decimal.Zero}

	// Evict anything older than the retention horizon before reading.
	horizon := now.Add(-statsRetention)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf",
		fmt.Sprintf("%d", horizon.UnixNano())).Err(); err != nil {
		return stats, fmt.Errorf("evict stats window: %w", err)
	}

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixNano()),
		Max: fmt.Sprintf("%d", now.UnixNano()),
	}).Result()
	if err != nil {
		return stats, fmt.Errorf("read stats window: %w", err)
	}

	for _, member := range members {
		idx := strings.LastIndex(member, ":")
		if idx < 0 {
			continue
		}
		amount, err := decimal.NewFromString(member[idx+1:])
		if err != nil {
			continue
		}
		stats.Count++
		stats.Total = stats.Total.Add(amount)
	}
	return stats, nil
}
