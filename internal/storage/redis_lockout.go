package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stale counters expire on their own.
const (
	lockoutCounterTTL = 24 * time.Hour
	lockoutGrace      = 30 * time.Minute
)

// RedisLockoutStore keeps lockouts in Redis hashes so every replica sees
// the same counter.
type RedisLockoutStore struct {
	client *redis.Client
	prefix string
}

func NewRedisLockoutStore(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client, prefix: "ishbor:lockout:"}
}

func (s *RedisLockoutStore) Get(ctx context.Context, key string) (LockoutState, error) {
	data, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return LockoutState{}, fmt.Errorf("get lockout %s: %w", key, err)
	}

	var state LockoutState
	if raw, ok := data["failed_count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			state.LockedUntil = time.Unix(unix, 0).UTC()
		}
	}
	return state, nil
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error) {
	redisKey := s.prefix + key

	count, err := s.client.HIncrBy(ctx, redisKey, "failed_count", 1).Result()
	if err != nil {
		return LockoutState{}, fmt.Errorf("record login failure %s: %w", key, err)
	}

	state := LockoutState{FailedCount: int(count)}
	if int(count) < threshold {
		if err := s.client.Expire(ctx, redisKey, lockoutCounterTTL).Err(); err != nil {
			return LockoutState{}, fmt.Errorf("expire lockout %s: %w", key, err)
		}
		return state, nil
	}

	state.LockedUntil = now.Add(window).UTC()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisKey, "locked_until", state.LockedUntil.Unix())
		p.Expire(ctx, redisKey, window+lockoutGrace)
		return nil
	})
	if err != nil {
		return LockoutState{}, fmt.Errorf("lock %s: %w", key, err)
	}
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout %s: %w", key, err)
	}
	return nil
}
