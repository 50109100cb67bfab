package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/post-scheduler/internal/internaltypes"
)

const (
	DefaultLockKey   = KeyPrefix + "lock:schedule"
	DefaultLockTTL   = 10 * time.Second
	defaultLockRetry = 100 * time.Millisecond
)

// Only delete if we still own it.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// RedisLocker serialises read-compute-write cycles across processes with a
// SET NX lease. The lease expires on its own if the holder dies.
type RedisLocker struct {
	client *redis.Client
	logger zerolog.Logger

	Key   string
	TTL   time.Duration
	Retry time.Duration
	// Wait bounds how long Lock polls before giving up. Zero means TTL.
	Wait time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		client: client,
		logger: logger.With().Str("component", "kv.lock").Logger(),
		Key:    DefaultLockKey,
		TTL:    ttl,
		Retry:  defaultLockRetry,
	}
}

// Lock blocks until the lease is acquired, the wait elapses or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	wait := l.Wait
	if wait <= 0 {
		wait = l.TTL
	}
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, l.Key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: acquire lock: %w", internaltypes.ErrStoreUnavailable, err)
		}
		if ok {
			l.logger.Debug().Str("token", token).Msg("schedule lock acquired")
			return func(ctx context.Context) error {
				if err := l.client.Eval(ctx, releaseScript, []string{l.Key}, token).Err(); err != nil {
					return fmt.Errorf("release lock: %w", err)
				}
				return nil
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: waited %s", internaltypes.ErrLockBusy, wait)
		}

		t := time.NewTimer(l.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
