package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/post-scheduler/internal/internaltypes"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "postsched:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores values as plain strings under KeyPrefix+namespace+":"+key.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis connects and pings. Unlike a cache there is no degraded mode:
// an unreachable server is a startup error.
func NewRedis(cfg RedisConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %w", internaltypes.ErrStoreUnavailable, cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis slot store connected")
	return &Redis{
		client: client,
		logger: logger.With().Str("component", "kv.redis").Logger(),
	}, nil
}

// NewRedisFromClient wraps an existing client without pinging it.
func NewRedisFromClient(client *redis.Client, logger zerolog.Logger) *Redis {
	return &Redis{client: client, logger: logger.With().Str("component", "kv.redis").Logger()}
}

func RedisKey(namespace, key string) string {
	return KeyPrefix + namespace + ":" + key
}

func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, RedisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, internaltypes.ErrNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Str("namespace", namespace).Str("key", key).Msg("redis get failed")
		return nil, unavailable("get", namespace, key, err)
	}
	return b, nil
}

func (r *Redis) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := r.client.Set(ctx, RedisKey(namespace, key), value, 0).Err(); err != nil {
		r.logger.Error().Err(err).Str("namespace", namespace).Str("key", key).Msg("redis set failed")
		return unavailable("put", namespace, key, err)
	}
	return nil
}
