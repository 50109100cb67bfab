package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/post-scheduler/internal/config"
	"github.com/example/post-scheduler/internal/db"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/kv"
	"github.com/example/post-scheduler/internal/logging"
	"github.com/example/post-scheduler/internal/migrate"
	"github.com/example/post-scheduler/internal/scheduler"
	"github.com/example/post-scheduler/internal/slots"
	"github.com/example/post-scheduler/internal/telemetry"
)

// app holds everything a command needs, opened from the environment.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	registry  *prometheus.Registry
	scheduler *scheduler.Scheduler

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logging.Setup(cfg.Env),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, client, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(a.logger),
		scheduler.WithMetrics(telemetry.NewMetrics(a.registry)),
	}
	if cfg.LockEnabled {
		if client == nil {
			r, err := kv.NewRedis(a.redisConfig(), a.logger)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("lock: %w", err)
			}
			a.closers = append(a.closers, func() { _ = r.Close() })
			client = r.Client()
		}
		opts = append(opts, scheduler.WithLocker(kv.NewRedisLocker(client, cfg.LockTTL, a.logger)))
	}

	a.scheduler = scheduler.New(slots.NewStore(backend), opts...)
	return a, nil
}

func (a *app) redisConfig() kv.RedisConfig {
	return kv.RedisConfig{Addr: a.cfg.RedisAddr, Password: a.cfg.RedisPassword, DB: a.cfg.RedisDB}
}

// openStore returns the configured backend. Remote backends sit behind a
// circuit breaker; the redis client is returned so the lock can share it.
func (a *app) openStore(ctx context.Context) (kv.Store, *redis.Client, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.logger.Warn().Msg("memory store: reservations are lost on exit")
		return kv.NewMemory(), nil, nil

	case config.StoreRedis:
		r, err := kv.NewRedis(a.redisConfig(), a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = r.Close() })
		return kv.NewBreaker("redis", r), r.Client(), nil

	case config.StorePostgres:
		d, err := openPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, d.Close)
		if _, err := migrate.Up(ctx, d, a.logger); err != nil {
			return nil, nil, err
		}
		return kv.NewBreaker("postgres", kv.NewPostgres(d)), nil, nil

	case config.StoreSQLite:
		s, err := kv.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.logger.Debug().Str("path", a.cfg.SQLitePath).Msg("sqlite slot store opened")
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", a.cfg.Store)
}

func openPostgres(ctx context.Context, url string) (*db.DB, error) {
	d, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("%w: db ping: %w", internaltypes.ErrStoreUnavailable, err)
	}
	return d, nil
}

// parseNow reads an optional RFC 3339 override; empty means the wall clock.
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --now %q: %v", internaltypes.ErrInvalidInput, s, err)
	}
	return t.UTC(), nil
}
