// Package config loads process settings from the environment. A .env file
// in the working directory is read first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Env string `envconfig:"POSTSCHED_ENV" default:"development" validate:"oneof=development test production"`

	// Store selects the kv backend holding taken slots.
	Store string `envconfig:"POSTSCHED_STORE" validate:"required,oneof=memory redis postgres sqlite"`

	RedisAddr     string `envconfig:"POSTSCHED_REDIS_ADDR" default:"localhost:6379" validate:"required_if=Store redis"`
	RedisPassword string `envconfig:"POSTSCHED_REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"POSTSCHED_REDIS_DB" default:"0" validate:"min=0,max=15"`

	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required_if=Store postgres"`
	SQLitePath  string `envconfig:"POSTSCHED_SQLITE_PATH" default:"postsched.db" validate:"required_if=Store sqlite"`

	ListenAddr string `envconfig:"POSTSCHED_LISTEN_ADDR" default:":8080" validate:"required"`
	// APITokenHash is a bcrypt hash; empty disables API auth.
	APITokenHash string `envconfig:"POSTSCHED_API_TOKEN_HASH" validate:"omitempty,startswith=$2"`

	// LockEnabled guards each reservation with a Redis lock at RedisAddr.
	LockEnabled bool          `envconfig:"POSTSCHED_LOCK_ENABLED" default:"false"`
	LockTTL     time.Duration `envconfig:"POSTSCHED_LOCK_TTL" default:"10s" validate:"min=1s"`
}

var errMemoryInProduction = errors.New("the memory store does not persist and is not allowed in production")

func (c Config) Production() bool { return c.Env == "production" }

// Validate checks field constraints plus the rules that span fields.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Production() && c.Store == StoreMemory {
		return errMemoryInProduction
	}
	return nil
}

func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
