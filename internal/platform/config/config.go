// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selects the storage implementation wired at startup.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr    string  `env:"ROLLCALL_ADDR" envDefault:":8080"`
	Backend Backend `env:"ROLLCALL_BACKEND" envDefault:"memory"`

	// PostgresDSN is required when Backend is postgres.
	PostgresDSN string `env:"ROLLCALL_POSTGRES_DSN"`

	// RedisURL, when set, backs the cutoff token ledger with Redis instead
	// of the primary store. Format: redis://[:password@]host:port/db.
	RedisURL string `env:"ROLLCALL_REDIS_URL"`

	// KafkaBrokers, when set, enables the Kafka audit sink.
	KafkaBrokers []string `env:"ROLLCALL_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"ROLLCALL_KAFKA_AUDIT_TOPIC" envDefault:"rollcall.audit"`

	// JWTSigningKey verifies operator bearer tokens.
	JWTSigningKey string `env:"ROLLCALL_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	ShutdownTimeout time.Duration `env:"ROLLCALL_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Redis holds connection tuning for the optional Redis token ledger.
type Redis struct {
	URL          string
	PoolSize     int           `env:"ROLLCALL_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"ROLLCALL_REDIS_MIN_IDLE" envDefault:"2"`
	DialTimeout  time.Duration `env:"ROLLCALL_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"ROLLCALL_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"ROLLCALL_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// FromEnv parses configuration from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Backend != BackendMemory && cfg.Backend != BackendPostgres {
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.Backend == BackendPostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("ROLLCALL_POSTGRES_DSN is required for the postgres backend")
	}
	return cfg, nil
}

// RedisFromEnv parses Redis tuning, attaching the URL from the main config.
func RedisFromEnv(url string) (Redis, error) {
	var cfg Redis
	if err := env.Parse(&cfg); err != nil {
		return Redis{}, fmt.Errorf("parse redis config: %w", err)
	}
	cfg.URL = url
	return cfg, nil
}
