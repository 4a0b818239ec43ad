// Package config loads server settings from PARTY_* environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"go-party/internal/batcher"
	"go-party/internal/db"
)

type Config struct {
	Addr      string `env:"PARTY_ADDR" envDefault:":8080"`
	JWTSecret string `env:"PARTY_JWT_SECRET,required"`

	DBDriver string `env:"PARTY_DB_DRIVER" envDefault:"pgx"`
	// DBDSN empty disables transcript persistence.
	DBDSN string `env:"PARTY_DB_DSN"`
	// RedisAddr empty keeps events in process.
	RedisAddr string `env:"PARTY_REDIS_ADDR"`

	LLMBaseURL string `env:"PARTY_LLM_BASE_URL"`
	// LLMAPIKey empty selects the offline generator.
	LLMAPIKey string `env:"PARTY_LLM_API_KEY"`
	LLMModel  string `env:"PARTY_LLM_MODEL"`

	BatchWindow       time.Duration `env:"PARTY_BATCH_WINDOW" envDefault:"5s"`
	MessageCooldown   time.Duration `env:"PARTY_MESSAGE_COOLDOWN" envDefault:"5s"`
	GenerationTimeout time.Duration `env:"PARTY_GENERATION_TIMEOUT" envDefault:"20s"`
	DispatchStrategy  string        `env:"PARTY_DISPATCH_STRATEGY" envDefault:"batched"`
	TokenTTL          time.Duration `env:"PARTY_TOKEN_TTL" envDefault:"24h"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// BindFlags lets command line flags override the environment.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "http service address")
	fs.StringVar(&c.DispatchStrategy, "strategy", c.DispatchStrategy, "dispatch strategy: batched or immediate")
}

func (c Config) Validate() error {
	var errs []error
	if c.DBDriver != db.DriverPostgres && c.DBDriver != db.DriverSQLite {
		errs = append(errs, fmt.Errorf("PARTY_DB_DRIVER %q: want %s or %s", c.DBDriver, db.DriverPostgres, db.DriverSQLite))
	}
	if _, ok := batcher.ParseStrategy(c.DispatchStrategy); !ok {
		errs = append(errs, fmt.Errorf("PARTY_DISPATCH_STRATEGY %q: want %s or %s", c.DispatchStrategy, batcher.StrategyBatched, batcher.StrategyImmediate))
	}
	for name, d := range map[string]time.Duration{
		"PARTY_BATCH_WINDOW":       c.BatchWindow,
		"PARTY_MESSAGE_COOLDOWN":   c.MessageCooldown,
		"PARTY_GENERATION_TIMEOUT": c.GenerationTimeout,
		"PARTY_TOKEN_TTL":          c.TokenTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}
