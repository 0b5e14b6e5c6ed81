package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Environment string `env:"GO_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`

	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI          string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB           string        `env:"MONGODB_DB" envDefault:"rsvp_db"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	MongoTransactions bool          `env:"MONGO_TRANSACTIONS" envDefault:"false"`

	// RedisAddr enables the reconcile queue when set.
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`

	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

// Load reads configuration from the environment. A .env file is loaded
// first unless GO_ENV is production.
func Load() (*Config, error) {
	var early struct {
		Environment string `env:"GO_ENV" envDefault:"development"`
	}
	if err := env.Parse(&early); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if early.Environment != "production" {
		if err := godotenv.Load(); err != nil {
			slog.Warn(".env file not found, using environment", "error", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.MongoTransactions && c.StoreDriver != "mongo" {
		return fmt.Errorf("MONGO_TRANSACTIONS requires STORE_DRIVER=mongo")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }
