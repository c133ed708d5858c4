package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/njhostel/mysterynight/internal/database"
)

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	PublicURL string     `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir    string     `env:"SPA_DIR" envDefault:"../web/dist"`

	DBDriver    string        `env:"DB_DRIVER" envDefault:"libsql"`
	DBPath      string        `env:"DB_PATH" envDefault:"data/mysterynight.db"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	Variant     string `env:"VARIANT" envDefault:"hostel"`
	VariantFile string `env:"VARIANT_FILE"`

	OverlayDelay       time.Duration `env:"OVERLAY_DELAY" envDefault:"5s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"2h"`

	AdminEmail        string `env:"ADMIN_EMAIL"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"mysterynight"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN is what database.Connect expects for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == database.DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case database.DriverLibSQL:
	case database.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", c.DBDriver)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", database.DriverLibSQL, database.DriverPostgres, c.DBDriver)
	}
	if c.OverlayDelay <= 0 || c.SessionIdleTimeout <= 0 {
		return errors.New("OVERLAY_DELAY and SESSION_IDLE_TIMEOUT must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPasswordHash == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be set together")
	}
	return nil
}
