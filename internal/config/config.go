package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application
type Config struct {
	Redis   RedisConfig
	SQLite  SQLiteConfig
	Catalog CatalogConfig
	Combat  CombatConfig
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	URL        string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"ATB_SESSION_TTL" envDefault:"24h"`
}

// SQLiteConfig holds the local snapshot store configuration
type SQLiteConfig struct {
	Path string `env:"ATB_SQLITE_PATH"`
}

// CatalogConfig points at the action and ailment catalog file
type CatalogConfig struct {
	Path string `env:"ATB_CATALOG_PATH" envDefault:"catalog.yaml"`
}

// CombatConfig holds scheduler tuning
type CombatConfig struct {
	TicksPerRound       int           `env:"ATB_TICKS_PER_ROUND" envDefault:"6"`
	ReactionWindowTicks int           `env:"ATB_REACTION_WINDOW_TICKS" envDefault:"1"`
	DecisionTimeout     time.Duration `env:"ATB_DECISION_TIMEOUT" envDefault:"30s"`
	MailboxSize         int           `env:"ATB_MAILBOX_SIZE" envDefault:"64"`
	TiePolicy           string        `env:"ATB_TIE_POLICY" envDefault:"prefer_positive"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate ranges
	if cfg.Combat.TicksPerRound < 1 {
		return nil, fmt.Errorf("ATB_TICKS_PER_ROUND must be at least 1")
	}
	if cfg.Combat.ReactionWindowTicks < 1 {
		return nil, fmt.Errorf("ATB_REACTION_WINDOW_TICKS must be at least 1")
	}
	if cfg.Combat.MailboxSize < 1 {
		return nil, fmt.Errorf("ATB_MAILBOX_SIZE must be at least 1")
	}
	switch cfg.Combat.TiePolicy {
	case "prefer_positive", "prefer_negative", "prefer_first":
	default:
		return nil, fmt.Errorf("unknown ATB_TIE_POLICY %q", cfg.Combat.TiePolicy)
	}

	return cfg, nil
}
