package services

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-atb/internal/config"
	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/catalog"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats/sqlite"
	"github.com/KirkDiggler/rpg-atb/internal/services/encounter"
)

// Backend names the store a provider picked
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Provider holds all service instances
type Provider struct {
	EncounterService encounter.Service
	Repository       combats.Repository
	Backend          Backend

	closers []func() error
}

// ProviderConfig holds configuration for creating services
type ProviderConfig struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Roller  dice.Roller

	// RedisClient skips dialing REDIS_URL when set
	RedisClient redis.UniversalClient
}

// NewProvider picks a snapshot store and builds the encounter service on it.
// Redis wins over SQLite, and memory is the fallback for both.
func NewProvider(ctx context.Context, cfg *ProviderConfig) (*Provider, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.InvalidArgument("catalog is required")
	}

	p := &Provider{}
	if err := p.openRepository(ctx, cfg); err != nil {
		return nil, err
	}

	combat := cfg.Config.Combat
	p.EncounterService = encounter.NewService(&encounter.ServiceConfig{
		Repository:      p.Repository,
		Catalog:         cfg.Catalog,
		Ailments:        cfg.Catalog.Ailments(),
		Roller:          cfg.Roller,
		TicksPerRound:   combat.TicksPerRound,
		WindowTicks:     combat.ReactionWindowTicks,
		DecisionTimeout: combat.DecisionTimeout,
		MailboxSize:     combat.MailboxSize,
		TiePolicy:       modifiers.TiePolicy(combat.TiePolicy),
	})
	return p, nil
}

func (p *Provider) openRepository(ctx context.Context, cfg *ProviderConfig) error {
	client := cfg.RedisClient
	if client == nil && cfg.Config.Redis.URL != "" {
		log.Printf("Connecting to Redis at: %s", cfg.Config.Redis.URL)
		client = dialRedis(ctx, cfg.Config.Redis.URL)
		if client != nil {
			p.closers = append(p.closers, client.Close)
		}
	}
	if client != nil {
		p.Repository = combats.NewRedisRepository(&combats.RedisRepoConfig{
			Client: client,
			TTL:    cfg.Config.Redis.SessionTTL,
		})
		p.Backend = BackendRedis
		log.Println("Using Redis for persistence")
		return nil
	}

	if path := cfg.Config.SQLite.Path; path != "" {
		store, err := sqlite.Open(path, combats.SystemTime())
		if err != nil {
			return errors.Wrapf(err, "failed to open sqlite store '%s'", path)
		}
		p.closers = append(p.closers, store.Close)
		p.Repository = store
		p.Backend = BackendSQLite
		log.Printf("Using SQLite at %s for persistence", path)
		return nil
	}

	p.Repository = combats.NewInMemoryRepository(combats.SystemTime())
	p.Backend = BackendMemory
	log.Println("No store configured, using in-memory repository")
	return nil
}

// dialRedis returns nil when the URL is bad or the server does not answer
func dialRedis(ctx context.Context, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("Failed to parse Redis URL: %v", err)
		log.Println("Falling back to local persistence")
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		log.Println("Falling back to local persistence")
		_ = client.Close()
		return nil
	}

	log.Println("Successfully connected to Redis")
	return client
}

// Close stops every session and releases the store
func (p *Provider) Close() error {
	if p.EncounterService != nil {
		p.EncounterService.Close()
	}

	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
