package combats

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	// Key patterns
	combatKeyPrefix = "combat:"
	activeCombatKey = "combats:active"

	// TTL for snapshots
	defaultTTL = 24 * time.Hour
)

// RedisRepoConfig holds configuration for the Redis repository
type RedisRepoConfig struct {
	Client       redis.UniversalClient
	TimeProvider TimeProvider
	TTL          time.Duration
}

// redisRepository implements Repository using Redis
type redisRepository struct {
	client       redis.UniversalClient
	timeProvider TimeProvider
	ttl          time.Duration
}

// NewRedisRepository creates a new Redis-backed combat repository
func NewRedisRepository(cfg *RedisRepoConfig) Repository {
	if cfg == nil || cfg.Client == nil {
		panic("redis client is required")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	tp := cfg.TimeProvider
	if tp == nil {
		tp = SystemTime()
	}

	return &redisRepository{
		client:       cfg.Client,
		timeProvider: tp,
		ttl:          ttl,
	}
}

// Save writes the snapshot and keeps the active index in step
func (r *redisRepository) Save(ctx context.Context, snapshot *session.Snapshot) error {
	if err := validate(snapshot); err != nil {
		return err
	}

	now := r.timeProvider.Now()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to serialize snapshot")
	}

	// Use pipeline for atomic operations
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, combatKeyPrefix+snapshot.ID, data, r.ttl)
	if snapshot.IsActive() {
		pipe.SAdd(ctx, activeCombatKey, snapshot.ID)
	} else {
		pipe.SRem(ctx, activeCombatKey, snapshot.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to save combat session %s", snapshot.ID)
	}
	return nil
}

// Get retrieves a snapshot by ID and refreshes its TTL
func (r *redisRepository) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	key := combatKeyPrefix + id

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("combat session %s not found", id)
		}
		return nil, errors.Wrapf(err, "failed to get combat session %s", id)
	}

	var snapshot session.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize combat session %s", id)
	}

	r.client.Expire(ctx, key, r.ttl)

	return &snapshot, nil
}

// Delete removes a snapshot and its index entry
func (r *redisRepository) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, combatKeyPrefix+id)
	pipe.SRem(ctx, activeCombatKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete combat session %s", id)
	}
	if del.Val() == 0 {
		return errors.NotFoundf("combat session %s not found", id)
	}
	return nil
}

// ListActive loads every indexed session in parallel. Index entries whose
// snapshot has expired are skipped.
func (r *redisRepository) ListActive(ctx context.Context) ([]*session.Snapshot, error) {
	ids, err := r.client.SMembers(ctx, activeCombatKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active combat sessions")
	}
	sort.Strings(ids)

	snapshots := make([]*session.Snapshot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			snapshot, err := r.Get(gctx, id)
			if err != nil {
				if errors.IsNotFound(err) {
					return nil
				}
				return err
			}
			snapshots[i] = snapshot
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	active := make([]*session.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s != nil {
			active = append(active, s)
		}
	}
	return active, nil
}
