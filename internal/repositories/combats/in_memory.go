package combats

import (
	"context"
	"sort"
	"sync"

	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
)

type inMemoryRepository struct {
	mu           sync.RWMutex
	snapshots    map[string]*session.Snapshot
	timeProvider TimeProvider
}

// NewInMemoryRepository creates a new in-memory combat repository
func NewInMemoryRepository(timeProvider TimeProvider) Repository {
	if timeProvider == nil {
		timeProvider = SystemTime()
	}
	return &inMemoryRepository{
		snapshots:    make(map[string]*session.Snapshot),
		timeProvider: timeProvider,
	}
}

// Save stores a copy so later mutation of the live session does not leak in
func (r *inMemoryRepository) Save(ctx context.Context, snapshot *session.Snapshot) error {
	if err := validate(snapshot); err != nil {
		return err
	}

	now := r.timeProvider.Now()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now

	stored, err := snapshot.Clone()
	if err != nil {
		return errors.Wrap(err, "failed to copy snapshot")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.ID] = stored
	return nil
}

// Get retrieves a snapshot by ID
func (r *inMemoryRepository) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	r.mu.RLock()
	stored, exists := r.snapshots[id]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NotFoundf("combat session %s not found", id)
	}

	snapshot, err := stored.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy snapshot")
	}
	return snapshot, nil
}

// Delete removes a snapshot
func (r *inMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[id]; !exists {
		return errors.NotFoundf("combat session %s not found", id)
	}
	delete(r.snapshots, id)
	return nil
}

// ListActive retrieves active snapshots ordered by ID
func (r *inMemoryRepository) ListActive(ctx context.Context) ([]*session.Snapshot, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.snapshots))
	for id, s := range r.snapshots {
		if s.IsActive() {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	active := make([]*session.Snapshot, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			// deleted between the scan and the read
			continue
		}
		active = append(active, s)
	}
	return active, nil
}

func validate(snapshot *session.Snapshot) error {
	if snapshot == nil {
		return errors.InvalidArgument("snapshot cannot be nil")
	}
	if snapshot.ID == "" {
		return errors.InvalidArgument("snapshot ID cannot be empty")
	}
	return nil
}
