package combats

//go:generate mockgen -destination=mock/mock_repository.go -package=mockcombats -source=repository.go

import (
	"context"

	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
)

// Repository defines the interface for combat session storage
type Repository interface {
	// Save creates or replaces a session snapshot
	Save(ctx context.Context, snapshot *session.Snapshot) error

	// Get retrieves a snapshot by session ID
	Get(ctx context.Context, id string) (*session.Snapshot, error)

	// Delete removes a snapshot
	Delete(ctx context.Context, id string) error

	// ListActive retrieves every snapshot still being driven
	ListActive(ctx context.Context) ([]*session.Snapshot, error)
}
