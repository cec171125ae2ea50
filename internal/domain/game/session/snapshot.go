package session

import (
	"encoding/json"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/ailments"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/reactions"
)

// Status is the lifecycle state of a combat session
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Snapshot is everything needed to pick a combat back up where it stopped
type Snapshot struct {
	ID        string                       `json:"id"`
	DriverID  string                       `json:"driver_id"` // only the driver may advance or reset
	Status    Status                       `json:"status"`
	Scheduler *atb.State                   `json:"scheduler"`
	Encounter *combat.Encounter            `json:"encounter"`
	Windows   []*reactions.Window          `json:"windows,omitempty"`
	Ailments  map[string][]*ailments.State `json:"ailments,omitempty"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// IsActive reports whether the session is still being driven
func (s *Snapshot) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// Tick returns the scheduler tick, or 0 before the scheduler exists
func (s *Snapshot) Tick() int {
	if s == nil || s.Scheduler == nil {
		return 0
	}
	return s.Scheduler.Tick
}

// Clone deep copies a snapshot through its JSON form
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
