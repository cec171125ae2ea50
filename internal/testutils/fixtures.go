package testutils

import (
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
)

// FixedClock is a clock tests move by hand
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now returns the clock's current time
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateTestCombatant creates an active combatant at a position
func CreateTestCombatant(id string, side combat.Side, x, y int) *combat.Combatant {
	return &combat.Combatant{
		ID:        id,
		Name:      id,
		Side:      side,
		CurrentHP: 10,
		MaxHP:     10,
		Defense:   12,
		Position:  atb.Position{X: x, Y: y},
		Reach:     1,
		Stamina:   1,
		IsActive:  true,
	}
}

// CreateTestSnapshot creates a started two-sided encounter at the given tick
func CreateTestSnapshot(id string, status session.Status, tick int) *session.Snapshot {
	enc := combat.NewEncounter(id, "Test Encounter", "dm")
	enc.AddCombatant(CreateTestCombatant("hero", "heroes", 0, 0))
	enc.AddCombatant(CreateTestCombatant("goblin", "goblins", 1, 0))
	enc.Start()
	enc.Tick = tick

	state := atb.NewState()
	state.Tick = tick

	return &session.Snapshot{
		ID:        id,
		DriverID:  "dm",
		Status:    status,
		Scheduler: state,
		Encounter: enc,
	}
}
