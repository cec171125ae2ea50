package reactions

import (
	"context"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
)

//go:generate mockgen -destination=mock/mock_scheduler.go -package=mockreactions -source=window.go

// Payload is what triggered a window
type Payload struct {
	ProvokerID string       `json:"provoker_id"`
	TargetID   string       `json:"target_id,omitempty"`
	Timing     atb.Timing   `json:"timing,omitempty"`
	From       atb.Position `json:"from"`
	To         atb.Position `json:"to"`
}

// Window is a time-boxed permission for one actor to react
type Window struct {
	ID          string     `json:"id"`
	ActorID     string     `json:"actor_id"`
	Reason      atb.Reason `json:"reason"`
	ProvokerID  string     `json:"provoker_id"`
	OpenedTick  int        `json:"opened_tick"`
	ExpiresTick int        `json:"expires_tick"`
	Payload     Payload    `json:"payload"`
}

// Open reports whether the window may still be consumed at tick
func (w *Window) Open(tick int) bool {
	return tick <= w.ExpiresTick
}

// Roster looks up who is in the fight
type Roster interface {
	Get(id string) (*combat.Combatant, bool)
	Ordered() []*combat.Combatant
}

// Scheduler is the slice of the tick stepper reactions need
type Scheduler interface {
	Tick() int
	Resolve(actorID string, desc *atb.Descriptor) (*atb.Resolved, error)
	Perform(ctx context.Context, actorID string, action atb.Action, meta atb.Meta) error
	Substitute(ctx context.Context, actorID string, res *atb.Resolved, meta atb.Meta) (*atb.Card, error)
}

// Gate vetoes reactions, typically from incapacitating ailments
type Gate interface {
	CantReact(actorID string) bool
}
