package atb

import (
	"context"
	"fmt"

	"github.com/KirkDiggler/rpg-atb/internal/errors"
)

// ExecContext is what an action sees when it performs
type ExecContext struct {
	Context context.Context
	ActorID string
	Tick    int
	Card    *Card // nil for instant and out-of-band actions
	Meta    Meta
}

// Action is a resolved catalog entry
type Action interface {
	ID() string
	Label() string
	Cost() CT
	Execute(ec *ExecContext) ([]Effect, error)
}

// Catalog looks actions up by kind and key
type Catalog interface {
	Lookup(kind Kind, key string) (Action, bool)
}

// Restrictions lets ailments reshape or veto an actor's next action
type Restrictions interface {
	CTAdjust(actorID string, kind Kind) CT
	Blocked(actorID string, kind Kind) (bool, string)
}

// Resolved is a descriptor bound to its action and adjusted cost
type Resolved struct {
	Action Action
	Kind   Kind
	Key    string
	Label  string
	CT     CT
}

// Resolver turns descriptors into actions
type Resolver struct {
	catalog      Catalog
	restrictions Restrictions
}

// NewResolver creates a resolver. restrictions may be nil.
func NewResolver(catalog Catalog, restrictions Restrictions) *Resolver {
	if catalog == nil {
		panic("catalog is required")
	}
	return &Resolver{
		catalog:      catalog,
		restrictions: restrictions,
	}
}

// Resolve binds a descriptor to its action, applying ailment tick adjustments
func (r *Resolver) Resolve(actorID string, desc *Descriptor) (*Resolved, error) {
	if desc == nil {
		return nil, errors.Resolutionf("nil descriptor for %s", actorID)
	}

	var action Action
	switch desc.Kind {
	case KindAttack, KindMove, KindAptitude, KindItem, KindReaction:
		found, ok := r.catalog.Lookup(desc.Kind, desc.Key)
		if !ok {
			return nil, errors.Resolutionf("no %s named %q", desc.Kind, desc.Key).
				WithMeta("actor_id", actorID)
		}
		action = found
	case KindWait:
		// a bare wait needs no catalog entry
		if desc.Key == "" {
			action = waitAction{ticks: desc.Meta.Ticks}
			break
		}
		found, ok := r.catalog.Lookup(desc.Kind, desc.Key)
		if !ok {
			return nil, errors.Resolutionf("no wait named %q", desc.Key).
				WithMeta("actor_id", actorID)
		}
		action = found
	default:
		return nil, errors.Resolutionf("unknown descriptor kind %q", desc.Kind).
			WithMeta("actor_id", actorID)
	}

	ct := action.Cost()
	if r.restrictions != nil {
		ct = ct.Add(r.restrictions.CTAdjust(actorID, desc.Kind))
	}

	return &Resolved{
		Action: action,
		Kind:   desc.Kind,
		Key:    action.ID(),
		Label:  action.Label(),
		CT:     ct,
	}, nil
}

// Lookup finds the action behind an in-flight card
func (r *Resolver) Lookup(card *Card) (Action, error) {
	if card.Kind == KindWait && card.ActionKey == waitKey {
		return waitAction{ticks: card.Rec}, nil
	}
	action, ok := r.catalog.Lookup(card.Kind, card.ActionKey)
	if !ok {
		return nil, errors.Resolutionf("no %s named %q", card.Kind, card.ActionKey).
			WithMeta("actor_id", card.ActorID)
	}
	return action, nil
}

// Blocked reports whether an actor may not start a descriptor right now
func (r *Resolver) Blocked(actorID string, kind Kind) (bool, string) {
	if r.restrictions == nil {
		return false, ""
	}
	return r.restrictions.Blocked(actorID, kind)
}

const waitKey = "wait"

// waitAction holds the actor in recovery for a number of ticks
type waitAction struct {
	ticks int
}

func (w waitAction) ID() string    { return waitKey }
func (w waitAction) Label() string { return "Wait" }
func (w waitAction) Cost() CT      { return CT{Rec: clampZero(w.ticks)} }

func (w waitAction) Execute(ec *ExecContext) ([]Effect, error) {
	return []Effect{Log("%s waits %s", ec.ActorID, pluralTicks(w.ticks))}, nil
}

func pluralTicks(n int) string {
	if n == 1 {
		return "1 tick"
	}
	return fmt.Sprintf("%d ticks", n)
}
