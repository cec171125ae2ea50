package encounter

import (
	"context"
	"log"

	"github.com/KirkDiggler/rpg-atb/internal/domain/ailments"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/domain/reactions"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
)

// AdvanceOneTick performs one unit of scheduler work. Only the driver may
// advance. A decision left unanswered past its deadline is answered with
// "none" instead.
func (s *Session) AdvanceOneTick(ctx context.Context, userID string) (atb.StepOutcome, error) {
	v, err := s.submit(ctx, "advance", true, func(ctx context.Context) (any, error) {
		if err := s.requireDriver(userID, "advance"); err != nil {
			return nil, err
		}
		if err := s.requireActive(); err != nil {
			return nil, err
		}

		if pending := s.state.PendingDecision; pending != nil && s.expired(pending) {
			log.Printf("[SESSION] Decision %s for %s timed out in %s", pending.ID, pending.ActorID, s.id)
			return s.stepper.Resume(ctx, pending.ID, atb.ChoiceNone)
		}
		return s.stepper.Step(ctx)
	})
	if err != nil {
		return atb.StepOutcome{}, err
	}
	return v.(atb.StepOutcome), nil
}

// ResetScheduler throws the schedule away. Only the driver may reset.
func (s *Session) ResetScheduler(ctx context.Context, userID string) error {
	_, err := s.submit(ctx, "reset", true, func(ctx context.Context) (any, error) {
		if err := s.requireDriver(userID, "reset"); err != nil {
			return nil, err
		}
		s.stepper.Reset()
		s.reactions.Restore(nil)
		s.encounter.Tick = 0
		return nil, nil
	})
	return err
}

// EnqueueAction queues a descriptor for an actor the user controls. A nil
// targetTick means the current tick.
func (s *Session) EnqueueAction(ctx context.Context, userID, actorID string, desc atb.Descriptor, targetTick *int) (*atb.Descriptor, error) {
	v, err := s.submit(ctx, "enqueue", true, func(ctx context.Context) (any, error) {
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		actor, err := s.combatant(actorID)
		if err != nil {
			return nil, err
		}
		if !s.encounter.CanControl(userID, actorID) {
			return nil, errors.PermissionDenied(userID + " does not control " + actorID)
		}
		if !actor.IsActive {
			return nil, errors.FailedPrecondition(actorID + " is down")
		}
		if targetTick != nil && *targetTick < s.state.Tick {
			return nil, errors.InvalidArgumentf("tick %d has already passed (now %d)", *targetTick, s.state.Tick)
		}
		if id := desc.Meta.TargetID; id != "" {
			target, err := s.combatant(id)
			if err != nil {
				return nil, errors.Wrap(err, "unreachable target")
			}
			if !target.IsActive {
				return nil, errors.FailedPrecondition("target " + id + " is down")
			}
		}
		if _, err := s.stepper.Resolve(actorID, &desc); err != nil {
			return nil, err
		}

		queued, err := s.stepper.Enqueue(actorID, desc, targetTick)
		if err != nil {
			return nil, err
		}
		out := *queued
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*atb.Descriptor), nil
}

// OpenReactionWindow lets the driver grant an actor a window by hand
func (s *Session) OpenReactionWindow(ctx context.Context, userID, actorID string, reason atb.Reason, expiresTick int, payload reactions.Payload) (*reactions.Window, error) {
	v, err := s.submit(ctx, "open_window", true, func(ctx context.Context) (any, error) {
		if err := s.requireDriver(userID, "open reaction windows"); err != nil {
			return nil, err
		}
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		w, err := s.reactions.Open(actorID, reason, expiresTick, payload)
		if err != nil {
			return nil, err
		}
		out := *w
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*reactions.Window), nil
}

// TryReactOpportunity spends the reactor's free reaction against the provoker
func (s *Session) TryReactOpportunity(ctx context.Context, userID, reactorID, provokerID string) (*reactions.Window, error) {
	v, err := s.submit(ctx, "react", true, func(ctx context.Context) (any, error) {
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		if err := s.requireControl(userID, reactorID); err != nil {
			return nil, err
		}
		w, err := s.reactions.TryReactOpportunity(ctx, reactorID, provokerID)
		if err != nil {
			return nil, err
		}
		out := *w
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*reactions.Window), nil
}

// SubstituteWithReaction replaces the reactor's schedule with a phased
// reaction. An empty reactionKey uses the ability answering the window.
func (s *Session) SubstituteWithReaction(ctx context.Context, userID, reactorID, windowID, reactionKey string) (*atb.Card, error) {
	v, err := s.submit(ctx, "substitute", true, func(ctx context.Context) (any, error) {
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		if err := s.requireControl(userID, reactorID); err != nil {
			return nil, err
		}
		card, err := s.reactions.Substitute(ctx, reactorID, windowID, reactionKey)
		if err != nil {
			return nil, err
		}
		if card == nil {
			// instant reactions perform at once and leave no card
			return (*atb.Card)(nil), nil
		}
		out := *card
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*atb.Card), nil
}

// ResolveDecision answers the pending decision and finishes the paused batch
func (s *Session) ResolveDecision(ctx context.Context, userID, decisionID, choice string) (atb.StepOutcome, error) {
	v, err := s.submit(ctx, "resolve", true, func(ctx context.Context) (any, error) {
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		pending := s.state.PendingDecision
		if pending == nil {
			return nil, errors.FailedPrecondition("no decision is pending")
		}
		if pending.ID != decisionID {
			return nil, errors.NotFoundf("decision %s is not pending", decisionID)
		}
		if err := s.requireControl(userID, pending.ActorID); err != nil {
			return nil, err
		}
		if s.expired(pending) {
			return nil, errors.FailedPrecondition("decision " + decisionID + " has expired")
		}
		return s.stepper.Resume(ctx, decisionID, choice)
	})
	if err != nil {
		return atb.StepOutcome{}, err
	}
	return v.(atb.StepOutcome), nil
}

// ApplyAilment puts an ailment on an actor. Only the driver may apply by hand.
func (s *Session) ApplyAilment(ctx context.Context, userID, actorID, ailmentID, severity string) (*ailments.State, error) {
	v, err := s.submit(ctx, "apply_ailment", true, func(ctx context.Context) (any, error) {
		if err := s.requireDriver(userID, "apply ailments"); err != nil {
			return nil, err
		}
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		if _, err := s.combatant(actorID); err != nil {
			return nil, err
		}
		st, err := s.tracker.Apply(actorID, ailmentID, severity, userID, s.state.Tick)
		if err != nil {
			return nil, err
		}
		out := *st
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ailments.State), nil
}

// TreatAilment removes an until-treated ailment
func (s *Session) TreatAilment(ctx context.Context, userID, actorID, ailmentID string) error {
	_, err := s.submit(ctx, "treat_ailment", true, func(ctx context.Context) (any, error) {
		if err := s.requireActive(); err != nil {
			return nil, err
		}
		if err := s.requireControl(userID, actorID); err != nil {
			return nil, err
		}
		return nil, s.tracker.Treat(actorID, ailmentID)
	})
	return err
}

// EndCombat closes the fight, every window and everyone's wear
func (s *Session) EndCombat(ctx context.Context, userID string) error {
	_, err := s.submit(ctx, "end", true, func(ctx context.Context) (any, error) {
		if err := s.requireDriver(userID, "end combat"); err != nil {
			return nil, err
		}
		if err := s.requireActive(); err != nil {
			return nil, err
		}

		s.encounter.End()
		s.reactions.EndCombat()
		s.status = session.StatusEnded
		s.combatLog("Combat ended")

		log.Printf("[SESSION] Combat %s ended at tick %d", s.id, s.state.Tick)
		if err := s.bus.Emit(events.NewGameEvent(events.OnCombatEnded, userID).
			WithContext(events.ContextTick, s.state.Tick)); err != nil {
			log.Printf("[SESSION] Listener error on %s: %v", events.OnCombatEnded, err)
		}
		return nil, nil
	})
	return err
}

// Aggregate totals an actor's modifiers for a roll context
func (s *Session) Aggregate(ctx context.Context, actorID string, base int, mctx modifiers.Context) (*modifiers.Result, error) {
	v, err := s.submit(ctx, "aggregate", false, func(ctx context.Context) (any, error) {
		if _, err := s.combatant(actorID); err != nil {
			return nil, err
		}
		return s.pipeline.Aggregator().Aggregate(actorID, base, mctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*modifiers.Result), nil
}

// Snapshot returns a copy of the whole session
func (s *Session) Snapshot(ctx context.Context) (*session.Snapshot, error) {
	v, err := s.submit(ctx, "snapshot", false, func(ctx context.Context) (any, error) {
		snap, err := s.snapshot().Clone()
		if err != nil {
			return nil, errors.Wrap(err, "failed to copy snapshot")
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Snapshot), nil
}

// Helper methods

func (s *Session) requireDriver(userID, what string) error {
	if userID == "" || userID != s.driverID {
		return errors.PermissionDenied("only the driver may " + what).
			WithMeta("user_id", userID)
	}
	return nil
}

func (s *Session) requireControl(userID, actorID string) error {
	if userID == s.driverID || s.encounter.CanControl(userID, actorID) {
		return nil
	}
	return errors.PermissionDenied(userID + " does not control " + actorID)
}

func (s *Session) requireActive() error {
	if s.status != session.StatusActive || !s.encounter.IsActive() {
		return errors.FailedPrecondition("no active combat in " + s.id)
	}
	return nil
}

func (s *Session) combatant(id string) (*combat.Combatant, error) {
	c, ok := s.encounter.Get(id)
	if !ok {
		return nil, errors.NotFoundf("combatant %s not found", id)
	}
	return c, nil
}

func (s *Session) expired(d *atb.Decision) bool {
	return !d.Deadline.IsZero() && s.clock.Now().After(d.Deadline)
}
