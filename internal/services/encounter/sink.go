package encounter

import (
	"context"
	"fmt"
	"log"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/roll"
)

// effectSink applies scheduler effects to the session's world
type effectSink struct {
	session *Session
}

// Apply implements atb.EffectSink
func (k *effectSink) Apply(ctx context.Context, actorID string, effect atb.Effect, opts atb.ApplyOptions) (*atb.Decision, error) {
	s := k.session
	if c, ok := s.encounter.Get(actorID); ok && !c.IsActive && effect.Kind != atb.EffectLog {
		return nil, errors.FailedPrecondition(actorID + " is down")
	}

	switch effect.Kind {
	case atb.EffectLog:
		s.combatLog("%s", effect.Log.Message)
		return nil, nil

	case atb.EffectMove:
		return nil, k.move(effect.Move)

	case atb.EffectTrigger:
		return k.trigger(effect.Trigger, opts), nil

	case atb.EffectAttack:
		return nil, k.attack(effect.Attack)

	case atb.EffectAilment:
		a := effect.Ailment
		if _, err := s.combatant(a.TargetID); err != nil {
			return nil, err
		}
		_, err := s.tracker.Apply(a.TargetID, a.AilmentID, a.Severity, actorID, s.state.Tick)
		return nil, err

	case atb.EffectLedger:
		l := effect.Ledger
		mods := s.state.Actor(l.ActorID).Mods
		if l.NextAction {
			mods.SetNextAction(l.Entry)
		} else {
			mods.PushCurrent(l.Entry)
		}
		return nil, nil

	case atb.EffectDecision:
		d := effect.Decision
		return &atb.Decision{
			ID:       s.uuidGenerator.New(),
			ActorID:  d.ActorID,
			Prompt:   d.Prompt,
			Options:  append([]string(nil), d.Options...),
			Tick:     s.state.Tick,
			Deadline: s.clock.Now().Add(s.decisionTimeout),
		}, nil
	}

	return nil, errors.InvalidArgumentf("unknown effect kind %q", effect.Kind)
}

// Resolve implements atb.EffectSink. Decisions carrying windows react with
// the chosen ability; plain prompts are only recorded.
func (k *effectSink) Resolve(ctx context.Context, decision *atb.Decision, choice string) error {
	s := k.session
	s.combatLog("%s chose %s", decision.ActorID, choice)
	if choice == atb.ChoiceNone {
		return nil
	}

	for _, id := range decision.WindowIDs {
		w, ok := s.reactions.Window(id)
		if !ok {
			continue
		}
		c, err := s.combatant(w.ActorID)
		if err != nil {
			return err
		}
		ability, ok := c.ReactionFor(w.Reason)
		if !ok || ability.Key != choice {
			continue
		}

		if ability.Phased {
			_, err = s.reactions.Substitute(ctx, w.ActorID, w.ID, ability.Key)
		} else {
			_, err = s.reactions.TryReactOpportunity(ctx, w.ActorID, w.ProvokerID)
		}
		return err
	}
	return nil
}

func (k *effectSink) move(m *atb.MoveEffect) error {
	s := k.session
	c, err := s.combatant(m.ActorID)
	if err != nil {
		return err
	}

	from := c.Position
	c.Position = m.To
	s.combatLog("%s moves to (%d,%d)", c.ID, m.To.X, m.To.Y)

	s.reactions.Fire(atb.Trigger{
		Reason:     atb.ReasonLeaveMelee,
		ProvokerID: c.ID,
		From:       from,
		To:         m.To,
	})
	return nil
}

// trigger opens windows. An incoming attack announced before the roll asks
// the defender whether to react when the batch may pause.
func (k *effectSink) trigger(t *atb.Trigger, opts atb.ApplyOptions) *atb.Decision {
	s := k.session
	opened := s.reactions.Fire(*t)
	if !opts.AllowDecision || t.Reason != atb.ReasonIncomingAttack || t.Timing != atb.TimingBefore {
		return nil
	}

	for _, w := range opened {
		if w.ActorID != t.TargetID {
			continue
		}
		defender, ok := s.encounter.Get(w.ActorID)
		if !ok {
			continue
		}
		ability, ok := defender.ReactionFor(w.Reason)
		if !ok {
			continue
		}
		return &atb.Decision{
			ID:        s.uuidGenerator.New(),
			ActorID:   defender.ID,
			Prompt:    fmt.Sprintf("%s is about to attack %s. Use %s?", t.ProvokerID, defender.ID, ability.Key),
			Options:   []string{ability.Key, atb.ChoiceNone},
			WindowIDs: []string{w.ID},
			Tick:      s.state.Tick,
			Deadline:  s.clock.Now().Add(s.decisionTimeout),
		}
	}
	return nil
}

// attack rolls against the target's defense and applies damage on a hit.
// A natural 1 opens fumble windows for everyone threatening the attacker.
func (k *effectSink) attack(a *atb.AttackEffect) error {
	s := k.session
	attacker, err := s.combatant(a.AttackerID)
	if err != nil {
		return err
	}
	target, err := s.combatant(a.TargetID)
	if err != nil {
		return errors.Wrap(err, "unreachable target")
	}
	if !target.IsActive {
		return errors.FailedPrecondition(target.ID + " is already down")
	}

	check, err := s.pipeline.Check(roll.CheckRequest{
		ActorID: attacker.ID,
		Base:    attacker.AttackBonus + a.Bonus,
		Target:  target.Defense,
		Context: modifiers.Context{Phase: roll.PhaseAttack, Tags: a.Tags},
	})
	if err != nil {
		return err
	}

	if check.IsFumble {
		s.combatLog("%s fumbles against %s: %s", attacker.ID, target.ID, check.Summary())
		s.reactions.Fire(atb.Trigger{
			Reason:     atb.ReasonFumble,
			ProvokerID: attacker.ID,
			TargetID:   target.ID,
		})
		return nil
	}
	if !check.Success {
		s.combatLog("%s misses %s: %s", attacker.ID, target.ID, check.Summary())
		return nil
	}

	if a.Damage == "" {
		s.combatLog("%s hits %s: %s", attacker.ID, target.ID, check.Summary())
		return nil
	}

	dmg, err := s.pipeline.Damage(roll.DamageRequest{
		ActorID:  attacker.ID,
		Notation: a.Damage,
		Critical: check.IsCrit,
		Context:  modifiers.Context{Phase: roll.PhaseDamage, Tags: a.Tags},
	})
	if err != nil {
		return err
	}

	target.ApplyDamage(dmg.Total)
	s.combatLog("%s hits %s for %d: %s", attacker.ID, target.ID, dmg.Total, check.Summary())
	if !target.IsActive {
		s.combatLog("%s falls", target.ID)
		if over, winner := s.encounter.CheckCombatEnd(); over {
			log.Printf("[SESSION] Only side %q is standing in %s", winner, s.id)
		}
	}
	return nil
}
