package atb

import (
	"fmt"
	"time"
)

// EffectKind tags which payload of an Effect is set
type EffectKind string

const (
	EffectLog      EffectKind = "log"
	EffectMove     EffectKind = "move"
	EffectTrigger  EffectKind = "trigger"
	EffectAttack   EffectKind = "attack"
	EffectAilment  EffectKind = "ailment"
	EffectLedger   EffectKind = "ledger"
	EffectDecision EffectKind = "decision"
)

// Effect is one observable outcome of an action. Exactly one payload is set,
// matching Kind.
type Effect struct {
	Kind     EffectKind      `json:"kind"`
	Log      *LogEffect      `json:"log,omitempty"`
	Move     *MoveEffect     `json:"move,omitempty"`
	Trigger  *Trigger        `json:"trigger,omitempty"`
	Attack   *AttackEffect   `json:"attack,omitempty"`
	Ailment  *AilmentEffect  `json:"ailment,omitempty"`
	Ledger   *LedgerEffect   `json:"ledger,omitempty"`
	Decision *DecisionEffect `json:"decision,omitempty"`
}

// Validate checks that the payload matches the tag
func (e Effect) Validate() error {
	var ok bool
	switch e.Kind {
	case EffectLog:
		ok = e.Log != nil
	case EffectMove:
		ok = e.Move != nil
	case EffectTrigger:
		ok = e.Trigger != nil
	case EffectAttack:
		ok = e.Attack != nil
	case EffectAilment:
		ok = e.Ailment != nil
	case EffectLedger:
		ok = e.Ledger != nil
	case EffectDecision:
		ok = e.Decision != nil
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	if !ok {
		return fmt.Errorf("effect %q has no payload", e.Kind)
	}
	return nil
}

// LogEffect writes a line to the combat log
type LogEffect struct {
	Message string `json:"message"`
}

// MoveEffect relocates an actor on the grid
type MoveEffect struct {
	ActorID string   `json:"actorId"`
	To      Position `json:"to"`
}

// AttackEffect rolls an attack against a target when applied
type AttackEffect struct {
	AttackerID string   `json:"attackerId"`
	TargetID   string   `json:"targetId"`
	Bonus      int      `json:"bonus"`
	Damage     string   `json:"damage"`
	Tags       []string `json:"tags,omitempty"`
}

// AilmentEffect applies an ailment to a target
type AilmentEffect struct {
	TargetID  string `json:"targetId"`
	AilmentID string `json:"ailmentId"`
	Severity  string `json:"severity,omitempty"`
}

// LedgerEffect pushes a bonus onto an actor's ledger
type LedgerEffect struct {
	ActorID    string      `json:"actorId"`
	Entry      LedgerEntry `json:"entry"`
	NextAction bool        `json:"nextAction,omitempty"`
}

// DecisionEffect asks someone for a choice before the batch continues
type DecisionEffect struct {
	ActorID string   `json:"actorId"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Reason is why a reaction window opens
type Reason string

const (
	ReasonLeaveMelee     Reason = "leave_melee"
	ReasonFumble         Reason = "fumble"
	ReasonIncomingAttack Reason = "incoming_attack"
)

// Valid reports whether r is a known trigger reason
func (r Reason) Valid() bool {
	switch r {
	case ReasonLeaveMelee, ReasonFumble, ReasonIncomingAttack:
		return true
	}
	return false
}

// Timing places an incoming-attack trigger relative to the roll
type Timing string

const (
	TimingBefore Timing = "before"
	TimingAfter  Timing = "after"
)

// Trigger is a reaction-worthy event raised while effects apply
type Trigger struct {
	Reason     Reason   `json:"reason"`
	ProvokerID string   `json:"provokerId"`
	TargetID   string   `json:"targetId,omitempty"`
	Timing     Timing   `json:"timing,omitempty"`
	From       Position `json:"from"`
	To         Position `json:"to"`
}

// ChoiceNone is the answer used when a decision is declined or times out
const ChoiceNone = "none"

// Decision is a question the stepper is waiting on
type Decision struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	WindowIDs []string  `json:"windowIds,omitempty"`
	Tick      int       `json:"tick"`
	Deadline  time.Time `json:"deadline"`
}

// Allows reports whether choice is an accepted answer
func (d *Decision) Allows(choice string) bool {
	if choice == ChoiceNone {
		return true
	}
	for _, opt := range d.Options {
		if opt == choice {
			return true
		}
	}
	return false
}

// Convenience constructors keep Kind and payload in step

func Log(format string, args ...any) Effect {
	return Effect{Kind: EffectLog, Log: &LogEffect{Message: fmt.Sprintf(format, args...)}}
}

func Move(actorID string, to Position) Effect {
	return Effect{Kind: EffectMove, Move: &MoveEffect{ActorID: actorID, To: to}}
}

func Raise(t Trigger) Effect {
	return Effect{Kind: EffectTrigger, Trigger: &t}
}

func Attack(a AttackEffect) Effect {
	return Effect{Kind: EffectAttack, Attack: &a}
}

func ApplyAilment(targetID, ailmentID, severity string) Effect {
	return Effect{Kind: EffectAilment, Ailment: &AilmentEffect{TargetID: targetID, AilmentID: ailmentID, Severity: severity}}
}

func Bonus(actorID string, entry LedgerEntry, nextAction bool) Effect {
	return Effect{Kind: EffectLedger, Ledger: &LedgerEffect{ActorID: actorID, Entry: entry, NextAction: nextAction}}
}

func Ask(actorID, prompt string, options ...string) Effect {
	return Effect{Kind: EffectDecision, Decision: &DecisionEffect{ActorID: actorID, Prompt: prompt, Options: options}}
}
