package catalog

import (
	"fmt"
	"strings"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
)

// Effect types a catalog entry can declare
const (
	EffectLog          = "log"
	EffectAttack       = "attack"
	EffectMove         = "move"
	EffectApplyAilment = "apply_ailment"
	EffectBonus        = "bonus"
	EffectPrompt       = "prompt"
)

// ActionSpec is one catalog entry
type ActionSpec struct {
	Kind    atb.Kind     `yaml:"kind"`
	Key     string       `yaml:"key"`
	Label   string       `yaml:"label,omitempty"`
	Init    int          `yaml:"init"`
	Exec    int          `yaml:"exec"`
	Rec     int          `yaml:"rec"`
	Effects []EffectSpec `yaml:"effects"`
}

// EffectSpec declares one effect. Which fields matter depends on Type.
type EffectSpec struct {
	Type string `yaml:"type"`

	// log; {actor} and {target} are replaced
	Message string `yaml:"message,omitempty"`

	// attack
	Bonus    int      `yaml:"bonus,omitempty"`
	Damage   string   `yaml:"damage,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Announce bool     `yaml:"announce,omitempty"` // lets the target react before the roll

	// apply_ailment
	Ailment  string `yaml:"ailment,omitempty"`
	Severity string `yaml:"severity,omitempty"`
	Self     bool   `yaml:"self,omitempty"`

	// bonus
	Value      int      `yaml:"value,omitempty"`
	Types      []string `yaml:"types,omitempty"`
	Note       string   `yaml:"note,omitempty"`
	NextAction bool     `yaml:"next_action,omitempty"`

	// prompt
	Prompt  string   `yaml:"prompt,omitempty"`
	Options []string `yaml:"options,omitempty"`
}

// specAction runs a declarative catalog entry
type specAction struct {
	spec ActionSpec
}

func (a *specAction) ID() string    { return a.spec.Key }
func (a *specAction) Label() string { return a.spec.Label }

func (a *specAction) Cost() atb.CT {
	return atb.CT{Init: a.spec.Init, Exec: a.spec.Exec, Rec: a.spec.Rec}
}

// Execute turns the declared effects into scheduler effects for the acting
// unit. Missing targets fail the whole unit.
func (a *specAction) Execute(ec *atb.ExecContext) ([]atb.Effect, error) {
	actorID := ec.ActorID
	targetID := ec.Meta.TargetID

	effects := make([]atb.Effect, 0, len(a.spec.Effects))
	for _, e := range a.spec.Effects {
		switch e.Type {
		case EffectLog:
			msg := strings.NewReplacer("{actor}", actorID, "{target}", targetID).Replace(e.Message)
			effects = append(effects, atb.Log("%s", msg))

		case EffectAttack:
			if targetID == "" {
				return nil, fmt.Errorf("%s needs a target", a.spec.Key)
			}
			if e.Announce {
				effects = append(effects, atb.Raise(atb.Trigger{
					Reason:     atb.ReasonIncomingAttack,
					ProvokerID: actorID,
					TargetID:   targetID,
					Timing:     atb.TimingBefore,
				}))
			}
			effects = append(effects, atb.Attack(atb.AttackEffect{
				AttackerID: actorID,
				TargetID:   targetID,
				Bonus:      e.Bonus,
				Damage:     e.Damage,
				Tags:       append([]string{a.spec.Key}, e.Tags...),
			}))

		case EffectMove:
			if ec.Meta.To == nil {
				return nil, fmt.Errorf("%s needs a destination", a.spec.Key)
			}
			effects = append(effects, atb.Move(actorID, *ec.Meta.To))

		case EffectApplyAilment:
			target := targetID
			if e.Self {
				target = actorID
			}
			if target == "" {
				return nil, fmt.Errorf("%s needs a target for %s", a.spec.Key, e.Ailment)
			}
			effects = append(effects, atb.ApplyAilment(target, e.Ailment, e.Severity))

		case EffectBonus:
			note := e.Note
			if note == "" {
				note = a.spec.Label
			}
			effects = append(effects, atb.Bonus(actorID, atb.LedgerEntry{
				Tick:  ec.Tick,
				Value: e.Value,
				Types: e.Types,
				Note:  note,
			}, e.NextAction))

		case EffectPrompt:
			effects = append(effects, atb.Ask(actorID, e.Prompt, e.Options...))

		default:
			return nil, fmt.Errorf("%s has unknown effect type %q", a.spec.Key, e.Type)
		}
	}
	return effects, nil
}
