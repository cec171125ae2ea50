// Package roll turns dice and modifier candidates into rendered totals
package roll

import (
	"fmt"
	"strings"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
)

// Roll phases passed to the aggregator
const (
	PhaseAttack  = "attack"
	PhaseDamage  = "damage"
	PhaseDefense = "defense"
)

// PipelineConfig holds the dependencies for a roll pipeline
type PipelineConfig struct {
	Roller     dice.Roller
	Aggregator *modifiers.Aggregator
}

// Pipeline rolls dice and totals modifiers through the aggregator
type Pipeline struct {
	roller     dice.Roller
	aggregator *modifiers.Aggregator
}

// NewPipeline creates a roll pipeline
func NewPipeline(cfg *PipelineConfig) *Pipeline {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Roller == nil {
		panic("roller is required")
	}
	if cfg.Aggregator == nil {
		panic("aggregator is required")
	}

	return &Pipeline{
		roller:     cfg.Roller,
		aggregator: cfg.Aggregator,
	}
}

// Aggregator exposes the aggregator so callers can register providers
func (p *Pipeline) Aggregator() *modifiers.Aggregator {
	return p.aggregator
}

// CheckRequest is a d20 roll against an optional target
type CheckRequest struct {
	ActorID string
	Base    int // flat bonus before modifiers, e.g. attack bonus
	Target  int // 0 means no target
	Context modifiers.Context
	Extra   []modifiers.Candidate
}

// CheckResult is a rendered d20 roll
type CheckResult struct {
	Roll      *dice.RollResult  `json:"roll"`
	Modifiers *modifiers.Result `json:"modifiers"`
	Natural   int               `json:"natural"`
	Total     int               `json:"total"`
	Target    int               `json:"target,omitempty"`
	Success   bool              `json:"success"`
	IsCrit    bool              `json:"is_crit"`
	IsFumble  bool              `json:"is_fumble"`
}

// Check rolls a d20 and adds base plus the aggregated modifiers. A natural 20
// always succeeds and a natural 1 always fails.
func (p *Pipeline) Check(req CheckRequest) (*CheckResult, error) {
	rolled, err := p.roller.Roll(1, 20, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll d20")
	}

	mods := p.aggregator.Aggregate(req.ActorID, req.Base, req.Context, req.Extra...)
	result := &CheckResult{
		Roll:      rolled,
		Modifiers: mods,
		Natural:   rolled.Natural(),
		Total:     rolled.Total + mods.Total,
		Target:    req.Target,
		IsCrit:    rolled.IsCrit,
		IsFumble:  rolled.IsFumble,
	}

	switch {
	case result.IsCrit:
		result.Success = true
	case result.IsFumble:
		result.Success = false
	case req.Target > 0:
		result.Success = result.Total >= req.Target
	default:
		result.Success = true
	}

	return result, nil
}

// Summary renders a check as "d20 (14) +3 = 17 vs 15"
func (r *CheckResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "d20 (%d) %+d = %d", r.Natural, r.Modifiers.Total, r.Total)
	if r.Target > 0 {
		fmt.Fprintf(&b, " vs %d", r.Target)
	}
	switch {
	case r.IsCrit:
		b.WriteString(" CRIT")
	case r.IsFumble:
		b.WriteString(" FUMBLE")
	}
	return b.String()
}

// DamageRequest is a damage roll in dice notation
type DamageRequest struct {
	ActorID  string
	Notation string // "1d8+2"
	Critical bool   // doubles the dice, not the bonus
	Context  modifiers.Context
	Extra    []modifiers.Candidate
}

// DamageResult is a rendered damage roll
type DamageResult struct {
	Roll      *dice.RollResult  `json:"roll"`
	Modifiers *modifiers.Result `json:"modifiers"`
	Sides     int               `json:"sides"` // after dice advances
	Total     int               `json:"total"`
}

// Damage rolls damage dice. Dice advances from the aggregator move the die
// size along the ladder, and the total never drops below zero.
func (p *Pipeline) Damage(req DamageRequest) (*DamageResult, error) {
	count, sides, bonus, err := dice.Parse(req.Notation)
	if err != nil {
		return nil, errors.InvalidArgumentf("bad damage dice %q: %v", req.Notation, err)
	}

	ctx := req.Context
	if ctx.Phase == "" {
		ctx.Phase = PhaseDamage
	}
	mods := p.aggregator.Aggregate(req.ActorID, bonus, ctx, req.Extra...)

	sides = dice.Advance(sides, mods.DiceAdvances)
	if req.Critical {
		count *= 2
	}

	rolled, err := p.roller.Roll(count, sides, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %dd%d", count, sides)
	}

	total := rolled.Total + mods.Total
	if total < 0 {
		total = 0
	}

	return &DamageResult{
		Roll:      rolled,
		Modifiers: mods,
		Sides:     sides,
		Total:     total,
	}, nil
}
