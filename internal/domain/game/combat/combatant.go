package combat

import (
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
)

// CombatantType represents the type of combatant
type CombatantType string

const (
	CombatantTypePlayer  CombatantType = "player"
	CombatantTypeMonster CombatantType = "monster"
	CombatantTypeNPC     CombatantType = "npc"
)

// Side groups allies. Reactions only answer the other side.
type Side string

// ReactionAbility is a reaction a combatant knows and what it answers
type ReactionAbility struct {
	Key     string       `json:"key" yaml:"key"`         // catalog key of the reaction action
	Reasons []atb.Reason `json:"reasons" yaml:"reasons"` // triggers it qualifies for
	Phased  bool         `json:"phased" yaml:"phased"`   // replaces the schedule instead of acting out of band
}

// Answers reports whether the ability qualifies for a trigger reason
func (r ReactionAbility) Answers(reason atb.Reason) bool {
	for _, have := range r.Reasons {
		if have == reason {
			return true
		}
	}
	return false
}

// Combatant represents a participant in combat
type Combatant struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Type         CombatantType `json:"type" yaml:"type"`
	Side         Side          `json:"side" yaml:"side"`
	ControllerID string        `json:"controller_id,omitempty" yaml:"controller"` // user allowed to declare for it
	CurrentHP    int           `json:"current_hp" yaml:"hp"`
	MaxHP        int           `json:"max_hp" yaml:"max_hp"`
	TempHP       int           `json:"temp_hp" yaml:"temp_hp"`
	Defense      int           `json:"defense" yaml:"defense"`
	AttackBonus  int           `json:"attack_bonus" yaml:"attack_bonus"`
	Position     atb.Position  `json:"position" yaml:"position"`
	Reach        int           `json:"reach" yaml:"reach"`
	Stamina      int           `json:"stamina" yaml:"stamina"`
	Fatigue      int           `json:"fatigue" yaml:"fatigue"`
	Wear         int           `json:"wear" yaml:"-"`
	IsActive     bool          `json:"is_active" yaml:"-"`

	Reactions []ReactionAbility     `json:"reactions,omitempty" yaml:"reactions"`
	Modifiers []modifiers.Candidate `json:"modifiers,omitempty" yaml:"modifiers"` // species, equipment and the like
}

// IsAlive returns true if the combatant has more than 0 HP
func (c *Combatant) IsAlive() bool {
	return c.CurrentHP > 0
}

// Opposes reports whether two combatants are on different sides
func (c *Combatant) Opposes(other *Combatant) bool {
	return other != nil && c.Side != other.Side
}

// Threatens reports whether a square is inside the combatant's reach
func (c *Combatant) Threatens(p atb.Position) bool {
	return c.IsActive && c.Position.Distance(p) <= c.Reach
}

// ReactionFor returns the first known reaction answering a reason
func (c *Combatant) ReactionFor(reason atb.Reason) (ReactionAbility, bool) {
	for _, r := range c.Reactions {
		if r.Answers(reason) {
			return r, true
		}
	}
	return ReactionAbility{}, false
}

// WearMax is how much wear the combatant can take before exhaustion
func (c *Combatant) WearMax() int {
	if m := c.Stamina - c.Fatigue; m > 0 {
		return m
	}
	return 0
}

// CanSpendWear reports whether one more reaction is affordable
func (c *Combatant) CanSpendWear() bool {
	return c.Wear < c.WearMax()
}

// SpendWear takes one unit of wear
func (c *Combatant) SpendWear() error {
	if !c.CanSpendWear() {
		return errors.ResourceExhaustedf("%s is worn out (%d/%d)", c.ID, c.Wear, c.WearMax())
	}
	c.Wear++
	return nil
}

// RefundWear gives back one unit of wear
func (c *Combatant) RefundWear() {
	if c.Wear > 0 {
		c.Wear--
	}
}

// ResetWear returns wear to zero
func (c *Combatant) ResetWear() {
	c.Wear = 0
}

// ApplyDamage applies damage to a combatant
func (c *Combatant) ApplyDamage(damage int) {
	// First reduce temp HP
	if c.TempHP > 0 {
		if damage <= c.TempHP {
			c.TempHP -= damage
			return
		}
		damage -= c.TempHP
		c.TempHP = 0
	}

	// Then reduce current HP
	c.CurrentHP -= damage
	if c.CurrentHP <= 0 {
		c.CurrentHP = 0
		c.IsActive = false
	}
}

// Heal restores hit points to a combatant
func (c *Combatant) Heal(amount int) {
	c.CurrentHP += amount
	if c.CurrentHP > c.MaxHP {
		c.CurrentHP = c.MaxHP
	}

	// If they were at 0, they're back in the fight
	if c.CurrentHP > 0 && !c.IsActive {
		c.IsActive = true
	}
}

// AddTempHP adds temporary hit points
func (c *Combatant) AddTempHP(amount int) {
	// Temp HP doesn't stack, take the higher value
	if amount > c.TempHP {
		c.TempHP = amount
	}
}
