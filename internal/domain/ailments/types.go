package ailments

import (
	"fmt"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
)

// DurationType defines how long an ailment lasts
type DurationType string

const (
	DurationRounds       DurationType = "rounds"        // Lasts X rounds
	DurationUntilTreated DurationType = "until_treated" // Until someone treats it
	DurationPermanent    DurationType = "permanent"     // Until removed by effect
	DurationInstant      DurationType = "instant"       // Fires once, never retained
)

// Valid reports whether d is a known duration type
func (d DurationType) Valid() bool {
	switch d {
	case DurationRounds, DurationUntilTreated, DurationPermanent, DurationInstant:
		return true
	}
	return false
}

// Duration is how long a definition lasts once applied
type Duration struct {
	Type   DurationType `json:"type" yaml:"type"`
	Rounds int          `json:"rounds,omitempty" yaml:"rounds,omitempty"`
}

// Variant is what an ailment does at one severity
type Variant struct {
	Modifiers      []modifiers.Candidate `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	CTAdjust       atb.CT                `json:"ct_adjust" yaml:"ct_adjust,omitempty"`
	AdjustKinds    []atb.Kind            `json:"adjust_kinds,omitempty" yaml:"adjust_kinds,omitempty"` // empty means every kind
	BlocksMovement bool                  `json:"blocks_movement,omitempty" yaml:"blocks_movement,omitempty"`
	BlocksActions  bool                  `json:"blocks_actions,omitempty" yaml:"blocks_actions,omitempty"`
	CantReact      bool                  `json:"cant_react,omitempty" yaml:"cant_react,omitempty"`
}

func (v Variant) adjusts(kind atb.Kind) bool {
	if len(v.AdjustKinds) == 0 {
		return true
	}
	for _, k := range v.AdjustKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Grant is a child ailment applied alongside its parent
type Grant struct {
	AilmentID string `json:"ailment" yaml:"ailment"`
	Severity  string `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Definition describes an ailment and its severity variants
type Definition struct {
	ID               string             `json:"id" yaml:"id"`
	Name             string             `json:"name" yaml:"name"`
	Description      string             `json:"description,omitempty" yaml:"description,omitempty"`
	Duration         Duration           `json:"duration" yaml:"duration"`
	DefaultSeverity  string             `json:"default_severity" yaml:"default_severity"`
	Severities       map[string]Variant `json:"severities" yaml:"severities"`
	GrantsBySeverity map[string][]Grant `json:"grants_by_severity,omitempty" yaml:"grants_by_severity,omitempty"`
}

// Validate checks a definition on its own. Grants are checked by the tracker
// once every definition is known.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("ailment id is required")
	}
	if !d.Duration.Type.Valid() {
		return fmt.Errorf("ailment %s: unknown duration type %q", d.ID, d.Duration.Type)
	}
	if d.Duration.Type == DurationRounds && d.Duration.Rounds <= 0 {
		return fmt.Errorf("ailment %s: rounds duration needs a positive round count", d.ID)
	}
	if len(d.Severities) == 0 {
		return fmt.Errorf("ailment %s: at least one severity is required", d.ID)
	}
	if d.DefaultSeverity == "" {
		if len(d.Severities) != 1 {
			return fmt.Errorf("ailment %s: default_severity is required with several severities", d.ID)
		}
	} else if _, ok := d.Severities[d.DefaultSeverity]; !ok {
		return fmt.Errorf("ailment %s: default severity %q is not defined", d.ID, d.DefaultSeverity)
	}
	for severity, variant := range d.Severities {
		for _, m := range variant.Modifiers {
			// ailment modifiers always land in the state bucket
			if m.Bucket != "" && m.Bucket != modifiers.BucketState {
				return fmt.Errorf("ailment %s/%s: modifier %s must use the state bucket, not %q", d.ID, severity, m.ID, m.Bucket)
			}
			m.Bucket = modifiers.BucketState
			if err := m.Validate(); err != nil {
				return fmt.Errorf("ailment %s/%s: %w", d.ID, severity, err)
			}
		}
	}
	for severity := range d.GrantsBySeverity {
		if _, ok := d.Severities[severity]; !ok {
			return fmt.Errorf("ailment %s: grants for unknown severity %q", d.ID, severity)
		}
	}
	return nil
}

// defaultSeverity resolves an empty severity to the definition's default
func (d *Definition) defaultSeverity() string {
	if d.DefaultSeverity != "" {
		return d.DefaultSeverity
	}
	for severity := range d.Severities {
		return severity
	}
	return ""
}

// State represents an ailment currently affecting an actor
type State struct {
	ID              string   `json:"id"`
	DefinitionID    string   `json:"definition_id"`
	Severity        string   `json:"severity"`
	Duration        Duration `json:"duration"`
	RemainingRounds int      `json:"remaining_rounds"`
	AppliedAt       int      `json:"applied_at"` // tick
	Source          string   `json:"source"`
}
