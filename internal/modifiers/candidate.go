package modifiers

import "fmt"

// Bucket is the origin category of a modifier. At most one candidate per
// bucket contributes to a total.
type Bucket string

const (
	BucketSpecies         Bucket = "species"
	BucketManeuver        Bucket = "maneuver"
	BucketObject          Bucket = "object"
	BucketSpecialization  Bucket = "specialization"
	BucketEquipment       Bucket = "equipment"
	BucketEquipmentShield Bucket = "equipment_shield" // shields stack with other equipment
	BucketState           Bucket = "state"
)

// Valid reports whether b is a known bucket
func (b Bucket) Valid() bool {
	switch b {
	case BucketSpecies, BucketManeuver, BucketObject, BucketSpecialization,
		BucketEquipment, BucketEquipmentShield, BucketState:
		return true
	}
	return false
}

// When restricts a candidate to matching roll contexts. Empty fields match
// everything.
type When struct {
	Phases []string `json:"phases,omitempty" yaml:"phases,omitempty"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Expr   string   `json:"expr,omitempty" yaml:"expr,omitempty"` // CEL, must evaluate to bool
}

// Candidate is one possible contribution to a roll total
type Candidate struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Value       int    `json:"value" yaml:"value"`
	DiceAdvance int    `json:"dice_advance,omitempty" yaml:"dice_advance,omitempty"`
	Bucket      Bucket `json:"bucket" yaml:"bucket"`
	When        When   `json:"when,omitempty" yaml:"when,omitempty"`
}

// Validate checks the bucket and compiles the When expression
func (c Candidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("modifier id is required")
	}
	if !c.Bucket.Valid() {
		return fmt.Errorf("modifier %s: unknown bucket %q", c.ID, c.Bucket)
	}
	if err := CheckExpr(c.When.Expr); err != nil {
		return fmt.Errorf("modifier %s: %w", c.ID, err)
	}
	return nil
}

func (c Candidate) String() string {
	label := c.Label
	if label == "" {
		label = c.ID
	}
	return fmt.Sprintf("%s (%+d)", label, c.Value)
}

// Context describes the roll being totalled
type Context struct {
	Phase string
	Tag   string
	Tags  []string
	Vars  map[string]any
}

// allTags merges Tag and Tags
func (c Context) allTags() []string {
	tags := make([]string, 0, len(c.Tags)+1)
	if c.Tag != "" {
		tags = append(tags, c.Tag)
	}
	return append(tags, c.Tags...)
}

func (w When) matchesStatic(ctx Context) bool {
	if len(w.Phases) > 0 && !contains(w.Phases, ctx.Phase) {
		return false
	}
	if len(w.Tags) == 0 {
		return true
	}
	for _, tag := range ctx.allTags() {
		if contains(w.Tags, tag) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
