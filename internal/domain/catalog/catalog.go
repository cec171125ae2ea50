// Package catalog loads the actions actors can declare from YAML files
package catalog

import (
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/ailments"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a catalog
type File struct {
	Actions  []ActionSpec          `yaml:"actions"`
	Ailments []ailments.Definition `yaml:"ailments"`
}

// Catalog maps (kind, key) to actions
type Catalog struct {
	mu       sync.RWMutex
	actions  map[atb.Kind]map[string]atb.Action
	ailments []ailments.Definition
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		actions: make(map[atb.Kind]map[string]atb.Action),
	}
}

// Load reads and validates a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog %s", path)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load catalog %s", path)
	}
	log.Printf("[CATALOG] Loaded %d actions and %d ailments from %s", c.size(), len(c.ailments), path)
	return c, nil
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Validationf("invalid catalog yaml: %v", err)
	}

	known := make(map[string]bool, len(file.Ailments))
	for i := range file.Ailments {
		def := &file.Ailments[i]
		if err := def.Validate(); err != nil {
			return nil, errors.Validationf("%v", err)
		}
		if known[def.ID] {
			return nil, errors.Validationf("ailment %s is defined twice", def.ID)
		}
		known[def.ID] = true
	}

	c := New()
	c.ailments = file.Ailments
	for i := range file.Actions {
		spec := file.Actions[i]
		if err := spec.validate(known); err != nil {
			return nil, err
		}
		if spec.Label == "" {
			spec.Label = labelFor(spec.Key)
		}
		if err := c.Register(spec.Kind, &specAction{spec: spec}); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Register adds an action defined in code
func (c *Catalog) Register(kind atb.Kind, action atb.Action) error {
	if !kind.Valid() {
		return errors.InvalidArgumentf("unknown action kind %q", kind)
	}
	if action == nil || action.ID() == "" {
		return errors.InvalidArgument("action with a key is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.actions[kind] == nil {
		c.actions[kind] = make(map[string]atb.Action)
	}
	if _, exists := c.actions[kind][action.ID()]; exists {
		return errors.AlreadyExistsf("%s action %q is already in the catalog", kind, action.ID())
	}
	c.actions[kind][action.ID()] = action
	return nil
}

// Lookup implements atb.Catalog
func (c *Catalog) Lookup(kind atb.Kind, key string) (atb.Action, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.actions[kind][key]
	return a, ok
}

// Keys lists the catalog keys for a kind in order
func (c *Catalog) Keys(kind atb.Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.actions[kind]))
	for key := range c.actions[kind] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Ailments returns the ailment definitions shipped with the catalog
func (c *Catalog) Ailments() []ailments.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ailments.Definition(nil), c.ailments...)
}

func (c *Catalog) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, byKey := range c.actions {
		n += len(byKey)
	}
	return n
}

// labelFor turns "shield_bash" into "Shield Bash"
func labelFor(key string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return cases.Title(language.English).String(words)
}

// validate checks a spec against the ailments known to the file
func (s *ActionSpec) validate(ailmentIDs map[string]bool) error {
	if !s.Kind.Valid() {
		return errors.Validationf("action %q: unknown kind %q", s.Key, s.Kind)
	}
	if s.Key == "" {
		return errors.Validationf("%s action without a key", s.Kind)
	}
	if s.Init < 0 || s.Exec < 0 || s.Rec < 0 {
		return errors.Validationf("action %s: phase lengths cannot be negative", s.Key)
	}

	for i, e := range s.Effects {
		switch e.Type {
		case EffectLog:
			if e.Message == "" {
				return errors.Validationf("action %s effect %d: log needs a message", s.Key, i)
			}
		case EffectAttack:
			if e.Damage != "" {
				if _, _, _, err := dice.Parse(e.Damage); err != nil {
					return errors.Validationf("action %s effect %d: %v", s.Key, i, err)
				}
			}
		case EffectMove:
		case EffectApplyAilment:
			if e.Ailment == "" {
				return errors.Validationf("action %s effect %d: apply_ailment needs an ailment", s.Key, i)
			}
			if len(ailmentIDs) > 0 && !ailmentIDs[e.Ailment] {
				return errors.Validationf("action %s effect %d: unknown ailment %q", s.Key, i, e.Ailment)
			}
		case EffectBonus:
			if e.Value == 0 {
				return errors.Validationf("action %s effect %d: bonus needs a non-zero value", s.Key, i)
			}
		case EffectPrompt:
			if e.Prompt == "" || len(e.Options) == 0 {
				return errors.Validationf("action %s effect %d: prompt needs text and options", s.Key, i)
			}
		default:
			return errors.Validationf("action %s effect %d: unknown effect type %q", s.Key, i, e.Type)
		}
	}
	return nil
}
