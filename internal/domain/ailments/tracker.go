package ailments

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
)

// Tracker handles ailment tracking for every actor in a combat
type Tracker struct {
	mu            sync.RWMutex
	definitions   map[string]*Definition
	states        map[string]map[string]*State // actor ID -> state ID -> state
	eventBus      events.Bus
	uuidGenerator uuid.Generator
}

// NewTracker creates a tracker over a validated set of definitions
func NewTracker(eventBus events.Bus, defs ...Definition) (*Tracker, error) {
	t := &Tracker{
		definitions:   make(map[string]*Definition, len(defs)),
		states:        make(map[string]map[string]*State),
		eventBus:      eventBus,
		uuidGenerator: uuid.NewGoogleUUIDGenerator(),
	}

	for i := range defs {
		def := defs[i]
		if err := def.Validate(); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeValidation, "invalid ailment definition")
		}
		if _, dup := t.definitions[def.ID]; dup {
			return nil, errors.AlreadyExistsf("ailment %s is defined twice", def.ID)
		}
		t.definitions[def.ID] = &def
	}

	// grants may point anywhere, including back at themselves, but must exist
	for _, def := range t.definitions {
		for severity, grants := range def.GrantsBySeverity {
			for _, g := range grants {
				child, ok := t.definitions[g.AilmentID]
				if !ok {
					return nil, errors.Validationf("ailment %s/%s grants unknown ailment %q", def.ID, severity, g.AilmentID)
				}
				if g.Severity != "" {
					if _, ok := child.Severities[g.Severity]; !ok {
						return nil, errors.Validationf("ailment %s/%s grants %s at unknown severity %q", def.ID, severity, child.ID, g.Severity)
					}
				}
			}
		}
	}

	return t, nil
}

// SetUUIDGenerator swaps the ID source, mostly for tests
func (t *Tracker) SetUUIDGenerator(g uuid.Generator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uuidGenerator = g
}

// Definition returns a definition by ID
func (t *Tracker) Definition(id string) (*Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.definitions[id]
	return def, ok
}

// Apply puts an ailment on an actor and cascades its grants
func (t *Tracker) Apply(actorID, defID, severity, source string, tick int) (*State, error) {
	t.mu.Lock()
	var pending []*events.GameEvent
	state, err := t.apply(actorID, defID, severity, source, tick, map[string]bool{}, &pending)
	t.mu.Unlock()

	t.emit(pending)
	return state, err
}

func (t *Tracker) apply(actorID, defID, severity, source string, tick int, visited map[string]bool, pending *[]*events.GameEvent) (*State, error) {
	if visited[defID] {
		log.Printf("[AILMENTS] Skipping %s on %s: already applied in this cascade", defID, actorID)
		return nil, nil
	}
	visited[defID] = true

	def, ok := t.definitions[defID]
	if !ok {
		return nil, errors.NotFoundf("ailment %s is not defined", defID)
	}
	if severity == "" {
		severity = def.defaultSeverity()
	}
	if _, ok := def.Severities[severity]; !ok {
		return nil, errors.InvalidArgumentf("ailment %s has no severity %q", defID, severity)
	}

	var state *State
	switch existing := t.byDefinition(actorID, defID); {
	case def.Duration.Type == DurationInstant:
		state = &State{
			ID:           t.uuidGenerator.New(),
			DefinitionID: defID,
			Severity:     severity,
			Duration:     def.Duration,
			AppliedAt:    tick,
			Source:       source,
		}
		*pending = append(*pending, t.event(events.OnAilmentApplied, actorID, state))
		log.Printf("[AILMENTS] %s fired on %s (instant)", defID, actorID)

	case existing != nil:
		// Ailments don't stack - refresh duration if new is longer
		changed := existing.Severity != severity
		existing.Severity = severity
		if def.Duration.Type == DurationRounds && def.Duration.Rounds > existing.RemainingRounds {
			existing.RemainingRounds = def.Duration.Rounds
			changed = true
		}
		if changed {
			*pending = append(*pending, t.event(events.OnAilmentModified, actorID, existing))
		}
		state = existing

	default:
		state = &State{
			ID:              t.uuidGenerator.New(),
			DefinitionID:    defID,
			Severity:        severity,
			Duration:        def.Duration,
			RemainingRounds: def.Duration.Rounds,
			AppliedAt:       tick,
			Source:          source,
		}
		if t.states[actorID] == nil {
			t.states[actorID] = make(map[string]*State)
		}
		t.states[actorID][state.ID] = state
		*pending = append(*pending, t.event(events.OnAilmentApplied, actorID, state))

		log.Printf("[AILMENTS] Applied %s (%s) to %s (duration: %s for %d)",
			defID, severity, actorID, def.Duration.Type, def.Duration.Rounds)
	}

	for _, grant := range def.GrantsBySeverity[severity] {
		if _, err := t.apply(actorID, grant.AilmentID, grant.Severity, "granted:"+defID, tick, visited, pending); err != nil {
			log.Printf("[AILMENTS] Failed to grant %s from %s on %s: %v", grant.AilmentID, defID, actorID, err)
		}
	}

	return state, nil
}

// ProcessRoundEnd ticks down round-based ailments, removing any that reach zero
func (t *Tracker) ProcessRoundEnd() []*State {
	t.mu.Lock()
	var (
		expired []*State
		pending []*events.GameEvent
	)
	for _, actorID := range t.actorIDs() {
		for _, state := range t.ordered(actorID) {
			if state.Duration.Type != DurationRounds {
				continue
			}
			state.RemainingRounds--
			if state.RemainingRounds > 0 {
				continue
			}
			delete(t.states[actorID], state.ID)
			expired = append(expired, state)
			pending = append(pending, t.event(events.OnAilmentRemoved, actorID, state))
			log.Printf("[AILMENTS] %s expired on %s", state.DefinitionID, actorID)
		}
	}
	t.mu.Unlock()

	t.emit(pending)
	return expired
}

// Treat removes an until-treated ailment
func (t *Tracker) Treat(actorID, defID string) error {
	t.mu.Lock()
	state := t.byDefinition(actorID, defID)
	if state == nil {
		t.mu.Unlock()
		return errors.NotFoundf("%s does not have %s", actorID, defID)
	}
	if state.Duration.Type != DurationUntilTreated {
		t.mu.Unlock()
		return errors.FailedPrecondition(fmt.Sprintf("%s cannot be treated (%s)", defID, state.Duration.Type))
	}
	delete(t.states[actorID], state.ID)
	event := t.event(events.OnAilmentRemoved, actorID, state)
	t.mu.Unlock()

	log.Printf("[AILMENTS] Treated %s on %s", defID, actorID)
	t.emit([]*events.GameEvent{event})
	return nil
}

// Remove removes an ailment by state ID regardless of its duration
func (t *Tracker) Remove(actorID, stateID string) error {
	t.mu.Lock()
	state, ok := t.states[actorID][stateID]
	if !ok {
		t.mu.Unlock()
		return errors.NotFoundf("ailment %s not found on %s", stateID, actorID)
	}
	delete(t.states[actorID], stateID)
	event := t.event(events.OnAilmentRemoved, actorID, state)
	t.mu.Unlock()

	log.Printf("[AILMENTS] Removed %s from %s", state.DefinitionID, actorID)
	t.emit([]*events.GameEvent{event})
	return nil
}

// Active returns an actor's ailments ordered by application
func (t *Tracker) Active(actorID string) []*State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ordered(actorID)
}

// Has checks if an actor has an ailment
func (t *Tracker) Has(actorID, defID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byDefinition(actorID, defID) != nil
}

// Snapshot copies every actor's ailments for persistence
func (t *Tracker) Snapshot() map[string][]*State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]*State, len(t.states))
	for actorID := range t.states {
		states := t.ordered(actorID)
		if len(states) == 0 {
			continue
		}
		copies := make([]*State, len(states))
		for i, s := range states {
			c := *s
			copies[i] = &c
		}
		out[actorID] = copies
	}
	return out
}

// Restore replaces the tracked ailments with a snapshot
func (t *Tracker) Restore(snapshot map[string][]*State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.states = make(map[string]map[string]*State, len(snapshot))
	for actorID, states := range snapshot {
		m := make(map[string]*State, len(states))
		for _, s := range states {
			c := *s
			m[c.ID] = &c
		}
		t.states[actorID] = m
	}
}

// CTAdjust sums the tick adjustments of an actor's ailments for a kind
func (t *Tracker) CTAdjust(actorID string, kind atb.Kind) atb.CT {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total atb.CT
	for _, v := range t.variants(actorID) {
		if !v.variant.adjusts(kind) {
			continue
		}
		total.Init += v.variant.CTAdjust.Init
		total.Exec += v.variant.CTAdjust.Exec
		total.Rec += v.variant.CTAdjust.Rec
	}
	return total
}

// Blocked reports whether an ailment stops the actor starting a kind of action
func (t *Tracker) Blocked(actorID string, kind atb.Kind) (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, v := range t.variants(actorID) {
		if v.variant.BlocksActions {
			return true, v.def.Name
		}
		if v.variant.BlocksMovement && kind == atb.KindMove {
			return true, v.def.Name
		}
	}
	return false, ""
}

// CantReact reports whether an ailment forbids reactions
func (t *Tracker) CantReact(actorID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, v := range t.variants(actorID) {
		if v.variant.CantReact || v.variant.BlocksActions {
			return true
		}
	}
	return false
}

// Candidates contributes every active ailment modifier in the state bucket
func (t *Tracker) Candidates(actorID string, _ modifiers.Context) []modifiers.Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []modifiers.Candidate
	for _, v := range t.variants(actorID) {
		for _, m := range v.variant.Modifiers {
			c := m
			c.ID = v.def.ID + ":" + m.ID
			c.Bucket = modifiers.BucketState
			if c.Label == "" {
				c.Label = v.def.Name
			}
			out = append(out, c)
		}
	}
	return out
}

type activeVariant struct {
	def     *Definition
	variant Variant
}

func (t *Tracker) variants(actorID string) []activeVariant {
	var out []activeVariant
	for _, state := range t.ordered(actorID) {
		def, ok := t.definitions[state.DefinitionID]
		if !ok {
			continue
		}
		variant, ok := def.Severities[state.Severity]
		if !ok {
			continue
		}
		out = append(out, activeVariant{def: def, variant: variant})
	}
	return out
}

// Helper methods

func (t *Tracker) byDefinition(actorID, defID string) *State {
	for _, s := range t.states[actorID] {
		if s.DefinitionID == defID {
			return s
		}
	}
	return nil
}

func (t *Tracker) ordered(actorID string) []*State {
	states := make([]*State, 0, len(t.states[actorID]))
	for _, s := range t.states[actorID] {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].AppliedAt != states[j].AppliedAt {
			return states[i].AppliedAt < states[j].AppliedAt
		}
		return states[i].ID < states[j].ID
	})
	return states
}

func (t *Tracker) actorIDs() []string {
	ids := make([]string, 0, len(t.states))
	for id := range t.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Event emission helpers

func (t *Tracker) event(eventType events.EventType, actorID string, state *State) *events.GameEvent {
	return events.NewGameEvent(eventType, actorID).
		WithContext(events.ContextAilmentID, state.ID).
		WithContext(events.ContextAilmentType, state.DefinitionID).
		WithContext(events.ContextSeverity, state.Severity).
		WithContext(events.ContextTick, state.AppliedAt)
}

func (t *Tracker) emit(pending []*events.GameEvent) {
	if t.eventBus == nil {
		return
	}
	for _, event := range pending {
		if err := t.eventBus.Emit(event); err != nil {
			log.Printf("Failed to emit event: %v", err)
		}
	}
}
