package atb

import (
	"context"
	"fmt"

	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
)

type testAction struct {
	key   string
	label string
	ct    CT
	fn    func(ec *ExecContext) ([]Effect, error)
}

func (a *testAction) ID() string    { return a.key }
func (a *testAction) Label() string { return a.label }
func (a *testAction) Cost() CT      { return a.ct }

func (a *testAction) Execute(ec *ExecContext) ([]Effect, error) {
	if a.fn != nil {
		return a.fn(ec)
	}
	return []Effect{Log("%s:%s", ec.ActorID, a.key)}, nil
}

type testCatalog map[Kind]map[string]Action

func (c testCatalog) add(kind Kind, a *testAction) {
	if c[kind] == nil {
		c[kind] = make(map[string]Action)
	}
	c[kind][a.key] = a
}

func (c testCatalog) Lookup(kind Kind, key string) (Action, bool) {
	a, ok := c[kind][key]
	return a, ok
}

type testRestrictions struct {
	adjust  map[string]CT
	blocked map[string]Kind
}

func (r *testRestrictions) CTAdjust(actorID string, kind Kind) CT {
	return r.adjust[actorID]
}

func (r *testRestrictions) Blocked(actorID string, kind Kind) (bool, string) {
	if k, ok := r.blocked[actorID]; ok && k == kind {
		return true, "held"
	}
	return false, ""
}

// recordingSink keeps every applied log line and answers decisions in order
type recordingSink struct {
	logs      []string
	decisions int
	resolved  []string
	failOn    string
}

func (s *recordingSink) Apply(_ context.Context, actorID string, effect Effect, opts ApplyOptions) (*Decision, error) {
	switch effect.Kind {
	case EffectLog:
		if s.failOn != "" && effect.Log.Message == s.failOn {
			return nil, fmt.Errorf("sink refused %q", effect.Log.Message)
		}
		s.logs = append(s.logs, effect.Log.Message)
	case EffectDecision:
		if !opts.AllowDecision {
			return nil, nil
		}
		s.decisions++
		return &Decision{
			ID:      fmt.Sprintf("decision-%d", s.decisions),
			ActorID: effect.Decision.ActorID,
			Prompt:  effect.Decision.Prompt,
			Options: effect.Decision.Options,
		}, nil
	}
	return nil, nil
}

func (s *recordingSink) Resolve(_ context.Context, decision *Decision, choice string) error {
	s.resolved = append(s.resolved, decision.ID+"="+choice)
	return nil
}

func newTestStepper(catalog testCatalog, restrictions Restrictions) (*Stepper, *recordingSink, *events.EventBus) {
	sink := &recordingSink{}
	bus := events.NewEventBus()
	stepper := NewStepper(&StepperConfig{
		State:    NewState(),
		Resolver: NewResolver(catalog, restrictions),
		Sink:     sink,
		EventBus: bus,
	})
	return stepper, sink, bus
}

func intPtr(v int) *int {
	return &v
}
