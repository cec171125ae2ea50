package atb

import (
	"context"
	"log"
	"sort"

	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
)

// StepKind says what a Step call left the scheduler waiting for
type StepKind string

const (
	StepContinue         StepKind = "continue"
	StepAwaitingDecision StepKind = "awaiting_decision"
	StepTickComplete     StepKind = "tick_complete"
)

// StepOutcome is returned after every unit of work
type StepOutcome struct {
	Kind       StepKind `json:"kind"`
	DecisionID string   `json:"decisionId,omitempty"`
	Tick       int      `json:"tick"`
}

// ApplyOptions tune how a sink applies one effect
type ApplyOptions struct {
	// AllowDecision is false for out-of-band performs, which cannot pause
	AllowDecision bool
}

// EffectSink applies effects to the world outside the scheduler
type EffectSink interface {
	// Apply performs one effect. A non-nil decision pauses the batch.
	Apply(ctx context.Context, actorID string, effect Effect, opts ApplyOptions) (*Decision, error)
	// Resolve acts on the answer to a decision the sink asked for
	Resolve(ctx context.Context, decision *Decision, choice string) error
}

// TickHook runs after a tick is finalized with the new tick number
type TickHook func(ctx context.Context, tick int)

// StepperConfig holds the dependencies for a stepper
type StepperConfig struct {
	State    *State
	Resolver *Resolver
	Sink     EffectSink
	EventBus events.Bus
}

// Stepper advances a State one unit of work at a time
type Stepper struct {
	state    *State
	resolver *Resolver
	sink     EffectSink
	bus      events.Bus
	hooks    []TickHook
}

// NewStepper creates a stepper over an existing state
func NewStepper(cfg *StepperConfig) *Stepper {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Resolver == nil {
		panic("resolver is required")
	}
	if cfg.Sink == nil {
		panic("effect sink is required")
	}

	state := cfg.State
	if state == nil {
		state = NewState()
	}

	return &Stepper{
		state:    state,
		resolver: cfg.Resolver,
		sink:     cfg.Sink,
		bus:      cfg.EventBus,
	}
}

// State returns the document the stepper mutates
func (s *Stepper) State() *State {
	return s.state
}

// Tick returns the current global tick
func (s *Stepper) Tick() int {
	return s.state.Tick
}

// Resolver returns the resolver used for admission
func (s *Stepper) Resolver() *Resolver {
	return s.resolver
}

// Resolve binds a descriptor for an actor without queueing it
func (s *Stepper) Resolve(actorID string, desc *Descriptor) (*Resolved, error) {
	return s.resolver.Resolve(actorID, desc)
}

// OnTick registers a hook run after every finalized tick
func (s *Stepper) OnTick(hook TickHook) {
	s.hooks = append(s.hooks, hook)
}

// Enqueue queues a descriptor for an actor. A nil targetTick means now.
func (s *Stepper) Enqueue(actorID string, desc Descriptor, targetTick *int) (*Descriptor, error) {
	if actorID == "" {
		return nil, errors.InvalidArgument("actor ID is required")
	}
	if !desc.Kind.Valid() {
		return nil, errors.InvalidArgumentf("unknown descriptor kind %q", desc.Kind)
	}

	d := desc
	d.TargetTick = s.state.Tick
	if targetTick != nil {
		d.TargetTick = *targetTick
	}

	queued := s.state.Enqueue(actorID, &d)
	log.Printf("[ATB] Queued %s %q for %s at tick %d (qorder %d)", d.Kind, d.Key, actorID, d.TargetTick, d.QOrder)
	return queued, nil
}

// Reset throws away the whole schedule
func (s *Stepper) Reset() {
	*s.state = *NewState()
	log.Printf("[ATB] Scheduler reset")
	s.emit(events.NewGameEvent(events.OnSchedulerReset, "").
		WithContext(events.ContextTick, 0))
}

// Step performs one unit of work
func (s *Stepper) Step(ctx context.Context) (StepOutcome, error) {
	if err := ctx.Err(); err != nil {
		return StepOutcome{}, err
	}

	st := s.state
	if st.PendingDecision != nil {
		return s.awaiting(), nil
	}

	if !st.HoldBuilt {
		if s.admit(ctx) {
			return s.awaiting(), nil
		}
		s.buildHold()
	}

	if len(st.ExecHold) == 0 {
		return s.finalize(ctx), nil
	}

	actorID := st.ExecHold[0]
	st.ExecHold = st.ExecHold[1:]
	if s.execute(ctx, actorID) {
		return s.awaiting(), nil
	}

	if len(st.ExecHold) == 0 {
		return s.finalize(ctx), nil
	}
	return StepOutcome{Kind: StepContinue, Tick: st.Tick}, nil
}

// Resume answers the pending decision and finishes the paused effect batch
func (s *Stepper) Resume(ctx context.Context, decisionID, choice string) (StepOutcome, error) {
	st := s.state
	pending := st.PendingDecision
	if pending == nil {
		return StepOutcome{}, errors.FailedPrecondition("no decision is pending")
	}
	if pending.ID != decisionID {
		return StepOutcome{}, errors.NotFoundf("decision %s is not pending", decisionID)
	}
	if !pending.Allows(choice) {
		return StepOutcome{}, errors.InvalidArgumentf("%q is not an option for decision %s", choice, decisionID)
	}

	rest := st.PendingEffects
	st.PendingDecision = nil
	st.PendingEffects = nil

	if err := s.sink.Resolve(ctx, pending, choice); err != nil {
		log.Printf("[ATB] Decision %s (%s) for %s failed: %v", pending.ID, choice, pending.ActorID, err)
	}
	s.emit(events.NewGameEvent(events.OnDecisionResolved, pending.ActorID).
		WithContext(events.ContextDecisionID, pending.ID).
		WithContext(events.ContextChoice, choice).
		WithContext(events.ContextTick, st.Tick))

	if rest != nil {
		paused, err := s.apply(ctx, rest.ActorID, rest.Effects, ApplyOptions{AllowDecision: true})
		if err != nil {
			s.performFailed(rest.ActorID, "", err)
		}
		if paused {
			return s.awaiting(), nil
		}
	}

	return StepOutcome{Kind: StepContinue, Tick: st.Tick}, nil
}

// MetaEffectsApplied is set on perform errors to the number of effects that
// landed before the failure
const MetaEffectsApplied = "effects_applied"

// EffectsApplied reports how many effects of a failed perform were applied
func EffectsApplied(err error) int {
	n, _ := errors.GetMeta(err)[MetaEffectsApplied].(int)
	return n
}

// Perform runs an action out of band: no card, no tick cost, no pauses.
// Effects are validated as a batch first. A failure after some effects
// landed carries MetaEffectsApplied.
func (s *Stepper) Perform(ctx context.Context, actorID string, action Action, meta Meta) error {
	ec := &ExecContext{Context: ctx, ActorID: actorID, Tick: s.state.Tick, Meta: meta}
	effects, err := action.Execute(ec)
	if err != nil {
		wrapped := errors.Perform(err, "failed to perform "+action.ID())
		s.performFailed(actorID, action.ID(), wrapped)
		return wrapped
	}

	if _, err := s.apply(ctx, actorID, effects, ApplyOptions{}); err != nil {
		s.performFailed(actorID, action.ID(), err)
		return err
	}

	s.performed(actorID, action.ID(), PhaseExec)
	return nil
}

// Substitute throws away an actor's queue and current card and replaces them
// with a reaction. Instant reactions perform immediately and leave no card.
func (s *Stepper) Substitute(ctx context.Context, actorID string, res *Resolved, meta Meta) (*Card, error) {
	if res == nil || res.Action == nil {
		return nil, errors.InvalidArgument("resolved reaction is required")
	}

	st := s.state
	sched := st.Actor(actorID)
	sched.Queue = nil
	if sched.Current != nil {
		s.clear(actorID, sched, "substituted")
	}
	s.dropFromHold(actorID)

	if res.CT.Total() == 0 {
		return nil, s.Perform(ctx, actorID, res.Action, meta)
	}

	st.QOrderCounter++
	desc := &Descriptor{
		Kind:       KindReaction,
		Key:        res.Key,
		TargetTick: st.Tick,
		QOrder:     st.QOrderCounter,
		Meta:       meta,
	}
	card := s.spawn(actorID, desc, res)
	card.Reaction = true

	// the hold for this tick is already fixed, so an immediate reaction joins it
	if st.HoldBuilt && card.StartedThisTick {
		st.ExecHold = append(st.ExecHold, actorID)
	}
	return card, nil
}

// admit spawns cards for idle actors. It returns true if an instant action
// paused on a decision part way through.
func (s *Stepper) admit(ctx context.Context) bool {
	st := s.state
	for _, actorID := range st.ActorIDs() {
		sched := st.Actors[actorID]
		for sched.Current == nil {
			desc := sched.eligible(st.Tick)
			if desc == nil {
				break
			}

			if blocked, reason := s.resolver.Blocked(actorID, desc.Kind); blocked {
				log.Printf("[ATB] %s cannot start %s %q yet: %s", actorID, desc.Kind, desc.Key, reason)
				break
			}

			sched.Queue = sched.Queue[1:]
			if len(sched.Queue) == 0 {
				sched.Queue = nil
			}

			res, err := s.resolver.Resolve(actorID, desc)
			if err != nil {
				log.Printf("[ATB] Dropping %s %q for %s: %v", desc.Kind, desc.Key, actorID, err)
				s.emit(events.NewGameEvent(events.OnDescriptorDropped, actorID).
					WithContext(events.ContextActionKind, string(desc.Kind)).
					WithContext(events.ContextActionKey, desc.Key).
					WithContext(events.ContextError, err.Error()).
					WithContext(events.ContextTick, st.Tick))
				continue
			}

			if res.CT.Total() == 0 {
				if s.perform(ctx, actorID, res.Action, nil, desc.Meta) {
					return true
				}
				continue
			}

			s.spawn(actorID, desc, res)
		}
	}
	return false
}

// spawn places a card for a resolved descriptor
func (s *Stepper) spawn(actorID string, desc *Descriptor, res *Resolved) *Card {
	st := s.state
	st.PlacementCounter++

	card := &Card{
		ActorID:        actorID,
		ActionKey:      res.Key,
		Kind:           res.Kind,
		Init:           res.CT.Init,
		Exec:           res.CT.Exec,
		Rec:            res.CT.Rec,
		PlacementTick:  st.Tick,
		PlacementOrder: st.PlacementCounter,
		ExecOrder:      desc.QOrder,
		Meta:           desc.Meta,
	}

	switch {
	case card.Init > 0:
		card.Phase = PhaseInit
		card.TicksLeft = card.Init
	case card.Exec > 0:
		card.Phase = PhaseExec
		card.TicksLeft = card.Exec
		card.StartedThisTick = true
	default:
		// no init or exec: the effect lands now and only recovery remains
		card.Phase = PhaseRec
		card.TicksLeft = card.Rec
		card.StartedThisTick = true
	}

	sched := st.Actor(actorID)
	sched.Current = card
	sched.Mods.rebuild()

	log.Printf("[ATB] Spawned %s %q for %s at tick %d (I%d/E%d/R%d, %s)",
		card.Kind, card.ActionKey, actorID, st.Tick, card.Init, card.Exec, card.Rec, card.Phase)
	s.emit(events.NewGameEvent(events.OnCardSpawned, actorID).
		WithContext(events.ContextActionKind, string(card.Kind)).
		WithContext(events.ContextActionKey, card.ActionKey).
		WithContext(events.ContextPhase, string(card.Phase)).
		WithContext(events.ContextTick, st.Tick))
	return card
}

// promote moves a card out of init into the next phase that has ticks
func (s *Stepper) promote(card *Card) {
	switch {
	case card.Exec > 0:
		card.Phase = PhaseExec
		card.TicksLeft = card.Exec
	case card.Rec > 0:
		card.Phase = PhaseRec
		card.TicksLeft = card.Rec
	default:
		card.Phase = PhaseDone
		card.TicksLeft = 0
	}
	card.StartedThisTick = true
	card.Promoted = true

	s.emit(events.NewGameEvent(events.OnCardPromoted, card.ActorID).
		WithContext(events.ContextActionKey, card.ActionKey).
		WithContext(events.ContextPhase, string(card.Phase)).
		WithContext(events.ContextTick, s.state.Tick))
}

// buildHold fixes the execution order for the current tick
func (s *Stepper) buildHold() {
	st := s.state

	var ready []*Card
	for _, actorID := range st.ActorIDs() {
		card := st.Actors[actorID].Current
		if card == nil {
			continue
		}
		if card.Phase == PhaseInit && card.TicksLeft == 0 {
			s.promote(card)
		}
		if card.StartedThisTick {
			ready = append(ready, card)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return execBefore(ready[i], ready[j])
	})

	hold := make([]string, 0, len(ready))
	for _, card := range ready {
		hold = append(hold, card.ActorID)
	}
	st.ExecHold = hold
	st.HoldBuilt = true
}

// execBefore orders cards by placement tick, then declaration order, then
// cards already executing ahead of ones promoted this tick
func execBefore(a, b *Card) bool {
	if a.PlacementTick != b.PlacementTick {
		return a.PlacementTick < b.PlacementTick
	}
	if a.ExecOrder != b.ExecOrder {
		return a.ExecOrder < b.ExecOrder
	}
	if a.Promoted != b.Promoted {
		return !a.Promoted
	}
	return a.PlacementOrder < b.PlacementOrder
}

// execute fires the effect of the card at the head of the hold
func (s *Stepper) execute(ctx context.Context, actorID string) bool {
	sched, ok := s.state.Actors[actorID]
	if !ok || sched.Current == nil || !sched.Current.StartedThisTick {
		return false
	}

	card := sched.Current
	card.StartedThisTick = false

	action, err := s.resolver.Lookup(card)
	if err != nil {
		s.performFailed(actorID, card.ActionKey, err)
		return false
	}
	return s.perform(ctx, actorID, action, card, card.Meta)
}

// perform executes a scheduled unit. Errors stay inside the unit.
func (s *Stepper) perform(ctx context.Context, actorID string, action Action, card *Card, meta Meta) bool {
	ec := &ExecContext{Context: ctx, ActorID: actorID, Tick: s.state.Tick, Card: card, Meta: meta}
	effects, err := action.Execute(ec)
	if err != nil {
		s.performFailed(actorID, action.ID(), errors.Perform(err, "failed to perform "+action.ID()))
		return false
	}

	phase := PhaseExec
	if card != nil {
		phase = card.Phase
	}
	s.performed(actorID, action.ID(), phase)

	paused, err := s.apply(ctx, actorID, effects, ApplyOptions{AllowDecision: true})
	if err != nil {
		s.performFailed(actorID, action.ID(), err)
	}
	return paused
}

// apply validates the whole batch, then hands effects to the sink in order.
// The batch stops at the first failure or, when allowed, at the first decision.
func (s *Stepper) apply(ctx context.Context, actorID string, effects []Effect, opts ApplyOptions) (bool, error) {
	st := s.state
	for _, effect := range effects {
		if err := effect.Validate(); err != nil {
			return false, errors.Perform(err, "invalid effect").WithMeta(MetaEffectsApplied, 0)
		}
	}

	for i, effect := range effects {
		decision, err := s.sink.Apply(ctx, actorID, effect, opts)
		if err != nil {
			return false, errors.Perform(err, "failed to apply "+string(effect.Kind)+" effect").
				WithMeta(MetaEffectsApplied, i)
		}
		if decision == nil || !opts.AllowDecision {
			continue
		}

		st.PendingDecision = decision
		if rest := effects[i+1:]; len(rest) > 0 {
			st.PendingEffects = &PendingEffects{
				ActorID: actorID,
				Effects: append([]Effect(nil), rest...),
			}
		}

		log.Printf("[ATB] Waiting on decision %s from %s: %s", decision.ID, decision.ActorID, decision.Prompt)
		s.emit(events.NewGameEvent(events.OnDecisionRequested, decision.ActorID).
			WithContext(events.ContextDecisionID, decision.ID).
			WithContext(events.ContextTick, st.Tick))
		return true, nil
	}
	return false, nil
}

// finalize closes out the current tick
func (s *Stepper) finalize(ctx context.Context) StepOutcome {
	st := s.state
	for _, actorID := range st.ActorIDs() {
		sched := st.Actors[actorID]
		if card := sched.Current; card != nil {
			if card.TicksLeft > 0 {
				card.TicksLeft--
			}
			card.Promoted = false
			card.StartedThisTick = false

			if card.TicksLeft == 0 {
				switch card.Phase {
				case PhaseInit:
					// promoted when the next tick builds its hold
				case PhaseExec:
					if card.Rec > 0 {
						card.Phase = PhaseRec
						card.TicksLeft = card.Rec
					} else {
						s.clear(actorID, sched, "complete")
					}
				case PhaseRec, PhaseDone:
					s.clear(actorID, sched, "complete")
				}
			}
		}
		if sched.Mods != nil {
			sched.Mods.prune(st.Tick + 1)
		}
	}

	st.Tick++
	st.ExecHold = nil
	st.HoldBuilt = false

	s.emit(events.NewGameEvent(events.OnTickAdvanced, "").
		WithContext(events.ContextTick, st.Tick))
	for _, hook := range s.hooks {
		hook(ctx, st.Tick)
	}

	return StepOutcome{Kind: StepTickComplete, Tick: st.Tick}
}

func (s *Stepper) clear(actorID string, sched *ActorSchedule, reason string) {
	card := sched.Current
	sched.Current = nil

	log.Printf("[ATB] Cleared %q for %s at tick %d (%s)", card.ActionKey, actorID, s.state.Tick, reason)
	s.emit(events.NewGameEvent(events.OnCardCleared, actorID).
		WithContext(events.ContextActionKey, card.ActionKey).
		WithContext(events.ContextReason, reason).
		WithContext(events.ContextTick, s.state.Tick))
}

func (s *Stepper) dropFromHold(actorID string) {
	hold := s.state.ExecHold[:0]
	for _, id := range s.state.ExecHold {
		if id != actorID {
			hold = append(hold, id)
		}
	}
	s.state.ExecHold = hold
}

func (s *Stepper) awaiting() StepOutcome {
	return StepOutcome{
		Kind:       StepAwaitingDecision,
		DecisionID: s.state.PendingDecision.ID,
		Tick:       s.state.Tick,
	}
}

func (s *Stepper) performed(actorID, key string, phase Phase) {
	s.emit(events.NewGameEvent(events.OnEffectPerformed, actorID).
		WithContext(events.ContextActionKey, key).
		WithContext(events.ContextPhase, string(phase)).
		WithContext(events.ContextTick, s.state.Tick))
}

func (s *Stepper) performFailed(actorID, key string, err error) {
	log.Printf("[ATB] Perform failed for %s %q at tick %d: %v", actorID, key, s.state.Tick, err)
	s.emit(events.NewGameEvent(events.OnPerformFailed, actorID).
		WithContext(events.ContextActionKey, key).
		WithContext(events.ContextError, err.Error()).
		WithContext(events.ContextTick, s.state.Tick))
}

func (s *Stepper) emit(event *events.GameEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(event); err != nil {
		log.Printf("[ATB] Listener error on %s: %v", event.Type, err)
	}
}
