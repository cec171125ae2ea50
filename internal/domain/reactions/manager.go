package reactions

import (
	"context"
	"log"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
)

// ManagerConfig holds the dependencies for a reaction manager
type ManagerConfig struct {
	Roster        Roster
	Scheduler     Scheduler
	Gate          Gate
	EventBus      events.Bus
	UUIDGenerator uuid.Generator
	WindowTicks   int // how long a triggered window stays open
}

// Manager opens, consumes and expires reaction windows
type Manager struct {
	roster        Roster
	scheduler     Scheduler
	gate          Gate
	eventBus      events.Bus
	uuidGenerator uuid.Generator
	windowTicks   int
	windows       []*Window // in opening order
}

// NewManager creates a reaction manager
func NewManager(cfg *ManagerConfig) *Manager {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Roster == nil {
		panic("roster is required")
	}
	if cfg.Scheduler == nil {
		panic("scheduler is required")
	}

	gen := cfg.UUIDGenerator
	if gen == nil {
		gen = uuid.NewGoogleUUIDGenerator()
	}

	return &Manager{
		roster:        cfg.Roster,
		scheduler:     cfg.Scheduler,
		gate:          cfg.Gate,
		eventBus:      cfg.EventBus,
		uuidGenerator: gen,
		windowTicks:   cfg.WindowTicks,
	}
}

// Open registers a window for an actor, coalescing with any open window for
// the same reason and provoker
func (m *Manager) Open(actorID string, reason atb.Reason, expiresTick int, payload Payload) (*Window, error) {
	if !reason.Valid() {
		return nil, errors.InvalidArgumentf("unknown reaction reason %q", reason)
	}
	tick := m.scheduler.Tick()
	if expiresTick < tick {
		return nil, errors.InvalidArgumentf("window would expire at %d, before tick %d", expiresTick, tick)
	}

	c, ok := m.roster.Get(actorID)
	if !ok {
		return nil, errors.NotFoundf("combatant %s not found", actorID)
	}
	if err := m.canReact(c); err != nil {
		m.refused(actorID, reason, payload.ProvokerID, err)
		return nil, err
	}
	if _, ok := c.ReactionFor(reason); !ok {
		err := errors.ResourceExhaustedf("%s has no reaction for %s", actorID, reason)
		m.refused(actorID, reason, payload.ProvokerID, err)
		return nil, err
	}

	for _, w := range m.windows {
		if w.ActorID == actorID && w.Reason == reason && w.ProvokerID == payload.ProvokerID {
			if expiresTick > w.ExpiresTick {
				w.ExpiresTick = expiresTick
			}
			w.Payload = payload
			log.Printf("[REACTIONS] Extended window %s for %s (%s) to tick %d", w.ID, actorID, reason, w.ExpiresTick)
			return w, nil
		}
	}

	w := &Window{
		ID:          m.uuidGenerator.New(),
		ActorID:     actorID,
		Reason:      reason,
		ProvokerID:  payload.ProvokerID,
		OpenedTick:  tick,
		ExpiresTick: expiresTick,
		Payload:     payload,
	}
	m.windows = append(m.windows, w)

	log.Printf("[REACTIONS] Opened window %s for %s (%s by %s) until tick %d", w.ID, actorID, reason, w.ProvokerID, expiresTick)
	m.emit(m.windowEvent(events.OnWindowOpened, w))
	return w, nil
}

// Fire opens windows for every actor qualifying for a trigger. Refusals are
// logged and skipped.
func (m *Manager) Fire(trigger atb.Trigger) []*Window {
	provoker, ok := m.roster.Get(trigger.ProvokerID)
	if !ok {
		log.Printf("[REACTIONS] Ignoring %s trigger from unknown combatant %s", trigger.Reason, trigger.ProvokerID)
		return nil
	}

	m.emit(events.NewGameEvent(events.OnReactionTriggered, trigger.ProvokerID).
		WithContext(events.ContextReason, string(trigger.Reason)).
		WithContext(events.ContextTargetID, trigger.TargetID).
		WithContext(events.ContextTick, m.scheduler.Tick()))

	var reactors []*combat.Combatant
	switch trigger.Reason {
	case atb.ReasonLeaveMelee:
		for _, c := range m.roster.Ordered() {
			if !m.hostile(c, provoker) {
				continue
			}
			if c.Threatens(trigger.From) && !c.Threatens(trigger.To) {
				reactors = append(reactors, c)
			}
		}
	case atb.ReasonFumble:
		for _, c := range m.roster.Ordered() {
			if m.hostile(c, provoker) && c.Threatens(provoker.Position) {
				reactors = append(reactors, c)
			}
		}
	case atb.ReasonIncomingAttack:
		if target, ok := m.roster.Get(trigger.TargetID); ok && m.hostile(target, provoker) {
			reactors = append(reactors, target)
		}
	default:
		log.Printf("[REACTIONS] Unknown trigger reason %q", trigger.Reason)
		return nil
	}

	payload := Payload{
		ProvokerID: trigger.ProvokerID,
		TargetID:   trigger.TargetID,
		Timing:     trigger.Timing,
		From:       trigger.From,
		To:         trigger.To,
	}
	expires := m.scheduler.Tick() + m.windowTicks

	var opened []*Window
	for _, c := range reactors {
		w, err := m.Open(c.ID, trigger.Reason, expires, payload)
		if err != nil {
			continue
		}
		opened = append(opened, w)
	}
	return opened
}

// TryReactOpportunity spends one wear to perform the reactor's free reaction
// against the provoker, consuming the matching window
func (m *Manager) TryReactOpportunity(ctx context.Context, reactorID, provokerID string) (*Window, error) {
	c, ok := m.roster.Get(reactorID)
	if !ok {
		return nil, errors.NotFoundf("combatant %s not found", reactorID)
	}

	tick := m.scheduler.Tick()
	var window *Window
	for _, w := range m.windows {
		if w.ActorID == reactorID && w.ProvokerID == provokerID && w.Open(tick) {
			window = w
			break
		}
	}
	if window == nil {
		return nil, errors.NotFoundf("%s has no open window against %s", reactorID, provokerID)
	}

	ability, ok := c.ReactionFor(window.Reason)
	if !ok {
		return nil, errors.ResourceExhaustedf("%s has no reaction for %s", reactorID, window.Reason)
	}
	if ability.Phased {
		return nil, errors.FailedPrecondition(ability.Key + " takes time and must replace the schedule")
	}
	if err := m.canReact(c); err != nil {
		return nil, err
	}

	meta := atb.Meta{TargetID: provokerID}
	res, err := m.scheduler.Resolve(reactorID, &atb.Descriptor{Kind: atb.KindReaction, Key: ability.Key, Meta: meta})
	if err != nil {
		return nil, err
	}

	if err := c.SpendWear(); err != nil {
		return nil, err
	}
	if err := m.scheduler.Perform(ctx, reactorID, res.Action, meta); err != nil {
		m.failed(window, c, ability.Key, err)
		return nil, err
	}

	m.consume(window, c, ability.Key)
	return window, nil
}

// Substitute consumes a window and replaces the reactor's schedule with a
// phased reaction card. An empty reactionKey uses the ability for the window.
func (m *Manager) Substitute(ctx context.Context, reactorID, windowID, reactionKey string) (*atb.Card, error) {
	window, ok := m.Window(windowID)
	if !ok || window.ActorID != reactorID {
		return nil, errors.NotFoundf("%s has no window %s", reactorID, windowID)
	}
	if !window.Open(m.scheduler.Tick()) {
		return nil, errors.FailedPrecondition("window " + windowID + " has expired")
	}

	c, ok := m.roster.Get(reactorID)
	if !ok {
		return nil, errors.NotFoundf("combatant %s not found", reactorID)
	}
	if err := m.canReact(c); err != nil {
		return nil, err
	}

	key := reactionKey
	if key == "" {
		ability, ok := c.ReactionFor(window.Reason)
		if !ok {
			return nil, errors.ResourceExhaustedf("%s has no reaction for %s", reactorID, window.Reason)
		}
		key = ability.Key
	}

	meta := atb.Meta{TargetID: window.ProvokerID}
	res, err := m.scheduler.Resolve(reactorID, &atb.Descriptor{Kind: atb.KindReaction, Key: key, Meta: meta})
	if err != nil {
		return nil, err
	}

	if err := c.SpendWear(); err != nil {
		return nil, err
	}
	card, err := m.scheduler.Substitute(ctx, reactorID, res, meta)
	if err != nil {
		m.failed(window, c, key, err)
		return nil, err
	}

	m.consume(window, c, key)
	return card, nil
}

// Expire drops windows that closed before tick
func (m *Manager) Expire(tick int) []*Window {
	var expired []*Window
	kept := m.windows[:0]
	for _, w := range m.windows {
		if w.Open(tick) {
			kept = append(kept, w)
			continue
		}
		expired = append(expired, w)
	}
	m.windows = kept

	for _, w := range expired {
		log.Printf("[REACTIONS] Window %s for %s expired at tick %d", w.ID, w.ActorID, tick)
		m.emit(m.windowEvent(events.OnWindowExpired, w))
	}
	return expired
}

// EndCombat closes every window and returns everyone's wear to zero
func (m *Manager) EndCombat() {
	m.windows = nil
	for _, c := range m.roster.Ordered() {
		c.ResetWear()
	}
}

// Window returns a window by ID
func (m *Manager) Window(id string) (*Window, bool) {
	for _, w := range m.windows {
		if w.ID == id {
			return w, true
		}
	}
	return nil, false
}

// Windows returns open windows, optionally for one actor
func (m *Manager) Windows(actorID string) []*Window {
	var out []*Window
	for _, w := range m.windows {
		if actorID == "" || w.ActorID == actorID {
			out = append(out, w)
		}
	}
	return out
}

// Restore replaces the open windows, used when loading a snapshot
func (m *Manager) Restore(windows []*Window) {
	m.windows = append([]*Window(nil), windows...)
}

// Helper methods

func (m *Manager) hostile(c, provoker *combat.Combatant) bool {
	return c.ID != provoker.ID && c.IsActive && c.Opposes(provoker)
}

func (m *Manager) canReact(c *combat.Combatant) error {
	if !c.IsActive {
		return errors.ResourceExhaustedf("%s is out of the fight", c.ID)
	}
	if m.gate != nil && m.gate.CantReact(c.ID) {
		return errors.ResourceExhaustedf("%s cannot react", c.ID)
	}
	if !c.CanSpendWear() {
		return errors.ResourceExhaustedf("%s is worn out (%d/%d)", c.ID, c.Wear, c.WearMax())
	}
	return nil
}

func (m *Manager) consume(window *Window, c *combat.Combatant, key string) {
	kept := m.windows[:0]
	for _, w := range m.windows {
		if w.ID != window.ID {
			kept = append(kept, w)
		}
	}
	m.windows = kept

	log.Printf("[REACTIONS] %s used %s against %s (wear %d/%d)", c.ID, key, window.ProvokerID, c.Wear, c.WearMax())
	m.emit(m.windowEvent(events.OnWindowConsumed, window))
	m.emit(events.NewGameEvent(events.OnReactionTaken, c.ID).
		WithContext(events.ContextActionKey, key).
		WithContext(events.ContextProvokerID, window.ProvokerID).
		WithContext(events.ContextWear, c.Wear).
		WithContext(events.ContextTick, m.scheduler.Tick()))
}

// failed settles a reaction whose perform errored. Nothing landed means the
// wear comes back and the window stays open. Once any effect landed the
// reaction counts as taken.
func (m *Manager) failed(window *Window, c *combat.Combatant, key string, err error) {
	if atb.EffectsApplied(err) == 0 {
		c.RefundWear()
		log.Printf("[REACTIONS] %s failed to use %s against %s, wear refunded: %v", c.ID, key, window.ProvokerID, err)
		return
	}
	log.Printf("[REACTIONS] %s used %s against %s but it failed part way: %v", c.ID, key, window.ProvokerID, err)
	m.consume(window, c, key)
}

func (m *Manager) refused(actorID string, reason atb.Reason, provokerID string, err error) {
	log.Printf("[REACTIONS] Refused %s window for %s: %v", reason, actorID, err)
	m.emit(events.NewGameEvent(events.OnWindowRefused, actorID).
		WithContext(events.ContextReason, string(reason)).
		WithContext(events.ContextProvokerID, provokerID).
		WithContext(events.ContextError, err.Error()).
		WithContext(events.ContextTick, m.scheduler.Tick()))
}

func (m *Manager) windowEvent(eventType events.EventType, w *Window) *events.GameEvent {
	return events.NewGameEvent(eventType, w.ActorID).
		WithContext(events.ContextWindowID, w.ID).
		WithContext(events.ContextReason, string(w.Reason)).
		WithContext(events.ContextProvokerID, w.ProvokerID).
		WithContext(events.ContextTick, m.scheduler.Tick())
}

func (m *Manager) emit(event *events.GameEvent) {
	if m.eventBus == nil {
		return
	}
	if err := m.eventBus.Emit(event); err != nil {
		log.Printf("[REACTIONS] Listener error on %s: %v", event.Type, err)
	}
}
