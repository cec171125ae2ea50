package encounter

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/ailments"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/domain/reactions"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats"
	"github.com/KirkDiggler/rpg-atb/internal/roll"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
)

// Defaults used when a SessionConfig leaves tuning at zero
const (
	DefaultTicksPerRound   = 6
	DefaultWindowTicks     = 1
	DefaultDecisionTimeout = 30 * time.Second
	DefaultMailboxSize     = 64
)

// SessionConfig holds the dependencies for one combat session
type SessionConfig struct {
	Snapshot      *session.Snapshot
	Catalog       atb.Catalog
	Ailments      []ailments.Definition
	Roller        dice.Roller
	Repository    combats.Repository // nil keeps the session in memory only
	Clock         combats.TimeProvider
	UUIDGenerator uuid.Generator
	EventBus      *events.EventBus

	TicksPerRound   int
	WindowTicks     int
	DecisionTimeout time.Duration
	MailboxSize     int
	TiePolicy       modifiers.TiePolicy
}

// Session is one running combat. Every call is handed to the goroutine
// running Run, so callers never touch the scheduler directly.
type Session struct {
	id        string
	driverID  string
	status    session.Status
	createdAt time.Time

	encounter *combat.Encounter
	state     *atb.State
	stepper   *atb.Stepper
	reactions *reactions.Manager
	tracker   *ailments.Tracker
	pipeline  *roll.Pipeline
	bus       *events.EventBus

	repository    combats.Repository
	clock         combats.TimeProvider
	uuidGenerator uuid.Generator

	ticksPerRound   int
	decisionTimeout time.Duration

	mailbox chan command
	done    chan struct{}
	running atomic.Bool
}

type command struct {
	name    string
	mutates bool
	fn      func(ctx context.Context) (any, error)
	reply   chan result
}

type result struct {
	value any
	err   error
}

// NewSession rebuilds a session around a snapshot. A snapshot without a
// scheduler starts a fresh one.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Catalog == nil {
		panic("catalog is required")
	}
	snap := cfg.Snapshot
	if snap == nil || snap.ID == "" {
		return nil, errors.InvalidArgument("snapshot with an ID is required")
	}
	if snap.Encounter == nil {
		return nil, errors.InvalidArgumentf("snapshot %s has no encounter", snap.ID)
	}

	state := snap.Scheduler
	if state == nil {
		state = atb.NewState()
	}

	bus := cfg.EventBus
	if bus == nil {
		bus = events.NewEventBus()
	}
	gen := cfg.UUIDGenerator
	if gen == nil {
		gen = uuid.NewGoogleUUIDGenerator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = combats.SystemTime()
	}
	roller := cfg.Roller
	if roller == nil {
		roller = dice.NewRandomRoller(clock.Now().UnixNano())
	}

	tracker, err := ailments.NewTracker(bus, cfg.Ailments...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ailments")
	}
	tracker.SetUUIDGenerator(gen)
	tracker.Restore(snap.Ailments)

	aggregator, err := modifiers.NewAggregator(cfg.TiePolicy)
	if err != nil {
		return nil, errors.InvalidArgumentf("%v", err)
	}

	s := &Session{
		id:              snap.ID,
		driverID:        snap.DriverID,
		status:          snap.Status,
		createdAt:       snap.CreatedAt,
		encounter:       snap.Encounter,
		state:           state,
		tracker:         tracker,
		bus:             bus,
		repository:      cfg.Repository,
		clock:           clock,
		uuidGenerator:   gen,
		ticksPerRound:   orDefault(cfg.TicksPerRound, DefaultTicksPerRound),
		decisionTimeout: cfg.DecisionTimeout,
		mailbox:         make(chan command, orDefault(cfg.MailboxSize, DefaultMailboxSize)),
		done:            make(chan struct{}),
	}
	if s.status == "" {
		s.status = session.StatusActive
	}
	if s.decisionTimeout <= 0 {
		s.decisionTimeout = DefaultDecisionTimeout
	}
	if s.driverID == "" {
		s.driverID = snap.Encounter.CreatedBy
	}

	s.pipeline = roll.NewPipeline(&roll.PipelineConfig{
		Roller:     roller,
		Aggregator: aggregator,
	})
	aggregator.Register("ailments", tracker)
	aggregator.Register("ledger", modifiers.ProviderFunc(s.ledgerCandidates))
	aggregator.Register("combatant", modifiers.ProviderFunc(s.combatantCandidates))

	s.stepper = atb.NewStepper(&atb.StepperConfig{
		State:    state,
		Resolver: atb.NewResolver(cfg.Catalog, tracker),
		Sink:     &effectSink{session: s},
		EventBus: bus,
	})
	s.stepper.OnTick(s.onTick)

	windowTicks := cfg.WindowTicks
	if windowTicks <= 0 {
		windowTicks = DefaultWindowTicks
	}
	s.reactions = reactions.NewManager(&reactions.ManagerConfig{
		Roster:        snap.Encounter,
		Scheduler:     s.stepper,
		Gate:          tracker,
		EventBus:      bus,
		UUIDGenerator: gen,
		WindowTicks:   windowTicks,
	})
	s.reactions.Restore(snap.Windows)

	bus.SubscribeAll(&events.ListenerFunc{Fn: s.recordEvent, Order: 100})

	return s, nil
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// DriverID returns the user allowed to advance and reset time
func (s *Session) DriverID() string {
	return s.driverID
}

// EventBus exposes the bus so callers can follow the fight
func (s *Session) EventBus() *events.EventBus {
	return s.bus
}

// Run consumes the mailbox until ctx is done. Only one Run may be active.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.FailedPrecondition("session " + s.id + " is already running")
	}
	defer close(s.done)

	log.Printf("[SESSION] Running combat %s", s.id)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SESSION] Stopped combat %s: %v", s.id, ctx.Err())
			return ctx.Err()
		case cmd := <-s.mailbox:
			value, err := cmd.fn(ctx)
			// a reaction that failed part way still changed state
			if cmd.mutates && (err == nil || atb.EffectsApplied(err) > 0) {
				s.persist(ctx)
			}
			cmd.reply <- result{value: value, err: err}
		}
	}
}

// Done is closed once Run returns
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// submit hands a command to Run and waits for the answer
func (s *Session) submit(ctx context.Context, name string, mutates bool, fn func(ctx context.Context) (any, error)) (any, error) {
	cmd := command{
		name:    name,
		mutates: mutates,
		fn:      fn,
		reply:   make(chan result, 1),
	}

	select {
	case <-s.done:
		return nil, errors.Unavailable("session " + s.id + " is stopped")
	default:
	}

	select {
	case s.mailbox <- cmd:
	default:
		log.Printf("[SESSION] Mailbox full for %s, rejecting %s", s.id, name)
		return nil, errors.Unavailable("session " + s.id + " is busy").
			WithMeta("command", name)
	}

	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-s.done:
		return nil, errors.Unavailable("session " + s.id + " stopped before " + name + " ran")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persist saves the current snapshot. Failures are logged, the fight goes on.
func (s *Session) persist(ctx context.Context) {
	if s.repository == nil {
		return
	}
	snap := s.snapshot()
	if err := s.repository.Save(ctx, snap); err != nil {
		log.Printf("[SESSION] Failed to save combat %s at tick %d: %v", s.id, s.state.Tick, err)
		return
	}
	s.createdAt = snap.CreatedAt
}

// snapshot captures the live state. Callers outside Run get a clone.
func (s *Session) snapshot() *session.Snapshot {
	return &session.Snapshot{
		ID:        s.id,
		DriverID:  s.driverID,
		Status:    s.status,
		Scheduler: s.state,
		Encounter: s.encounter,
		Windows:   s.reactions.Windows(""),
		Ailments:  s.tracker.Snapshot(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.clock.Now(),
	}
}

// onTick runs after every finalized tick
func (s *Session) onTick(_ context.Context, tick int) {
	s.reactions.Expire(tick)
	s.encounter.Tick = tick

	if tick%s.ticksPerRound != 0 {
		return
	}
	s.encounter.Round++
	expired := s.tracker.ProcessRoundEnd()
	log.Printf("[SESSION] Combat %s reached round %d at tick %d (%d ailments expired)", s.id, s.encounter.Round, tick, len(expired))
}

// recordEvent mirrors the events worth reading into the combat log
func (s *Session) recordEvent(event *events.GameEvent) error {
	key, _ := event.GetStringContext(events.ContextActionKey)
	switch event.Type {
	case events.OnDescriptorDropped:
		msg, _ := event.GetStringContext(events.ContextError)
		s.combatLog("%s dropped %s: %s", event.ActorID, key, msg)
	case events.OnPerformFailed:
		msg, _ := event.GetStringContext(events.ContextError)
		s.combatLog("%s failed %s: %s", event.ActorID, key, msg)
	case events.OnWindowOpened:
		reason, _ := event.GetStringContext(events.ContextReason)
		provoker, _ := event.GetStringContext(events.ContextProvokerID)
		s.combatLog("%s may react to %s (%s)", event.ActorID, provoker, reason)
	case events.OnReactionTaken:
		provoker, _ := event.GetStringContext(events.ContextProvokerID)
		s.combatLog("%s reacts to %s with %s", event.ActorID, provoker, key)
	case events.OnAilmentApplied:
		kind, _ := event.GetStringContext(events.ContextAilmentType)
		s.combatLog("%s is %s", event.ActorID, kind)
	case events.OnAilmentRemoved:
		kind, _ := event.GetStringContext(events.ContextAilmentType)
		s.combatLog("%s is no longer %s", event.ActorID, kind)
	}
	return nil
}

func (s *Session) combatLog(format string, args ...any) {
	s.encounter.Tick = s.state.Tick
	s.encounter.AddCombatLogEntry(fmt.Sprintf(format, args...))
}

func (s *Session) ledgerCandidates(actorID string, _ modifiers.Context) []modifiers.Candidate {
	sched, ok := s.state.Actors[actorID]
	if !ok {
		return nil
	}
	return sched.Mods.Candidates(s.state.Tick)
}

func (s *Session) combatantCandidates(actorID string, _ modifiers.Context) []modifiers.Candidate {
	c, ok := s.encounter.Get(actorID)
	if !ok {
		return nil
	}
	return c.Modifiers
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
