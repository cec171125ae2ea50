package encounter

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/ailments"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
)

// Service defines the combat session service interface
type Service interface {
	// StartCombat creates a session and starts driving it
	StartCombat(ctx context.Context, input *StartCombatInput) (*Session, error)

	// GetSession returns a running session, restoring it from storage if needed
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// EndCombat ends a session and stops its mailbox
	EndCombat(ctx context.Context, sessionID, userID string) error

	// ListActive returns snapshots of every session still being driven
	ListActive(ctx context.Context) ([]*session.Snapshot, error)

	// Close stops every running session
	Close()
}

// StartCombatInput contains data for starting a combat
type StartCombatInput struct {
	ID         string // optional, generated when empty
	Name       string
	DriverID   string
	Combatants []*combat.Combatant
}

// ServiceConfig holds configuration for the service
type ServiceConfig struct {
	Repository    combats.Repository
	Catalog       atb.Catalog
	Ailments      []ailments.Definition
	Roller        dice.Roller
	Clock         combats.TimeProvider
	UUIDGenerator uuid.Generator

	TicksPerRound   int
	WindowTicks     int
	DecisionTimeout time.Duration
	MailboxSize     int
	TiePolicy       modifiers.TiePolicy
}

type running struct {
	session *Session
	cancel  context.CancelFunc
}

type service struct {
	cfg           ServiceConfig
	repository    combats.Repository
	uuidGenerator uuid.Generator

	mu       sync.Mutex
	sessions map[string]*running
}

// NewService creates a new combat session service
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		panic("config is required")
	}
	if cfg.Repository == nil {
		panic("repository is required")
	}
	if cfg.Catalog == nil {
		panic("catalog is required")
	}

	svc := &service{
		cfg:        *cfg,
		repository: cfg.Repository,
		sessions:   make(map[string]*running),
	}

	if cfg.UUIDGenerator != nil {
		svc.uuidGenerator = cfg.UUIDGenerator
	} else {
		svc.uuidGenerator = uuid.NewGoogleUUIDGenerator()
	}

	return svc
}

// StartCombat creates a session and starts driving it
func (s *service) StartCombat(ctx context.Context, input *StartCombatInput) (*Session, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input cannot be nil")
	}
	if strings.TrimSpace(input.DriverID) == "" {
		return nil, errors.InvalidArgument("driver ID is required")
	}
	if len(input.Combatants) == 0 {
		return nil, errors.InvalidArgument("at least one combatant is required")
	}

	id := input.ID
	if id == "" {
		id = s.uuidGenerator.New()
	}
	existing, err := s.repository.Get(ctx, id)
	switch {
	case err == nil && existing.IsActive():
		return nil, errors.AlreadyExistsf("combat %s is already running", id)
	case err != nil && !errors.IsNotFound(err):
		return nil, errors.Wrapf(err, "failed to check combat '%s'", id)
	}

	name := input.Name
	if name == "" {
		name = id
	}
	enc := combat.NewEncounter(id, name, input.DriverID)
	for _, c := range input.Combatants {
		if c == nil || strings.TrimSpace(c.ID) == "" {
			return nil, errors.InvalidArgument("every combatant needs an ID")
		}
		if _, dup := enc.Get(c.ID); dup {
			return nil, errors.InvalidArgumentf("combatant %s is listed twice", c.ID)
		}
		for _, m := range c.Modifiers {
			if err := m.Validate(); err != nil {
				return nil, errors.InvalidArgumentf("combatant %s: %v", c.ID, err)
			}
		}
		joined := *c
		if joined.MaxHP < joined.CurrentHP {
			joined.MaxHP = joined.CurrentHP
		}
		joined.IsActive = joined.CurrentHP > 0
		joined.Wear = 0
		enc.AddCombatant(&joined)
	}
	if !enc.Start() {
		return nil, errors.FailedPrecondition("encounter could not start")
	}

	sess, err := s.newSession(&session.Snapshot{
		ID:        id,
		DriverID:  input.DriverID,
		Status:    session.StatusActive,
		Scheduler: atb.NewState(),
		Encounter: enc,
	})
	if err != nil {
		return nil, err
	}

	snap := sess.snapshot()
	if err := s.repository.Save(ctx, snap); err != nil {
		return nil, errors.Wrapf(err, "failed to save combat '%s'", id)
	}
	sess.createdAt = snap.CreatedAt

	if running := s.start(ctx, sess); running != sess {
		return nil, errors.AlreadyExistsf("combat %s is already running", id)
	}
	log.Printf("[SESSION] Started combat %s with %d combatants, driven by %s", id, len(input.Combatants), input.DriverID)
	return sess, nil
}

// GetSession returns a running session, restoring it from storage if needed
func (s *service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	s.mu.Lock()
	r, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return r.session, nil
	}

	snap, err := s.repository.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get combat '%s'", sessionID)
	}
	sess, err := s.newSession(snap)
	if err != nil {
		return nil, err
	}

	if running := s.start(ctx, sess); running != sess {
		return running, nil
	}
	log.Printf("[SESSION] Restored combat %s at tick %d", sessionID, snap.Tick())
	return sess, nil
}

// EndCombat ends a session and stops its mailbox
func (s *service) EndCombat(ctx context.Context, sessionID, userID string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.EndCombat(ctx, userID); err != nil {
		return errors.Wrapf(err, "failed to end combat '%s'", sessionID)
	}

	s.stop(sessionID)
	return nil
}

// ListActive returns snapshots of every session still being driven
func (s *service) ListActive(ctx context.Context) ([]*session.Snapshot, error) {
	snaps, err := s.repository.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active combats")
	}
	return snaps, nil
}

// Close stops every running session
func (s *service) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.stop(id)
	}
}

func (s *service) newSession(snap *session.Snapshot) (*Session, error) {
	return NewSession(&SessionConfig{
		Snapshot:        snap,
		Catalog:         s.cfg.Catalog,
		Ailments:        s.cfg.Ailments,
		Roller:          s.cfg.Roller,
		Repository:      s.repository,
		Clock:           s.cfg.Clock,
		UUIDGenerator:   s.uuidGenerator,
		TicksPerRound:   s.cfg.TicksPerRound,
		WindowTicks:     s.cfg.WindowTicks,
		DecisionTimeout: s.cfg.DecisionTimeout,
		MailboxSize:     s.cfg.MailboxSize,
		TiePolicy:       s.cfg.TiePolicy,
	})
}

// start runs the session's mailbox until the service stops it and returns
// the session now registered under its ID. The run context keeps ctx's
// values but not its cancellation.
func (s *service) start(ctx context.Context, sess *Session) *Session {
	s.mu.Lock()
	if r, ok := s.sessions[sess.ID()]; ok {
		s.mu.Unlock()
		return r.session
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.sessions[sess.ID()] = &running{session: sess, cancel: cancel}
	s.mu.Unlock()

	go func() {
		if err := sess.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.Printf("[SESSION] Combat %s stopped: %v", sess.ID(), err)
		}
	}()
	return sess
}

func (s *service) stop(sessionID string) {
	s.mu.Lock()
	r, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		r.cancel()
		<-r.session.Done()
	}
}
