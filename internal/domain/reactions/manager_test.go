package reactions_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/events"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/reactions"
	mockreactions "github.com/KirkDiggler/rpg-atb/internal/domain/reactions/mock"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixedAction struct {
	key      string
	ct       atb.CT
	err      error
	followUp string
}

func (a *fixedAction) ID() string    { return a.key }
func (a *fixedAction) Label() string { return a.key }
func (a *fixedAction) Cost() atb.CT  { return a.ct }

func (a *fixedAction) Execute(ec *atb.ExecContext) ([]atb.Effect, error) {
	if a.err != nil {
		return nil, a.err
	}
	effects := []atb.Effect{atb.Log("%s:%s->%s", ec.ActorID, a.key, ec.Meta.TargetID)}
	if a.followUp != "" {
		effects = append(effects, atb.Log("%s", a.followUp))
	}
	return effects, nil
}

type catalog map[atb.Kind]map[string]atb.Action

func (c catalog) Lookup(kind atb.Kind, key string) (atb.Action, bool) {
	a, ok := c[kind][key]
	return a, ok
}

type logSink struct {
	logs   []string
	failOn string
}

func (s *logSink) Apply(_ context.Context, _ string, effect atb.Effect, _ atb.ApplyOptions) (*atb.Decision, error) {
	if effect.Kind == atb.EffectLog {
		if s.failOn != "" && effect.Log.Message == s.failOn {
			return nil, fmt.Errorf("sink refused %q", effect.Log.Message)
		}
		s.logs = append(s.logs, effect.Log.Message)
	}
	return nil, nil
}

func (s *logSink) Resolve(context.Context, *atb.Decision, string) error {
	return nil
}

type fixture struct {
	catalog   catalog
	encounter *combat.Encounter
	stepper   *atb.Stepper
	sink      *logSink
	bus       *events.EventBus
	manager   *reactions.Manager
}

// newFixture puts C and D next to each other on opposite sides
func newFixture(windowTicks int) *fixture {
	enc := combat.NewEncounter("enc-1", "alley", "dm")
	enc.AddCombatant(&combat.Combatant{
		ID: "C", Side: "heroes", Position: atb.Position{X: 0, Y: 0},
		Reach: 1, Stamina: 2, IsActive: true, CurrentHP: 10, MaxHP: 10,
	})
	enc.AddCombatant(&combat.Combatant{
		ID: "D", Side: "goblins", Position: atb.Position{X: 1, Y: 0},
		Reach: 1, Stamina: 2, IsActive: true, CurrentHP: 10, MaxHP: 10,
		Reactions: []combat.ReactionAbility{
			{Key: "opportunity_attack", Reasons: []atb.Reason{atb.ReasonLeaveMelee, atb.ReasonFumble}},
			{Key: "parry", Reasons: []atb.Reason{atb.ReasonIncomingAttack}, Phased: true},
		},
	})

	cat := catalog{
		atb.KindReaction: {
			"opportunity_attack": &fixedAction{key: "opportunity_attack"},
			"parry":              &fixedAction{key: "parry", ct: atb.CT{Exec: 1, Rec: 1}},
		},
		atb.KindAttack: {
			"slash": &fixedAction{key: "slash", ct: atb.CT{Init: 2, Exec: 1}},
		},
		atb.KindMove: {
			"step": &fixedAction{key: "step", ct: atb.CT{Exec: 1}},
		},
	}

	sink := &logSink{}
	bus := events.NewEventBus()
	stepper := atb.NewStepper(&atb.StepperConfig{
		State:    atb.NewState(),
		Resolver: atb.NewResolver(cat, nil),
		Sink:     sink,
		EventBus: bus,
	})

	return &fixture{
		catalog:   cat,
		encounter: enc,
		stepper:   stepper,
		sink:      sink,
		bus:       bus,
		manager: reactions.NewManager(&reactions.ManagerConfig{
			Roster:        enc,
			Scheduler:     stepper,
			EventBus:      bus,
			UUIDGenerator: uuid.NewSequentialGenerator("window"),
			WindowTicks:   windowTicks,
		}),
	}
}

func leaveMelee(from, to atb.Position) atb.Trigger {
	return atb.Trigger{Reason: atb.ReasonLeaveMelee, ProvokerID: "C", From: from, To: to}
}

func TestManager_LeaveMeleeOpportunityAttack(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	_, err := f.stepper.Enqueue("C", atb.Descriptor{Kind: atb.KindMove, Key: "step"}, nil)
	require.NoError(t, err)
	_, err = f.stepper.Enqueue("D", atb.Descriptor{Kind: atb.KindAttack, Key: "slash"}, nil)
	require.NoError(t, err)

	var taken []string
	f.bus.Subscribe(events.OnReactionTaken, &events.ListenerFunc{Fn: func(e *events.GameEvent) error {
		key, _ := e.GetStringContext(events.ContextActionKey)
		taken = append(taken, e.ActorID+":"+key)
		return nil
	}})

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	require.Len(t, opened, 1)
	assert.Equal(t, "D", opened[0].ActorID)
	assert.Equal(t, atb.ReasonLeaveMelee, opened[0].Reason)
	assert.Equal(t, 1, opened[0].ExpiresTick)

	w, err := f.manager.TryReactOpportunity(ctx, "D", "C")
	require.NoError(t, err)
	assert.Equal(t, opened[0].ID, w.ID)

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 1, d.Wear)
	assert.Equal(t, []string{"D:opportunity_attack->C"}, f.sink.logs)
	assert.Equal(t, []string{"D:opportunity_attack"}, taken)

	// nothing scheduled moved
	state := f.stepper.State()
	for _, id := range []string{"C", "D"} {
		assert.Len(t, state.Actors[id].Queue, 1, id)
		assert.Nil(t, state.Actors[id].Current, id)
	}
	assert.Equal(t, 0, state.Tick)
}

func TestManager_LeaveMeleeStillInReachOpensNothing(t *testing.T) {
	f := newFixture(1)

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 0, Y: 1}))

	assert.Empty(t, opened)
	assert.Empty(t, f.manager.Windows(""))
}

func TestManager_WindowConsumedOnce(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))

	_, err := f.manager.TryReactOpportunity(ctx, "D", "C")
	require.NoError(t, err)

	_, err = f.manager.TryReactOpportunity(ctx, "D", "C")
	assert.True(t, errors.IsNotFound(err))

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 1, d.Wear)
	assert.Len(t, f.sink.logs, 1)
}

func TestManager_WindowExpires(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	require.Len(t, opened, 1)

	// still open on its last tick
	_, err := f.stepper.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.stepper.Tick())
	assert.True(t, opened[0].Open(f.stepper.Tick()))

	_, err = f.stepper.Step(ctx)
	require.NoError(t, err)
	assert.False(t, opened[0].Open(f.stepper.Tick()))

	_, err = f.manager.TryReactOpportunity(ctx, "D", "C")
	assert.True(t, errors.IsNotFound(err))

	expired := f.manager.Expire(f.stepper.Tick())
	require.Len(t, expired, 1)
	assert.Equal(t, opened[0].ID, expired[0].ID)
	assert.Empty(t, f.manager.Windows("D"))

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 0, d.Wear)
}

func TestManager_WearBounds(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	d, _ := f.encounter.Get("D")

	for i := 0; i < d.WearMax(); i++ {
		f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
		_, err := f.manager.TryReactOpportunity(ctx, "D", "C")
		require.NoError(t, err, "reaction %d", i)
	}
	assert.Equal(t, d.WearMax(), d.Wear)

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	assert.Empty(t, opened)
	assert.Equal(t, d.WearMax(), d.Wear)
}

func TestManager_OpenRefusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *combat.Combatant)
	}{
		{name: "worn out", setup: func(d *combat.Combatant) { d.Wear = d.WearMax() }},
		{name: "fatigued", setup: func(d *combat.Combatant) { d.Fatigue = d.Stamina }},
		{name: "no ability", setup: func(d *combat.Combatant) { d.Reactions = nil }},
		{name: "down", setup: func(d *combat.Combatant) { d.IsActive = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(1)
			d, _ := f.encounter.Get("D")
			tt.setup(d)

			var refused int
			f.bus.Subscribe(events.OnWindowRefused, &events.ListenerFunc{Fn: func(*events.GameEvent) error {
				refused++
				return nil
			}})

			_, err := f.manager.Open("D", atb.ReasonLeaveMelee, 1, reactions.Payload{ProvokerID: "C"})
			assert.True(t, errors.IsResourceExhausted(err))
			assert.Equal(t, 1, refused)
			assert.Empty(t, f.manager.Windows(""))
		})
	}
}

func TestManager_OpenValidation(t *testing.T) {
	f := newFixture(1)

	_, err := f.manager.Open("D", atb.Reason("sneeze"), 1, reactions.Payload{ProvokerID: "C"})
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = f.manager.Open("D", atb.ReasonLeaveMelee, -1, reactions.Payload{ProvokerID: "C"})
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = f.manager.Open("nobody", atb.ReasonLeaveMelee, 1, reactions.Payload{ProvokerID: "C"})
	assert.True(t, errors.IsNotFound(err))
}

func TestManager_RefusalLeavesOthersOpen(t *testing.T) {
	f := newFixture(1)
	f.encounter.AddCombatant(&combat.Combatant{
		ID: "E", Side: "goblins", Position: atb.Position{X: 0, Y: 1},
		Reach: 1, Stamina: 1, Wear: 1, IsActive: true,
		Reactions: []combat.ReactionAbility{{Key: "opportunity_attack", Reasons: []atb.Reason{atb.ReasonLeaveMelee}}},
	})

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))

	require.Len(t, opened, 1)
	assert.Equal(t, "D", opened[0].ActorID)
}

func TestManager_CoalescesRepeatTriggers(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	first := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	require.Len(t, first, 1)

	_, err := f.stepper.Step(ctx)
	require.NoError(t, err)

	second := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].ExpiresTick)
	assert.Len(t, f.manager.Windows("D"), 1)
}

func TestManager_IncomingAttackOnlyOpensForTarget(t *testing.T) {
	f := newFixture(1)

	opened := f.manager.Fire(atb.Trigger{
		Reason:     atb.ReasonIncomingAttack,
		ProvokerID: "C",
		TargetID:   "D",
		Timing:     atb.TimingBefore,
	})

	require.Len(t, opened, 1)
	assert.Equal(t, "D", opened[0].ActorID)
	assert.Equal(t, atb.TimingBefore, opened[0].Payload.Timing)
}

func TestManager_FumbleOpensForThreateningFoes(t *testing.T) {
	f := newFixture(1)

	opened := f.manager.Fire(atb.Trigger{Reason: atb.ReasonFumble, ProvokerID: "C"})

	require.Len(t, opened, 1)
	assert.Equal(t, "D", opened[0].ActorID)
}

func TestManager_PhasedReactionMustSubstitute(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	opened := f.manager.Fire(atb.Trigger{Reason: atb.ReasonIncomingAttack, ProvokerID: "C", TargetID: "D"})
	require.Len(t, opened, 1)

	_, err := f.manager.TryReactOpportunity(ctx, "D", "C")
	assert.True(t, errors.IsFailedPrecondition(err))
	assert.Len(t, f.manager.Windows("D"), 1)
}

func TestManager_SubstituteReplacesSchedule(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	_, err := f.stepper.Enqueue("D", atb.Descriptor{Kind: atb.KindAttack, Key: "slash"}, nil)
	require.NoError(t, err)
	_, err = f.stepper.Enqueue("D", atb.Descriptor{Kind: atb.KindAttack, Key: "slash"}, nil)
	require.NoError(t, err)
	_, err = f.stepper.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, f.stepper.State().Actors["D"].Current)

	opened := f.manager.Fire(atb.Trigger{Reason: atb.ReasonIncomingAttack, ProvokerID: "C", TargetID: "D"})
	require.Len(t, opened, 1)

	card, err := f.manager.Substitute(ctx, "D", opened[0].ID, "")
	require.NoError(t, err)
	require.NotNil(t, card)

	assert.True(t, card.Reaction)
	assert.Equal(t, "parry", card.ActionKey)
	assert.Equal(t, "C", card.Meta.TargetID)

	sched := f.stepper.State().Actors["D"]
	assert.Same(t, card, sched.Current)
	assert.Empty(t, sched.Queue)

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 1, d.Wear)
	assert.Empty(t, f.manager.Windows("D"))
}

func TestManager_SubstituteUnknownWindow(t *testing.T) {
	f := newFixture(1)

	_, err := f.manager.Substitute(context.Background(), "D", "window-99", "")
	assert.True(t, errors.IsNotFound(err))
}

func TestManager_EndCombatResetsWear(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	_, err := f.manager.TryReactOpportunity(ctx, "D", "C")
	require.NoError(t, err)
	f.manager.Fire(atb.Trigger{Reason: atb.ReasonFumble, ProvokerID: "C"})
	require.NotEmpty(t, f.manager.Windows(""))

	f.manager.EndCombat()

	assert.Empty(t, f.manager.Windows(""))
	for _, c := range f.encounter.Ordered() {
		assert.Equal(t, 0, c.Wear, c.ID)
	}
}

func TestManager_RefundsWearWhenReactionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	roster := mockreactions.NewMockRoster(ctrl)
	scheduler := mockreactions.NewMockScheduler(ctrl)
	gate := mockreactions.NewMockGate(ctrl)

	d := &combat.Combatant{
		ID: "D", Side: "goblins", Reach: 1, Stamina: 1, IsActive: true,
		Reactions: []combat.ReactionAbility{{Key: "opportunity_attack", Reasons: []atb.Reason{atb.ReasonLeaveMelee}}},
	}
	action := &fixedAction{key: "opportunity_attack"}

	roster.EXPECT().Get("D").Return(d, true).AnyTimes()
	scheduler.EXPECT().Tick().Return(4).AnyTimes()
	gate.EXPECT().CantReact("D").Return(false).AnyTimes()
	scheduler.EXPECT().
		Resolve("D", gomock.Any()).
		Return(&atb.Resolved{Action: action, Kind: atb.KindReaction, Key: action.key}, nil)
	scheduler.EXPECT().
		Perform(gomock.Any(), "D", action, atb.Meta{TargetID: "C"}).
		Return(errors.Perform(fmt.Errorf("no weapon"), "failed to perform opportunity_attack"))

	manager := reactions.NewManager(&reactions.ManagerConfig{
		Roster:        roster,
		Scheduler:     scheduler,
		Gate:          gate,
		UUIDGenerator: uuid.NewSequentialGenerator("window"),
		WindowTicks:   1,
	})

	w, err := manager.Open("D", atb.ReasonLeaveMelee, 5, reactions.Payload{ProvokerID: "C"})
	require.NoError(t, err)

	_, err = manager.TryReactOpportunity(context.Background(), "D", "C")
	assert.True(t, errors.IsPerform(err))
	assert.Equal(t, 0, d.Wear)

	// still there for another try
	got, ok := manager.Window(w.ID)
	require.True(t, ok)
	assert.Equal(t, w, got)
}

func TestManager_PartlyAppliedReactionKeepsWearSpent(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()
	f.catalog[atb.KindReaction]["opportunity_attack"].(*fixedAction).followUp = "boom"
	f.sink.failOn = "boom"

	opened := f.manager.Fire(leaveMelee(atb.Position{X: 0, Y: 0}, atb.Position{X: 3, Y: 0}))
	require.Len(t, opened, 1)

	_, err := f.manager.TryReactOpportunity(ctx, "D", "C")
	assert.True(t, errors.IsPerform(err))
	assert.Equal(t, 1, atb.EffectsApplied(err))

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 1, d.Wear)
	assert.Empty(t, f.manager.Windows("D"))

	_, err = f.manager.TryReactOpportunity(ctx, "D", "C")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, d.Wear)
	assert.Equal(t, []string{"D:opportunity_attack->C"}, f.sink.logs)
}

func TestManager_PartlyAppliedInstantSubstituteConsumesWindow(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()
	f.catalog[atb.KindReaction]["opportunity_attack"].(*fixedAction).followUp = "boom"
	f.sink.failOn = "boom"

	opened := f.manager.Fire(atb.Trigger{Reason: atb.ReasonFumble, ProvokerID: "C"})
	require.Len(t, opened, 1)

	card, err := f.manager.Substitute(ctx, "D", opened[0].ID, "")
	assert.True(t, errors.IsPerform(err))
	assert.Nil(t, card)

	d, _ := f.encounter.Get("D")
	assert.Equal(t, 1, d.Wear)
	_, ok := f.manager.Window(opened[0].ID)
	assert.False(t, ok)
	assert.Len(t, f.sink.logs, 1)
}

func TestManager_GateRefusesReaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	roster := mockreactions.NewMockRoster(ctrl)
	scheduler := mockreactions.NewMockScheduler(ctrl)
	gate := mockreactions.NewMockGate(ctrl)

	d := &combat.Combatant{
		ID: "D", Side: "goblins", Stamina: 2, IsActive: true,
		Reactions: []combat.ReactionAbility{{Key: "opportunity_attack", Reasons: []atb.Reason{atb.ReasonLeaveMelee}}},
	}
	roster.EXPECT().Get("D").Return(d, true)
	scheduler.EXPECT().Tick().Return(0).AnyTimes()
	gate.EXPECT().CantReact("D").Return(true)

	manager := reactions.NewManager(&reactions.ManagerConfig{
		Roster:    roster,
		Scheduler: scheduler,
		Gate:      gate,
	})

	_, err := manager.Open("D", atb.ReasonLeaveMelee, 1, reactions.Payload{ProvokerID: "C"})
	assert.True(t, errors.IsResourceExhausted(err))
	assert.Empty(t, manager.Windows(""))
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { reactions.NewManager(nil) })
	assert.Panics(t, func() { reactions.NewManager(&reactions.ManagerConfig{}) })
}
