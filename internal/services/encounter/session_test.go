package encounter_test

import (
	"context"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/domain/reactions"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/services/encounter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AttackHitsAndPersists(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.roller.SetRolls([]int{10, 4}) // d20 10+3 vs 12, then 1d6

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{
		Kind: atb.KindAttack, Key: "slash", Meta: atb.Meta{TargetID: "goblin"},
	}, nil)
	require.NoError(t, err)

	stored, err := f.repo.Get(ctx, "fight")
	require.NoError(t, err)
	require.Len(t, stored.Scheduler.Actors["hero"].Queue, 1)

	out, err := f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, atb.StepTickComplete, out.Kind)
	assert.Equal(t, 1, out.Tick)

	goblin := f.combatant(t, "goblin")
	assert.Equal(t, 4, goblin.CurrentHP)

	stored, err = f.repo.Get(ctx, "fight")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Tick())
	assert.True(t, logContains(stored, "hero hits goblin for 4"))
}

func TestSession_AdvanceRequiresDriver(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{Kind: atb.KindWait, Meta: atb.Meta{Ticks: 2}}, nil)
	require.NoError(t, err)

	_, err = f.session.AdvanceOneTick(ctx, "alice")
	assert.True(t, errors.IsPermissionDenied(err))
	err = f.session.ResetScheduler(ctx, "alice")
	assert.True(t, errors.IsPermissionDenied(err))

	snap := f.snapshot(t)
	assert.Equal(t, 0, snap.Tick())
	assert.Len(t, snap.Scheduler.Actors["hero"].Queue, 1)
	assert.Nil(t, snap.Scheduler.Actors["hero"].Current)

	require.NoError(t, f.session.ResetScheduler(ctx, "gm"))
	assert.Empty(t, f.snapshot(t).Scheduler.Actors)
}

func TestSession_EnqueueWarnings(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	past := -1

	tests := []struct {
		name    string
		userID  string
		actorID string
		desc    atb.Descriptor
		tick    *int
		check   func(error) bool
	}{
		{
			name: "unknown actor", userID: "gm", actorID: "nobody",
			desc:  atb.Descriptor{Kind: atb.KindWait},
			check: errors.IsNotFound,
		},
		{
			name: "unknown target", userID: "alice", actorID: "hero",
			desc:  atb.Descriptor{Kind: atb.KindAttack, Key: "slash", Meta: atb.Meta{TargetID: "dragon"}},
			check: errors.IsNotFound,
		},
		{
			name: "not the controller", userID: "bob", actorID: "hero",
			desc:  atb.Descriptor{Kind: atb.KindWait},
			check: errors.IsPermissionDenied,
		},
		{
			name: "unknown action", userID: "alice", actorID: "hero",
			desc:  atb.Descriptor{Kind: atb.KindAttack, Key: "fireball", Meta: atb.Meta{TargetID: "goblin"}},
			check: errors.IsResolution,
		},
		{
			name: "tick in the past", userID: "alice", actorID: "hero",
			desc:  atb.Descriptor{Kind: atb.KindWait},
			tick:  &past,
			check: errors.IsInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.session.EnqueueAction(ctx, tt.userID, tt.actorID, tt.desc, tt.tick)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	assert.Empty(t, f.snapshot(t).Scheduler.Actors)
}

func TestSession_DriverMayDeclareForAnyone(t *testing.T) {
	f := newFixture(t, 0)

	future := 3
	desc, err := f.session.EnqueueAction(context.Background(), "gm", "goblin", atb.Descriptor{Kind: atb.KindWait}, &future)
	require.NoError(t, err)
	assert.Equal(t, 3, desc.TargetTick)
	assert.Equal(t, 1, desc.QOrder)
}

func TestSession_LeaveMeleeThenOpportunityAttack(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.roller.SetRolls([]int{15, 2}) // goblin hits, 1d4

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{
		Kind: atb.KindMove, Key: "step", Meta: atb.Meta{To: &atb.Position{X: 3, Y: 0}},
	}, nil)
	require.NoError(t, err)

	_, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)

	snap := f.snapshot(t)
	hero, _ := snap.Encounter.Get("hero")
	assert.Equal(t, atb.Position{X: 3, Y: 0}, hero.Position)
	require.Len(t, snap.Windows, 1)
	assert.Equal(t, "goblin", snap.Windows[0].ActorID)
	assert.Equal(t, atb.ReasonLeaveMelee, snap.Windows[0].Reason)

	// the hero cannot spend the goblin's reaction
	_, err = f.session.TryReactOpportunity(ctx, "alice", "goblin", "hero")
	assert.True(t, errors.IsPermissionDenied(err))

	w, err := f.session.TryReactOpportunity(ctx, "gm", "goblin", "hero")
	require.NoError(t, err)
	assert.Equal(t, snap.Windows[0].ID, w.ID)

	snap = f.snapshot(t)
	hero, _ = snap.Encounter.Get("hero")
	goblin, _ := snap.Encounter.Get("goblin")
	assert.Equal(t, 8, hero.CurrentHP)
	assert.Equal(t, 1, goblin.Wear)
	assert.Empty(t, snap.Windows)
	assert.Equal(t, 1, snap.Tick(), "reactions cost no ticks")
	assert.True(t, logContains(snap, "goblin reacts to hero with opportunity_attack"))
}

func TestSession_AnnouncedAttackAsksDefender(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.roller.SetRolls([]int{15, 3, 10, 4}) // riposte hit and 1d4, then the lunge

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{
		Kind: atb.KindAttack, Key: "lunge", Meta: atb.Meta{TargetID: "goblin"},
	}, nil)
	require.NoError(t, err)

	out, err := f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	require.Equal(t, atb.StepAwaitingDecision, out.Kind)

	snap := f.snapshot(t)
	pending := snap.Scheduler.PendingDecision
	require.NotNil(t, pending)
	assert.Equal(t, out.DecisionID, pending.ID)
	assert.Equal(t, "goblin", pending.ActorID)
	assert.Equal(t, []string{"riposte", atb.ChoiceNone}, pending.Options)
	assert.Equal(t, f.clock.Now().Add(encounter.DefaultDecisionTimeout), pending.Deadline)

	// still waiting
	again, err := f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, atb.StepAwaitingDecision, again.Kind)

	_, err = f.session.ResolveDecision(ctx, "alice", pending.ID, "riposte")
	assert.True(t, errors.IsPermissionDenied(err))
	_, err = f.session.ResolveDecision(ctx, "gm", "other", "riposte")
	assert.True(t, errors.IsNotFound(err))

	res, err := f.session.ResolveDecision(ctx, "gm", pending.ID, "riposte")
	require.NoError(t, err)
	assert.Equal(t, atb.StepContinue, res.Kind)

	snap = f.snapshot(t)
	hero, _ := snap.Encounter.Get("hero")
	goblin, _ := snap.Encounter.Get("goblin")
	assert.Equal(t, 7, hero.CurrentHP)
	assert.Equal(t, 4, goblin.CurrentHP)
	assert.Equal(t, 1, goblin.Wear)
	assert.Nil(t, snap.Scheduler.PendingDecision)
	assert.True(t, logContains(snap, "goblin chose riposte"))

	out, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, atb.StepTickComplete, out.Kind)
}

func TestSession_UnansweredDecisionTimesOut(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.roller.SetRolls([]int{10, 4})

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{
		Kind: atb.KindAttack, Key: "lunge", Meta: atb.Meta{TargetID: "goblin"},
	}, nil)
	require.NoError(t, err)

	out, err := f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	require.Equal(t, atb.StepAwaitingDecision, out.Kind)

	f.clock.Advance(encounter.DefaultDecisionTimeout + time.Second)

	_, err = f.session.ResolveDecision(ctx, "gm", out.DecisionID, "riposte")
	assert.True(t, errors.IsFailedPrecondition(err), "late answers are refused")

	out, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, atb.StepContinue, out.Kind)

	snap := f.snapshot(t)
	goblin, _ := snap.Encounter.Get("goblin")
	assert.Nil(t, snap.Scheduler.PendingDecision)
	assert.Equal(t, 4, goblin.CurrentHP)
	assert.Equal(t, 0, goblin.Wear)
	assert.True(t, logContains(snap, "goblin chose none"))
}

func TestSession_PromptFromCatalog(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{Kind: atb.KindItem, Key: "horn"}, nil)
	require.NoError(t, err)

	out, err := f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	require.Equal(t, atb.StepAwaitingDecision, out.Kind)

	_, err = f.session.ResolveDecision(ctx, "alice", out.DecisionID, "shout")
	assert.True(t, errors.IsInvalidArgument(err))

	res, err := f.session.ResolveDecision(ctx, "alice", out.DecisionID, "sound")
	require.NoError(t, err)
	assert.Equal(t, atb.StepContinue, res.Kind)

	out, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, atb.StepTickComplete, out.Kind)

	snap := f.snapshot(t)
	assert.True(t, logContains(snap, "hero chose sound"))
	assert.True(t, logContains(snap, "hero sounds the horn"))
}

func TestSession_AilmentsEndWithTheRound(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.session.ApplyAilment(ctx, "alice", "hero", "dazed", "")
	assert.True(t, errors.IsPermissionDenied(err))
	_, err = f.session.ApplyAilment(ctx, "gm", "nobody", "dazed", "")
	assert.True(t, errors.IsNotFound(err))

	st, err := f.session.ApplyAilment(ctx, "gm", "hero", "dazed", "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.RemainingRounds)

	_, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)
	assert.Len(t, f.snapshot(t).Ailments["hero"], 1)

	_, err = f.session.AdvanceOneTick(ctx, "gm")
	require.NoError(t, err)

	snap := f.snapshot(t)
	assert.Empty(t, snap.Ailments["hero"])
	assert.Equal(t, 2, snap.Encounter.Round)
	assert.True(t, logContains(snap, "hero is no longer dazed"))
}

func TestSession_Aggregate(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.session.Aggregate(context.Background(), "hero", 3, modifiers.Context{Phase: "attack"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)

	_, err = f.session.Aggregate(context.Background(), "nobody", 0, modifiers.Context{})
	assert.True(t, errors.IsNotFound(err))
}

func TestSession_OpenReactionWindowByHand(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.session.OpenReactionWindow(ctx, "alice", "goblin", atb.ReasonLeaveMelee, 2, reactions.Payload{ProvokerID: "hero"})
	assert.True(t, errors.IsPermissionDenied(err))

	w, err := f.session.OpenReactionWindow(ctx, "gm", "goblin", atb.ReasonLeaveMelee, 2, reactions.Payload{ProvokerID: "hero"})
	require.NoError(t, err)
	assert.Equal(t, 2, w.ExpiresTick)

	_, err = f.session.OpenReactionWindow(ctx, "gm", "hero", atb.ReasonLeaveMelee, 2, reactions.Payload{ProvokerID: "goblin"})
	assert.True(t, errors.IsResourceExhausted(err), "hero knows no reactions")
}

func TestSession_SubstituteInstantReaction(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.roller.SetRolls([]int{1}) // fumbles, no damage roll

	w, err := f.session.OpenReactionWindow(ctx, "gm", "goblin", atb.ReasonIncomingAttack, 1, reactions.Payload{ProvokerID: "hero"})
	require.NoError(t, err)

	card, err := f.session.SubstituteWithReaction(ctx, "gm", "goblin", w.ID, "")
	require.NoError(t, err)
	assert.Nil(t, card, "zero-tick reactions leave no card")

	snap := f.snapshot(t)
	goblin, _ := snap.Encounter.Get("goblin")
	assert.Equal(t, 1, goblin.Wear)
	assert.True(t, logContains(snap, "goblin fumbles against hero"))
}

func TestSession_EndCombat(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	assert.True(t, errors.IsPermissionDenied(f.session.EndCombat(ctx, "alice")))
	require.NoError(t, f.session.EndCombat(ctx, "gm"))

	snap := f.snapshot(t)
	assert.Equal(t, session.StatusEnded, snap.Status)
	assert.False(t, snap.Encounter.IsActive())

	_, err := f.session.AdvanceOneTick(ctx, "gm")
	assert.True(t, errors.IsFailedPrecondition(err))
	_, err = f.session.EnqueueAction(ctx, "alice", "hero", atb.Descriptor{Kind: atb.KindWait}, nil)
	assert.True(t, errors.IsFailedPrecondition(err))

	stored, err := f.repo.Get(ctx, "fight")
	require.NoError(t, err)
	assert.False(t, stored.IsActive())
}

func TestSession_StoppedSessionIsUnavailable(t *testing.T) {
	f := newFixture(t, 0)
	f.stop()

	_, err := f.session.Snapshot(context.Background())
	assert.True(t, errors.IsUnavailable(err))

	err = f.session.Run(context.Background())
	assert.True(t, errors.IsFailedPrecondition(err), "a session runs once")
}

func TestNewSession_Validation(t *testing.T) {
	assert.Panics(t, func() { _, _ = encounter.NewSession(nil) })
	assert.Panics(t, func() { _, _ = encounter.NewSession(&encounter.SessionConfig{}) })

	cat := emptyCatalog{}
	_, err := encounter.NewSession(&encounter.SessionConfig{Catalog: cat})
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = encounter.NewSession(&encounter.SessionConfig{Catalog: cat, Snapshot: &session.Snapshot{ID: "x"}})
	assert.True(t, errors.IsInvalidArgument(err))
}

type emptyCatalog struct{}

func (emptyCatalog) Lookup(atb.Kind, string) (atb.Action, bool) { return nil, false }
