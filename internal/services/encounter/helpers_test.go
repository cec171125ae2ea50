package encounter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/catalog"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats"
	"github.com/KirkDiggler/rpg-atb/internal/services/encounter"
	"github.com/KirkDiggler/rpg-atb/internal/testutils"
	"github.com/KirkDiggler/rpg-atb/internal/uuid"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
actions:
  - kind: attack
    key: slash
    exec: 1
    effects:
      - type: attack
        damage: 1d6
  - kind: attack
    key: lunge
    exec: 1
    effects:
      - type: attack
        damage: 1d6
        announce: true
  - kind: move
    key: step
    exec: 1
    effects:
      - type: move
  - kind: item
    key: horn
    effects:
      - type: prompt
        prompt: Sound the horn?
        options: [sound]
      - type: log
        message: "{actor} sounds the horn"
  - kind: reaction
    key: opportunity_attack
    effects:
      - type: attack
        damage: 1d4
  - kind: reaction
    key: riposte
    effects:
      - type: attack
        damage: 1d4
ailments:
  - id: dazed
    name: Dazed
    duration:
      type: rounds
      rounds: 1
    severities:
      minor:
        ct_adjust:
          init: 1
`

type fixture struct {
	session *encounter.Session
	repo    combats.Repository
	roller  *dice.MockRoller
	clock   *testutils.FixedClock
	stop    func()
}

func testRoster() []*combat.Combatant {
	return []*combat.Combatant{
		{
			ID: "hero", Name: "Hero", Side: "heroes", ControllerID: "alice",
			CurrentHP: 10, MaxHP: 10, Defense: 12, AttackBonus: 3,
			Position: atb.Position{X: 0, Y: 0}, Reach: 1, Stamina: 2, IsActive: true,
			Modifiers: []modifiers.Candidate{{
				ID: "ring", Label: "Ring", Value: 1, Bucket: modifiers.BucketEquipment,
				When: modifiers.When{Phases: []string{"attack"}},
			}},
		},
		{
			ID: "goblin", Name: "Goblin", Side: "goblins",
			CurrentHP: 8, MaxHP: 8, Defense: 12,
			Position: atb.Position{X: 1, Y: 0}, Reach: 1, Stamina: 2, IsActive: true,
			Reactions: []combat.ReactionAbility{
				{Key: "opportunity_attack", Reasons: []atb.Reason{atb.ReasonLeaveMelee}},
				{Key: "riposte", Reasons: []atb.Reason{atb.ReasonIncomingAttack}},
			},
		},
	}
}

func newFixture(t *testing.T, ticksPerRound int) *fixture {
	t.Helper()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	enc := combat.NewEncounter("fight", "Bridge", "gm")
	for _, c := range testRoster() {
		enc.AddCombatant(c)
	}
	require.True(t, enc.Start())

	clock := testutils.NewFixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := combats.NewInMemoryRepository(clock)
	roller := dice.NewMockRoller()

	sess, err := encounter.NewSession(&encounter.SessionConfig{
		Snapshot: &session.Snapshot{
			ID:        "fight",
			DriverID:  "gm",
			Status:    session.StatusActive,
			Encounter: enc,
		},
		Catalog:       cat,
		Ailments:      cat.Ailments(),
		Roller:        roller,
		Repository:    repo,
		Clock:         clock,
		UUIDGenerator: uuid.NewSequentialGenerator("id"),
		TicksPerRound: ticksPerRound,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()
	stop := func() {
		cancel()
		<-sess.Done()
	}
	t.Cleanup(stop)

	return &fixture{session: sess, repo: repo, roller: roller, clock: clock, stop: stop}
}

func (f *fixture) snapshot(t *testing.T) *session.Snapshot {
	t.Helper()
	snap, err := f.session.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func (f *fixture) combatant(t *testing.T, id string) *combat.Combatant {
	t.Helper()
	c, ok := f.snapshot(t).Encounter.Get(id)
	require.True(t, ok, "combatant %s", id)
	return c
}

func logContains(snap *session.Snapshot, text string) bool {
	for _, line := range snap.Encounter.CombatLog {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}
