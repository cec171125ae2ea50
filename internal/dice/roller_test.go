package dice_test

import (
	"testing"

	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRoller_Roll(t *testing.T) {
	tests := []struct {
		name       string
		setupRolls []int
		count      int
		sides      int
		bonus      int
		wantTotal  int
		wantRolls  []int
		wantCrit   bool
		wantFumble bool
		wantErr    bool
	}{
		{
			name:       "single d20 roll",
			setupRolls: []int{15},
			count:      1,
			sides:      20,
			wantTotal:  15,
			wantRolls:  []int{15},
		},
		{
			name:       "2d6+3",
			setupRolls: []int{4, 5},
			count:      2,
			sides:      6,
			bonus:      3,
			wantTotal:  12, // 4+5+3
			wantRolls:  []int{4, 5},
		},
		{
			name:       "critical d20",
			setupRolls: []int{20},
			count:      1,
			sides:      20,
			bonus:      5,
			wantTotal:  25,
			wantRolls:  []int{20},
			wantCrit:   true,
		},
		{
			name:       "fumble d20",
			setupRolls: []int{1},
			count:      1,
			sides:      20,
			bonus:      2,
			wantTotal:  3,
			wantRolls:  []int{1},
			wantFumble: true,
		},
		{
			name:       "not enough rolls",
			setupRolls: []int{10},
			count:      2,
			sides:      6,
			wantErr:    true,
		},
		{
			name:       "invalid roll for die size",
			setupRolls: []int{7},
			count:      1,
			sides:      6,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roller := dice.NewMockRoller()
			roller.SetRolls(tt.setupRolls)

			result, err := roller.Roll(tt.count, tt.sides, tt.bonus)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, result.Total)
			assert.Equal(t, tt.wantRolls, result.Rolls)
			assert.Equal(t, tt.wantCrit, result.IsCrit)
			assert.Equal(t, tt.wantFumble, result.IsFumble)
		})
	}
}

func TestRandomRoller_SeedIsDeterministic(t *testing.T) {
	a := dice.NewRandomRoller(42)
	b := dice.NewRandomRoller(42)

	for i := 0; i < 10; i++ {
		ra, err := a.Roll(3, 6, 0)
		require.NoError(t, err)
		rb, err := b.Roll(3, 6, 0)
		require.NoError(t, err)
		assert.Equal(t, ra.Rolls, rb.Rolls)
		for _, r := range ra.Rolls {
			assert.GreaterOrEqual(t, r, 1)
			assert.LessOrEqual(t, r, 6)
		}
	}

	_, err := a.Roll(0, 6, 0)
	assert.Error(t, err)
}

func TestAdvance(t *testing.T) {
	assert.Equal(t, 8, dice.Advance(6, 1))
	assert.Equal(t, 20, dice.Advance(10, 5))
	assert.Equal(t, 4, dice.Advance(6, -3))
	assert.Equal(t, 6, dice.Advance(6, 0))
	assert.Equal(t, 100, dice.Advance(100, 2))
}

func TestParse(t *testing.T) {
	count, sides, bonus, err := dice.Parse("2d6+3")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 6, 3}, []int{count, sides, bonus})

	count, sides, bonus, err = dice.Parse("d20-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 20, -1}, []int{count, sides, bonus})

	_, _, _, err = dice.Parse("banana")
	assert.Error(t, err)
	_, _, _, err = dice.Parse("0d6")
	assert.Error(t, err)
}
