package dice

import (
	"fmt"
	"sync"
)

// MockRoller implements Roller for testing with predetermined results
type MockRoller struct {
	mu        sync.Mutex
	rolls     []int
	rollIndex int
}

// NewMockRoller creates a new mock dice roller
func NewMockRoller() *MockRoller {
	return &MockRoller{
		rolls: []int{},
	}
}

// SetNextRoll sets the next roll result
func (m *MockRoller) SetNextRoll(roll int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = append(m.rolls, roll)
}

// SetRolls sets multiple roll results
func (m *MockRoller) SetRolls(rolls []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = rolls
	m.rollIndex = 0
}

// getNextRoll returns the next predetermined roll
func (m *MockRoller) getNextRoll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rollIndex >= len(m.rolls) {
		return 0, fmt.Errorf("no more predetermined rolls available (used %d of %d)", m.rollIndex, len(m.rolls))
	}

	roll := m.rolls[m.rollIndex]
	m.rollIndex++
	return roll, nil
}

// Roll implements Roller.Roll
func (m *MockRoller) Roll(count, sides, bonus int) (*RollResult, error) {
	rolls := make([]int, count)

	for i := 0; i < count; i++ {
		roll, err := m.getNextRoll()
		if err != nil {
			return nil, err
		}
		if roll < 1 || roll > sides {
			return nil, fmt.Errorf("invalid roll %d for d%d", roll, sides)
		}
		rolls[i] = roll
	}

	return newResult(count, sides, bonus, rolls), nil
}
