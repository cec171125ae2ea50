package dice

// Roller provides an interface for rolling dice
// This allows us to inject different implementations for testing
type Roller interface {
	// Roll rolls a number of dice with the given sides and adds a bonus
	Roll(count, sides, bonus int) (*RollResult, error)
}

// RollResult is the outcome of one roll
type RollResult struct {
	Total    int   `json:"total"`
	Rolls    []int `json:"rolls"`
	Bonus    int   `json:"bonus"`
	Count    int   `json:"count"`
	Sides    int   `json:"sides"`
	RawTotal int   `json:"raw_total"` // Total without bonus
	IsCrit   bool  `json:"is_crit"`
	IsFumble bool  `json:"is_fumble"`
}

// Natural returns the first die face, which is what crit and fumble checks use
func (r *RollResult) Natural() int {
	if r == nil || len(r.Rolls) == 0 {
		return 0
	}
	return r.Rolls[0]
}
