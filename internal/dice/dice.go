package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ladder is the die-size progression used by dice advances
var ladder = []int{4, 6, 8, 10, 12, 20}

// Advance steps a die size up (positive steps) or down (negative steps) the
// d4..d20 ladder, clamping at either end. Sizes off the ladder are returned
// unchanged.
func Advance(sides, steps int) int {
	idx := -1
	for i, s := range ladder {
		if s == sides {
			idx = i
			break
		}
	}
	if idx < 0 {
		return sides
	}

	idx += steps
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

// Parse reads "NdS" or "NdS+B" notation
func Parse(notation string) (count, sides, bonus int, err error) {
	expr := strings.ReplaceAll(strings.TrimSpace(notation), " ", "")
	if expr == "" {
		return 0, 0, 0, errors.New("empty dice string")
	}

	diceExpr := expr
	if idx := strings.IndexAny(expr, "+-"); idx > 0 {
		diceExpr = expr[:idx]
		bonus, err = strconv.Atoi(expr[idx:])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid dice bonus in %q", notation)
		}
	}

	parts := strings.Split(diceExpr, "d")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid dice string %q", notation)
	}

	count = 1
	if parts[0] != "" {
		count, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid dice count in %q", notation)
		}
	}
	sides, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid dice size in %q", notation)
	}
	if count < 1 || sides < 1 {
		return 0, 0, 0, fmt.Errorf("invalid dice string %q", notation)
	}

	return count, sides, bonus, nil
}

// String renders a result as "total [r1,r2]"
func (r *RollResult) String() string {
	compact := strings.ReplaceAll(fmt.Sprintf("%v", r.Rolls), " ", ",")
	return fmt.Sprintf("%d %s", r.Total, compact)
}

func newResult(count, sides, bonus int, rolls []int) *RollResult {
	raw := 0
	for _, r := range rolls {
		raw += r
	}

	result := &RollResult{
		Total:    raw + bonus,
		Rolls:    rolls,
		Bonus:    bonus,
		Count:    count,
		Sides:    sides,
		RawTotal: raw,
	}

	// Check for crit/fumble on d20
	if count == 1 && sides == 20 && len(rolls) > 0 {
		result.IsCrit = rolls[0] == 20
		result.IsFumble = rolls[0] == 1
	}

	return result
}
