package budget

import (
	"fmt"

	"bilancio/internal/core"
)

// RolloverStrategy decides how much of a period's remaining amount carries
// into the next period.
type RolloverStrategy interface {
	Carry(remaining core.Money) core.Money
}

type AlwaysRollover struct{}

func (AlwaysRollover) Carry(remaining core.Money) core.Money { return remaining }

type NeverRollover struct{}

func (NeverRollover) Carry(core.Money) core.Money { return core.Money{} }

// PositiveOnlyRollover carries surpluses and drops overspending.
type PositiveOnlyRollover struct{}

func (PositiveOnlyRollover) Carry(remaining core.Money) core.Money {
	if remaining.IsPositive() {
		return remaining
	}
	return core.Money{}
}

// NegativeOnlyRollover carries overspending and drops surpluses.
type NegativeOnlyRollover struct{}

func (NegativeOnlyRollover) Carry(remaining core.Money) core.Money {
	if remaining.IsNegative() {
		return remaining
	}
	return core.Money{}
}

var rolloverStrategies = map[core.RollOverRule]RolloverStrategy{
	core.RollOverAlways:       AlwaysRollover{},
	core.RollOverNever:        NeverRollover{},
	core.RollOverPositiveOnly: PositiveOnlyRollover{},
	core.RollOverNegativeOnly: NegativeOnlyRollover{},
}

// GetRolloverStrategy returns the strategy registered for rule.
func GetRolloverStrategy(rule core.RollOverRule) (RolloverStrategy, error) {
	s, ok := rolloverStrategies[rule]
	if !ok {
		return nil, fmt.Errorf("unknown roll over rule: %s", rule)
	}
	return s, nil
}

// RegisterRolloverStrategy adds or replaces the strategy for rule.
func RegisterRolloverStrategy(rule core.RollOverRule, s RolloverStrategy) {
	rolloverStrategies[rule] = s
}
