// Package budget evaluates rolling budgets over consecutive periods.
//
// Period boundaries and roll-over rules are strategies looked up by
// frequency and rule name, so new ones can be registered without touching
// the evaluator.
package budget

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// PeriodStepper computes the bounds of the index-th period of a budget that
// starts at start. Periods are contiguous: the end of one is the start of
// the next.
type PeriodStepper interface {
	Start(start time.Time, index int) time.Time
}

// WeeklyStepper advances by seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Start(start time.Time, index int) time.Time {
	return start.AddDate(0, 0, 7*index)
}

// MonthlyStepper advances by calendar months, keeping the start day and
// clamping it to the length of shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Start(start time.Time, index int) time.Time {
	return addMonths(start, index)
}

// YearlyStepper advances by calendar years; Feb 29 clamps to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Start(start time.Time, index int) time.Time {
	return addMonths(start, 12*index)
}

func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + n
	year += total / 12
	month = time.Month(total%12 + 1)

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

var steppers = map[core.Frequency]PeriodStepper{
	core.FrequencyWeekly:  WeeklyStepper{},
	core.FrequencyMonthly: MonthlyStepper{},
	core.FrequencyYearly:  YearlyStepper{},
}

// GetStepper returns the stepper registered for frequency.
func GetStepper(frequency core.Frequency) (PeriodStepper, error) {
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown budget frequency: %s", frequency)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for frequency.
func RegisterStepper(frequency core.Frequency, s PeriodStepper) {
	steppers[frequency] = s
}
