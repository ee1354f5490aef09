// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point integers expressed in the minor unit of their
// currency. Decimal strings are converted once, at the record boundary, using
// the currency fraction; arithmetic afterwards never leaves int64.
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount, in minor units, a single record may
// carry. It keeps journal sums far from int64 overflow.
const MaxAmount int64 = 1_000_000_000_000_000

var maxMinor = decimal.NewFromInt(MaxAmount)

// Money is an amount in minor units (cents for a fraction of 2).
type Money struct {
	Minor int64
}

// NewMoney wraps a minor-unit amount.
func NewMoney(minor int64) Money {
	return Money{Minor: minor}
}

func (m Money) Add(o Money) Money { return Money{Minor: m.Minor + o.Minor} }
func (m Money) Sub(o Money) Money { return Money{Minor: m.Minor - o.Minor} }
func (m Money) Neg() Money        { return Money{Minor: -m.Minor} }
func (m Money) IsZero() bool      { return m.Minor == 0 }
func (m Money) IsNegative() bool  { return m.Minor < 0 }
func (m Money) IsPositive() bool  { return m.Minor > 0 }

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Minor < 0 {
		return m.Neg()
	}
	return m
}

// Decimal returns the amount in major units for the given fraction.
func (m Money) Decimal(fraction int32) decimal.Decimal {
	return decimal.New(m.Minor, -fraction)
}

func (m Money) String() string {
	return strconv.FormatInt(m.Minor, 10)
}

// MarshalJSON encodes the amount as its minor-unit integer.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Minor, 10)), nil
}

// UnmarshalJSON accepts a minor-unit integer.
func (m *Money) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	m.Minor = v
	return nil
}

// Validate rejects non-positive amounts.
func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a decimal string into minor units of a currency with
// the given fraction.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Digits beyond
// the fraction are rounded half-up. Only strictly positive values up to
// MaxAmount minor units are valid.
//
// Examples:
//
//	ParseAmount("12.34", 2) -> 1234
//	ParseAmount("12,345", 2) -> 1235
//	ParseAmount("1500", 0) -> 1500
func ParseAmount(s string, fraction int32) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	minor := d.Shift(fraction).Round(0)
	if !minor.IsPositive() || minor.GreaterThan(maxMinor) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Minor: minor.IntPart()}, nil
}

// ParseOptionalAmount is ParseAmount for fields that may be blank.
func ParseOptionalAmount(s string, fraction int32) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return Money{}, nil
	}
	return ParseAmount(s, fraction)
}
