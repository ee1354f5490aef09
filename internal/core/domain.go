package core

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Epoch is a point in time in Unix milliseconds.
type Epoch int64

// EpochOf converts a time to an Epoch.
func EpochOf(t time.Time) Epoch {
	return Epoch(t.UnixMilli())
}

// Time returns the UTC time for e.
func (e Epoch) Time() time.Time {
	return time.UnixMilli(int64(e)).UTC()
}

// In returns e in the given location.
func (e Epoch) In(loc *time.Location) time.Time {
	return time.UnixMilli(int64(e)).In(loc)
}

// ParseEpoch reads Unix milliseconds, an RFC 3339 timestamp, or a
// YYYY-MM-DD date in loc. A date marks the start of the day, or its last
// millisecond when endOfDay is set. An empty string yields 0.
//
// endOfDay marks an upper bound, where 0 means unbounded, so an explicit
// value resolving to 0 is rejected.
func ParseEpoch(v string, loc *time.Location, endOfDay bool) (Epoch, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	e, err := parseEpoch(v, loc, endOfDay)
	if err != nil {
		return 0, err
	}
	if endOfDay && e == 0 {
		return 0, fmt.Errorf("end bound %q must be after 1970-01-01T00:00:00Z", v)
	}
	return e, nil
}

func parseEpoch(v string, loc *time.Location, endOfDay bool) (Epoch, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative epoch %d", ms)
		}
		return Epoch(ms), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return EpochOf(t), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want milliseconds, RFC 3339 or YYYY-MM-DD", v)
	}
	if endOfDay {
		return EpochOf(d.AddDate(0, 0, 1)) - 1, nil
	}
	return EpochOf(d), nil
}

const (
	AccountWallet        AccountKind = "wallet"
	AccountAsset         AccountKind = "asset"
	AccountExpenseAvenue AccountKind = "expense-avenue"
	AccountIncomeSource  AccountKind = "income-source"
	AccountParty         AccountKind = "party"
	AccountLiability     AccountKind = "liability"
	AccountEquity        AccountKind = "equity"
)

const (
	DebitNormal  Convention = "debit-normal"
	CreditNormal Convention = "credit-normal"
)

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

type (
	AccountKind string

	// Convention is the side on which an account's balance grows.
	Convention string

	Side string

	Account struct {
		ID         string      `json:"id"`
		Name       string      `json:"name"`
		Kind       AccountKind `json:"kind"`
		CurrencyID string      `json:"currencyId"`
		Deleted    bool        `json:"deleted,omitempty"`
	}

	Currency struct {
		ID           string `json:"id"`
		Code         string `json:"code"`
		Sign         string `json:"sign"`
		MinPrecision int32  `json:"minPrecision"`
		MaxPrecision int32  `json:"maxPrecision"`
		// Fraction is the number of minor-unit digits amounts are stored with.
		Fraction int32 `json:"fraction"`
	}
)

var accountKinds = []AccountKind{
	AccountWallet, AccountAsset, AccountExpenseAvenue, AccountIncomeSource,
	AccountParty, AccountLiability, AccountEquity,
}

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return slices.Contains(accountKinds, k)
}

// Convention returns the sign convention of accounts of kind k. Wallets,
// assets, expense avenues and parties are debit-normal; a party with a
// negative balance is a net creditor.
func (k AccountKind) Convention() Convention {
	switch k {
	case AccountIncomeSource, AccountLiability, AccountEquity:
		return CreditNormal
	default:
		return DebitNormal
	}
}

// Effect returns the signed change a line on side s has on an account of
// convention c.
func (c Convention) Effect(s Side, amount Money) Money {
	if (c == DebitNormal) == (s == Debit) {
		return amount
	}
	return amount.Neg()
}

func (a Account) Convention() Convention {
	return a.Kind.Convention()
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("account id cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name cannot be empty")
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("invalid account kind %q", a.Kind)
	}
	if strings.TrimSpace(a.CurrencyID) == "" {
		return errors.New("account currency cannot be empty")
	}
	return nil
}

func (c Currency) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("currency id cannot be empty")
	}
	if c.Fraction < 0 || c.Fraction > 8 {
		return fmt.Errorf("invalid currency fraction %d", c.Fraction)
	}
	if c.MinPrecision > c.MaxPrecision {
		return fmt.Errorf("currency min precision %d exceeds max precision %d", c.MinPrecision, c.MaxPrecision)
	}
	return nil
}

// AccountIndex resolves accounts by id.
type AccountIndex map[string]Account

func NewAccountIndex(accounts []Account) AccountIndex {
	idx := make(AccountIndex, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = a
	}
	return idx
}

func (idx AccountIndex) Account(id string) (Account, bool) {
	a, ok := idx[id]
	return a, ok
}

// Sorted returns the accounts ordered by id.
func (idx AccountIndex) Sorted() []Account {
	out := make([]Account, 0, len(idx))
	for _, a := range idx {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Account) int { return strings.Compare(a.ID, b.ID) })
	return out
}
