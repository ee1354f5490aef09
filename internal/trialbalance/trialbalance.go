// Package trialbalance checks, per currency, that the debit and credit
// balances of every account net to zero.
package trialbalance

import (
	"context"
	"errors"
	"slices"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/journal"
	"bilancio/internal/ledger"
)

type (
	Row struct {
		AccountID      string           `json:"accountId"`
		AccountName    string           `json:"accountName"`
		Kind           core.AccountKind `json:"kind"`
		Balance        core.Money       `json:"balance"`
		IsBalanceDebit bool             `json:"isBalanceDebit"`
	}

	// Group holds the accounts of one sign convention. TotalBalance is
	// signed in that convention.
	Group struct {
		Convention   core.Convention `json:"convention"`
		Accounts     []Row           `json:"accounts"`
		TotalBalance core.Money      `json:"totalBalance"`
	}

	CurrencySection struct {
		CurrencyID   string         `json:"currencyId"`
		Currency     *core.Currency `json:"currency,omitempty"`
		DebitNormal  Group          `json:"debitNormal"`
		CreditNormal Group          `json:"creditNormal"`
		DebitTotal   core.Money     `json:"debitTotal"`
		CreditTotal  core.Money     `json:"creditTotal"`
		Balanced     bool           `json:"balanced"`
	}

	TrialBalance struct {
		AsOf       core.Epoch        `json:"asOf,omitempty"`
		Currencies []CurrencySection `json:"currencies"`
	}
)

// Section returns the section for currencyID.
func (tb TrialBalance) Section(currencyID string) (CurrencySection, bool) {
	for _, s := range tb.Currencies {
		if s.CurrencyID == currencyID {
			return s, true
		}
	}
	return CurrencySection{}, false
}

// Balanced reports whether every currency section balances.
func (tb TrialBalance) Balanced() bool {
	for _, s := range tb.Currencies {
		if !s.Balanced {
			return false
		}
	}
	return true
}

type Compiler struct {
	tolerance int64
}

// NewCompiler returns a compiler accepting debit/credit differences of up to
// tolerance minor units.
func NewCompiler(tolerance int64) *Compiler {
	return &Compiler{tolerance: tolerance}
}

// Compile partitions the ledgers by currency and convention. Every
// unbalanced currency yields a *core.ImbalanceError; they are joined and
// returned alongside the compiled balance.
func (c *Compiler) Compile(asOf core.Epoch, ledgers []ledger.Ledger) (TrialBalance, error) {
	sections := make(map[string]*CurrencySection)

	for _, l := range ledgers {
		for _, b := range l.Balances {
			s, ok := sections[b.CurrencyID]
			if !ok {
				s = &CurrencySection{
					CurrencyID:   b.CurrencyID,
					DebitNormal:  Group{Convention: core.DebitNormal, Accounts: []Row{}},
					CreditNormal: Group{Convention: core.CreditNormal, Accounts: []Row{}},
				}
				sections[b.CurrencyID] = s
			}

			row := Row{
				AccountID:      l.AccountID,
				AccountName:    l.AccountName,
				Kind:           l.Kind,
				Balance:        b.Balance,
				IsBalanceDebit: b.IsBalanceDebit,
			}
			group := &s.DebitNormal
			if l.Convention == core.CreditNormal {
				group = &s.CreditNormal
			}
			group.Accounts = append(group.Accounts, row)
			group.TotalBalance = group.TotalBalance.Add(b.Balance)

			if b.IsBalanceDebit {
				s.DebitTotal = s.DebitTotal.Add(b.Balance.Abs())
			} else {
				s.CreditTotal = s.CreditTotal.Add(b.Balance.Abs())
			}
		}
	}

	tb := TrialBalance{AsOf: asOf, Currencies: make([]CurrencySection, 0, len(sections))}
	var imbalances []error
	for _, s := range sections {
		sortRows(s.DebitNormal.Accounts)
		sortRows(s.CreditNormal.Accounts)
		s.Balanced = s.DebitTotal.Sub(s.CreditTotal).Abs().Minor <= c.tolerance
		if !s.Balanced {
			imbalances = append(imbalances, &core.ImbalanceError{
				CurrencyID:  s.CurrencyID,
				DebitTotal:  s.DebitTotal,
				CreditTotal: s.CreditTotal,
			})
		}
		tb.Currencies = append(tb.Currencies, *s)
	}
	slices.SortFunc(tb.Currencies, func(a, b CurrencySection) int { return strings.Compare(a.CurrencyID, b.CurrencyID) })
	slices.SortFunc(imbalances, func(a, b error) int {
		return strings.Compare(a.(*core.ImbalanceError).CurrencyID, b.(*core.ImbalanceError).CurrencyID)
	})

	return tb, errors.Join(imbalances...)
}

// CompileJournal builds the ledger of every account as of asOf (inclusive,
// zero for no bound) and compiles them.
func (c *Compiler) CompileJournal(ctx context.Context, j *journal.Journal, accounts core.AccountIndex, asOf core.Epoch) (TrialBalance, error) {
	agg := ledger.NewAggregator(j, accounts)
	ledgers := make([]ledger.Ledger, 0, len(accounts))
	for _, acc := range accounts.Sorted() {
		l, err := agg.Balances(ctx, acc.ID, ledger.Through(asOf))
		if err != nil {
			return TrialBalance{}, err
		}
		ledgers = append(ledgers, l)
	}
	return c.Compile(asOf, ledgers)
}

// Imbalances extracts the imbalance errors from an error returned by
// Compile.
func Imbalances(err error) []*core.ImbalanceError {
	if err == nil {
		return nil
	}
	var out []*core.ImbalanceError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Imbalances(e)...)
		}
		return out
	}
	var ie *core.ImbalanceError
	if errors.As(err, &ie) {
		out = append(out, ie)
	}
	return out
}

func sortRows(rows []Row) {
	slices.SortFunc(rows, func(a, b Row) int { return strings.Compare(a.AccountID, b.AccountID) })
}
