// Package summary reduces a journal into an income/expense overview for a
// date range and currency.
package summary

import (
	"cmp"
	"context"
	"slices"

	"bilancio/internal/core"
	"bilancio/internal/journal"
	"bilancio/internal/ledger"
)

type (
	// Group totals the entries of one income source or expense avenue.
	Group struct {
		AccountID   string     `json:"accountId"`
		AccountName string     `json:"accountName"`
		Amount      core.Money `json:"amount"`
		Count       int        `json:"count"`
	}

	WalletBalance struct {
		WalletID   string     `json:"walletId"`
		WalletName string     `json:"walletName"`
		Balance    core.Money `json:"balance"`
	}

	Overview struct {
		From         core.Epoch      `json:"from"`
		To           core.Epoch      `json:"to"`
		CurrencyID   string          `json:"currencyId"`
		Currency     *core.Currency  `json:"currency,omitempty"`
		Income       []Group         `json:"income"`
		Expense      []Group         `json:"expense"`
		TotalIncome  core.Money      `json:"totalIncome"`
		TotalExpense core.Money      `json:"totalExpense"`
		Net          core.Money      `json:"net"`
		Wallets      []WalletBalance `json:"wallets"`
	}
)

type Reducer struct {
	journal  *journal.Journal
	accounts core.AccountIndex
}

func NewReducer(j *journal.Journal, accounts core.AccountIndex) *Reducer {
	return &Reducer{journal: j, accounts: accounts}
}

// Overview groups income and expense entries in [from, to] of currencyID
// and reports wallet balances as of to.
func (r *Reducer) Overview(ctx context.Context, from, to core.Epoch, currencyID string) (Overview, error) {
	income := make(map[string]*Group)
	expense := make(map[string]*Group)

	w := ledger.Window{
		From:       from,
		To:         to,
		CurrencyID: currencyID,
		Kinds:      []core.TransactionKind{core.KindIncome, core.KindExpense},
	}
	for e := range ledger.Select(r.journal, w) {
		if err := ctx.Err(); err != nil {
			return Overview{}, err
		}
		switch e.Kind {
		case core.KindIncome:
			r.add(income, e.Credits[0].AccountID, e.TotalCredit)
		case core.KindExpense:
			r.add(expense, e.Debits[0].AccountID, e.Debits[0].Amount)
		}
	}

	o := Overview{
		From:       from,
		To:         to,
		CurrencyID: currencyID,
		Income:     sorted(income),
		Expense:    sorted(expense),
		Wallets:    []WalletBalance{},
	}
	for _, g := range o.Income {
		o.TotalIncome = o.TotalIncome.Add(g.Amount)
	}
	for _, g := range o.Expense {
		o.TotalExpense = o.TotalExpense.Add(g.Amount)
	}
	o.Net = o.TotalIncome.Sub(o.TotalExpense)

	agg := ledger.NewAggregator(r.journal, r.accounts)
	for _, acc := range r.accounts.Sorted() {
		if acc.Kind != core.AccountWallet || acc.CurrencyID != currencyID {
			continue
		}
		l, err := agg.Balances(ctx, acc.ID, ledger.Window{To: to, CurrencyID: currencyID})
		if err != nil {
			return Overview{}, err
		}
		if acc.Deleted && l.Balance.IsZero() {
			continue
		}
		o.Wallets = append(o.Wallets, WalletBalance{WalletID: acc.ID, WalletName: acc.Name, Balance: l.Balance})
	}
	return o, nil
}

func (r *Reducer) add(groups map[string]*Group, accountID string, amount core.Money) {
	g, ok := groups[accountID]
	if !ok {
		g = &Group{AccountID: accountID}
		if acc, found := r.accounts.Account(accountID); found {
			g.AccountName = acc.Name
		}
		groups[accountID] = g
	}
	g.Amount = g.Amount.Add(amount)
	g.Count++
}

func sorted(groups map[string]*Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b Group) int {
		if c := cmp.Compare(b.Amount.Minor, a.Amount.Minor); c != 0 {
			return c
		}
		return cmp.Compare(a.AccountID, b.AccountID)
	})
	return out
}
