package ledger

import (
	"context"
	"iter"
	"slices"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/journal"
)

const cancelCheckInterval = 512

type (
	// Line is one posting to the ledger's account with the running balance
	// of its currency after the posting.
	Line struct {
		Serial        int64                `json:"serial"`
		Epoch         core.Epoch           `json:"epoch"`
		TransactionID string               `json:"transactionId"`
		Kind          core.TransactionKind `json:"kind"`
		Side          core.Side            `json:"side"`
		CurrencyID    string               `json:"currencyId"`
		Amount        core.Money           `json:"amount"`
		Effect        core.Money           `json:"effect"`
		Running       core.Money           `json:"running"`
		Notes         string               `json:"notes,omitempty"`
	}

	CurrencyBalance struct {
		CurrencyID     string         `json:"currencyId"`
		Currency       *core.Currency `json:"currency,omitempty"`
		Balance        core.Money     `json:"balance"`
		IsBalanceDebit bool           `json:"isBalanceDebit"`
	}

	Ledger struct {
		AccountID      string            `json:"accountId"`
		AccountName    string            `json:"accountName"`
		Kind           core.AccountKind  `json:"kind"`
		Convention     core.Convention   `json:"convention"`
		CurrencyID     string            `json:"currencyId"`
		Currency       *core.Currency    `json:"currency,omitempty"`
		From           core.Epoch        `json:"from,omitempty"`
		To             core.Epoch        `json:"to,omitempty"`
		Opening        []CurrencyBalance `json:"opening,omitempty"`
		Lines          []Line            `json:"lines"`
		Balances       []CurrencyBalance `json:"balances"`
		Balance        core.Money        `json:"balance"`
		IsBalanceDebit bool              `json:"isBalanceDebit"`
	}
)

// IsDebitBalance reports whether a balance signed in convention c sits on
// the debit side.
func IsDebitBalance(c core.Convention, balance core.Money) bool {
	if c == core.DebitNormal {
		return !balance.IsNegative()
	}
	return balance.IsNegative()
}

// BalanceFor returns the balance of currencyID, zero when absent.
func (l Ledger) BalanceFor(currencyID string) core.Money {
	for _, b := range l.Balances {
		if b.CurrencyID == currencyID {
			return b.Balance
		}
	}
	return core.Money{}
}

type Aggregator struct {
	journal  *journal.Journal
	accounts journal.AccountResolver
}

func NewAggregator(j *journal.Journal, accounts journal.AccountResolver) *Aggregator {
	return &Aggregator{journal: j, accounts: accounts}
}

func (a *Aggregator) account(id string) (core.Account, error) {
	acc, ok := a.accounts.Account(id)
	if !ok {
		return core.Account{}, &core.MissingAccountError{AccountID: id, Role: "ledger"}
	}
	return acc, nil
}

// Lines returns a lazy, restartable sequence of the account's postings in
// w. Postings before w.From fold into the running balance without being
// yielded.
func (a *Aggregator) Lines(accountID string, w Window) (iter.Seq[Line], error) {
	acc, err := a.account(accountID)
	if err != nil {
		return nil, err
	}
	return func(yield func(Line) bool) {
		_, _ = a.walk(context.Background(), acc, w, yield)
	}, nil
}

// Build materialises the ledger of accountID over w.
func (a *Aggregator) Build(ctx context.Context, accountID string, w Window) (Ledger, error) {
	acc, err := a.account(accountID)
	if err != nil {
		return Ledger{}, err
	}

	var lines []Line
	state, err := a.walk(ctx, acc, w, func(l Line) bool {
		lines = append(lines, l)
		return true
	})
	if err != nil {
		return Ledger{}, err
	}
	return a.assemble(acc, w, state, lines), nil
}

// Balances folds the account's postings in w without keeping the lines.
func (a *Aggregator) Balances(ctx context.Context, accountID string, w Window) (Ledger, error) {
	acc, err := a.account(accountID)
	if err != nil {
		return Ledger{}, err
	}
	state, err := a.walk(ctx, acc, w, func(Line) bool { return true })
	if err != nil {
		return Ledger{}, err
	}
	return a.assemble(acc, w, state, nil), nil
}

type walkState struct {
	running map[string]core.Money
	opening map[string]core.Money
}

func (a *Aggregator) walk(ctx context.Context, acc core.Account, w Window, yield func(Line) bool) (walkState, error) {
	state := walkState{running: make(map[string]core.Money), opening: make(map[string]core.Money)}
	conv := acc.Convention()
	selection := w
	selection.From = 0

	i := 0
	for e := range Select(a.journal, selection) {
		i++
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return walkState{}, err
			}
		}
		if !e.Touches(acc.ID) {
			continue
		}
		opening := w.beforeStart(e.Epoch)
		for _, side := range []core.Side{core.Debit, core.Credit} {
			postings := e.Debits
			if side == core.Credit {
				postings = e.Credits
			}
			for _, p := range postings {
				if p.AccountID != acc.ID {
					continue
				}
				effect := conv.Effect(side, p.Amount)
				state.running[e.CurrencyID] = state.running[e.CurrencyID].Add(effect)
				if opening {
					state.opening[e.CurrencyID] = state.running[e.CurrencyID]
					continue
				}
				line := Line{
					Serial:        e.Serial,
					Epoch:         e.Epoch,
					TransactionID: e.TransactionID,
					Kind:          e.Kind,
					Side:          side,
					CurrencyID:    e.CurrencyID,
					Amount:        p.Amount,
					Effect:        effect,
					Running:       state.running[e.CurrencyID],
					Notes:         e.Notes,
				}
				if !yield(line) {
					return state, nil
				}
			}
		}
	}
	return state, ctx.Err()
}

func balances(conv core.Convention, m map[string]core.Money) []CurrencyBalance {
	out := make([]CurrencyBalance, 0, len(m))
	for id, bal := range m {
		out = append(out, CurrencyBalance{CurrencyID: id, Balance: bal, IsBalanceDebit: IsDebitBalance(conv, bal)})
	}
	slices.SortFunc(out, func(x, y CurrencyBalance) int { return strings.Compare(x.CurrencyID, y.CurrencyID) })
	return out
}

func (a *Aggregator) assemble(acc core.Account, w Window, state walkState, lines []Line) Ledger {
	conv := acc.Convention()
	balance := state.running[acc.CurrencyID]
	l := Ledger{
		AccountID:      acc.ID,
		AccountName:    acc.Name,
		Kind:           acc.Kind,
		Convention:     conv,
		CurrencyID:     acc.CurrencyID,
		From:           w.From,
		To:             w.To,
		Lines:          lines,
		Balances:       balances(conv, state.running),
		Balance:        balance,
		IsBalanceDebit: IsDebitBalance(conv, balance),
	}
	if len(state.opening) > 0 {
		l.Opening = balances(conv, state.opening)
	}
	if l.Lines == nil {
		l.Lines = []Line{}
	}
	return l
}
