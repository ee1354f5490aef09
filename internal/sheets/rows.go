package sheets

import (
	"strconv"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/trialbalance"
)

// Report kinds written in the first column of every row.
const (
	ReportTrialBalance = "trial-balance"
	ReportBudget       = "budget"
)

// TrialBalanceRows lays out tb as one row per account followed by a total
// row per currency.
func TrialBalanceRows(tb trialbalance.TrialBalance, generated time.Time) [][]any {
	stamp := generated.UTC().Format(time.RFC3339)
	asOf := ""
	if tb.AsOf != 0 {
		asOf = tb.AsOf.Time().UTC().Format(time.RFC3339)
	}

	var rows [][]any
	for _, s := range tb.Currencies {
		for _, g := range []trialbalance.Group{s.DebitNormal, s.CreditNormal} {
			for _, r := range g.Accounts {
				rows = append(rows, []any{
					ReportTrialBalance, stamp, asOf, s.CurrencyID,
					r.AccountID, r.AccountName, string(r.Kind), string(g.Convention),
					amount(r.Balance, s.Currency), side(r.IsBalanceDebit),
				})
			}
		}
		rows = append(rows, []any{
			ReportTrialBalance, stamp, asOf, s.CurrencyID,
			"TOTAL", "", "", "",
			amount(s.DebitTotal, s.Currency), amount(s.CreditTotal, s.Currency), s.Balanced,
		})
	}
	return rows
}

// BudgetRows lays out one row per budgeted period.
func BudgetRows(b core.RollingBudget, periods []core.BudgetedPeriod, generated time.Time) [][]any {
	stamp := generated.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, []any{
			ReportBudget, stamp, b.ID, b.Name, p.Index,
			p.StartEpoch.Time().UTC().Format(time.DateOnly),
			p.EndEpoch.Time().UTC().Format(time.DateOnly),
			p.CurrencyID,
			amount(p.AllocatedAmount, p.Currency),
			amount(p.RolledOverAmount, p.Currency),
			amount(p.TotalAllocatedAmount, p.Currency),
			amount(p.UsedAmount, p.Currency),
			amount(p.RemainingAmount, p.Currency),
			p.TransactionCount,
		})
	}
	return rows
}

// amount renders m in major units when the currency is known and in minor
// units otherwise.
func amount(m core.Money, c *core.Currency) string {
	if c == nil {
		return strconv.FormatInt(m.Minor, 10)
	}
	return m.Decimal(c.Fraction).StringFixed(c.Fraction)
}

func side(debit bool) string {
	if debit {
		return string(core.Debit)
	}
	return string(core.Credit)
}
