package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/services"
)

var now = time.Now

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amount(m core.Money, c *core.Currency) string {
	if c == nil {
		return m.String()
	}
	return currency.Format(m, *c)
}

func date(e core.Epoch) string {
	if e == 0 {
		return "-"
	}
	return e.In(location).Format(time.DateOnly)
}

func side(debit bool) string {
	if debit {
		return "Dr"
	}
	return "Cr"
}

func printLedger(w io.Writer, res services.LedgerResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s, %s)\n\n", res.AccountName, res.AccountID, res.Kind)
	fmt.Fprintln(tw, "SERIAL\tDATE\tKIND\tSIDE\tAMOUNT\tBALANCE\tNOTES")
	for _, l := range res.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.Serial, date(l.Epoch), l.Kind, l.Side,
			amount(l.Amount, res.Currency), amount(l.Running, res.Currency), l.Notes)
	}
	fmt.Fprintln(tw)
	for _, b := range res.Balances {
		fmt.Fprintf(tw, "Balance %s\t%s %s\n", b.CurrencyID, amount(b.Balance, b.Currency), side(b.IsBalanceDebit))
	}
	printDiagnostics(tw, res.Diagnostics)
	return tw.Flush()
}

func printTrialBalance(w io.Writer, res services.TrialBalanceResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if res.AsOf != 0 {
		fmt.Fprintf(tw, "As of %s\n\n", date(res.AsOf))
	}
	for _, sec := range res.Currencies {
		fmt.Fprintf(tw, "Currency %s\n", sec.CurrencyID)
		fmt.Fprintln(tw, "ACCOUNT\tKIND\tDEBIT\tCREDIT")
		for _, row := range slices.Concat(sec.DebitNormal.Accounts, sec.CreditNormal.Accounts) {
			debit, credit := "", ""
			if row.IsBalanceDebit {
				debit = amount(row.Balance.Abs(), sec.Currency)
			} else {
				credit = amount(row.Balance.Abs(), sec.Currency)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.AccountName, row.Kind, debit, credit)
		}
		status := "balanced"
		if !sec.Balanced {
			status = "NOT BALANCED"
		}
		fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t%s\n\n",
			amount(sec.DebitTotal, sec.Currency), amount(sec.CreditTotal, sec.Currency), status)
	}
	for _, ie := range res.Imbalances {
		fmt.Fprintf(tw, "Imbalance: %v\n", ie)
	}
	printDiagnostics(tw, res.Diagnostics)
	return tw.Flush()
}

func printBudget(w io.Writer, res services.BudgetResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s, %s, rollover %s)\n\n", res.Budget.Name, res.Budget.ID, res.Budget.Frequency, res.Budget.RollOverRule)
	fmt.Fprintln(tw, "#\tSTART\tEND\tALLOCATED\tROLLED OVER\tUSED\tREMAINING\tTXS")
	for _, p := range res.Periods {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.Index, date(p.StartEpoch), date(p.EndEpoch),
			amount(p.AllocatedAmount, p.Currency), amount(p.RolledOverAmount, p.Currency),
			amount(p.UsedAmount, p.Currency), amount(p.RemainingAmount, p.Currency),
			p.TransactionCount)
	}
	printDiagnostics(tw, res.Diagnostics)
	return tw.Flush()
}

func printBudgets(w io.Writer, budgets []core.RollingBudget) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCURRENCY\tFREQUENCY\tROLLOVER\tALLOCATED\tSTART")
	for _, b := range budgets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Name, b.CurrencyID, b.Frequency, b.RollOverRule, b.AllocatedAmount, date(b.StartEpoch))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, res services.SummaryResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Summary %s, %s to %s\n\n", res.CurrencyID, date(res.From), date(res.To))
	fmt.Fprintln(tw, "INCOME\tAMOUNT\tCOUNT")
	for _, g := range res.Income {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", g.AccountName, amount(g.Amount, res.Currency), g.Count)
	}
	fmt.Fprintf(tw, "Total\t%s\t\n\n", amount(res.TotalIncome, res.Currency))
	fmt.Fprintln(tw, "EXPENSE\tAMOUNT\tCOUNT")
	for _, g := range res.Expense {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", g.AccountName, amount(g.Amount, res.Currency), g.Count)
	}
	fmt.Fprintf(tw, "Total\t%s\t\n\n", amount(res.TotalExpense, res.Currency))
	fmt.Fprintf(tw, "Net\t%s\t\n\n", amount(res.Net, res.Currency))
	fmt.Fprintln(tw, "WALLET\tBALANCE")
	for _, wb := range res.Wallets {
		fmt.Fprintf(tw, "%s\t%s\n", wb.WalletName, amount(wb.Balance, res.Currency))
	}
	printDiagnostics(tw, res.Diagnostics)
	return tw.Flush()
}

func printDiagnostics(w io.Writer, diags []core.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d record(s) skipped:\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(w, "  #%d %s: %s\n", d.Serial, d.TransactionID, d.Message)
	}
}
