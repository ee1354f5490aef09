package sheets

import (
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/trialbalance"
)

var generated = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestTrialBalanceRows(t *testing.T) {
	eur := &core.Currency{ID: "eur", Code: "EUR", Fraction: 2}
	tb := trialbalance.TrialBalance{Currencies: []trialbalance.CurrencySection{{
		CurrencyID: "eur",
		Currency:   eur,
		DebitNormal: trialbalance.Group{Convention: core.DebitNormal, Accounts: []trialbalance.Row{
			{AccountID: "cash", AccountName: "Cash", Kind: core.AccountWallet, Balance: core.NewMoney(1050), IsBalanceDebit: true},
		}},
		CreditNormal: trialbalance.Group{Convention: core.CreditNormal, Accounts: []trialbalance.Row{
			{AccountID: "salary", AccountName: "Salary", Kind: core.AccountIncomeSource, Balance: core.NewMoney(1050)},
		}},
		DebitTotal:  core.NewMoney(1050),
		CreditTotal: core.NewMoney(1050),
		Balanced:    true,
	}}}

	rows := TrialBalanceRows(tb, generated)
	if len(rows) != 3 {
		t.Fatalf("TrialBalanceRows() = %d rows, want 3", len(rows))
	}
	if rows[0][4] != "cash" || rows[0][8] != "10.50" || rows[0][9] != "debit" {
		t.Errorf("cash row = %v", rows[0])
	}
	if rows[1][9] != "credit" {
		t.Errorf("salary side = %v, want credit", rows[1][9])
	}
	if rows[2][4] != "TOTAL" || rows[2][10] != true {
		t.Errorf("total row = %v", rows[2])
	}
	if rows[0][1] != "2024-03-01T09:00:00Z" || rows[0][2] != "" {
		t.Errorf("stamps = %v / %v", rows[0][1], rows[0][2])
	}
}

func TestBudgetRows(t *testing.T) {
	b := core.RollingBudget{ID: "food", Name: "Food"}
	periods := []core.BudgetedPeriod{{
		Index:                0,
		StartEpoch:           core.EpochOf(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		EndEpoch:             core.EpochOf(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		CurrencyID:           "eur",
		AllocatedAmount:      core.NewMoney(50000),
		TotalAllocatedAmount: core.NewMoney(50000),
		UsedAmount:           core.NewMoney(20000),
		RemainingAmount:      core.NewMoney(30000),
		TransactionCount:     1,
	}}

	rows := BudgetRows(b, periods, generated)
	if len(rows) != 1 {
		t.Fatalf("BudgetRows() = %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row[0] != ReportBudget || row[5] != "2024-01-01" || row[6] != "2024-02-01" {
		t.Errorf("row = %v", row)
	}
	// Without currency metadata amounts stay in minor units.
	if row[11] != "20000" || row[12] != "30000" {
		t.Errorf("used/remaining = %v / %v", row[11], row[12])
	}
}
