package trialbalance

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/journal"
	"bilancio/internal/ledger"
)

func accounts() core.AccountIndex {
	return core.NewAccountIndex([]core.Account{
		{ID: "cash", Name: "Cash", Kind: core.AccountWallet, CurrencyID: "eur"},
		{ID: "card", Name: "Card", Kind: core.AccountWallet, CurrencyID: "eur"},
		{ID: "salary", Name: "Salary", Kind: core.AccountIncomeSource, CurrencyID: "eur"},
		{ID: "food", Name: "Food", Kind: core.AccountExpenseAvenue, CurrencyID: "eur"},
		{ID: "dollars", Name: "Dollars", Kind: core.AccountWallet, CurrencyID: "usd"},
		{ID: "gigs", Name: "Gigs", Kind: core.AccountIncomeSource, CurrencyID: "usd"},
	})
}

func entry(serial int64, epoch core.Epoch, currency, debit, credit string, amount int64) core.JournalEntry {
	m := core.NewMoney(amount)
	return core.JournalEntry{
		Serial: serial, Epoch: epoch, CurrencyID: currency,
		Debits:     []core.Line{{AccountID: debit, Amount: m}},
		Credits:    []core.Line{{AccountID: credit, Amount: m}},
		TotalDebit: m, TotalCredit: m,
	}
}

func sampleJournal() *journal.Journal {
	return journal.New([]core.JournalEntry{
		entry(1, 100, "eur", "cash", "salary", 1000),
		entry(2, 200, "eur", "food", "card", 400), // card goes negative
		entry(3, 300, "usd", "dollars", "gigs", 250),
		entry(4, 400, "eur", "food", "cash", 100),
	})
}

func TestCompiler_CompileJournal(t *testing.T) {
	tb, err := NewCompiler(0).CompileJournal(context.Background(), sampleJournal(), accounts(), 0)
	if err != nil {
		t.Fatalf("CompileJournal() unexpected error: %v", err)
	}
	if len(tb.Currencies) != 2 {
		t.Fatalf("currencies = %d, want 2", len(tb.Currencies))
	}

	eur, ok := tb.Section("eur")
	if !ok {
		t.Fatal("missing eur section")
	}
	// cash 900 debit, food 500 debit, card -400 credit, salary 1000 credit
	if eur.DebitTotal.Minor != 1400 || eur.CreditTotal.Minor != 1400 {
		t.Errorf("eur totals = %d/%d, want 1400/1400", eur.DebitTotal.Minor, eur.CreditTotal.Minor)
	}
	if !eur.Balanced || !tb.Balanced() {
		t.Error("expected balanced trial balance")
	}
	if eur.DebitNormal.TotalBalance != eur.CreditNormal.TotalBalance {
		t.Errorf("group totals = %d/%d, want equal", eur.DebitNormal.TotalBalance.Minor, eur.CreditNormal.TotalBalance.Minor)
	}
	if len(eur.DebitNormal.Accounts) != 3 || len(eur.CreditNormal.Accounts) != 1 {
		t.Errorf("groups = %d/%d accounts, want 3/1", len(eur.DebitNormal.Accounts), len(eur.CreditNormal.Accounts))
	}
	if eur.DebitNormal.Accounts[0].AccountID != "card" || eur.DebitNormal.Accounts[0].IsBalanceDebit {
		t.Errorf("card row = %+v, want credit balance", eur.DebitNormal.Accounts[0])
	}

	usd, _ := tb.Section("usd")
	if usd.DebitTotal.Minor != 250 || usd.CreditTotal.Minor != 250 {
		t.Errorf("usd totals = %d/%d, want 250/250", usd.DebitTotal.Minor, usd.CreditTotal.Minor)
	}
}

func TestCompiler_AsOf(t *testing.T) {
	tb, err := NewCompiler(0).CompileJournal(context.Background(), sampleJournal(), accounts(), 200)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tb.Section("usd"); ok {
		t.Error("usd entry after as-of should be excluded")
	}
	eur, _ := tb.Section("eur")
	if eur.DebitTotal.Minor != 1400 {
		t.Errorf("eur debit total = %d, want 1400", eur.DebitTotal.Minor)
	}
	if tb.AsOf != 200 {
		t.Errorf("AsOf = %d, want 200", tb.AsOf)
	}
}

func corruptLedgers() []ledger.Ledger {
	return []ledger.Ledger{
		{AccountID: "cash", Kind: core.AccountWallet, Convention: core.DebitNormal,
			Balances: []ledger.CurrencyBalance{{CurrencyID: "eur", Balance: core.NewMoney(1000), IsBalanceDebit: true}}},
		{AccountID: "salary", Kind: core.AccountIncomeSource, Convention: core.CreditNormal,
			Balances: []ledger.CurrencyBalance{{CurrencyID: "eur", Balance: core.NewMoney(998), IsBalanceDebit: false}}},
		{AccountID: "dollars", Kind: core.AccountWallet, Convention: core.DebitNormal,
			Balances: []ledger.CurrencyBalance{{CurrencyID: "usd", Balance: core.NewMoney(5), IsBalanceDebit: true}}},
	}
}

func TestCompiler_Imbalance(t *testing.T) {
	tb, err := NewCompiler(0).Compile(0, corruptLedgers())
	if !errors.Is(err, core.ErrImbalance) {
		t.Fatalf("Compile() error = %v, want ErrImbalance", err)
	}

	imbalances := Imbalances(err)
	if len(imbalances) != 2 {
		t.Fatalf("imbalances = %d, want 2", len(imbalances))
	}
	if imbalances[0].CurrencyID != "eur" || imbalances[0].DebitTotal.Minor != 1000 || imbalances[0].CreditTotal.Minor != 998 {
		t.Errorf("eur imbalance = %+v", imbalances[0])
	}
	if imbalances[1].CurrencyID != "usd" {
		t.Errorf("second imbalance = %+v", imbalances[1])
	}

	if tb.Balanced() {
		t.Error("Balanced() = true, want false")
	}
	if len(tb.Currencies) != 2 {
		t.Errorf("compiled sections = %d, want 2", len(tb.Currencies))
	}
}

func TestCompiler_Tolerance(t *testing.T) {
	_, err := NewCompiler(2).Compile(0, corruptLedgers()[:2])
	if err != nil {
		t.Errorf("Compile() with tolerance 2 error = %v, want nil", err)
	}
	_, err = NewCompiler(1).Compile(0, corruptLedgers()[:2])
	if !errors.Is(err, core.ErrImbalance) {
		t.Errorf("Compile() with tolerance 1 error = %v, want ErrImbalance", err)
	}
}

func TestCompiler_Empty(t *testing.T) {
	tb, err := NewCompiler(0).Compile(0, nil)
	if err != nil || len(tb.Currencies) != 0 || !tb.Balanced() {
		t.Errorf("Compile(nil) = %+v, %v", tb, err)
	}
	if Imbalances(nil) != nil {
		t.Error("Imbalances(nil) should be nil")
	}
}
