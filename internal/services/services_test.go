package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/ledger"
	"bilancio/internal/lock"
	"bilancio/internal/store/memory"
)

func epoch(y int, m time.Month, d int) core.Epoch {
	return core.EpochOf(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
}

func testSeed() memory.Seed {
	return memory.Seed{
		Currencies: []core.Currency{{ID: "eur", Code: "EUR", Sign: "€", MinPrecision: 2, MaxPrecision: 2, Fraction: 2}},
		Accounts: []core.Account{
			{ID: "cash", Name: "Cash", Kind: core.AccountWallet, CurrencyID: "eur"},
			{ID: "salary", Name: "Salary", Kind: core.AccountIncomeSource, CurrencyID: "eur"},
			{ID: "food", Name: "Food", Kind: core.AccountExpenseAvenue, CurrencyID: "eur"},
		},
		Budgets: []core.RollingBudget{{
			ID: "groceries", Name: "Groceries", CurrencyID: "eur", IncludeExpenses: true,
			Frequency: core.FrequencyMonthly, RollOverRule: core.RollOverNever,
			AllocatedAmount: core.NewMoney(50000), StartEpoch: core.EpochOf(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		}},
		Transactions: []core.TransactionRecord{
			{ID: "t1", Serial: 1, Kind: "income", Epoch: epoch(2024, 1, 5), Amount: "1000.00", CurrencyID: "eur", WalletID: "cash", IncomeSourceID: "salary"},
			{ID: "t2", Serial: 2, Kind: "expense", Epoch: epoch(2024, 1, 10), Amount: "200.00", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "food"},
			{ID: "t3", Serial: 3, Kind: "expense", Epoch: epoch(2024, 1, 11), Amount: "5", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "ghost"},
		},
	}
}

func newRegistry(s currency.Source) *currency.Registry {
	return currency.NewRegistry(s, cache.NewLRUCache[core.Currency](16, time.Minute))
}

func newAggregation(s *memory.Store) *AggregationService {
	return NewAggregationService(s, newRegistry(s), DefaultAggregationConfig(), nil)
}

func TestAggregationService_Snapshot(t *testing.T) {
	svc := newAggregation(memory.New(testSeed()))

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Journal.Len() != 2 {
		t.Errorf("Journal.Len() = %d, want 2", snap.Journal.Len())
	}
	if len(snap.Transactions) != 2 {
		t.Errorf("Transactions = %d, want 2", len(snap.Transactions))
	}
	if len(snap.Diagnostics) != 1 || snap.Diagnostics[0].TransactionID != "t3" {
		t.Fatalf("Diagnostics = %+v, want t3 only", snap.Diagnostics)
	}
	if !errors.Is(snap.Diagnostics[0].Err, core.ErrMissingAccount) {
		t.Errorf("diagnostic error = %v, want ErrMissingAccount", snap.Diagnostics[0].Err)
	}
}

func TestAggregationService_SkippedRecordSharingIDStaysOutOfBudget(t *testing.T) {
	seed := testSeed()
	seed.Transactions = append(seed.Transactions, core.TransactionRecord{
		ID: "t3", Serial: 4, Kind: "expense", Epoch: epoch(2024, 1, 12), Amount: "1.00",
		CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "food",
	})
	svc := newAggregation(memory.New(seed))
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Journal.Len() != 3 || len(snap.Transactions) != 3 || len(snap.Diagnostics) != 1 {
		t.Fatalf("entries = %d, transactions = %d, diagnostics = %d; want 3, 3, 1",
			snap.Journal.Len(), len(snap.Transactions), len(snap.Diagnostics))
	}

	res, err := svc.BudgetPeriods(ctx, "groceries", epoch(2024, 1, 20), 0)
	if err != nil {
		t.Fatalf("BudgetPeriods() error = %v", err)
	}
	if len(res.Periods) == 0 {
		t.Fatal("BudgetPeriods() returned no periods")
	}
	if got := res.Periods[0].UsedAmount.Minor; got != 20100 {
		t.Errorf("UsedAmount = %d, want 20100", got)
	}
}

func TestAggregationService_Ledger(t *testing.T) {
	svc := newAggregation(memory.New(testSeed()))

	res, err := svc.Ledger(context.Background(), "cash", ledger.Window{})
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	if res.Balance.Minor != 80000 || !res.IsBalanceDebit {
		t.Errorf("Balance = %v (debit %v), want 80000 on debit", res.Balance, res.IsBalanceDebit)
	}
	if len(res.Lines) != 2 {
		t.Errorf("Lines = %d, want 2", len(res.Lines))
	}
	if res.Currency == nil || res.Currency.Code != "EUR" {
		t.Errorf("Currency = %+v, want EUR attached", res.Currency)
	}

	if _, err := svc.Ledger(context.Background(), "nobody", ledger.Window{}); !errors.Is(err, core.ErrMissingAccount) {
		t.Errorf("Ledger(nobody) = %v, want ErrMissingAccount", err)
	}
}

func TestAggregationService_TrialBalance(t *testing.T) {
	svc := newAggregation(memory.New(testSeed()))

	res, err := svc.TrialBalance(context.Background(), 0)
	if err != nil {
		t.Fatalf("TrialBalance() error = %v", err)
	}
	if !res.Balanced() || len(res.Imbalances) != 0 {
		t.Errorf("TrialBalance not balanced: %+v", res.Imbalances)
	}
	sec, ok := res.Section("eur")
	if !ok {
		t.Fatal("no eur section")
	}
	if sec.DebitTotal.Minor != 100000 || sec.CreditTotal.Minor != 100000 {
		t.Errorf("totals = %v / %v, want 100000 / 100000", sec.DebitTotal, sec.CreditTotal)
	}

	early, err := svc.TrialBalance(context.Background(), epoch(2024, 1, 6))
	if err != nil {
		t.Fatal(err)
	}
	sec, _ = early.Section("eur")
	if sec.DebitTotal.Minor != 100000 {
		t.Errorf("as-of debit total = %v, want 100000", sec.DebitTotal)
	}
}

func TestAggregationService_BudgetPeriods(t *testing.T) {
	svc := newAggregation(memory.New(testSeed()))
	ctx := context.Background()

	res, err := svc.BudgetPeriods(ctx, "groceries", epoch(2024, 1, 20), 1)
	if err != nil {
		t.Fatalf("BudgetPeriods() error = %v", err)
	}
	if len(res.Periods) != 2 {
		t.Fatalf("Periods = %d, want 2", len(res.Periods))
	}
	first := res.Periods[0]
	if first.UsedAmount.Minor != 20000 || first.RemainingAmount.Minor != 30000 || first.TransactionCount != 1 {
		t.Errorf("first period = %+v", first)
	}
	if first.Currency == nil {
		t.Error("period currency not attached")
	}

	if _, err := svc.BudgetPeriods(ctx, "missing", epoch(2024, 1, 20), 0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("BudgetPeriods(missing) = %v, want ErrNotFound", err)
	}
}

func TestAggregationService_Summary(t *testing.T) {
	svc := newAggregation(memory.New(testSeed()))

	res, err := svc.Summary(context.Background(), epoch(2024, 1, 1), epoch(2024, 1, 31), "eur")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if res.TotalIncome.Minor != 100000 || res.TotalExpense.Minor != 20000 || res.Net.Minor != 80000 {
		t.Errorf("totals = %v / %v / %v", res.TotalIncome, res.TotalExpense, res.Net)
	}
	if len(res.Wallets) != 1 || res.Wallets[0].Balance.Minor != 80000 {
		t.Errorf("Wallets = %+v", res.Wallets)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*amqp.JournalAppendedMessage
	err      error
}

func (p *recordingPublisher) PublishJournalAppended(_ context.Context, msg *amqp.JournalAppendedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func TestRecordService_AppendTransaction(t *testing.T) {
	s := memory.New(testSeed())
	pub := &recordingPublisher{}
	svc := NewRecordService(s, newRegistry(s), lock.NewWindowLock(nil, time.Minute), pub, 0, nil)
	ctx := context.Background()

	saved, err := svc.AppendTransaction(ctx, core.TransactionRecord{
		Kind: "expense", Epoch: epoch(2024, 2, 1), Amount: "12.30", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "food",
	})
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if saved.ID == "" || saved.Serial != 4 {
		t.Errorf("saved = %+v, want id and serial 4", saved)
	}
	if len(pub.messages) != 1 || pub.messages[0].TransactionID != saved.ID {
		t.Errorf("published = %+v", pub.messages)
	}

	tests := []struct {
		name   string
		record core.TransactionRecord
		want   error
	}{
		{"unknown kind", core.TransactionRecord{Kind: "gift", Amount: "1", CurrencyID: "eur"}, core.ErrMalformedRecord},
		{"bad amount", core.TransactionRecord{Kind: "expense", Amount: "abc", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "food"}, core.ErrMalformedRecord},
		{"missing account", core.TransactionRecord{Kind: "expense", Amount: "1", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "ghost"}, core.ErrMissingAccount},
		{"missing currency", core.TransactionRecord{Kind: "expense", Amount: "1", CurrencyID: "zzz", WalletID: "cash", ExpenseAvenueID: "food"}, core.ErrMissingCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AppendTransaction(ctx, tt.record); !errors.Is(err, tt.want) {
				t.Errorf("AppendTransaction() = %v, want %v", err, tt.want)
			}
		})
	}

	all, _ := s.Transactions(ctx)
	if len(all) != 4 {
		t.Errorf("store holds %d records, want 4", len(all))
	}
}

func TestRecordService_PublishFailureKeepsRecord(t *testing.T) {
	s := memory.New(testSeed())
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewRecordService(s, newRegistry(s), nil, pub, 0, nil)

	if _, err := svc.AppendTransaction(context.Background(), core.TransactionRecord{
		Kind: "income", Amount: "1", CurrencyID: "eur", WalletID: "cash", IncomeSourceID: "salary",
	}); err != nil {
		t.Errorf("AppendTransaction() = %v, want nil when publishing fails", err)
	}
}

func TestRecordService_LockNotGranted(t *testing.T) {
	s := memory.New(testSeed())
	locks := lock.NewWindowLock(nil, time.Minute)
	svc := NewRecordService(s, newRegistry(s), locks, nil, 0, nil)

	token, err := locks.TryAcquire(JournalLock)
	if err != nil {
		t.Fatalf("could not take the journal lock: %v", err)
	}
	_, err = svc.AppendTransaction(context.Background(), core.TransactionRecord{
		Kind: "income", Amount: "1", CurrencyID: "eur", WalletID: "cash", IncomeSourceID: "salary",
	})
	var notGranted *core.LockNotGrantedError
	if !errors.As(err, &notGranted) || notGranted.Name != JournalLock {
		t.Errorf("AppendTransaction() = %v, want LockNotGrantedError", err)
	}

	locks.Release(JournalLock, token)
	if err := svc.DeleteAccount(context.Background(), "cash", false); err != nil {
		t.Errorf("DeleteAccount() after release = %v", err)
	}
}

func TestRecordService_DeleteAccount(t *testing.T) {
	s := memory.New(testSeed())
	svc := NewRecordService(s, newRegistry(s), nil, nil, 0, nil)
	ctx := context.Background()

	if err := svc.DeleteAccount(ctx, "food", true); !errors.Is(err, core.ErrAccountInUse) {
		t.Errorf("hard DeleteAccount(food) = %v, want ErrAccountInUse", err)
	}
	if err := svc.DeleteAccount(ctx, "food", false); err != nil {
		t.Fatalf("soft DeleteAccount(food) = %v", err)
	}

	// Soft-deleted accounts keep resolving, so history still posts.
	agg := newAggregation(s)
	res, err := agg.Ledger(ctx, "food", ledger.Window{})
	if err != nil {
		t.Fatalf("Ledger(food) after soft delete = %v", err)
	}
	if res.Balance.Minor != 20000 {
		t.Errorf("Balance = %v, want 20000", res.Balance)
	}
}

func TestRecordService_SaveMasterData(t *testing.T) {
	s := memory.New(testSeed())
	svc := NewRecordService(s, newRegistry(s), nil, nil, 0, nil)
	ctx := context.Background()

	if err := svc.SaveBudget(ctx, core.RollingBudget{ID: "b"}); !errors.Is(err, core.ErrMalformedRecord) {
		t.Errorf("SaveBudget(invalid) = %v, want ErrMalformedRecord", err)
	}
	if err := svc.SaveAccount(ctx, core.Account{ID: "bank", Name: "Bank", Kind: core.AccountWallet, CurrencyID: "eur"}); err != nil {
		t.Errorf("SaveAccount() = %v", err)
	}
	if err := svc.SaveCurrency(ctx, core.Currency{ID: "pts", Code: "PTS", Sign: "P", Fraction: 0}); err != nil {
		t.Errorf("SaveCurrency() = %v", err)
	}
}

func TestRecordService_SaveMasterDataLockHeld(t *testing.T) {
	s := memory.New(testSeed())
	locks := lock.NewWindowLock(nil, time.Minute)
	svc := NewRecordService(s, newRegistry(s), locks, nil, 0, nil)
	ctx := context.Background()

	if !locks.Acquire(JournalLock) {
		t.Fatal("could not take the journal lock")
	}

	tests := []struct {
		name string
		save func() error
	}{
		{"account", func() error {
			return svc.SaveAccount(ctx, core.Account{ID: "food", Name: "Food", Kind: core.AccountWallet, CurrencyID: "eur"})
		}},
		{"budget", func() error { return svc.SaveBudget(ctx, testSeed().Budgets[0]) }},
		{"currency", func() error {
			return svc.SaveCurrency(ctx, core.Currency{ID: "pts", Code: "PTS", Sign: "P", Fraction: 0})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.save(); !errors.Is(err, core.ErrLockNotGranted) {
				t.Errorf("save = %v, want ErrLockNotGranted", err)
			}
		})
	}

	accounts, err := s.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts() error = %v", err)
	}
	for _, a := range accounts {
		if a.ID == "food" && a.Kind != core.AccountExpenseAvenue {
			t.Errorf("food kind = %v, want unchanged %v", a.Kind, core.AccountExpenseAvenue)
		}
	}
}
