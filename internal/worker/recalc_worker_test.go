package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/lock"
	"bilancio/internal/services"
	sheetsmem "bilancio/internal/sheets/memory"
	"bilancio/internal/store/memory"
)

func newWorker(t *testing.T, window time.Duration) (*RecalcWorker, *sheetsmem.Sink) {
	t.Helper()
	start := core.EpochOf(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := memory.New(memory.Seed{
		Currencies: []core.Currency{{ID: "eur", Code: "EUR", Fraction: 2}},
		Accounts: []core.Account{
			{ID: "cash", Name: "Cash", Kind: core.AccountWallet, CurrencyID: "eur"},
			{ID: "food", Name: "Food", Kind: core.AccountExpenseAvenue, CurrencyID: "eur"},
			{ID: "open", Name: "Opening", Kind: core.AccountEquity, CurrencyID: "eur"},
		},
		Budgets: []core.RollingBudget{{
			ID: "food", CurrencyID: "eur", IncludeExpenses: true, Frequency: core.FrequencyMonthly,
			RollOverRule: core.RollOverAlways, AllocatedAmount: core.NewMoney(10000), StartEpoch: start,
		}},
		Transactions: []core.TransactionRecord{
			{ID: "t1", Serial: 1, Kind: "opening-balance", Epoch: start, Amount: "500", CurrencyID: "eur", WalletID: "cash", EquityID: "open"},
			{ID: "t2", Serial: 2, Kind: "expense", Epoch: start + 1000, Amount: "30", CurrencyID: "eur", WalletID: "cash", ExpenseAvenueID: "food"},
		},
	})
	registry := currency.NewRegistry(s, cache.NewLRUCache[core.Currency](8, time.Minute))
	agg := services.NewAggregationService(s, registry, services.DefaultAggregationConfig(), nil)
	sink := sheetsmem.New()

	w := NewRecalcWorker(agg, sink, lock.NewDebounceLock(nil, window), nil)
	w.now = func() time.Time { return time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC) }
	return w, sink
}

func TestRecalcWorker_Recalculate(t *testing.T) {
	w, sink := newWorker(t, time.Millisecond)

	if err := w.Recalculate(context.Background()); err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}

	tbs := sink.TrialBalances()
	if len(tbs) != 1 || !tbs[0].Balanced() {
		t.Fatalf("TrialBalances() = %+v, want one balanced", tbs)
	}
	periods := sink.BudgetPeriods("food")
	if len(periods) != 2 {
		t.Fatalf("BudgetPeriods(food) = %d, want January and February", len(periods))
	}
	if periods[0].UsedAmount.Minor != 3000 || periods[1].RolledOverAmount.Minor != 7000 {
		t.Errorf("periods = %+v", periods)
	}
}

func TestRecalcWorker_BurstIsDebounced(t *testing.T) {
	w, sink := newWorker(t, 200*time.Millisecond)
	ctx := context.Background()

	for i := range 5 {
		msg := &amqp.JournalAppendedMessage{TransactionID: "t", Serial: int64(i)}
		if err := w.HandleJournalAppended(ctx, msg); err != nil {
			t.Fatalf("HandleJournalAppended() error = %v", err)
		}
	}
	w.Wait()

	// The first trigger runs at once; the queued ones collapse into one
	// trailing run.
	if got := len(sink.TrialBalances()); got != 2 {
		t.Errorf("recalculations = %d, want 2", got)
	}
}

func TestRecalcWorker_TriggerTimeout(t *testing.T) {
	w, sink := newWorker(t, time.Hour)

	granted, err := w.Trigger(context.Background())
	if err != nil || !granted {
		t.Fatalf("first Trigger() = %v, %v, want granted", granted, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	granted, err = w.Trigger(ctx)
	if granted || !errors.Is(err, core.ErrLockTimeout) {
		t.Errorf("second Trigger() = %v, %v, want lock timeout", granted, err)
	}
	if got := len(sink.TrialBalances()); got != 1 {
		t.Errorf("recalculations = %d, want 1", got)
	}
}
