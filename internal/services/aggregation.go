// Package services orchestrates the record store, the journal and the
// aggregations behind the HTTP API, the CLI and the recalc worker.
package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/journal"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/metrics"
	"bilancio/internal/store"
	"bilancio/internal/summary"
	"bilancio/internal/trialbalance"
)

// Snapshot is an immutable view of the journal built from one read of the
// record store.
type Snapshot struct {
	Journal     *journal.Journal
	Accounts    core.AccountIndex
	Diagnostics []core.Diagnostic
	// Transactions holds the decoded transactions that made it into the
	// journal.
	Transactions []core.Transaction
}

type (
	LedgerResult struct {
		ledger.Ledger
		Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
	}

	TrialBalanceResult struct {
		trialbalance.TrialBalance
		Imbalances  []*core.ImbalanceError `json:"imbalances,omitempty"`
		Diagnostics []core.Diagnostic      `json:"diagnostics,omitempty"`
	}

	BudgetResult struct {
		Budget      core.RollingBudget    `json:"budget"`
		Periods     []core.BudgetedPeriod `json:"periods"`
		Diagnostics []core.Diagnostic     `json:"diagnostics,omitempty"`
	}

	SummaryResult struct {
		summary.Overview
		Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
	}
)

type AggregationConfig struct {
	Tolerance     int64
	TagPrecedence budget.TagPrecedence
	Location      *time.Location
	// Workers bounds concurrent ledger builds; zero or less is unbounded.
	Workers int
}

func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		TagPrecedence: budget.BlacklistWins,
		Location:      time.UTC,
		Workers:       4,
	}
}

type AggregationService struct {
	store     store.Reader
	registry  *currency.Registry
	config    AggregationConfig
	evaluator *budget.Evaluator
	compiler  *trialbalance.Compiler
	logger    *log.Logger
}

func NewAggregationService(reader store.Reader, registry *currency.Registry, config AggregationConfig, logger *log.Logger) *AggregationService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AggregationService{
		store:    reader,
		registry: registry,
		config:   config,
		evaluator: budget.NewEvaluator(
			budget.WithLocation(config.Location),
			budget.WithTagPrecedence(config.TagPrecedence),
		),
		compiler: trialbalance.NewCompiler(config.Tolerance),
		logger:   logger.WithComponent(log.ComponentJournal),
	}
}

// Snapshot reads the store and builds the journal. Records that cannot be
// posted are reported as diagnostics; an unbalanced entry fails the call.
func (s *AggregationService) Snapshot(ctx context.Context) (*Snapshot, error) {
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	records, err := s.store.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	index := core.NewAccountIndex(accounts)
	fractions := s.registry.Fractions(ctx)
	builder := journal.NewBuilder(index,
		journal.WithTolerance(s.config.Tolerance),
		journal.WithLogger(s.logger))

	j, diagnostics, err := builder.BuildAll(ctx, records, fractions)
	if err != nil {
		return nil, err
	}
	for _, d := range diagnostics {
		metrics.SkippedRecords.WithLabelValues(reason(d.Err)).Inc()
	}
	metrics.JournalEntries.Set(float64(j.Len()))

	s.logger.DebugContext(ctx, "Journal snapshot built",
		log.FieldEntries, j.Len(),
		log.FieldSkipped, len(diagnostics))

	return &Snapshot{Journal: j, Accounts: index, Diagnostics: diagnostics, Transactions: j.Transactions()}, nil
}

// Ledger returns the ledger of accountID over w.
func (s *AggregationService) Ledger(ctx context.Context, accountID string, w ledger.Window) (LedgerResult, error) {
	defer metrics.ObserveSince("ledger", time.Now())

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return LedgerResult{}, err
	}
	l, err := ledger.NewAggregator(snap.Journal, snap.Accounts).Build(ctx, accountID, w)
	if err != nil {
		return LedgerResult{}, err
	}

	l.Currency = s.lookup(ctx, l.CurrencyID)
	for i := range l.Balances {
		l.Balances[i].Currency = s.lookup(ctx, l.Balances[i].CurrencyID)
	}
	return LedgerResult{Ledger: l, Diagnostics: snap.Diagnostics}, nil
}

// TrialBalance compiles the trial balance as of asOf (inclusive, zero for
// no bound). Imbalances are reported in the result rather than as an error.
func (s *AggregationService) TrialBalance(ctx context.Context, asOf core.Epoch) (TrialBalanceResult, error) {
	defer metrics.ObserveSince("trial_balance", time.Now())

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return TrialBalanceResult{}, err
	}
	return s.TrialBalanceOf(ctx, snap, asOf)
}

// TrialBalanceOf compiles the trial balance of an existing snapshot,
// building account ledgers concurrently.
func (s *AggregationService) TrialBalanceOf(ctx context.Context, snap *Snapshot, asOf core.Epoch) (TrialBalanceResult, error) {
	agg := ledger.NewAggregator(snap.Journal, snap.Accounts)
	accounts := snap.Accounts.Sorted()
	ledgers := make([]ledger.Ledger, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	if s.config.Workers > 0 {
		g.SetLimit(s.config.Workers)
	}
	for i, acc := range accounts {
		g.Go(func() error {
			l, err := agg.Balances(gctx, acc.ID, ledger.Through(asOf))
			if err != nil {
				return fmt.Errorf("ledger %s: %w", acc.ID, err)
			}
			ledgers[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TrialBalanceResult{}, err
	}

	tb, err := s.compiler.Compile(asOf, ledgers)
	imbalances := trialbalance.Imbalances(err)
	for _, ie := range imbalances {
		metrics.Imbalances.WithLabelValues(ie.CurrencyID).Inc()
		s.logger.WarnContext(ctx, "Trial balance does not balance",
			log.FieldCurrencyID, ie.CurrencyID,
			log.FieldAsOf, int64(asOf),
			"debit_total", ie.DebitTotal.Minor,
			"credit_total", ie.CreditTotal.Minor)
	}

	for i := range tb.Currencies {
		tb.Currencies[i].Currency = s.lookup(ctx, tb.Currencies[i].CurrencyID)
	}
	return TrialBalanceResult{TrialBalance: tb, Imbalances: imbalances, Diagnostics: snap.Diagnostics}, nil
}

// BudgetPeriods evaluates budget id through the period containing reference
// plus extra future periods.
func (s *AggregationService) BudgetPeriods(ctx context.Context, id string, reference core.Epoch, extra int) (BudgetResult, error) {
	defer metrics.ObserveSince("budget", time.Now())

	b, err := s.store.Budget(ctx, id)
	if err != nil {
		return BudgetResult{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return BudgetResult{}, err
	}
	return s.BudgetPeriodsOf(ctx, snap, b, reference, extra)
}

func (s *AggregationService) BudgetPeriodsOf(ctx context.Context, snap *Snapshot, b core.RollingBudget, reference core.Epoch, extra int) (BudgetResult, error) {
	periods, err := s.evaluator.Evaluate(ctx, b, snap.Transactions, reference, extra)
	if err != nil {
		return BudgetResult{}, fmt.Errorf("evaluate budget %s: %w", b.ID, err)
	}
	c := s.lookup(ctx, b.CurrencyID)
	for i := range periods {
		periods[i].Currency = c
	}
	return BudgetResult{Budget: b, Periods: periods, Diagnostics: snap.Diagnostics}, nil
}

// Summary returns the income/expense overview of currencyID in [from, to].
func (s *AggregationService) Summary(ctx context.Context, from, to core.Epoch, currencyID string) (SummaryResult, error) {
	defer metrics.ObserveSince("summary", time.Now())

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return SummaryResult{}, err
	}
	o, err := summary.NewReducer(snap.Journal, snap.Accounts).Overview(ctx, from, to, currencyID)
	if err != nil {
		return SummaryResult{}, err
	}
	o.Currency = s.lookup(ctx, currencyID)
	return SummaryResult{Overview: o, Diagnostics: snap.Diagnostics}, nil
}

// Budgets lists the budget definitions.
func (s *AggregationService) Budgets(ctx context.Context) ([]core.RollingBudget, error) {
	return s.store.Budgets(ctx)
}

// lookup attaches currency metadata for display; an unknown currency is left
// unset.
func (s *AggregationService) lookup(ctx context.Context, id string) *core.Currency {
	if id == "" {
		return nil
	}
	c, err := s.registry.Resolve(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "Currency not resolved", log.FieldCurrencyID, id, log.FieldError, err.Error())
		return nil
	}
	return &c
}
