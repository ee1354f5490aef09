// Package memory is an in-process report sink used in tests and when export
// is disabled.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
	"bilancio/internal/trialbalance"
)

type Sink struct {
	mu            sync.Mutex
	trialBalances []trialbalance.TrialBalance
	budgets       map[string][]core.BudgetedPeriod
	rows          [][]any
}

var _ ports.ReportWriter = (*Sink)(nil)

func New() *Sink {
	return &Sink{budgets: make(map[string][]core.BudgetedPeriod)}
}

func (s *Sink) WriteTrialBalance(_ context.Context, tb trialbalance.TrialBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trialBalances = append(s.trialBalances, tb)
	s.rows = append(s.rows, ports.TrialBalanceRows(tb, time.Now())...)
	return nil
}

// WriteBudgetPeriods replaces the stored periods of b.
func (s *Sink) WriteBudgetPeriods(_ context.Context, b core.RollingBudget, periods []core.BudgetedPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = slices.Clone(periods)
	s.rows = append(s.rows, ports.BudgetRows(b, periods, time.Now())...)
	return nil
}

// TrialBalances returns every trial balance written, oldest first.
func (s *Sink) TrialBalances() []trialbalance.TrialBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trialBalances)
}

func (s *Sink) BudgetPeriods(id string) []core.BudgetedPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.budgets[id])
}

// Rows returns the rows an external sheet would have received.
func (s *Sink) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}
