// Package sheets defines the report export port and the row layout shared
// by its adapters.
package sheets

import (
	"context"

	"bilancio/internal/core"
	"bilancio/internal/trialbalance"
)

// ReportWriter exports computed reports to an external sink.
type ReportWriter interface {
	WriteTrialBalance(ctx context.Context, tb trialbalance.TrialBalance) error
	WriteBudgetPeriods(ctx context.Context, b core.RollingBudget, periods []core.BudgetedPeriod) error
}
