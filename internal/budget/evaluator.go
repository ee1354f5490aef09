package budget

import (
	"context"
	"iter"
	"slices"
	"time"

	"bilancio/internal/core"
)

type Evaluator struct {
	location   *time.Location
	precedence TagPrecedence
}

type Option func(*Evaluator)

// WithLocation sets the time zone period boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithTagPrecedence(p TagPrecedence) Option {
	return func(e *Evaluator) { e.precedence = p }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{location: time.UTC, precedence: BlacklistWins}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Matches reports whether tx counts against the budget, ignoring its
// timestamp.
func (e *Evaluator) Matches(b core.RollingBudget, tx core.Transaction) bool {
	if tx.CurrencyID != b.CurrencyID || !countsKind(b, tx.Kind) {
		return false
	}
	return passesTags(b, tx.Tags, e.precedence)
}

// Periods returns the budget's periods in chronological order, starting at
// the budget start. The sequence is unbounded; each period's roll-over is
// folded from the one before it.
func (e *Evaluator) Periods(b core.RollingBudget, txs []core.Transaction) (iter.Seq[core.BudgetedPeriod], error) {
	stepper, err := GetStepper(b.Frequency)
	if err != nil {
		return nil, err
	}
	rollover, err := GetRolloverStrategy(b.RollOverRule)
	if err != nil {
		return nil, err
	}

	selected := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Epoch >= b.StartEpoch && e.Matches(b, tx) {
			selected = append(selected, tx)
		}
	}
	slices.SortStableFunc(selected, func(x, y core.Transaction) int {
		switch {
		case x.Epoch < y.Epoch:
			return -1
		case x.Epoch > y.Epoch:
			return 1
		}
		return 0
	})

	start := b.StartEpoch.In(e.location)

	return func(yield func(core.BudgetedPeriod) bool) {
		next := 0
		var carried core.Money
		for index := 0; ; index++ {
			p := core.BudgetedPeriod{
				BudgetID:         b.ID,
				Index:            index,
				StartEpoch:       core.EpochOf(stepper.Start(start, index)),
				EndEpoch:         core.EpochOf(stepper.Start(start, index+1)),
				CurrencyID:       b.CurrencyID,
				AllocatedAmount:  b.AllocatedAmount,
				RolledOverAmount: carried,
			}
			for next < len(selected) && selected[next].Epoch < p.EndEpoch {
				p.UsedAmount = p.UsedAmount.Add(selected[next].Amount)
				p.TransactionCount++
				next++
			}
			p.TotalAllocatedAmount = p.AllocatedAmount.Add(p.RolledOverAmount)
			p.RemainingAmount = p.TotalAllocatedAmount.Sub(p.UsedAmount)

			if !yield(p) {
				return
			}
			carried = rollover.Carry(p.RemainingAmount)
		}
	}, nil
}

// Evaluate returns the periods from the budget start through the period
// containing reference, followed by extra future periods. A reference before
// the budget start yields no periods.
func (e *Evaluator) Evaluate(ctx context.Context, b core.RollingBudget, txs []core.Transaction, reference core.Epoch, extra int) ([]core.BudgetedPeriod, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if reference < b.StartEpoch {
		return []core.BudgetedPeriod{}, nil
	}

	seq, err := e.Periods(b, txs)
	if err != nil {
		return nil, err
	}

	var out []core.BudgetedPeriod
	remaining := -1
	for p := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if remaining == 0 {
			break
		}
		out = append(out, p)
		if remaining > 0 {
			remaining--
			continue
		}
		if p.Contains(reference) {
			if extra <= 0 {
				break
			}
			remaining = extra
		}
	}
	return out, nil
}
