// Package worker recomputes derived reports when the journal changes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/metrics"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
)

// RecalcLock is the debounce lock name shared by recalculation runs.
const RecalcLock = "recalc"

// RecalcWorker recomputes the trial balance and every budget after journal
// appends and exports them. Bursts of appends collapse into at most one run
// per debounce window plus a trailing run.
type RecalcWorker struct {
	aggregation *services.AggregationService
	reports     sheets.ReportWriter
	debounce    *lock.DebounceLock
	now         func() time.Time
	logger      *log.Logger

	wg sync.WaitGroup
}

func NewRecalcWorker(aggregation *services.AggregationService, reports sheets.ReportWriter, debounce *lock.DebounceLock, logger *log.Logger) *RecalcWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if debounce == nil {
		debounce = lock.NewDebounceLock(nil, 0)
	}
	return &RecalcWorker{
		aggregation: aggregation,
		reports:     reports,
		debounce:    debounce,
		now:         time.Now,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleJournalAppended schedules a debounced recalculation and returns at
// once so the message can be acknowledged. Recalculation reads the whole
// store, so a dropped run is covered by the next one.
func (w *RecalcWorker) HandleJournalAppended(ctx context.Context, msg *amqp.JournalAppendedMessage) error {
	w.logger.DebugContext(ctx, "Journal appended",
		log.FieldTransactionID, msg.TransactionID,
		log.FieldSerial, msg.Serial)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.Trigger(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Recalculation failed",
				log.FieldTransactionID, msg.TransactionID,
				log.FieldError, err.Error())
		}
	}()
	return nil
}

// Trigger waits for the debounce lock and recalculates. It reports false
// when a later trigger superseded this one.
func (w *RecalcWorker) Trigger(ctx context.Context) (bool, error) {
	granted, err := w.debounce.Acquire(ctx, RecalcLock)
	switch {
	case err != nil:
		metrics.LockAcquisitions.WithLabelValues(RecalcLock, metrics.LockTimeout).Inc()
		return false, err
	case !granted:
		metrics.LockAcquisitions.WithLabelValues(RecalcLock, metrics.LockSuperseded).Inc()
		w.logger.DebugContext(ctx, "Recalculation superseded")
		return false, nil
	}
	metrics.LockAcquisitions.WithLabelValues(RecalcLock, metrics.LockGranted).Inc()

	if err := w.Recalculate(ctx); err != nil {
		metrics.Recalculations.WithLabelValues("error").Inc()
		return true, err
	}
	metrics.Recalculations.WithLabelValues("ok").Inc()
	return true, nil
}

// Recalculate exports the current trial balance and the budget periods up
// to the one containing now. A failing budget does not stop the others.
func (w *RecalcWorker) Recalculate(ctx context.Context) error {
	start := time.Now()
	defer metrics.ObserveSince("recalc", start)

	snap, err := w.aggregation.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	tb, err := w.aggregation.TrialBalanceOf(ctx, snap, 0)
	if err != nil {
		return fmt.Errorf("trial balance: %w", err)
	}
	if err := w.reports.WriteTrialBalance(ctx, tb.TrialBalance); err != nil {
		return fmt.Errorf("export trial balance: %w", err)
	}

	budgets, err := w.aggregation.Budgets(ctx)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	reference := core.EpochOf(w.now())
	var errs []error
	for _, b := range budgets {
		res, err := w.aggregation.BudgetPeriodsOf(ctx, snap, b, reference, 0)
		if err == nil {
			err = w.reports.WriteBudgetPeriods(ctx, b, res.Periods)
		}
		if err != nil {
			w.logger.WarnContext(ctx, "Budget recalculation failed",
				log.FieldBudgetID, b.ID,
				log.FieldError, err.Error())
			errs = append(errs, fmt.Errorf("budget %s: %w", b.ID, err))
		}
	}

	w.logger.InfoContext(ctx, "Recalculation complete",
		log.FieldOperation, log.OpRecalc,
		log.FieldEntries, snap.Journal.Len(),
		log.FieldSkipped, len(snap.Diagnostics),
		"budgets", len(budgets),
		"balanced", tb.Balanced(),
		log.FieldDuration, time.Since(start).Milliseconds())
	return errors.Join(errs...)
}

// Wait blocks until every scheduled recalculation has finished.
func (w *RecalcWorker) Wait() {
	w.wg.Wait()
}
