package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/journal"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/metrics"
	"bilancio/internal/store"
)

// JournalLock is the lock name serialising writes that touch the journal.
const JournalLock = "journal"

// Publisher announces appended transactions.
type Publisher interface {
	PublishJournalAppended(ctx context.Context, msg *amqp.JournalAppendedMessage) error
}

// RecordService is the write side: it validates records against the posting
// rules before appending them under the journal lock.
type RecordService struct {
	store     store.Store
	registry  *currency.Registry
	locks     *lock.WindowLock
	publisher Publisher
	tolerance int64
	logger    *log.Logger
}

// NewRecordService wires the write path. A nil publisher disables
// notifications.
func NewRecordService(s store.Store, registry *currency.Registry, locks *lock.WindowLock, publisher Publisher, tolerance int64, logger *log.Logger) *RecordService {
	if logger == nil {
		logger = log.Discard()
	}
	if locks == nil {
		locks = lock.NewWindowLock(nil, 5*time.Second)
	}
	return &RecordService{
		store:     s,
		registry:  registry,
		locks:     locks,
		publisher: publisher,
		tolerance: tolerance,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

// acquire takes the named write lock and returns the function releasing it.
func (s *RecordService) acquire(ctx context.Context, name string) (func(), error) {
	token, err := s.locks.TryAcquire(name)
	if err != nil {
		metrics.LockAcquisitions.WithLabelValues(name, metrics.LockNotGranted).Inc()
		s.logger.WarnContext(ctx, "Lock not granted", log.FieldLockName, name, log.FieldError, err.Error())
		return nil, err
	}
	metrics.LockAcquisitions.WithLabelValues(name, metrics.LockGranted).Inc()
	return func() { s.locks.Release(name, token) }, nil
}

// AppendTransaction validates r, appends it and publishes a notification.
// The returned record carries the assigned id and serial.
func (s *RecordService) AppendTransaction(ctx context.Context, r core.TransactionRecord) (core.TransactionRecord, error) {
	release, err := s.acquire(ctx, JournalLock)
	if err != nil {
		return core.TransactionRecord{}, err
	}
	defer release()

	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("load accounts: %w", err)
	}

	tx, err := journal.Decode(r, s.registry.Fractions(ctx))
	if err != nil {
		return core.TransactionRecord{}, err
	}
	builder := journal.NewBuilder(core.NewAccountIndex(accounts), journal.WithTolerance(s.tolerance))
	if _, err := builder.Build(tx); err != nil {
		return core.TransactionRecord{}, err
	}

	saved, err := s.store.AppendTransaction(ctx, r)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("append transaction: %w", err)
	}
	metrics.RecordsAppended.Inc()

	s.logger.InfoContext(ctx, "Transaction appended",
		log.NewFields().
			WithOperation(log.OpAppend).
			WithTransaction(saved.ID, saved.Serial, saved.Kind, tx.Amount.Minor, saved.CurrencyID).
			ToSlice()...)

	// The record is stored; a failed notification only delays recalculation.
	if err := s.publish(ctx, saved); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish journal appended message",
			log.FieldTransactionID, saved.ID,
			log.FieldError, err.Error())
	}
	return saved, nil
}

func (s *RecordService) publish(ctx context.Context, r core.TransactionRecord) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping journal message")
		return nil
	}
	return s.publisher.PublishJournalAppended(ctx, amqp.NewJournalAppendedMessage(r))
}

// DeleteAccount soft-deletes an account, keeping its history valid. With
// hard set it removes the account instead, which fails with
// core.ErrAccountInUse while any transaction references it.
func (s *RecordService) DeleteAccount(ctx context.Context, id string, hard bool) error {
	release, err := s.acquire(ctx, JournalLock)
	if err != nil {
		return err
	}
	defer release()

	if hard {
		err = s.store.DeleteAccount(ctx, id)
	} else {
		err = s.store.SoftDeleteAccount(ctx, id)
	}
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account deleted",
		log.FieldAccountID, id,
		log.FieldOperation, log.OpDelete,
		"hard", hard)
	return nil
}

func (s *RecordService) SaveAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return &core.MalformedRecordError{TransactionID: a.ID, Field: "account", Err: err}
	}
	release, err := s.acquire(ctx, JournalLock)
	if err != nil {
		return err
	}
	defer release()
	return s.store.SaveAccount(ctx, a)
}

func (s *RecordService) SaveBudget(ctx context.Context, b core.RollingBudget) error {
	if err := b.Validate(); err != nil {
		return &core.MalformedRecordError{TransactionID: b.ID, Field: "budget", Err: err}
	}
	release, err := s.acquire(ctx, JournalLock)
	if err != nil {
		return err
	}
	defer release()
	return s.store.SaveBudget(ctx, b)
}

// SaveCurrency stores c and drops any cached metadata for it.
func (s *RecordService) SaveCurrency(ctx context.Context, c core.Currency) error {
	if err := c.Validate(); err != nil {
		return &core.MalformedRecordError{TransactionID: c.ID, Field: "currency", Err: err}
	}
	release, err := s.acquire(ctx, JournalLock)
	if err != nil {
		return err
	}
	defer release()
	if err := s.store.SaveCurrency(ctx, c); err != nil {
		return err
	}
	s.registry.Invalidate(c.ID)
	return nil
}

// Close closes the store and the publisher when it holds a connection.
func (s *RecordService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
