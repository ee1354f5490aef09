package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNotFound        = errors.New("not found")
	ErrAccountInUse    = errors.New("account is referenced by journal entries")
	ErrDuplicateID     = errors.New("transaction id already exists")
	ErrUnbalanced      = errors.New("unbalanced transaction")
	ErrMissingAccount  = errors.New("missing account")
	ErrMissingCurrency = errors.New("missing currency")
	ErrMalformedRecord = errors.New("malformed record")
	ErrImbalance       = errors.New("trial balance imbalance")
	ErrLockNotGranted  = errors.New("lock not granted")
	ErrLockTimeout     = errors.New("lock wait timed out")
)

// UnbalancedTransactionError means a transaction mapped to an entry whose
// sides differ. It indicates a defect in the kind mapping and is never
// retried.
type UnbalancedTransactionError struct {
	TransactionID string
	Kind          TransactionKind
	TotalDebit    Money
	TotalCredit   Money
}

func (e *UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("transaction %s (%s): debit %d != credit %d",
		e.TransactionID, e.Kind, e.TotalDebit.Minor, e.TotalCredit.Minor)
}

func (e *UnbalancedTransactionError) Unwrap() error { return ErrUnbalanced }

type MissingAccountError struct {
	TransactionID string
	AccountID     string
	Role          Role
}

func (e *MissingAccountError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("transaction %s: no %s account referenced", e.TransactionID, e.Role)
	}
	return fmt.Sprintf("transaction %s: %s account %q does not exist", e.TransactionID, e.Role, e.AccountID)
}

func (e *MissingAccountError) Unwrap() error { return ErrMissingAccount }

type MissingCurrencyError struct {
	CurrencyID string
}

func (e *MissingCurrencyError) Error() string {
	return fmt.Sprintf("currency %q does not exist", e.CurrencyID)
}

func (e *MissingCurrencyError) Unwrap() error { return ErrMissingCurrency }

type MalformedRecordError struct {
	TransactionID string
	Field         string
	Err           error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("transaction %s: field %s: %v", e.TransactionID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

// ImbalanceError reports a currency whose trial balance does not net out.
type ImbalanceError struct {
	CurrencyID  string `json:"currencyId"`
	DebitTotal  Money  `json:"debitTotal"`
	CreditTotal Money  `json:"creditTotal"`
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("currency %s: debit total %d != credit total %d",
		e.CurrencyID, e.DebitTotal.Minor, e.CreditTotal.Minor)
}

func (e *ImbalanceError) Unwrap() error { return ErrImbalance }

type LockNotGrantedError struct {
	Name      string
	ExpiresAt time.Time
}

func (e *LockNotGrantedError) Error() string {
	return fmt.Sprintf("lock %q held until %s", e.Name, e.ExpiresAt.Format(time.RFC3339Nano))
}

func (e *LockNotGrantedError) Unwrap() error { return ErrLockNotGranted }

type LockTimeoutError struct {
	Name string
	Err  error
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("waiting for lock %q: %v", e.Name, e.Err)
}

func (e *LockTimeoutError) Unwrap() []error { return []error{ErrLockTimeout, e.Err} }

// Diagnostic records a transaction that was skipped while building a batch.
type Diagnostic struct {
	TransactionID string `json:"transactionId"`
	Serial        int64  `json:"serial"`
	Err           error  `json:"-"`
	Message       string `json:"message"`
}

// NewDiagnostic builds a diagnostic for a skipped record.
func NewDiagnostic(id string, serial int64, err error) Diagnostic {
	return Diagnostic{TransactionID: id, Serial: serial, Err: err, Message: err.Error()}
}
