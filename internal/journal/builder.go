package journal

import (
	"context"
	"errors"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// AccountResolver looks up accounts by id. Soft-deleted accounts must still
// resolve so that historic entries remain valid.
type AccountResolver interface {
	Account(id string) (core.Account, bool)
}

type Builder struct {
	accounts  AccountResolver
	tolerance int64
	logger    *log.Logger
}

type Option func(*Builder)

// WithTolerance sets the largest debit/credit difference, in minor units,
// accepted for an entry.
func WithTolerance(minor int64) Option {
	return func(b *Builder) { b.tolerance = minor }
}

func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

func NewBuilder(accounts AccountResolver, opts ...Option) *Builder {
	b := &Builder{
		accounts: accounts,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build maps one transaction to exactly one balanced journal entry.
func (b *Builder) Build(tx core.Transaction) (core.JournalEntry, error) {
	p, ok := postings[tx.Kind]
	if !ok {
		return core.JournalEntry{}, &core.MalformedRecordError{
			TransactionID: tx.ID, Field: "kind", Err: errors.New("no posting rule for " + string(tx.Kind)),
		}
	}
	if err := tx.Amount.Validate(); err != nil {
		return core.JournalEntry{}, &core.MalformedRecordError{TransactionID: tx.ID, Field: "amount", Err: err}
	}

	debitID, err := b.resolve(tx, p.debit)
	if err != nil {
		return core.JournalEntry{}, err
	}
	creditID, err := b.resolve(tx, p.credit)
	if err != nil {
		return core.JournalEntry{}, err
	}

	debits := []core.Line{{AccountID: debitID, Amount: tx.Amount}}
	credit := tx.Amount
	if p.feeRole != "" && tx.Fee.IsPositive() {
		feeID, err := b.resolve(tx, p.feeRole)
		if err != nil {
			return core.JournalEntry{}, err
		}
		debits = append(debits, core.Line{AccountID: feeID, Amount: tx.Fee})
		credit = credit.Add(tx.Fee)
	}

	entry := core.JournalEntry{
		Serial:        tx.Serial,
		Epoch:         tx.Epoch,
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		CurrencyID:    tx.CurrencyID,
		Debits:        debits,
		Credits:       []core.Line{{AccountID: creditID, Amount: credit}},
		Tags:          tx.Tags,
		Notes:         tx.Notes,
	}
	entry.TotalDebit, entry.TotalCredit = entry.Totals()

	if err := CheckBalance(entry, b.tolerance); err != nil {
		return core.JournalEntry{}, err
	}
	return entry, nil
}

func (b *Builder) resolve(tx core.Transaction, role core.Role) (string, error) {
	id := strings.TrimSpace(tx.AccountFor(role))
	if id == "" {
		return "", &core.MissingAccountError{TransactionID: tx.ID, Role: role}
	}
	if _, ok := b.accounts.Account(id); !ok {
		return "", &core.MissingAccountError{TransactionID: tx.ID, AccountID: id, Role: role}
	}
	return id, nil
}

// CheckBalance verifies that the entry's line totals agree within tolerance
// minor units.
func CheckBalance(e core.JournalEntry, tolerance int64) error {
	debit, credit := e.Totals()
	if debit.Sub(credit).Abs().Minor > tolerance {
		return &core.UnbalancedTransactionError{
			TransactionID: e.TransactionID,
			Kind:          e.Kind,
			TotalDebit:    debit,
			TotalCredit:   credit,
		}
	}
	return nil
}

// BuildAll decodes and builds a batch of records into a journal. Records
// that are malformed or reference unknown accounts or currencies are
// skipped and reported as diagnostics. An unbalanced entry aborts the batch.
func (b *Builder) BuildAll(ctx context.Context, records []core.TransactionRecord, fraction FractionFunc) (*Journal, []core.Diagnostic, error) {
	entries := make([]core.JournalEntry, 0, len(records))
	posted := make([]core.Transaction, 0, len(records))
	var diagnostics []core.Diagnostic

	for i, r := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		tx, err := Decode(r, fraction)
		if err == nil {
			var entry core.JournalEntry
			entry, err = b.Build(tx)
			if err == nil {
				entries = append(entries, entry)
				posted = append(posted, tx)
				continue
			}
		}

		if errors.Is(err, core.ErrUnbalanced) {
			b.logger.ErrorContext(ctx, "Unbalanced journal entry",
				log.FieldTransactionID, r.ID,
				log.FieldError, err.Error())
			return nil, nil, err
		}

		b.logger.WarnContext(ctx, "Skipping transaction record",
			log.FieldTransactionID, r.ID,
			log.FieldSerial, r.Serial,
			log.FieldError, err.Error())
		diagnostics = append(diagnostics, core.NewDiagnostic(r.ID, r.Serial, err))
	}

	j := New(entries)
	j.posted = posted
	return j, diagnostics, nil
}
