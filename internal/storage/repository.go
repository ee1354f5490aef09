// Package storage is the SQLite record store. Schema changes are embedded
// migrations applied on open.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/store"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; SQLite allows one at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite store opened", log.FieldPath, dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Accounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, kind, currency_id, deleted FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var kind string
		if err := rows.Scan(&a.ID, &a.Name, &kind, &a.CurrencyID, &a.Deleted); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Kind = core.AccountKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Currencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, sign, min_precision, max_precision, fraction FROM currencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	var out []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.ID, &c.Code, &c.Sign, &c.MinPrecision, &c.MaxPrecision, &c.Fraction); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const transactionColumns = `serial, id, kind, epoch, amount, fee, currency_id, tags,
	wallet_id, target_wallet_id, income_source_id, expense_avenue_id, asset_id, party_id, equity_id, notes`

func (r *SQLiteRepository) Transactions(ctx context.Context) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY serial`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var t core.TransactionRecord
		var epoch int64
		var tags string
		if err := rows.Scan(&t.Serial, &t.ID, &t.Kind, &epoch, &t.Amount, &t.Fee, &t.CurrencyID, &tags,
			&t.WalletID, &t.TargetWalletID, &t.IncomeSourceID, &t.ExpenseAvenueID,
			&t.AssetID, &t.PartyID, &t.EquityID, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Epoch = core.Epoch(epoch)
		// A bad tag column is left for the caller to see as untagged rather
		// than failing the whole listing.
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			r.logger.WarnContext(ctx, "Ignoring malformed tags",
				log.FieldTransactionID, t.ID,
				log.FieldError, err.Error())
			t.Tags = nil
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const budgetColumns = `id, name, currency_id, include_expenses, include_asset_purchases,
	tag_whitelist, tag_blacklist, frequency, roll_over_rule, allocated_minor, start_epoch`

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(s scanner) (core.RollingBudget, error) {
	var b core.RollingBudget
	var white, black, frequency, rule string
	var allocated, start int64
	if err := s.Scan(&b.ID, &b.Name, &b.CurrencyID, &b.IncludeExpenses, &b.IncludeAssetPurchases,
		&white, &black, &frequency, &rule, &allocated, &start); err != nil {
		return core.RollingBudget{}, err
	}
	if err := json.Unmarshal([]byte(white), &b.TagIDWhiteList); err != nil {
		return core.RollingBudget{}, fmt.Errorf("budget %s whitelist: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(black), &b.TagIDBlackList); err != nil {
		return core.RollingBudget{}, fmt.Errorf("budget %s blacklist: %w", b.ID, err)
	}
	b.Frequency = core.Frequency(frequency)
	b.RollOverRule = core.RollOverRule(rule)
	b.AllocatedAmount = core.NewMoney(allocated)
	b.StartEpoch = core.Epoch(start)
	return b, nil
}

func (r *SQLiteRepository) Budgets(ctx context.Context) ([]core.RollingBudget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.RollingBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Budget(ctx context.Context, id string) (core.RollingBudget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RollingBudget{}, fmt.Errorf("budget %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RollingBudget{}, fmt.Errorf("get budget %q: %w", id, err)
	}
	return b, nil
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.TransactionRecord) (core.TransactionRecord, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO transactions (
			id, kind, epoch, amount, fee, currency_id, tags,
			wallet_id, target_wallet_id, income_source_id, expense_avenue_id, asset_id, party_id, equity_id, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Kind, int64(t.Epoch), t.Amount, t.Fee, t.CurrencyID, marshalTags(t.Tags),
		t.WalletID, t.TargetWalletID, t.IncomeSourceID, t.ExpenseAvenueID, t.AssetID, t.PartyID, t.EquityID, t.Notes)
	if isConstraint(err) {
		return core.TransactionRecord{}, fmt.Errorf("transaction %q: %w", t.ID, core.ErrDuplicateID)
	}
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("insert transaction: %w", err)
	}
	serial, err := res.LastInsertId()
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("read serial: %w", err)
	}
	t.Serial = serial

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.NewFields().WithTransaction(t.ID, t.Serial, t.Kind, 0, t.CurrencyID).ToSlice()...)
	return t, nil
}

func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (id, name, kind, currency_id, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind,
			currency_id = excluded.currency_id, deleted = excluded.deleted`,
		a.ID, a.Name, string(a.Kind), a.CurrencyID, a.Deleted)
	if err != nil {
		return fmt.Errorf("save account %q: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete account %q: %w", id, err)
	}
	return expectOne(res, "account", id)
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM transactions WHERE ? IN (
				wallet_id, target_wallet_id, income_source_id, expense_avenue_id, asset_id, party_id, equity_id))`,
		id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check account references: %w", err)
	}
	if referenced {
		return fmt.Errorf("account %q: %w", id, core.ErrAccountInUse)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account %q: %w", id, err)
	}
	return expectOne(res, "account", id)
}

func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.RollingBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency_id = excluded.currency_id,
			include_expenses = excluded.include_expenses,
			include_asset_purchases = excluded.include_asset_purchases,
			tag_whitelist = excluded.tag_whitelist, tag_blacklist = excluded.tag_blacklist,
			frequency = excluded.frequency, roll_over_rule = excluded.roll_over_rule,
			allocated_minor = excluded.allocated_minor, start_epoch = excluded.start_epoch`,
		b.ID, b.Name, b.CurrencyID, b.IncludeExpenses, b.IncludeAssetPurchases,
		marshalTags(b.TagIDWhiteList), marshalTags(b.TagIDBlackList),
		string(b.Frequency), string(b.RollOverRule), b.AllocatedAmount.Minor, int64(b.StartEpoch))
	if err != nil {
		return fmt.Errorf("save budget %q: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveCurrency(ctx context.Context, c core.Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO currencies (id, code, sign, min_precision, max_precision, fraction)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, sign = excluded.sign,
			min_precision = excluded.min_precision, max_precision = excluded.max_precision,
			fraction = excluded.fraction`,
		c.ID, c.Code, c.Sign, c.MinPrecision, c.MaxPrecision, c.Fraction)
	if err != nil {
		return fmt.Errorf("save currency %q: %w", c.ID, err)
	}
	return nil
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// isConstraint reports whether err is a UNIQUE or PRIMARY KEY violation.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
