// Package store defines the ports record stores implement. Stores own
// persistence of master data and raw transactions; balances are always
// derived, never stored.
package store

import (
	"context"
	"slices"

	"bilancio/internal/core"
)

type (
	AccountReader interface {
		Accounts(ctx context.Context) ([]core.Account, error)
	}

	CurrencyReader interface {
		Currencies(ctx context.Context) ([]core.Currency, error)
	}

	// TransactionReader returns raw records in any order.
	TransactionReader interface {
		Transactions(ctx context.Context) ([]core.TransactionRecord, error)
	}

	BudgetReader interface {
		Budgets(ctx context.Context) ([]core.RollingBudget, error)
		Budget(ctx context.Context, id string) (core.RollingBudget, error)
	}

	Reader interface {
		AccountReader
		CurrencyReader
		TransactionReader
		BudgetReader
	}

	// TransactionWriter appends a record, assigning the next serial and an
	// id when the record has none.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, r core.TransactionRecord) (core.TransactionRecord, error)
	}

	AccountWriter interface {
		SaveAccount(ctx context.Context, a core.Account) error
		SoftDeleteAccount(ctx context.Context, id string) error
		// DeleteAccount removes an account no transaction references, or
		// fails with core.ErrAccountInUse.
		DeleteAccount(ctx context.Context, id string) error
	}

	BudgetWriter interface {
		SaveBudget(ctx context.Context, b core.RollingBudget) error
	}

	CurrencyWriter interface {
		SaveCurrency(ctx context.Context, c core.Currency) error
	}

	Writer interface {
		TransactionWriter
		AccountWriter
		BudgetWriter
		CurrencyWriter
	}

	Store interface {
		Reader
		Writer
		Close() error
	}

	// Pinger is implemented by stores backed by a connection.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// References reports whether r posts to accountID in any role.
func References(r core.TransactionRecord, accountID string) bool {
	return slices.Contains([]string{
		r.WalletID, r.TargetWalletID, r.IncomeSourceID, r.ExpenseAvenueID,
		r.AssetID, r.PartyID, r.EquityID,
	}, accountID)
}
