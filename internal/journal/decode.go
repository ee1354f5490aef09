package journal

import (
	"strings"

	"bilancio/internal/core"
)

// FractionFunc returns the minor-unit digits of a currency, or a
// *core.MissingCurrencyError when the currency is unknown.
type FractionFunc func(currencyID string) (int32, error)

// Decode converts a stored record into a Transaction.
func Decode(r core.TransactionRecord, fraction FractionFunc) (core.Transaction, error) {
	kind, err := core.ParseTransactionKind(r.Kind)
	if err != nil {
		return core.Transaction{}, &core.MalformedRecordError{TransactionID: r.ID, Field: "kind", Err: err}
	}

	currencyID := strings.TrimSpace(r.CurrencyID)
	digits, err := fraction(currencyID)
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(r.Amount, digits)
	if err != nil {
		return core.Transaction{}, &core.MalformedRecordError{TransactionID: r.ID, Field: "amount", Err: err}
	}
	fee, err := core.ParseOptionalAmount(r.Fee, digits)
	if err != nil {
		return core.Transaction{}, &core.MalformedRecordError{TransactionID: r.ID, Field: "fee", Err: err}
	}
	if !fee.IsZero() && !AcceptsFee(kind) {
		return core.Transaction{}, &core.MalformedRecordError{
			TransactionID: r.ID, Field: "fee", Err: core.ErrInvalidAmount,
		}
	}

	return core.Transaction{
		ID:              r.ID,
		Serial:          r.Serial,
		Kind:            kind,
		Epoch:           r.Epoch,
		Amount:          amount,
		Fee:             fee,
		CurrencyID:      currencyID,
		Tags:            r.Tags,
		WalletID:        r.WalletID,
		TargetWalletID:  r.TargetWalletID,
		IncomeSourceID:  r.IncomeSourceID,
		ExpenseAvenueID: r.ExpenseAvenueID,
		AssetID:         r.AssetID,
		PartyID:         r.PartyID,
		EquityID:        r.EquityID,
		Notes:           r.Notes,
	}, nil
}
