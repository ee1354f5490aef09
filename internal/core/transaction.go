package core

import (
	"fmt"
	"slices"
	"strings"
)

const (
	KindIncome              TransactionKind = "income"
	KindExpense             TransactionKind = "expense"
	KindTransfer            TransactionKind = "transfer"
	KindAssetPurchase       TransactionKind = "asset-purchase"
	KindAssetSale           TransactionKind = "asset-sale"
	KindLoanGiven           TransactionKind = "loan-given"
	KindLoanTaken           TransactionKind = "loan-taken"
	KindRepaymentReceived   TransactionKind = "repayment-received"
	KindRepaymentPaid       TransactionKind = "repayment-paid"
	KindForgivenessGiven    TransactionKind = "forgiveness-given"
	KindForgivenessReceived TransactionKind = "forgiveness-received"
	KindOpeningBalance      TransactionKind = "opening-balance"
	KindAdjustment          TransactionKind = "adjustment"
)

// Roles name the account references a transaction carries.
const (
	RoleWallet        Role = "wallet"
	RoleTargetWallet  Role = "target-wallet"
	RoleIncomeSource  Role = "income-source"
	RoleExpenseAvenue Role = "expense-avenue"
	RoleAsset         Role = "asset"
	RoleParty         Role = "party"
	RoleEquity        Role = "equity"
)

type (
	TransactionKind string

	Role string

	// TransactionRecord is a transaction as persisted by a record store.
	// Amounts are decimal strings in major units of the record currency.
	TransactionRecord struct {
		ID              string   `json:"id"`
		Serial          int64    `json:"serial"`
		Kind            string   `json:"kind"`
		Epoch           Epoch    `json:"epoch"`
		Amount          string   `json:"amount"`
		Fee             string   `json:"fee,omitempty"`
		CurrencyID      string   `json:"currencyId"`
		Tags            []string `json:"tags,omitempty"`
		WalletID        string   `json:"walletId,omitempty"`
		TargetWalletID  string   `json:"targetWalletId,omitempty"`
		IncomeSourceID  string   `json:"incomeSourceId,omitempty"`
		ExpenseAvenueID string   `json:"expenseAvenueId,omitempty"`
		AssetID         string   `json:"assetId,omitempty"`
		PartyID         string   `json:"partyId,omitempty"`
		EquityID        string   `json:"equityId,omitempty"`
		Notes           string   `json:"notes,omitempty"`
	}

	// Transaction is a decoded record with amounts in minor units.
	Transaction struct {
		ID              string
		Serial          int64
		Kind            TransactionKind
		Epoch           Epoch
		Amount          Money
		Fee             Money
		CurrencyID      string
		Tags            []string
		WalletID        string
		TargetWalletID  string
		IncomeSourceID  string
		ExpenseAvenueID string
		AssetID         string
		PartyID         string
		EquityID        string
		Notes           string
	}
)

var transactionKinds = []TransactionKind{
	KindIncome, KindExpense, KindTransfer, KindAssetPurchase, KindAssetSale,
	KindLoanGiven, KindLoanTaken, KindRepaymentReceived, KindRepaymentPaid,
	KindForgivenessGiven, KindForgivenessReceived, KindOpeningBalance, KindAdjustment,
}

// TransactionKinds lists every supported kind.
func TransactionKinds() []TransactionKind {
	return slices.Clone(transactionKinds)
}

// ParseTransactionKind validates a raw kind string.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.TrimSpace(s))
	if !slices.Contains(transactionKinds, k) {
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
	return k, nil
}

// AccountFor returns the account id the transaction carries for role r.
func (t Transaction) AccountFor(r Role) string {
	switch r {
	case RoleWallet:
		return t.WalletID
	case RoleTargetWallet:
		return t.TargetWalletID
	case RoleIncomeSource:
		return t.IncomeSourceID
	case RoleExpenseAvenue:
		return t.ExpenseAvenueID
	case RoleAsset:
		return t.AssetID
	case RoleParty:
		return t.PartyID
	case RoleEquity:
		return t.EquityID
	}
	return ""
}

// HasTag reports whether the transaction carries tag id.
func (t Transaction) HasTag(id string) bool {
	return slices.Contains(t.Tags, id)
}

// Record converts the transaction back to its persisted form using the
// currency fraction.
func (t Transaction) Record(fraction int32) TransactionRecord {
	r := TransactionRecord{
		ID:              t.ID,
		Serial:          t.Serial,
		Kind:            string(t.Kind),
		Epoch:           t.Epoch,
		Amount:          t.Amount.Decimal(fraction).StringFixed(fraction),
		CurrencyID:      t.CurrencyID,
		Tags:            slices.Clone(t.Tags),
		WalletID:        t.WalletID,
		TargetWalletID:  t.TargetWalletID,
		IncomeSourceID:  t.IncomeSourceID,
		ExpenseAvenueID: t.ExpenseAvenueID,
		AssetID:         t.AssetID,
		PartyID:         t.PartyID,
		EquityID:        t.EquityID,
		Notes:           t.Notes,
	}
	if !t.Fee.IsZero() {
		r.Fee = t.Fee.Decimal(fraction).StringFixed(fraction)
	}
	return r
}
