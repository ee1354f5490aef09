package journal

import "bilancio/internal/core"

// posting names the roles a kind debits and credits. A fee, when present,
// is debited to feeRole and added to the credited amount.
type posting struct {
	debit   core.Role
	credit  core.Role
	feeRole core.Role
}

var postings = map[core.TransactionKind]posting{
	core.KindIncome:              {debit: core.RoleWallet, credit: core.RoleIncomeSource},
	core.KindExpense:             {debit: core.RoleExpenseAvenue, credit: core.RoleWallet},
	core.KindTransfer:            {debit: core.RoleTargetWallet, credit: core.RoleWallet, feeRole: core.RoleExpenseAvenue},
	core.KindAssetPurchase:       {debit: core.RoleAsset, credit: core.RoleWallet},
	core.KindAssetSale:           {debit: core.RoleWallet, credit: core.RoleAsset},
	core.KindLoanGiven:           {debit: core.RoleParty, credit: core.RoleWallet},
	core.KindLoanTaken:           {debit: core.RoleWallet, credit: core.RoleParty},
	core.KindRepaymentReceived:   {debit: core.RoleWallet, credit: core.RoleParty},
	core.KindRepaymentPaid:       {debit: core.RoleParty, credit: core.RoleWallet},
	core.KindForgivenessGiven:    {debit: core.RoleExpenseAvenue, credit: core.RoleParty},
	core.KindForgivenessReceived: {debit: core.RoleParty, credit: core.RoleIncomeSource},
	core.KindOpeningBalance:      {debit: core.RoleWallet, credit: core.RoleEquity},
	core.KindAdjustment:          {debit: core.RoleTargetWallet, credit: core.RoleWallet},
}

// Roles returns the debit and credit roles used for kind.
func Roles(kind core.TransactionKind) (debit, credit core.Role, ok bool) {
	p, ok := postings[kind]
	return p.debit, p.credit, ok
}

// AcceptsFee reports whether kind can carry a fee.
func AcceptsFee(kind core.TransactionKind) bool {
	return postings[kind].feeRole != ""
}
