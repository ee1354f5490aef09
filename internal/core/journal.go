package core

import "slices"

type (
	Line struct {
		AccountID string `json:"accountId"`
		Amount    Money  `json:"amount"`
	}

	// JournalEntry is the immutable double-entry form of one transaction.
	JournalEntry struct {
		Serial        int64           `json:"serial"`
		Epoch         Epoch           `json:"epoch"`
		TransactionID string          `json:"transactionId"`
		Kind          TransactionKind `json:"kind"`
		CurrencyID    string          `json:"currencyId"`
		Debits        []Line          `json:"debits"`
		Credits       []Line          `json:"credits"`
		TotalDebit    Money           `json:"totalDebit"`
		TotalCredit   Money           `json:"totalCredit"`
		Tags          []string        `json:"tags,omitempty"`
		Notes         string          `json:"notes,omitempty"`
	}
)

// Touches reports whether any line of e posts to accountID.
func (e JournalEntry) Touches(accountID string) bool {
	has := func(l Line) bool { return l.AccountID == accountID }
	return slices.ContainsFunc(e.Debits, has) || slices.ContainsFunc(e.Credits, has)
}

// Before orders entries by epoch, then serial.
func (e JournalEntry) Before(o JournalEntry) bool {
	if e.Epoch != o.Epoch {
		return e.Epoch < o.Epoch
	}
	return e.Serial < o.Serial
}

// CompareEntries is a slices.SortFunc comparator on (epoch, serial).
func CompareEntries(a, b JournalEntry) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}

func sumLines(lines []Line) Money {
	var total Money
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Totals recomputes the debit and credit totals from the lines.
func (e JournalEntry) Totals() (debit, credit Money) {
	return sumLines(e.Debits), sumLines(e.Credits)
}
