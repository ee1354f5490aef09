// Package journal turns transactions into balanced double-entry journal
// entries and holds them as an immutable, ordered journal.
package journal

import (
	"iter"
	"slices"

	"bilancio/internal/core"
)

// Journal is an immutable sequence of entries ordered by (epoch, serial).
type Journal struct {
	entries []core.JournalEntry
	posted  []core.Transaction
}

// New copies entries into a journal, sorting them by (epoch, serial)
// whatever their input order.
func New(entries []core.JournalEntry) *Journal {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, core.CompareEntries)
	return &Journal{entries: sorted}
}

// Entries yields the entries in order. The sequence can be ranged over any
// number of times.
func (j *Journal) Entries() iter.Seq[core.JournalEntry] {
	return func(yield func(core.JournalEntry) bool) {
		if j == nil {
			return
		}
		for _, e := range j.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// Transactions returns the decoded transactions that produced the entries,
// in input order. It is empty for a journal made with New.
func (j *Journal) Transactions() []core.Transaction {
	if j == nil {
		return nil
	}
	return slices.Clone(j.posted)
}

// Entry returns the i-th entry in order.
func (j *Journal) Entry(i int) core.JournalEntry {
	return j.entries[i]
}

// Currencies returns the distinct currency ids present, sorted.
func (j *Journal) Currencies() []string {
	seen := make(map[string]struct{})
	var out []string
	for e := range j.Entries() {
		if _, ok := seen[e.CurrencyID]; !ok {
			seen[e.CurrencyID] = struct{}{}
			out = append(out, e.CurrencyID)
		}
	}
	slices.Sort(out)
	return out
}

// References reports whether any entry posts to accountID.
func (j *Journal) References(accountID string) bool {
	for e := range j.Entries() {
		if e.Touches(accountID) {
			return true
		}
	}
	return false
}
