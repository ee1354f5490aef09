// Package ledger derives per-account ledgers from a journal.
package ledger

import (
	"iter"
	"slices"

	"bilancio/internal/core"
	"bilancio/internal/journal"
)

// Window bounds a selection of journal entries. From and To are inclusive;
// a zero bound is open. An empty CurrencyID or Kinds matches everything.
type Window struct {
	From       core.Epoch
	To         core.Epoch
	CurrencyID string
	Kinds      []core.TransactionKind
}

// Through selects every entry up to and including epoch to.
func Through(to core.Epoch) Window {
	return Window{To: to}
}

// Between selects entries in [from, to].
func Between(from, to core.Epoch) Window {
	return Window{From: from, To: to}
}

func (w Window) afterEnd(e core.Epoch) bool {
	return w.To != 0 && e > w.To
}

func (w Window) beforeStart(e core.Epoch) bool {
	return w.From != 0 && e < w.From
}

func (w Window) matches(e core.JournalEntry) bool {
	if w.CurrencyID != "" && e.CurrencyID != w.CurrencyID {
		return false
	}
	return len(w.Kinds) == 0 || slices.Contains(w.Kinds, e.Kind)
}

// Select lazily yields the journal entries inside w, in journal order.
func Select(j *journal.Journal, w Window) iter.Seq[core.JournalEntry] {
	return func(yield func(core.JournalEntry) bool) {
		for e := range j.Entries() {
			if w.afterEnd(e.Epoch) {
				return
			}
			if w.beforeStart(e.Epoch) || !w.matches(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
