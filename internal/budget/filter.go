package budget

import (
	"fmt"
	"slices"

	"bilancio/internal/core"
)

const (
	// BlacklistWins excludes a transaction carrying any blacklisted tag,
	// even when it also carries a whitelisted one.
	BlacklistWins TagPrecedence = "blacklist-wins"
	// WhitelistWins keeps a transaction carrying a whitelisted tag even when
	// it also carries a blacklisted one.
	WhitelistWins TagPrecedence = "whitelist-wins"
)

type TagPrecedence string

// ParseTagPrecedence validates a precedence name; empty means BlacklistWins.
func ParseTagPrecedence(s string) (TagPrecedence, error) {
	switch TagPrecedence(s) {
	case "", BlacklistWins:
		return BlacklistWins, nil
	case WhitelistWins:
		return WhitelistWins, nil
	}
	return "", fmt.Errorf("unknown tag precedence %q", s)
}

func anyTag(tags, list []string) bool {
	for _, t := range tags {
		if slices.Contains(list, t) {
			return true
		}
	}
	return false
}

// passesTags applies the whitelist first, then the blacklist. An empty
// whitelist admits every transaction.
func passesTags(b core.RollingBudget, tags []string, precedence TagPrecedence) bool {
	whitelisted := anyTag(tags, b.TagIDWhiteList)
	if len(b.TagIDWhiteList) > 0 && !whitelisted {
		return false
	}
	if !anyTag(tags, b.TagIDBlackList) {
		return true
	}
	return precedence == WhitelistWins && whitelisted
}

func countsKind(b core.RollingBudget, kind core.TransactionKind) bool {
	switch kind {
	case core.KindExpense:
		return b.IncludeExpenses
	case core.KindAssetPurchase:
		return b.IncludeAssetPurchases
	}
	return false
}
