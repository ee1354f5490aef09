package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

const (
	RollOverAlways       RollOverRule = "always"
	RollOverNever        RollOverRule = "never"
	RollOverPositiveOnly RollOverRule = "positive-only"
	RollOverNegativeOnly RollOverRule = "negative-only"
)

type (
	Frequency string

	RollOverRule string

	// RollingBudget allocates a fixed amount per period and carries the
	// remainder of each period into the next according to RollOverRule.
	RollingBudget struct {
		ID                    string       `json:"id"`
		Name                  string       `json:"name"`
		CurrencyID            string       `json:"currencyId"`
		IncludeExpenses       bool         `json:"includeExpenses"`
		IncludeAssetPurchases bool         `json:"includeAssetPurchases"`
		TagIDWhiteList        []string     `json:"tagIdWhiteList,omitempty"`
		TagIDBlackList        []string     `json:"tagIdBlackList,omitempty"`
		Frequency             Frequency    `json:"frequency"`
		RollOverRule          RollOverRule `json:"rollOverRule"`
		AllocatedAmount       Money        `json:"allocatedAmount"`
		StartEpoch            Epoch        `json:"startEpoch"`
	}

	// BudgetedPeriod is the evaluation of one budget window [Start, End).
	BudgetedPeriod struct {
		BudgetID             string    `json:"budgetId"`
		Index                int       `json:"index"`
		StartEpoch           Epoch     `json:"startEpoch"`
		EndEpoch             Epoch     `json:"endEpoch"`
		CurrencyID           string    `json:"currencyId"`
		Currency             *Currency `json:"currency,omitempty"`
		AllocatedAmount      Money     `json:"allocatedAmount"`
		RolledOverAmount     Money     `json:"rolledOverAmount"`
		TotalAllocatedAmount Money     `json:"totalAllocatedAmount"`
		UsedAmount           Money     `json:"usedAmount"`
		RemainingAmount      Money     `json:"remainingAmount"`
		TransactionCount     int       `json:"transactionCount"`
	}
)

// Contains reports whether epoch falls in [StartEpoch, EndEpoch).
func (p BudgetedPeriod) Contains(e Epoch) bool {
	return e >= p.StartEpoch && e < p.EndEpoch
}

func (b RollingBudget) Validate() error {
	var problems []string
	if strings.TrimSpace(b.ID) == "" {
		problems = append(problems, "budget id cannot be empty")
	}
	if strings.TrimSpace(b.CurrencyID) == "" {
		problems = append(problems, "budget currency cannot be empty")
	}
	if b.AllocatedAmount.IsNegative() {
		problems = append(problems, "allocated amount cannot be negative")
	}
	switch b.Frequency {
	case FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		problems = append(problems, fmt.Sprintf("invalid frequency %q", b.Frequency))
	}
	switch b.RollOverRule {
	case RollOverAlways, RollOverNever, RollOverPositiveOnly, RollOverNegativeOnly:
	default:
		problems = append(problems, fmt.Sprintf("invalid roll over rule %q", b.RollOverRule))
	}
	if !b.IncludeExpenses && !b.IncludeAssetPurchases {
		problems = append(problems, "budget must include expenses or asset purchases")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
