package services

import (
	"errors"

	"bilancio/internal/core"
)

// reason classifies a diagnostic error for metric labels.
func reason(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingAccount):
		return "missing_account"
	case errors.Is(err, core.ErrMissingCurrency):
		return "missing_currency"
	case errors.Is(err, core.ErrMalformedRecord):
		return "malformed"
	default:
		return "other"
	}
}
