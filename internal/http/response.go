package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to a status code and a stable type name.
func classify(err error) (int, string) {
	var notGranted *core.LockNotGrantedError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, core.ErrMalformedRecord), errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, "malformed_record"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrMissingAccount):
		return http.StatusNotFound, "missing_account"
	case errors.Is(err, core.ErrMissingCurrency):
		return http.StatusNotFound, "missing_currency"
	case errors.Is(err, core.ErrAccountInUse):
		return http.StatusConflict, "account_in_use"
	case errors.Is(err, core.ErrDuplicateID):
		return http.StatusConflict, "duplicate_transaction"
	case errors.As(err, &notGranted):
		return http.StatusConflict, "lock_not_granted"
	case errors.Is(err, core.ErrLockTimeout):
		return http.StatusServiceUnavailable, "lock_timeout"
	case errors.Is(err, core.ErrUnbalanced):
		return http.StatusInternalServerError, "unbalanced"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes err as an ErrorResponse. Internal errors are logged and
// their message withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()

	var notGranted *core.LockNotGrantedError
	if errors.As(err, &notGranted) {
		w.Header().Set("Retry-After", retryAfter(time.Until(notGranted.ExpiresAt)))
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, msg)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Type: kind})
}

// retryAfter renders d as whole seconds, at least one.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
