package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var timeNow = time.Now

// errBadRequest marks request parsing failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// parseEpoch reads an epoch query value; see core.ParseEpoch.
func parseEpoch(v string, loc *time.Location, endOfDay bool) (core.Epoch, error) {
	e, err := core.ParseEpoch(v, loc, endOfDay)
	if err != nil {
		return 0, badRequest("%v", err)
	}
	return e, nil
}

// parseCount reads a non-negative integer query value, defaulting to def.
func parseCount(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid count %q", v)
	}
	return n, nil
}

// decodeJSON decodes a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeRecord cleans the free-text fields of a submitted record.
func sanitizeRecord(r core.TransactionRecord) core.TransactionRecord {
	r.ID = sanitizeInput(r.ID)
	r.Kind = sanitizeInput(r.Kind)
	r.Amount = sanitizeInput(r.Amount)
	r.Fee = sanitizeInput(r.Fee)
	r.CurrencyID = sanitizeInput(r.CurrencyID)
	r.Notes = sanitizeInput(r.Notes)
	tags := r.Tags[:0:0]
	for _, t := range r.Tags {
		if t = sanitizeInput(t); t != "" {
			tags = append(tags, t)
		}
	}
	r.Tags = tags
	return r
}
