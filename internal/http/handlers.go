package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// handleLedger serves GET /api/accounts/{id}/ledger?from=&to=.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseEpoch(q.Get("from"), s.options.Location, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseEpoch(q.Get("to"), s.options.Location, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if from != 0 && to != 0 && from > to {
		writeError(w, r, badRequest("from is after to"))
		return
	}

	res, err := s.aggregation.Ledger(r.Context(), chi.URLParam(r, "id"), ledger.Between(from, to))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTrialBalance serves GET /api/trial-balance?asOf=. Imbalances are
// reported in the body with status 200.
func (s *Server) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseEpoch(r.URL.Query().Get("asOf"), s.options.Location, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.aggregation.TrialBalance(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.aggregation.Budgets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.RollingBudget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleBudgetPeriods serves GET /api/budgets/{id}/periods?reference=&extra=.
// The reference defaults to now.
func (s *Server) handleBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reference, err := parseEpoch(q.Get("reference"), s.options.Location, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reference == 0 {
		reference = core.EpochOf(timeNow())
	}
	extra, err := parseCount(q.Get("extra"), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.aggregation.BudgetPeriods(r.Context(), chi.URLParam(r, "id"), reference, extra)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Periods == nil {
		res.Periods = []core.BudgetedPeriod{}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSummary serves GET /api/summary?from=&to=&currency=.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	currencyID := sanitizeInput(q.Get("currency"))
	if currencyID == "" {
		writeError(w, r, badRequest("currency is required"))
		return
	}
	from, err := parseEpoch(q.Get("from"), s.options.Location, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseEpoch(q.Get("to"), s.options.Location, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.aggregation.Summary(r.Context(), from, to, currencyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAppendTransaction serves POST /api/transactions and answers with the
// stored record.
func (s *Server) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	var rec core.TransactionRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, err)
		return
	}
	rec = sanitizeRecord(rec)
	rec.Serial = 0

	saved, err := s.records.AppendTransaction(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+saved.ID)
	writeJSON(w, http.StatusCreated, saved)
}

// handleDeleteAccount serves DELETE /api/accounts/{id}. The account is
// soft-deleted unless hard=true.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	hard := false
	if v := r.URL.Query().Get("hard"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, badRequest("invalid hard flag %q", v))
			return
		}
		hard = b
	}

	id := chi.URLParam(r, "id")
	if err := s.records.DeleteAccount(r.Context(), id, hard); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveAccount(w http.ResponseWriter, r *http.Request) {
	var a core.Account
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "id")
	a.Name = sanitizeInput(a.Name)
	if err := s.records.SaveAccount(r.Context(), a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	var b core.RollingBudget
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	b.ID = chi.URLParam(r, "id")
	b.Name = sanitizeInput(b.Name)
	if err := s.records.SaveBudget(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSaveCurrency(w http.ResponseWriter, r *http.Request) {
	var c core.Currency
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := s.records.SaveCurrency(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
