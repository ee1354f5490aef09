package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"bilancio/internal/core"
	"bilancio/internal/trialbalance"
)

type appendCall struct {
	path  string
	query string
	rows  [][]any
}

func newTestClient(t *testing.T, status int) (*Client, *[]appendCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []appendCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, rows: body.Values})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-id", "Report", nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return c, &calls
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "", nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "", nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v, want missing credentials", err)
	}
}

func TestClient_WriteTrialBalance(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK)

	tb := trialbalance.TrialBalance{Currencies: []trialbalance.CurrencySection{{
		CurrencyID: "eur",
		DebitNormal: trialbalance.Group{Convention: core.DebitNormal, Accounts: []trialbalance.Row{
			{AccountID: "cash", Balance: core.NewMoney(100), IsBalanceDebit: true},
		}},
		DebitTotal: core.NewMoney(100),
	}}}
	if err := c.WriteTrialBalance(context.Background(), tb); err != nil {
		t.Fatalf("WriteTrialBalance() error = %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("append calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if !strings.Contains(call.path, "/spreadsheets/sheet-id/values/") || !strings.HasSuffix(call.path, ":append") {
		t.Errorf("path = %q", call.path)
	}
	if !strings.Contains(call.query, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q", call.query)
	}
	if len(call.rows) != 2 {
		t.Errorf("rows = %d, want account row plus total", len(call.rows))
	}
}

func TestClient_WriteBudgetPeriods(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK)

	if err := c.WriteBudgetPeriods(context.Background(), core.RollingBudget{ID: "food"}, nil); err != nil {
		t.Fatalf("WriteBudgetPeriods(no periods) error = %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("empty export made %d calls", len(*calls))
	}

	periods := []core.BudgetedPeriod{{Index: 0}, {Index: 1}}
	if err := c.WriteBudgetPeriods(context.Background(), core.RollingBudget{ID: "food"}, periods); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 1 || len((*calls)[0].rows) != 2 {
		t.Errorf("calls = %+v", *calls)
	}
}

func TestClient_AppendError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusForbidden)

	err := c.WriteBudgetPeriods(context.Background(), core.RollingBudget{ID: "food"}, []core.BudgetedPeriod{{}})
	if err == nil || !strings.Contains(err.Error(), "append budget rows") {
		t.Errorf("WriteBudgetPeriods() error = %v, want append failure", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{now: time.Now}
	if err := c.WriteTrialBalance(context.Background(), trialbalance.TrialBalance{}); err == nil {
		t.Error("WriteTrialBalance() with nil service should fail")
	}
}
