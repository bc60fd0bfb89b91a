package http

import (
	"net/http"
	"strings"
	"testing"

	"shakkin/internal/amqp"
	"shakkin/internal/core"
)

func TestListLoans(t *testing.T) {
	ts := newTestServer(t, seedLoans(), nil)

	rr := ts.do(t, http.MethodGet, "/api/loans", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[[]map[string]any](t, rr)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// newest first
	if got[0]["id"] != "card" || got[1]["id"] != "student" {
		t.Errorf("order = %v, %v", got[0]["id"], got[1]["id"])
	}
	if got[0]["principal"] != float64(0) || got[0]["kind"] != "revolving" {
		t.Errorf("card = %v", got[0])
	}
}

func TestListLoansEmptyIsArray(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodGet, "/api/loans", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestCreateLoan(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "numbers",
			body:       `{"title":"Car","kind":"fixed","principal":2000000,"current_balance":1500000,"interest_rate":2.5,"monthly_payment":50000}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "formatted strings and legacy kind",
			body:       `{"title":"  Card  ","kind":"B","current_balance":"¥120,000","interest_rate":"14.5%","monthly_payment":"10,000"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing kind defaults to fixed",
			body:       `{"title":"Old","current_balance":1000,"interest_rate":1,"monthly_payment":100}`,
			wantStatus: http.StatusCreated,
		},
		{name: "malformed json", body: `{"title":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"title":"x","colour":"red"}`, wantStatus: http.StatusBadRequest},
		{name: "empty title", body: `{"title":" ","current_balance":1,"interest_rate":1,"monthly_payment":1}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "zero rate", body: `{"title":"x","current_balance":1,"interest_rate":0,"monthly_payment":1}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "negative balance", body: `{"title":"x","current_balance":-1,"interest_rate":1,"monthly_payment":1}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "bad amount string", body: `{"title":"x","current_balance":"lots","interest_rate":1,"monthly_payment":1}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "bad kind", body: `{"title":"x","kind":"mortgage","current_balance":1,"interest_rate":1,"monthly_payment":1}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "duplicate id", body: `{"id":"student","title":"x","current_balance":1,"interest_rate":1,"monthly_payment":1}`, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, seedLoans(), nil)
			rr := ts.do(t, http.MethodPost, "/api/loans", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantStatus != http.StatusCreated {
				if !strings.Contains(rr.Body.String(), `"error"`) {
					t.Errorf("error body = %s", rr.Body)
				}
				return
			}
			if rr.Header().Get("Location") == "" {
				t.Error("missing Location header")
			}
			if len(ts.publisher.events) != 1 || ts.publisher.events[0] != amqp.LoanCreated {
				t.Errorf("events = %v, want [loan.created]", ts.publisher.events)
			}
		})
	}
}

func TestCreateLoanNormalizesRevolving(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodPost, "/api/loans",
		`{"title":"Card","kind":"revolving","principal":5000,"current_balance":"¥120,000.456","interest_rate":"14.5%","monthly_payment":10000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body)
	}

	got := decode[map[string]any](t, rr)
	if got["principal"] != float64(0) {
		t.Errorf("principal = %v, want 0 for revolving", got["principal"])
	}
	if got["current_balance"] != 120000.46 {
		t.Errorf("current_balance = %v, want 120000.46", got["current_balance"])
	}
	if got["interest_rate"] != 14.5 {
		t.Errorf("interest_rate = %v", got["interest_rate"])
	}
}

func TestGetLoan(t *testing.T) {
	ts := newTestServer(t, seedLoans(), nil)

	rr := ts.do(t, http.MethodGet, "/api/loans/student", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[map[string]any](t, rr); got["title"] != "Student loan" {
		t.Errorf("title = %v", got["title"])
	}

	if rr := ts.do(t, http.MethodGet, "/api/loans/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rr.Code)
	}
}

func TestUpdateLoan(t *testing.T) {
	ts := newTestServer(t, seedLoans(), nil)

	rr := ts.do(t, http.MethodPatch, "/api/loans/student", `{"current_balance":2300000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body)
	}
	got := decode[map[string]any](t, rr)
	if got["current_balance"] != float64(2_300_000) || got["title"] != "Student loan" {
		t.Errorf("updated = %v", got)
	}
	if len(ts.publisher.events) != 1 || ts.publisher.events[0] != amqp.LoanUpdated {
		t.Errorf("events = %v", ts.publisher.events)
	}

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{name: "empty patch", target: "/api/loans/student", body: `{}`, want: http.StatusBadRequest},
		{name: "id change", target: "/api/loans/student", body: `{"id":"other","title":"x"}`, want: http.StatusBadRequest},
		{name: "invalid rate", target: "/api/loans/student", body: `{"interest_rate":-1}`, want: http.StatusUnprocessableEntity},
		{name: "missing loan", target: "/api/loans/missing", body: `{"title":"x"}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := ts.do(t, http.MethodPatch, tt.target, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestDeleteLoan(t *testing.T) {
	ts := newTestServer(t, seedLoans(), nil)

	if rr := ts.do(t, http.MethodDelete, "/api/loans/card", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodDelete, "/api/loans/card", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
	if len(ts.publisher.events) != 1 || ts.publisher.events[0] != amqp.LoanDeleted {
		t.Errorf("events = %v", ts.publisher.events)
	}
}

func TestPreviousTitles(t *testing.T) {
	seed := append(seedLoans(), core.Loan{ID: "card2", Title: "Card", Kind: core.KindRevolving, CurrentBalance: 1, InterestRate: 1, MonthlyPayment: 1})
	ts := newTestServer(t, seed, nil)

	got := decode[[]string](t, ts.do(t, http.MethodGet, "/api/titles", ""))
	if strings.Join(got, ",") != "Card,Student loan" {
		t.Errorf("titles = %v", got)
	}
}

func TestTemplates(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	list := decode[[]map[string]any](t, ts.do(t, http.MethodGet, "/api/templates", ""))
	if len(list) != len(core.Templates) {
		t.Fatalf("templates = %d, want %d", len(list), len(core.Templates))
	}

	rr := ts.do(t, http.MethodPost, "/api/templates/template-5/loans", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create from template status = %d body=%s", rr.Code, rr.Body)
	}
	got := decode[map[string]any](t, rr)
	if got["current_balance"] != float64(2_000_000) || got["kind"] != "fixed" {
		t.Errorf("loan = %v", got)
	}

	rr = ts.do(t, http.MethodPost, "/api/templates/template-2/loans", `{"current_balance":80000,"title":"My card"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body)
	}
	got = decode[map[string]any](t, rr)
	if got["current_balance"] != float64(80_000) || got["title"] != "My card" {
		t.Errorf("loan = %v", got)
	}

	if rr := ts.do(t, http.MethodPost, "/api/templates/nope/loans", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d, want 404", rr.Code)
	}

	// template-8 has a zero rate and cannot be stored without an override
	if rr := ts.do(t, http.MethodPost, "/api/templates/template-8/loans", `{"current_balance":50000}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero-rate template status = %d, want 422", rr.Code)
	}
}
