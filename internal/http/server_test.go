package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/storage"
)

// memStore implements services.Store for handler tests, with the same
// inclusive window semantics and sentinel errors as the SQLite repository.
type memStore struct {
	accounts    map[string]core.Account
	purchases   map[string]core.Purchase
	occurrences map[string][]core.InstallmentOccurrence
	payments    map[string]core.Payment
	movements   []core.CashMovement
}

func newMemStore(t *testing.T, accounts ...core.Account) *memStore {
	t.Helper()
	s := &memStore{
		accounts:    make(map[string]core.Account),
		purchases:   make(map[string]core.Purchase),
		occurrences: make(map[string][]core.InstallmentOccurrence),
		payments:    make(map[string]core.Payment),
	}
	for _, a := range accounts {
		normalized, err := a.Normalize()
		if err != nil {
			t.Fatalf("normalize account: %v", err)
		}
		s.accounts[a.ID] = normalized
	}
	return s
}

func (s *memStore) GetAccount(_ context.Context, id string) (core.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return a, nil
}

func (s *memStore) ListAccounts(context.Context) ([]core.Account, error) {
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreatePurchase(_ context.Context, p core.Purchase, occs []core.InstallmentOccurrence) error {
	s.purchases[p.ID] = p
	s.occurrences[p.ID] = occs
	return nil
}

func (s *memStore) DeletePurchase(_ context.Context, id string) error {
	if _, ok := s.purchases[id]; !ok {
		return fmt.Errorf("purchase %s: %w", id, storage.ErrNotFound)
	}
	delete(s.purchases, id)
	delete(s.occurrences, id)
	return nil
}

func (s *memStore) GetPurchase(_ context.Context, id string) (core.Purchase, error) {
	p, ok := s.purchases[id]
	if !ok {
		return core.Purchase{}, fmt.Errorf("purchase %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *memStore) ListPurchases(_ context.Context, accountID string, from, to core.Date) ([]core.Purchase, error) {
	var out []core.Purchase
	for _, p := range s.purchases {
		if p.AccountID == accountID && p.Date.OnOrAfter(from) && p.Date.OnOrBefore(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) ListOccurrences(_ context.Context, accountID string, from, to core.Date) ([]core.InstallmentOccurrence, error) {
	var out []core.InstallmentOccurrence
	for pid, occs := range s.occurrences {
		if s.purchases[pid].AccountID != accountID {
			continue
		}
		for _, occ := range occs {
			if occ.Date.OnOrAfter(from) && occ.Date.OnOrBefore(to) {
				out = append(out, occ)
			}
		}
	}
	return out, nil
}

func (s *memStore) CreatePayment(_ context.Context, p core.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *memStore) DeletePayment(_ context.Context, id string) error {
	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("payment %s: %w", id, storage.ErrNotFound)
	}
	delete(s.payments, id)
	return nil
}

func (s *memStore) GetPayment(_ context.Context, id string) (core.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *memStore) ListPayments(_ context.Context, accountID string, from, to core.Date) ([]core.Payment, error) {
	var out []core.Payment
	for _, p := range s.payments {
		if p.AccountID == accountID && p.Date.OnOrAfter(from) && p.Date.OnOrBefore(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) CreateCashMovement(_ context.Context, m core.CashMovement) error {
	s.movements = append(s.movements, m)
	return nil
}

func (s *memStore) ListCashMovements(_ context.Context, accountID string, from, to core.Date) ([]core.CashMovement, error) {
	var out []core.CashMovement
	for _, m := range s.movements {
		if m.AccountID == accountID && m.Date.OnOrAfter(from) && m.Date.OnOrBefore(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	limit := core.Money{Cents: 1000000}
	store := newMemStore(t,
		core.Account{ID: "visa", Name: "Visa", Kind: core.CreditLine, ClosingDay: 23, DueDay: 5, CreditLimit: &limit},
		core.Account{ID: "cash", Name: "Cash", Kind: core.CashOrDebit},
	)
	statements := cache.NewStatementCache(64, time.Minute)
	cards := services.NewCardService(store, nil, statements)
	balances := services.NewBalanceService(store, statements)
	alerts := services.NewAlertService(store, balances)
	srv := NewServer(":0", cards, balances, alerts)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}

func TestListAccounts(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/accounts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var accounts []accountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[1].ID != "visa" || accounts[1].CreditLimit == nil || *accounts[1].CreditLimit != "10000.00" {
		t.Fatalf("unexpected visa account: %+v", accounts[1])
	}
}

func TestCreatePurchaseAndStatement(t *testing.T) {
	srv, store := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/purchases",
		`{"account_id":"visa","date":"2024-01-15","amount":"1000.00","installments":3,"description":"laptop","category":"tech"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(store.occurrences[created["id"]]) != 3 {
		t.Fatalf("expected 3 occurrences persisted")
	}

	rr = do(t, srv, http.MethodGet, "/api/accounts/visa/statement?date=2024-02-23", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("statement status = %d", rr.Code)
	}
	var stmt statementResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &stmt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stmt.Key != "visa 2024-02" || stmt.Total != "333.33" || len(stmt.Items) != 1 {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
	if stmt.DueDate != "2024-03-05" {
		t.Fatalf("due date = %s, want 2024-03-05", stmt.DueDate)
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{not json`, http.StatusBadRequest},
		{"bad amount", `{"account_id":"visa","date":"2024-01-15","amount":"abc","description":"x"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"account_id":"visa","date":"2024-01-15","amount":"-5","description":"x"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"account_id":"visa","date":"15/01/2024","amount":"10","description":"x"}`, http.StatusUnprocessableEntity},
		{"missing description", `{"account_id":"visa","date":"2024-01-15","amount":"10"}`, http.StatusUnprocessableEntity},
		{"unknown account", `{"account_id":"amex","date":"2024-01-15","amount":"10","description":"x"}`, http.StatusNotFound},
		{"cash account", `{"account_id":"cash","date":"2024-01-15","amount":"10","description":"x"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/purchases", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestDeletePurchase(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/purchases",
		`{"account_id":"visa","date":"2024-01-15","amount":"100.00","description":"chair"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	var created map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = do(t, srv, http.MethodDelete, "/api/purchases/"+created["id"], "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, "/api/purchases/"+created["id"], "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestCreatePaymentReturnsStatementKey(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/payments",
		`{"account_id":"visa","date":"2024-03-01","amount":"50.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["statement_key"] != "visa 2024-02" {
		t.Fatalf("statement_key = %q, want 'visa 2024-02'", created["statement_key"])
	}
}

func TestBalanceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/purchases",
		`{"account_id":"visa","date":"2024-02-10","amount":"300.00","description":"shoes"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/accounts/visa/balance?date=2024-03-01", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rr.Code)
	}
	var balance balanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &balance); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if balance.Outstanding != "300.00" {
		t.Fatalf("outstanding = %s, want 300.00", balance.Outstanding)
	}
	if balance.Utilization == nil || *balance.Utilization != 0.03 {
		t.Fatalf("utilization = %v, want 0.03", balance.Utilization)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/movements",
		`{"account_id":"cash","date":"2024-03-10","amount":"25.00","description":"lunch","category":"food"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("movement status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/overview?year=2024&month=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status = %d", rr.Code)
	}
	var overview struct {
		CashTotal string `json:"cash_total"`
		Total     string `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if overview.CashTotal != "25.00" {
		t.Fatalf("cash_total = %s, want 25.00", overview.CashTotal)
	}

	rr = do(t, srv, http.MethodGet, "/api/overview?year=2024&month=13", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid month status = %d, want 400", rr.Code)
	}
}
