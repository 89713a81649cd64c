package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gastos/internal/core"
	"gastos/internal/storage"
)

type accountResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	ClosingDay    int     `json:"closing_day"`
	DueDay        int     `json:"due_day"`
	CreditLimit   *string `json:"credit_limit,omitempty"`
	MinPaymentBps int64   `json:"min_payment_bps"`
}

type statementItemResponse struct {
	PurchaseID string `json:"purchase_id"`
	Number     int    `json:"number"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
}

type statementResponse struct {
	Key     string                  `json:"key"`
	Account string                  `json:"account_id"`
	Closing string                  `json:"closing"`
	DueDate string                  `json:"due_date"`
	Total   string                  `json:"total"`
	Items   []statementItemResponse `json:"items"`
}

type balanceResponse struct {
	Account         string   `json:"account_id"`
	AsOf            string   `json:"as_of"`
	StatementKey    string   `json:"statement_key"`
	StatementTotal  string   `json:"statement_total"`
	Outstanding     string   `json:"outstanding"`
	MinimumPayment  string   `json:"minimum_payment"`
	OpenConsumption string   `json:"open_consumption"`
	Available       *string  `json:"available,omitempty"`
	Utilization     *float64 `json:"utilization,omitempty"`
}

func toAccountResponse(a core.Account) accountResponse {
	resp := accountResponse{
		ID:            a.ID,
		Name:          a.Name,
		Kind:          string(a.Kind),
		ClosingDay:    a.ClosingDay,
		DueDay:        a.DueDay,
		MinPaymentBps: a.MinPayment.PercentBps,
	}
	if a.CreditLimit != nil {
		v := a.CreditLimit.String()
		resp.CreditLimit = &v
	}
	return resp
}

func toStatementResponse(stmt core.Statement) statementResponse {
	resp := statementResponse{
		Key:     stmt.Period.Key(stmt.AccountID),
		Account: stmt.AccountID,
		Closing: stmt.Period.Closing.String(),
		DueDate: stmt.Period.DueDate.String(),
		Total:   stmt.Total.String(),
		Items:   make([]statementItemResponse, 0, len(stmt.Items)),
	}
	for _, item := range stmt.Items {
		resp.Items = append(resp.Items, statementItemResponse{
			PurchaseID: item.PurchaseID,
			Number:     item.Number,
			Date:       item.Date.String(),
			Amount:     item.Amount.String(),
		})
	}
	return resp
}

func toBalanceResponse(b core.Balance) balanceResponse {
	resp := balanceResponse{
		Account:         b.AccountID,
		AsOf:            b.AsOf.String(),
		StatementKey:    b.Period.Key(b.AccountID),
		StatementTotal:  b.StatementTotal.String(),
		Outstanding:     b.Outstanding.String(),
		MinimumPayment:  b.MinimumPayment.String(),
		OpenConsumption: b.OpenConsumption.String(),
		Utilization:     b.Utilization,
	}
	if b.Available != nil {
		v := b.Available.String()
		resp.Available = &v
	}
	return resp
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidPurchase),
		errors.Is(err, core.ErrInvalidPayment),
		errors.Is(err, core.ErrInvalidMovement),
		errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.balances.Accounts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	ref, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	stmt, err := s.balances.StatementFor(r.Context(), r.PathValue("id"), ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementResponse(stmt))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	balance, err := s.balances.Project(r.Context(), r.PathValue("id"), asOf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	balances, err := s.balances.ProjectAll(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, toBalanceResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInstallments(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	months := 12
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 60 {
			writeError(w, http.StatusBadRequest, "invalid months, want 1-60")
			return
		}
		months = m
	}
	occurrences, err := s.balances.UpcomingInstallments(r.Context(), r.PathValue("id"), asOf, months)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]statementItemResponse, 0, len(occurrences))
	for _, occ := range occurrences {
		resp = append(resp, statementItemResponse{
			PurchaseID: occ.PurchaseID,
			Number:     occ.Number,
			Date:       occ.Date.String(),
			Amount:     occ.Amount.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month, want 1-12")
		return
	}
	overview, err := s.balances.MonthOverview(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type categoryRow struct {
		Name   string `json:"name"`
		Amount string `json:"amount"`
	}
	resp := struct {
		Year       int           `json:"year"`
		Month      int           `json:"month"`
		CashTotal  string        `json:"cash_total"`
		CardTotal  string        `json:"card_total"`
		DueTotal   string        `json:"due_total"`
		Total      string        `json:"total"`
		ByCategory []categoryRow `json:"by_category"`
	}{
		Year:       overview.Year,
		Month:      overview.Month,
		CashTotal:  overview.CashTotal.String(),
		CardTotal:  overview.CardTotal.String(),
		DueTotal:   overview.DueTotal.String(),
		Total:      overview.Total().String(),
		ByCategory: make([]categoryRow, 0, len(overview.ByCategory)),
	}
	for _, c := range overview.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryRow{Name: c.Name, Amount: c.Amount.String()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	alerts, err := s.alerts.Scan(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type purchaseRequest struct {
	AccountID    string `json:"account_id"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Installments int    `json:"installments"`
	Description  string `json:"description"`
	Category     string `json:"category"`
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	if req.Installments == 0 {
		req.Installments = 1
	}

	purchase, err := s.cards.CreatePurchase(r.Context(), core.Purchase{
		AccountID:    strings.TrimSpace(req.AccountID),
		Date:         date,
		Amount:       amount,
		Installments: req.Installments,
		Description:  sanitizeInput(req.Description),
		Category:     sanitizeInput(req.Category),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": purchase.ID})
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.cards.DeletePurchase(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	payment, err := s.cards.RecordPayment(r.Context(), core.Payment{
		AccountID: strings.TrimSpace(req.AccountID),
		Date:      date,
		Amount:    amount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":            payment.ID,
		"statement_key": payment.StatementKey,
	})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := s.cards.DeletePayment(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type movementRequest struct {
	AccountID   string `json:"account_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	movement, err := s.cards.CreateCashMovement(r.Context(), core.CashMovement{
		AccountID:   strings.TrimSpace(req.AccountID),
		Date:        date,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": movement.ID})
}
