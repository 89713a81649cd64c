package services

import (
	"context"
	"fmt"
	"sort"

	"gastos/internal/billing"
	"gastos/internal/core"
)

// Alert thresholds. Utilization is a ratio, not a percentage.
const (
	alertDaysAhead           = 7
	alertUtilizationCritical = 0.30
)

const (
	AlertClosingSoon     = "closing_soon"
	AlertDueSoon         = "due_soon"
	AlertHighUtilization = "high_utilization"
)

// Alert is one actionable warning for a credit-line account. Delivery is
// a collaborator concern; this package only decides what to warn about.
type Alert struct {
	Kind           string     `json:"kind"`
	AccountID      string     `json:"account_id"`
	Date           core.Date  `json:"date"`
	DaysLeft       int        `json:"days_left,omitempty"`
	Outstanding    core.Money `json:"outstanding"`
	MinimumPayment core.Money `json:"minimum_payment"`
	Utilization    *float64   `json:"utilization,omitempty"`
	Message        string     `json:"message"`
}

// AlertService scans credit-line accounts for upcoming closings, upcoming
// due dates with money still owed, and high utilization.
type AlertService struct {
	balances *BalanceService
	store    billing.TransactionSource
}

func NewAlertService(store billing.TransactionSource, balances *BalanceService) *AlertService {
	return &AlertService{store: store, balances: balances}
}

// Scan evaluates every credit-line account at asOf and returns the alerts
// that apply, ordered by account then kind.
func (s *AlertService) Scan(ctx context.Context, asOf core.Date) ([]Alert, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var alerts []Alert
	for _, account := range accounts {
		if account.Kind != core.CreditLine {
			continue
		}
		got, err := s.scanAccount(ctx, account, asOf)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", account.ID, err)
		}
		alerts = append(alerts, got...)
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].AccountID != alerts[j].AccountID {
			return alerts[i].AccountID < alerts[j].AccountID
		}
		return alerts[i].Kind < alerts[j].Kind
	})
	return alerts, nil
}

func (s *AlertService) scanAccount(ctx context.Context, account core.Account, asOf core.Date) ([]Alert, error) {
	balance, err := s.balances.project(ctx, account, asOf)
	if err != nil {
		return nil, err
	}

	var alerts []Alert

	nextClosing := billing.ClosingOnOrAfter(account, asOf.AddDays(1))
	if days := asOf.DaysUntil(nextClosing); days <= alertDaysAhead {
		alerts = append(alerts, Alert{
			Kind:           AlertClosingSoon,
			AccountID:      account.ID,
			Date:           nextClosing,
			DaysLeft:       days,
			Outstanding:    balance.Outstanding,
			MinimumPayment: balance.MinimumPayment,
			Utilization:    balance.Utilization,
			Message:        fmt.Sprintf("%s closes in %d days (%s)", account.ID, days, nextClosing),
		})
	}

	// Due alerts only matter while something is still owed on the last
	// closed statement and its due date has not passed.
	if balance.Outstanding.Cents > 0 && balance.Period.DueDate.OnOrAfter(asOf) {
		if days := asOf.DaysUntil(balance.Period.DueDate); days <= alertDaysAhead {
			alerts = append(alerts, Alert{
				Kind:           AlertDueSoon,
				AccountID:      account.ID,
				Date:           balance.Period.DueDate,
				DaysLeft:       days,
				Outstanding:    balance.Outstanding,
				MinimumPayment: balance.MinimumPayment,
				Utilization:    balance.Utilization,
				Message: fmt.Sprintf("%s owes %s, due %s (minimum %s)",
					account.ID, balance.Outstanding, balance.Period.DueDate, balance.MinimumPayment),
			})
		}
	}

	if balance.Utilization != nil && *balance.Utilization > alertUtilizationCritical {
		alerts = append(alerts, Alert{
			Kind:           AlertHighUtilization,
			AccountID:      account.ID,
			Date:           asOf,
			Outstanding:    balance.Outstanding,
			MinimumPayment: balance.MinimumPayment,
			Utilization:    balance.Utilization,
			Message:        fmt.Sprintf("%s utilization at %.0f%%", account.ID, *balance.Utilization*100),
		})
	}

	return alerts, nil
}
