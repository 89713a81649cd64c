package billing

import (
	"context"

	"gastos/internal/core"
)

// TransactionSource is the inbound port to the transaction store. The
// engine never loads data itself; callers pass windows of already-loaded
// records into the pure functions, and services use this port to fetch
// those windows.
type (
	TransactionSource interface {
		GetAccount(ctx context.Context, accountID string) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		ListPurchases(ctx context.Context, accountID string, from, to core.Date) ([]core.Purchase, error)
		ListOccurrences(ctx context.Context, accountID string, from, to core.Date) ([]core.InstallmentOccurrence, error)
		ListPayments(ctx context.Context, accountID string, from, to core.Date) ([]core.Payment, error)
		ListCashMovements(ctx context.Context, accountID string, from, to core.Date) ([]core.CashMovement, error)
	}
)
