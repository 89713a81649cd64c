package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/export"
)

type stubSource struct {
	accounts    []core.Account
	occurrences []core.InstallmentOccurrence
	payments    []core.Payment
}

func (s *stubSource) GetAccount(_ context.Context, id string) (core.Account, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, assert.AnError
}

func (s *stubSource) ListAccounts(context.Context) ([]core.Account, error) {
	return s.accounts, nil
}

func (s *stubSource) ListPurchases(context.Context, string, core.Date, core.Date) ([]core.Purchase, error) {
	return nil, nil
}

func (s *stubSource) ListOccurrences(_ context.Context, accountID string, from, to core.Date) ([]core.InstallmentOccurrence, error) {
	var out []core.InstallmentOccurrence
	for _, occ := range s.occurrences {
		if occ.Date.OnOrAfter(from) && occ.Date.OnOrBefore(to) {
			out = append(out, occ)
		}
	}
	return out, nil
}

func (s *stubSource) ListPayments(_ context.Context, accountID string, from, to core.Date) ([]core.Payment, error) {
	var out []core.Payment
	for _, p := range s.payments {
		if p.AccountID == accountID && p.Date.OnOrAfter(from) && p.Date.OnOrBefore(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubSource) ListCashMovements(context.Context, string, core.Date, core.Date) ([]core.CashMovement, error) {
	return nil, nil
}

func testAccounts() []core.Account {
	visa, err := core.Account{ID: "visa", Name: "Visa", Kind: core.CreditLine, ClosingDay: 23, DueDay: 5}.Normalize()
	if err != nil {
		panic(err)
	}
	cash, err := core.Account{ID: "cash", Name: "Cash", Kind: core.CashOrDebit}.Normalize()
	if err != nil {
		panic(err)
	}
	return []core.Account{visa, cash}
}

func eventAt(entity, action, accountID string, day time.Time) *amqp.LedgerEvent {
	e := amqp.NewLedgerEvent(entity, action, accountID, "x1")
	e.Timestamp = day
	return e
}

func TestHandleLedgerEventExportsLastClosedStatement(t *testing.T) {
	source := &stubSource{
		accounts: testAccounts(),
		occurrences: []core.InstallmentOccurrence{
			{PurchaseID: "p1", Number: 1, Date: core.NewDate(2024, 2, 15), Amount: core.Money{Cents: 33333}},
		},
	}
	writer := export.NewMemoryWriter()
	w := NewExportWorker(source, writer)

	event := eventAt(amqp.EntityPurchase, amqp.ActionCreated, "visa",
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, w.HandleLedgerEvent(context.Background(), event))

	got, ok := writer.Get("visa 2024-02")
	require.True(t, ok)
	assert.Equal(t, int64(33333), got.Statement.Total.Cents)
	assert.Equal(t, int64(33333), got.Outstanding.Cents)
}

func TestHandleLedgerEventReflectsPayments(t *testing.T) {
	source := &stubSource{
		accounts: testAccounts(),
		occurrences: []core.InstallmentOccurrence{
			{PurchaseID: "p1", Number: 1, Date: core.NewDate(2024, 2, 15), Amount: core.Money{Cents: 33333}},
		},
		payments: []core.Payment{
			{ID: "pay1", AccountID: "visa", Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 33333}},
		},
	}
	writer := export.NewMemoryWriter()
	w := NewExportWorker(source, writer)

	event := eventAt(amqp.EntityPayment, amqp.ActionCreated, "visa",
		time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, w.HandleLedgerEvent(context.Background(), event))

	got, ok := writer.Get("visa 2024-02")
	require.True(t, ok)
	assert.Equal(t, int64(0), got.Outstanding.Cents)
}

func TestHandleLedgerEventSkipsCashMovements(t *testing.T) {
	writer := export.NewMemoryWriter()
	w := NewExportWorker(&stubSource{accounts: testAccounts()}, writer)

	event := eventAt(amqp.EntityMovement, amqp.ActionCreated, "cash",
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, w.HandleLedgerEvent(context.Background(), event))
	assert.Equal(t, 0, writer.Size())
}

func TestExportAllCoversOnlyCreditAccounts(t *testing.T) {
	source := &stubSource{
		accounts: testAccounts(),
		occurrences: []core.InstallmentOccurrence{
			{PurchaseID: "p1", Number: 1, Date: core.NewDate(2024, 2, 15), Amount: core.Money{Cents: 10000}},
		},
	}
	writer := export.NewMemoryWriter()
	w := NewExportWorker(source, writer)

	require.NoError(t, w.ExportAll(context.Background(), core.NewDate(2024, 3, 1)))
	assert.Equal(t, 1, writer.Size())
	_, ok := writer.Get("visa 2024-02")
	assert.True(t, ok)
}
