package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/core"
)

// seedLaptop stores a 1000.00 purchase in 3 installments dated Jan 15:
// occurrences Jan 15 / Feb 15 (333.33 each) and Mar 15 (333.34).
func seedLaptop(t *testing.T, store *fakeStore) core.Purchase {
	t.Helper()
	svc := NewCardService(store, &fakePublisher{}, nil)
	p, err := svc.CreatePurchase(context.Background(), core.Purchase{
		AccountID:    "visa",
		Date:         date(2024, 1, 15),
		Amount:       core.Money{Cents: 100000},
		Installments: 3,
		Description:  "laptop",
		Category:     "tech",
	})
	require.NoError(t, err)
	return p
}

func TestStatementForPicksOnlyPeriodOccurrences(t *testing.T) {
	store := newFakeStore(visaAccount())
	seedLaptop(t, store)
	svc := NewBalanceService(store, testCache())

	// The Feb statement covers (Jan 23, Feb 23]; only the Feb 15
	// installment falls inside.
	stmt, err := svc.StatementFor(context.Background(), "visa", date(2024, 2, 23))
	require.NoError(t, err)
	assert.Equal(t, int64(33333), stmt.Total.Cents)
	require.Len(t, stmt.Items, 1)
	assert.Equal(t, 2, stmt.Items[0].Number)
	assert.Equal(t, date(2024, 2, 23), stmt.Period.Closing)
	assert.Equal(t, date(2024, 3, 5), stmt.Period.DueDate)
}

func TestStatementForCachesByPaymentsSnapshot(t *testing.T) {
	store := newFakeStore(visaAccount())
	seedLaptop(t, store)
	statements := testCache()
	svc := NewBalanceService(store, statements)

	_, err := svc.StatementFor(context.Background(), "visa", date(2024, 2, 23))
	require.NoError(t, err)
	require.Equal(t, 1, statements.Size())

	// Same question again hits the cache instead of adding an entry.
	_, err = svc.StatementFor(context.Background(), "visa", date(2024, 2, 23))
	require.NoError(t, err)
	assert.Equal(t, 1, statements.Size())

	// A payment inside the window changes the snapshot and forces a
	// recomputation under a new key.
	require.NoError(t, store.CreatePayment(context.Background(), core.Payment{
		ID: "pay1", AccountID: "visa", Date: date(2024, 3, 1), Amount: core.Money{Cents: 10000},
	}))
	_, err = svc.StatementFor(context.Background(), "visa", date(2024, 2, 23))
	require.NoError(t, err)
	assert.Equal(t, 2, statements.Size())
}

func TestProjectWithPayments(t *testing.T) {
	store := newFakeStore(visaAccount())
	seedLaptop(t, store)
	svc := NewBalanceService(store, testCache())

	b, err := svc.Project(context.Background(), "visa", date(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(33333), b.StatementTotal.Cents)
	assert.Equal(t, int64(33333), b.Outstanding.Cents)
	require.NotNil(t, b.Utilization)
	assert.InDelta(t, 0.033333, *b.Utilization, 0.0001)

	// Paying the statement in full inside (closing, due] zeroes the
	// outstanding amount.
	require.NoError(t, store.CreatePayment(context.Background(), core.Payment{
		ID: "pay1", AccountID: "visa", Date: date(2024, 3, 2), Amount: core.Money{Cents: 33333},
	}))
	b, err = svc.Project(context.Background(), "visa", date(2024, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Outstanding.Cents)
}

func TestProjectAllSkipsCashAccounts(t *testing.T) {
	store := newFakeStore(visaAccount(), cashAccount())
	seedLaptop(t, store)
	svc := NewBalanceService(store, testCache())

	balances, err := svc.ProjectAll(context.Background(), date(2024, 3, 1))
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "visa", balances[0].AccountID)
}

func TestStatementsDueIn(t *testing.T) {
	store := newFakeStore(visaAccount())
	seedLaptop(t, store)
	svc := NewBalanceService(store, testCache())

	// March contains only the Feb statement's due date (Mar 5); the March
	// statement is due Apr 5.
	stmts, err := svc.StatementsDueIn(context.Background(), "visa", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, date(2024, 2, 23), stmts[0].Period.Closing)
	assert.Equal(t, int64(33333), stmts[0].Total.Cents)
}

func TestUpcomingInstallments(t *testing.T) {
	store := newFakeStore(visaAccount())
	seedLaptop(t, store)
	svc := NewBalanceService(store, testCache())

	occs, err := svc.UpcomingInstallments(context.Background(), "visa", date(2024, 2, 1), 12)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, date(2024, 2, 15), occs[0].Date)
	assert.Equal(t, date(2024, 3, 15), occs[1].Date)
	assert.Equal(t, int64(33334), occs[1].Amount.Cents)
}

func TestMonthOverview(t *testing.T) {
	store := newFakeStore(visaAccount(), cashAccount())
	seedLaptop(t, store)
	require.NoError(t, store.CreateCashMovement(context.Background(), core.CashMovement{
		ID: "m1", AccountID: "cash", Date: date(2024, 3, 10),
		Amount: core.Money{Cents: 2500}, Description: "lunch", Category: "food",
	}))
	svc := NewBalanceService(store, testCache())

	overview, err := svc.MonthOverview(context.Background(), 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), overview.CashTotal.Cents)
	// The Mar 15 installment is the month's card spending.
	assert.Equal(t, int64(33334), overview.CardTotal.Cents)
	// The Feb statement (due Mar 5) is still unpaid.
	assert.Equal(t, int64(33333), overview.DueTotal.Cents)

	require.Len(t, overview.ByCategory, 2)
	assert.Equal(t, "tech", overview.ByCategory[0].Name)
	assert.Equal(t, int64(33334), overview.ByCategory[0].Amount.Cents)
	assert.Equal(t, "food", overview.ByCategory[1].Name)
	assert.Equal(t, int64(2500), overview.ByCategory[1].Amount.Cents)
}
