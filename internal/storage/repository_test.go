package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gastos/internal/billing"
	"gastos/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository) core.Account {
	t.Helper()
	acc := core.Account{ID: "visa", Name: "Visa", Kind: core.CreditLine, ClosingDay: 23, DueDay: 5}
	if err := repo.UpsertAccount(context.Background(), acc); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	normalized, err := acc.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return normalized
}

func TestAccountRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	limit := core.Money{Cents: 500000}
	acc := core.Account{
		ID: "master", Name: "Master", Kind: core.CreditLine,
		ClosingDay: 28, DueDay: 10, CreditLimit: &limit,
	}
	if err := repo.UpsertAccount(ctx, acc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetAccount(ctx, "master")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClosingDay != 28 || got.DueDay != 10 {
		t.Fatalf("cycle config lost: %+v", got)
	}
	if got.CreditLimit == nil || got.CreditLimit.Cents != 500000 {
		t.Fatalf("credit limit lost: %+v", got.CreditLimit)
	}
	if got.MinPayment.PercentBps != core.DefaultMinPaymentBps {
		t.Fatalf("default min payment not applied: %d", got.MinPayment.PercentBps)
	}

	if _, err := repo.GetAccount(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertAccountRejectsInvalidConfig(t *testing.T) {
	repo := testRepo(t)
	bad := core.Account{ID: "x", Kind: core.CreditLine, ClosingDay: 45}
	if err := repo.UpsertAccount(context.Background(), bad); !errors.Is(err, core.ErrInvalidAccountConfig) {
		t.Fatalf("expected ErrInvalidAccountConfig, got %v", err)
	}
}

func TestPurchaseWithOccurrencesRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedAccount(t, repo)

	p := core.Purchase{
		ID: "p1", AccountID: "visa",
		Date:         core.NewDate(2024, 2, 15),
		Amount:       core.Money{Cents: 100000},
		Installments: 3,
		Description:  "tv",
	}
	occs, err := billing.Expand(p)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if err := repo.CreatePurchase(ctx, p, occs); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	listed, err := repo.ListOccurrences(ctx, "visa", core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	if err != nil {
		t.Fatalf("list occurrences: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(listed))
	}
	var sum int64
	for _, occ := range listed {
		sum += occ.Amount.Cents
	}
	if sum != 100000 {
		t.Fatalf("occurrence amounts sum to %d, want 100000", sum)
	}

	// A date window only returns the occurrences scheduled inside it.
	window, err := repo.ListOccurrences(ctx, "visa", core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("list occurrences window: %v", err)
	}
	if len(window) != 1 || !window[0].Date.Equal(core.NewDate(2024, 3, 15)) {
		t.Fatalf("unexpected window result: %+v", window)
	}
}

func TestDeletePurchaseCascadesToOccurrences(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedAccount(t, repo)

	p := core.Purchase{
		ID: "p1", AccountID: "visa",
		Date:         core.NewDate(2024, 2, 15),
		Amount:       core.Money{Cents: 60000},
		Installments: 6,
		Description:  "fridge",
	}
	occs, err := billing.Expand(p)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if err := repo.CreatePurchase(ctx, p, occs); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	if err := repo.DeletePurchase(ctx, "p1"); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}

	left, err := repo.ListOccurrences(ctx, "visa", core.NewDate(2024, 1, 1), core.NewDate(2025, 12, 31))
	if err != nil {
		t.Fatalf("list occurrences: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected cascade to remove occurrences, %d left", len(left))
	}

	if err := repo.DeletePurchase(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPaymentRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedAccount(t, repo)

	pay := core.Payment{
		ID: "pay1", AccountID: "visa",
		Date:         core.NewDate(2024, 3, 1),
		Amount:       core.Money{Cents: 33333},
		StatementKey: "visa 2024-02",
	}
	if err := repo.CreatePayment(ctx, pay); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	listed, err := repo.ListPayments(ctx, "visa", core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(listed) != 1 || listed[0].StatementKey != "visa 2024-02" {
		t.Fatalf("unexpected payments: %+v", listed)
	}
}

func TestCashMovementRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	seedAccount(t, repo)

	m := core.CashMovement{
		ID: "m1", AccountID: "visa",
		Date:        core.NewDate(2024, 3, 10),
		Amount:      core.Money{Cents: 4500},
		Description: "groceries",
		Category:    "food",
	}
	if err := repo.CreateCashMovement(ctx, m); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	listed, err := repo.ListCashMovements(ctx, "visa", core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(listed) != 1 || listed[0].Amount.Cents != 4500 {
		t.Fatalf("unexpected movements: %+v", listed)
	}
}
