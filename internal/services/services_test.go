package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/core"
)

// fakeStore is an in-memory Store with the same inclusive [from, to]
// window semantics as the SQLite repository.
type fakeStore struct {
	accounts    map[string]core.Account
	purchases   map[string]core.Purchase
	occurrences map[string][]core.InstallmentOccurrence // by purchase id
	payments    map[string]core.Payment
	movements   []core.CashMovement
}

func newFakeStore(accounts ...core.Account) *fakeStore {
	s := &fakeStore{
		accounts:    make(map[string]core.Account),
		purchases:   make(map[string]core.Purchase),
		occurrences: make(map[string][]core.InstallmentOccurrence),
		payments:    make(map[string]core.Payment),
	}
	for _, a := range accounts {
		normalized, err := a.Normalize()
		if err != nil {
			panic(err)
		}
		s.accounts[a.ID] = normalized
	}
	return s
}

func (s *fakeStore) GetAccount(_ context.Context, id string) (core.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: not found", id)
	}
	return a, nil
}

func (s *fakeStore) ListAccounts(context.Context) ([]core.Account, error) {
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreatePurchase(_ context.Context, p core.Purchase, occurrences []core.InstallmentOccurrence) error {
	s.purchases[p.ID] = p
	s.occurrences[p.ID] = occurrences
	return nil
}

func (s *fakeStore) DeletePurchase(_ context.Context, id string) error {
	if _, ok := s.purchases[id]; !ok {
		return fmt.Errorf("purchase %s: not found", id)
	}
	delete(s.purchases, id)
	delete(s.occurrences, id)
	return nil
}

func (s *fakeStore) GetPurchase(_ context.Context, id string) (core.Purchase, error) {
	p, ok := s.purchases[id]
	if !ok {
		return core.Purchase{}, fmt.Errorf("purchase %s: not found", id)
	}
	return p, nil
}

func (s *fakeStore) ListPurchases(_ context.Context, accountID string, from, to core.Date) ([]core.Purchase, error) {
	var out []core.Purchase
	for _, p := range s.purchases {
		if p.AccountID == accountID && p.Date.OnOrAfter(from) && p.Date.OnOrBefore(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListOccurrences(_ context.Context, accountID string, from, to core.Date) ([]core.InstallmentOccurrence, error) {
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
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].PurchaseID < out[j].PurchaseID
	})
	return out, nil
}

func (s *fakeStore) CreatePayment(_ context.Context, p core.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *fakeStore) DeletePayment(_ context.Context, id string) error {
	if _, ok := s.payments[id]; !ok {
		return fmt.Errorf("payment %s: not found", id)
	}
	delete(s.payments, id)
	return nil
}

func (s *fakeStore) GetPayment(_ context.Context, id string) (core.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, fmt.Errorf("payment %s: not found", id)
	}
	return p, nil
}

func (s *fakeStore) ListPayments(_ context.Context, accountID string, from, to core.Date) ([]core.Payment, error) {
	var out []core.Payment
	for _, p := range s.payments {
		if p.AccountID == accountID && p.Date.OnOrAfter(from) && p.Date.OnOrBefore(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateCashMovement(_ context.Context, m core.CashMovement) error {
	s.movements = append(s.movements, m)
	return nil
}

func (s *fakeStore) ListCashMovements(_ context.Context, accountID string, from, to core.Date) ([]core.CashMovement, error) {
	var out []core.CashMovement
	for _, m := range s.movements {
		if m.AccountID == accountID && m.Date.OnOrAfter(from) && m.Date.OnOrBefore(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []*amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func testCache() *cache.StatementCache {
	return cache.NewStatementCache(64, time.Minute)
}

// visaAccount is the card used across the service tests: closes on the
// 23rd, due on the 5th, 10,000.00 limit.
func visaAccount() core.Account {
	limit := core.Money{Cents: 1000000}
	return core.Account{
		ID:          "visa",
		Name:        "Visa",
		Kind:        core.CreditLine,
		ClosingDay:  23,
		DueDay:      5,
		CreditLimit: &limit,
	}
}

func cashAccount() core.Account {
	return core.Account{ID: "cash", Name: "Cash", Kind: core.CashOrDebit}
}

func date(y, m, d int) core.Date { return core.NewDate(y, m, d) }
