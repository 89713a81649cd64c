package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/billing"
	"gastos/internal/cache"
	"gastos/internal/core"
)

// Store is the write side of the transaction store, on top of the read
// port the billing engine consumes.
type Store interface {
	billing.TransactionSource
	CreatePurchase(ctx context.Context, p core.Purchase, occurrences []core.InstallmentOccurrence) error
	DeletePurchase(ctx context.Context, purchaseID string) error
	GetPurchase(ctx context.Context, purchaseID string) (core.Purchase, error)
	CreatePayment(ctx context.Context, p core.Payment) error
	DeletePayment(ctx context.Context, paymentID string) error
	GetPayment(ctx context.Context, paymentID string) (core.Payment, error)
	CreateCashMovement(ctx context.Context, m core.CashMovement) error
}

// EventPublisher notifies other processes about store writes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// CardService orchestrates ledger writes: it validates, expands
// installments, persists, invalidates cached statements and publishes
// ledger events for downstream consumers.
type CardService struct {
	store     Store
	publisher EventPublisher
	cache     *cache.StatementCache
}

func NewCardService(store Store, publisher EventPublisher, statements *cache.StatementCache) *CardService {
	return &CardService{
		store:     store,
		publisher: publisher,
		cache:     statements,
	}
}

// CreatePurchase validates and persists a purchase together with its
// installment occurrences, then notifies downstream consumers. Purchases
// with more than one installment require a credit-line account.
func (s *CardService) CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if err := p.Validate(); err != nil {
		return core.Purchase{}, err
	}

	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("load account: %w", err)
	}
	if account.Kind != core.CreditLine {
		return core.Purchase{}, fmt.Errorf("%w: account %s is not a credit line", core.ErrInvalidPurchase, p.AccountID)
	}

	occurrences, err := billing.Expand(p)
	if err != nil {
		return core.Purchase{}, err
	}

	if err := s.store.CreatePurchase(ctx, p, occurrences); err != nil {
		return core.Purchase{}, fmt.Errorf("save purchase: %w", err)
	}

	s.invalidate(p.AccountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityPurchase, amqp.ActionCreated, p.AccountID, p.ID))
	return p, nil
}

// DeletePurchase removes a purchase; the store cascades to its
// occurrences.
func (s *CardService) DeletePurchase(ctx context.Context, purchaseID string) error {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("load purchase: %w", err)
	}
	if err := s.store.DeletePurchase(ctx, purchaseID); err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}

	s.invalidate(p.AccountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityPurchase, amqp.ActionDeleted, p.AccountID, purchaseID))
	return nil
}

// RecordPayment resolves the statement the payment settles and persists
// it. A payment outside any open payment window is stored unattributed.
func (s *CardService) RecordPayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}

	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("load account: %w", err)
	}

	// The candidate statement is the last one closed before the payment;
	// the payment settles it only if it lands inside (closing, dueDate].
	period := billing.LastClosedPeriod(account, p.Date)
	p.StatementKey = ""
	if p.Date.After(period.Closing) && p.Date.OnOrBefore(period.DueDate) {
		p.StatementKey = period.Key(account.ID)
	}

	if err := s.store.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("save payment: %w", err)
	}

	if p.StatementKey == "" {
		slog.InfoContext(ctx, "Payment outside any payment window, stored unattributed",
			"id", p.ID, "account", p.AccountID, "date", p.Date.String())
	}

	s.invalidate(p.AccountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityPayment, amqp.ActionCreated, p.AccountID, p.ID))
	return p, nil
}

// DeletePayment removes a payment.
func (s *CardService) DeletePayment(ctx context.Context, paymentID string) error {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	if err := s.store.DeletePayment(ctx, paymentID); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}

	s.invalidate(p.AccountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityPayment, amqp.ActionDeleted, p.AccountID, paymentID))
	return nil
}

// CreateCashMovement persists a cash or debit spending row.
func (s *CardService) CreateCashMovement(ctx context.Context, m core.CashMovement) (core.CashMovement, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if err := m.Validate(); err != nil {
		return core.CashMovement{}, err
	}
	if _, err := s.store.GetAccount(ctx, m.AccountID); err != nil {
		return core.CashMovement{}, fmt.Errorf("load account: %w", err)
	}
	if err := s.store.CreateCashMovement(ctx, m); err != nil {
		return core.CashMovement{}, fmt.Errorf("save cash movement: %w", err)
	}

	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntityMovement, amqp.ActionCreated, m.AccountID, m.ID))
	return m, nil
}

func (s *CardService) invalidate(accountID string) {
	if s.cache != nil {
		s.cache.Invalidate(accountID)
	}
}

func (s *CardService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping ledger event",
			"entity", event.Entity, "action", event.Action)
		return
	}
	// Writes already committed locally; a publish failure must not fail
	// the request.
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"entity", event.Entity,
			"action", event.Action,
			"account", event.AccountID,
			"error", err)
	}
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("generate id: %v", err))
	}
	return hex.EncodeToString(b)
}
