package worker

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/billing"
	"gastos/internal/core"
	"gastos/internal/export"
)

// ExportWorker mirrors closed statements to an external surface. Every
// ledger event on a credit-line account triggers a re-export of the
// account's last closed statement, so the spreadsheet tracks purchases
// and payments as they land.
type ExportWorker struct {
	store  billing.TransactionSource
	writer export.StatementWriter
}

func NewExportWorker(store billing.TransactionSource, writer export.StatementWriter) *ExportWorker {
	return &ExportWorker{store: store, writer: writer}
}

// HandleLedgerEvent processes one store-write notification.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if event.Entity == amqp.EntityMovement {
		// Cash movements never appear on a statement.
		slog.DebugContext(ctx, "Skipping cash movement event", "account", event.AccountID)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"entity", event.Entity,
		"action", event.Action,
		"account", event.AccountID)

	account, err := w.store.GetAccount(ctx, event.AccountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if err := w.exportAccount(ctx, account, core.DateOf(event.Timestamp)); err != nil {
		return fmt.Errorf("export statement for %s: %w", account.ID, err)
	}
	return nil
}

// ExportAll re-exports the last closed statement of every credit-line
// account. Run at startup to recover from missed events.
func (w *ExportWorker) ExportAll(ctx context.Context, asOf core.Date) error {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	exported := 0
	failed := 0
	for _, account := range accounts {
		if account.Kind != core.CreditLine {
			continue
		}
		if err := w.exportAccount(ctx, account, asOf); err != nil {
			slog.ErrorContext(ctx, "Failed to export statement",
				"account", account.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"exported", exported, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, exported+failed)
	}
	return nil
}

func (w *ExportWorker) exportAccount(ctx context.Context, account core.Account, asOf core.Date) error {
	period := billing.LastClosedPeriod(account, asOf)

	occurrences, err := w.store.ListOccurrences(ctx, account.ID, period.PrevClosing.AddDays(1), period.Closing)
	if err != nil {
		return fmt.Errorf("list occurrences: %w", err)
	}
	payments, err := w.store.ListPayments(ctx, account.ID, period.Closing.AddDays(1), period.DueDate)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}

	stmt := billing.StatementFor(account, occurrences, period.Closing)
	outstanding := billing.Outstanding(stmt, payments)

	ref, err := w.writer.WriteStatement(ctx, account, stmt, outstanding)
	if err != nil {
		return fmt.Errorf("write statement: %w", err)
	}

	slog.InfoContext(ctx, "Exported statement",
		"key", stmt.Period.Key(account.ID),
		"total_cents", stmt.Total.Cents,
		"outstanding_cents", outstanding.Cents,
		"ref", ref)
	return nil
}
