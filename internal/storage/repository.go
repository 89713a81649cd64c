package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gastos/internal/billing"
	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the transaction store collaborator: accounts,
// purchases with their materialized installment occurrences, payments and
// cash movements.
type SQLiteRepository struct {
	db *sql.DB
}

var _ billing.TransactionSource = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Cascade from purchases to occurrences needs foreign keys on.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// UpsertAccount stores a normalized account configuration.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	normalized, err := a.Normalize()
	if err != nil {
		return err
	}

	var limit, floor sql.NullInt64
	if normalized.CreditLimit != nil {
		limit = sql.NullInt64{Int64: normalized.CreditLimit.Cents, Valid: true}
	}
	if normalized.MinPayment.Floor != nil {
		floor = sql.NullInt64{Int64: normalized.MinPayment.Floor.Cents, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, kind, closing_day, due_day, credit_limit_cents, min_payment_bps, min_payment_floor_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			closing_day = excluded.closing_day,
			due_day = excluded.due_day,
			credit_limit_cents = excluded.credit_limit_cents,
			min_payment_bps = excluded.min_payment_bps,
			min_payment_floor_cents = excluded.min_payment_floor_cents`,
		normalized.ID, normalized.Name, string(normalized.Kind),
		normalized.ClosingDay, normalized.DueDay,
		limit, normalized.MinPayment.PercentBps, floor)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// GetAccount implements billing.TransactionSource.
func (r *SQLiteRepository) GetAccount(ctx context.Context, accountID string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, closing_day, due_day, credit_limit_cents, min_payment_bps, min_payment_floor_cents
		FROM accounts WHERE id = ?`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListAccounts implements billing.TransactionSource.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, closing_day, due_day, credit_limit_cents, min_payment_bps, min_payment_floor_cents
		FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var kind string
	var limit, floor sql.NullInt64
	if err := row.Scan(&a.ID, &a.Name, &kind, &a.ClosingDay, &a.DueDay, &limit, &a.MinPayment.PercentBps, &floor); err != nil {
		return core.Account{}, err
	}
	a.Kind = core.AccountKind(kind)
	if limit.Valid {
		a.CreditLimit = &core.Money{Cents: limit.Int64}
	}
	if floor.Valid {
		a.MinPayment.Floor = &core.Money{Cents: floor.Int64}
	}
	return a, nil
}

// CreatePurchase stores a purchase together with its installment
// occurrences in one transaction; partial writes would desynchronize the
// occurrence invariant.
func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.Purchase, occurrences []core.InstallmentOccurrence) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, account_id, purchase_date, amount_cents, installments, description, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, p.Date.String(), p.Amount.Cents, p.Installments, p.Description, p.Category)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}

	for _, occ := range occurrences {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO installment_occurrences (purchase_id, number, occurrence_date, amount_cents)
			VALUES (?, ?, ?, ?)`,
			occ.PurchaseID, occ.Number, occ.Date.String(), occ.Amount.Cents)
		if err != nil {
			return fmt.Errorf("insert occurrence %d: %w", occ.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purchase: %w", err)
	}

	slog.InfoContext(ctx, "Purchase saved",
		"id", p.ID,
		"account", p.AccountID,
		"amount_cents", p.Amount.Cents,
		"installments", p.Installments)
	return nil
}

// DeletePurchase removes a purchase; its occurrences go with it through
// the FK cascade.
func (r *SQLiteRepository) DeletePurchase(ctx context.Context, purchaseID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, purchaseID)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete purchase rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("purchase %s: %w", purchaseID, ErrNotFound)
	}
	slog.InfoContext(ctx, "Purchase deleted", "id", purchaseID)
	return nil
}

// GetPurchase returns a purchase by id.
func (r *SQLiteRepository) GetPurchase(ctx context.Context, purchaseID string) (core.Purchase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, purchase_date, amount_cents, installments, description, category
		FROM purchases WHERE id = ?`, purchaseID)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Purchase{}, fmt.Errorf("purchase %s: %w", purchaseID, ErrNotFound)
	}
	if err != nil {
		return core.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// ListPurchases implements billing.TransactionSource.
func (r *SQLiteRepository) ListPurchases(ctx context.Context, accountID string, from, to core.Date) ([]core.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, purchase_date, amount_cents, installments, description, category
		FROM purchases
		WHERE account_id = ? AND purchase_date >= ? AND purchase_date <= ?
		ORDER BY purchase_date, id`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row rowScanner) (core.Purchase, error) {
	var p core.Purchase
	var date string
	if err := row.Scan(&p.ID, &p.AccountID, &date, &p.Amount.Cents, &p.Installments, &p.Description, &p.Category); err != nil {
		return core.Purchase{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Purchase{}, err
	}
	p.Date = d
	return p, nil
}

// ListOccurrences implements billing.TransactionSource. Occurrences are
// selected by their scheduled date, regardless of when the purchase was
// made.
func (r *SQLiteRepository) ListOccurrences(ctx context.Context, accountID string, from, to core.Date) ([]core.InstallmentOccurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.purchase_id, o.number, o.occurrence_date, o.amount_cents
		FROM installment_occurrences o
		JOIN purchases p ON p.id = o.purchase_id
		WHERE p.account_id = ? AND o.occurrence_date >= ? AND o.occurrence_date <= ?
		ORDER BY o.occurrence_date, o.purchase_id, o.number`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []core.InstallmentOccurrence
	for rows.Next() {
		var occ core.InstallmentOccurrence
		var date string
		if err := rows.Scan(&occ.PurchaseID, &occ.Number, &date, &occ.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence date: %w", err)
		}
		occ.Date = d
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

// CreatePayment stores a payment, including the statement key the
// reconciler resolved for it.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var key sql.NullString
	if p.StatementKey != "" {
		key = sql.NullString{String: p.StatementKey, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, account_id, payment_date, amount_cents, statement_key)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, p.Date.String(), p.Amount.Cents, key)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved",
		"id", p.ID,
		"account", p.AccountID,
		"amount_cents", p.Amount.Cents,
		"statement_key", p.StatementKey)
	return nil
}

// DeletePayment removes a payment by id.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, paymentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}
	slog.InfoContext(ctx, "Payment deleted", "id", paymentID)
	return nil
}

// GetPayment returns a payment by id.
func (r *SQLiteRepository) GetPayment(ctx context.Context, paymentID string) (core.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, payment_date, amount_cents, statement_key
		FROM payments WHERE id = ?`, paymentID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// ListPayments implements billing.TransactionSource.
func (r *SQLiteRepository) ListPayments(ctx context.Context, accountID string, from, to core.Date) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, payment_date, amount_cents, statement_key
		FROM payments
		WHERE account_id = ? AND payment_date >= ? AND payment_date <= ?
		ORDER BY payment_date, id`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (core.Payment, error) {
	var p core.Payment
	var date string
	var key sql.NullString
	if err := row.Scan(&p.ID, &p.AccountID, &date, &p.Amount.Cents, &key); err != nil {
		return core.Payment{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Payment{}, err
	}
	p.Date = d
	if key.Valid {
		p.StatementKey = key.String
	}
	return p, nil
}

// CreateCashMovement stores a cash or debit spending row.
func (r *SQLiteRepository) CreateCashMovement(ctx context.Context, m core.CashMovement) error {
	if err := m.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cash_movements (id, account_id, movement_date, amount_cents, description, category)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.AccountID, m.Date.String(), m.Amount.Cents, m.Description, m.Category)
	if err != nil {
		return fmt.Errorf("insert cash movement: %w", err)
	}

	slog.InfoContext(ctx, "Cash movement saved",
		"id", m.ID,
		"account", m.AccountID,
		"amount_cents", m.Amount.Cents)
	return nil
}

// ListCashMovements implements billing.TransactionSource.
func (r *SQLiteRepository) ListCashMovements(ctx context.Context, accountID string, from, to core.Date) ([]core.CashMovement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, movement_date, amount_cents, description, category
		FROM cash_movements
		WHERE account_id = ? AND movement_date >= ? AND movement_date <= ?
		ORDER BY movement_date, id`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	defer rows.Close()

	var movements []core.CashMovement
	for rows.Next() {
		var m core.CashMovement
		var date string
		if err := rows.Scan(&m.ID, &m.AccountID, &date, &m.Amount.Cents, &m.Description, &m.Category); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("scan cash movement date: %w", err)
		}
		m.Date = d
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
