package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CashOrDebit AccountKind = "CASH_OR_DEBIT"
	CreditLine  AccountKind = "CREDIT_LINE"
)

// Documented defaults applied when an account leaves the cycle
// configuration absent.
const (
	DefaultClosingDay    = 25
	DefaultDueDay        = 5
	DefaultMinPaymentBps = 1000 // 10%
)

type (
	AccountKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// MinPaymentRule describes how the minimum payment for a statement is
	// derived: a percentage of the statement total in basis points, with an
	// optional fixed floor.
	MinPaymentRule struct {
		PercentBps int64
		Floor      *Money
	}

	// Account is read-only to the engine; it is created and edited by an
	// external configuration surface.
	Account struct {
		ID          string
		Name        string
		Kind        AccountKind
		ClosingDay  int
		DueDay      int
		CreditLimit *Money
		MinPayment  MinPaymentRule
	}

	// Purchase is immutable once created. Deleting it cascades to its
	// installment occurrences.
	Purchase struct {
		ID           string
		AccountID    string
		Date         Date
		Amount       Money
		Installments int
		Description  string
		Category     string
	}

	// InstallmentOccurrence is one dated, amortized slice of a purchase.
	// The occurrence amounts of a purchase always sum to the purchase
	// amount exactly.
	InstallmentOccurrence struct {
		PurchaseID string
		Number     int // 1..N
		Date       Date
		Amount     Money
	}

	// Payment settles (part of) a statement. StatementKey is resolved by
	// the reconciler, never supplied by the caller.
	Payment struct {
		ID           string
		AccountID    string
		Date         Date
		Amount       Money
		StatementKey string
	}

	CashMovement struct {
		ID          string
		AccountID   string
		Date        Date
		Amount      Money
		Description string
		Category    string
	}

	// StatementPeriod is the half-open interval (PrevClosing, Closing]
	// billed together, payable by DueDate. Periods of one account are
	// contiguous and non-overlapping.
	StatementPeriod struct {
		PrevClosing Date
		Closing     Date
		DueDate     Date
	}

	Statement struct {
		AccountID string
		Period    StatementPeriod
		Total     Money
		Items     []InstallmentOccurrence
	}

	// Balance is derived on demand, never stored. Utilization is nil when
	// the account has no credit limit configured; callers must handle the
	// undefined case instead of showing 0%.
	Balance struct {
		AccountID       string
		AsOf            Date
		Period          StatementPeriod
		StatementTotal  Money
		Outstanding     Money
		MinimumPayment  Money
		OpenConsumption Money
		Available       *Money
		Utilization     *float64
	}
)

var (
	ErrInvalidAccountConfig = errors.New("invalid account config")
	ErrInvalidPurchase      = errors.New("invalid purchase")
	ErrInvalidPayment       = errors.New("invalid payment")
	ErrInvalidMovement      = errors.New("invalid cash movement")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyDescription     = errors.New("empty description")
)

// NewDate creates a Date from year, month, day. The day is not clamped;
// time.Date normalization applies as usual.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddMonths moves the date n calendar months, keeping the day of month and
// clamping to the last day when the target month is shorter. time.AddDate
// would normalize Jan 31 + 1 month into March instead.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Time.Date()
	months := y*12 + int(m) - 1 + n
	year := months / 12
	month := months%12 + 1
	return ClampedDate(year, month, day)
}

// AddDays moves the date n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// OnOrBefore reports d <= other.
func (d Date) OnOrBefore(other Date) bool { return !d.After(other) }

// OnOrAfter reports d >= other.
func (d Date) OnOrAfter(other Date) bool { return !d.Before(other) }

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// DaysInMonth returns the length of a month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds a date clamping the day to the month length, so day 31
// in February yields the 28th (29th in leap years).
func ClampedDate(year, month, day int) Date {
	last := DaysInMonth(year, month)
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(year, month, day)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize applies documented defaults for absent cycle configuration and
// validates the rest. Out-of-range values are rejected, never coerced.
func (a Account) Normalize() (Account, error) {
	switch a.Kind {
	case CashOrDebit, CreditLine:
	default:
		return a, fmt.Errorf("%w: unknown kind %q", ErrInvalidAccountConfig, a.Kind)
	}
	if strings.TrimSpace(a.ID) == "" {
		return a, fmt.Errorf("%w: empty id", ErrInvalidAccountConfig)
	}
	if a.ClosingDay == 0 {
		a.ClosingDay = DefaultClosingDay
	}
	if a.DueDay == 0 {
		a.DueDay = DefaultDueDay
	}
	if a.ClosingDay < 1 || a.ClosingDay > 31 {
		return a, fmt.Errorf("%w: closing day %d outside 1-31", ErrInvalidAccountConfig, a.ClosingDay)
	}
	if a.DueDay < 1 || a.DueDay > 31 {
		return a, fmt.Errorf("%w: due day %d outside 1-31", ErrInvalidAccountConfig, a.DueDay)
	}
	if a.CreditLimit != nil && a.CreditLimit.Cents < 0 {
		return a, fmt.Errorf("%w: negative credit limit", ErrInvalidAccountConfig)
	}
	if a.MinPayment.PercentBps == 0 {
		a.MinPayment.PercentBps = DefaultMinPaymentBps
	}
	if a.MinPayment.PercentBps < 0 || a.MinPayment.PercentBps > 10000 {
		return a, fmt.Errorf("%w: minimum payment %d bps outside 0-10000", ErrInvalidAccountConfig, a.MinPayment.PercentBps)
	}
	if a.MinPayment.Floor != nil && a.MinPayment.Floor.Cents < 0 {
		return a, fmt.Errorf("%w: negative minimum payment floor", ErrInvalidAccountConfig)
	}
	return a, nil
}

func (p Purchase) Validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidPurchase)
	}
	if err := p.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPurchase, err)
	}
	if p.Amount.Cents <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidPurchase)
	}
	if p.Installments < 1 {
		return fmt.Errorf("%w: installment count %d", ErrInvalidPurchase, p.Installments)
	}
	if len(strings.TrimSpace(p.Description)) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPurchase, ErrEmptyDescription)
	}
	if len(p.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidPurchase)
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidPayment)
	}
	if err := p.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}
	if p.Amount.Cents <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidPayment)
	}
	return nil
}

func (m CashMovement) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidMovement)
	}
	if err := m.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMovement, err)
	}
	if m.Amount.Cents <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidMovement)
	}
	if len(strings.TrimSpace(m.Description)) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidMovement, ErrEmptyDescription)
	}
	return nil
}

// Contains reports whether a date falls inside the period, inclusive at the
// closing date: (PrevClosing, Closing].
func (p StatementPeriod) Contains(d Date) bool {
	return d.After(p.PrevClosing) && d.OnOrBefore(p.Closing)
}

// Key identifies a statement period the way statement references are keyed
// everywhere: "<account> <closing year>-<closing month>".
func (p StatementPeriod) Key(accountID string) string {
	return fmt.Sprintf("%s %04d-%02d", accountID, p.Closing.Year(), p.Closing.Month())
}

// MinimumDue derives the minimum payment for a statement total:
// max(floor, pct*total) when a floor is configured, else pct*total.
// Percentage math stays in integer cents with half-up rounding.
func (r MinPaymentRule) MinimumDue(total Money) Money {
	pct := (total.Cents*r.PercentBps + 5000) / 10000
	if r.Floor != nil && r.Floor.Cents > pct {
		return Money{Cents: r.Floor.Cents}
	}
	return Money{Cents: pct}
}
