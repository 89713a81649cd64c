// Package billing implements the statement-cycle engine: cycle date
// arithmetic, installment expansion, statement aggregation, payment
// reconciliation and balance projection.
//
// Everything here is a pure function over immutable inputs. One boundary
// rule is applied throughout: a date falling exactly on a closing date
// belongs to the period ending that date, so every period is the half-open
// interval (previousClosing, closing].
package billing

import (
	"errors"
	"fmt"

	"gastos/internal/core"
)

// ErrAmbiguousBoundary signals that a date failed to map to exactly one
// statement period. It is a programming-error assertion, not a user-facing
// failure; it can only trip if the boundary rule is applied inconsistently.
var ErrAmbiguousBoundary = errors.New("date does not map to exactly one statement period")

// nominalClosing is the closing date for a given year+month: the account's
// closing day clamped to the month length, so closing day 31 in February
// yields Feb 28 (29 in leap years).
func nominalClosing(account core.Account, year, month int) core.Date {
	return core.ClampedDate(year, month, account.ClosingDay)
}

// ClosingOnOrBefore returns the latest closing date <= ref.
func ClosingOnOrBefore(account core.Account, ref core.Date) core.Date {
	c := nominalClosing(account, ref.Year(), ref.Month())
	if c.OnOrBefore(ref) {
		return c
	}
	prev := ref.AddMonths(-1)
	return nominalClosing(account, prev.Year(), prev.Month())
}

// ClosingOnOrAfter returns the earliest closing date >= ref.
func ClosingOnOrAfter(account core.Account, ref core.Date) core.Date {
	c := nominalClosing(account, ref.Year(), ref.Month())
	if c.OnOrAfter(ref) {
		return c
	}
	next := ref.AddMonths(1)
	return nominalClosing(account, next.Year(), next.Month())
}

// PreviousClosing returns the closing one cycle before the given closing.
func PreviousClosing(account core.Account, closing core.Date) core.Date {
	prev := closing.AddMonths(-1)
	return nominalClosing(account, prev.Year(), prev.Month())
}

// NextClosing returns the closing one cycle after the given closing.
func NextClosing(account core.Account, closing core.Date) core.Date {
	next := closing.AddMonths(1)
	return nominalClosing(account, next.Year(), next.Month())
}

// DueDateFor computes the payment due date for a statement closing: the
// account's due day in the month after the closing month, clamped.
func DueDateFor(account core.Account, closing core.Date) core.Date {
	next := closing.AddMonths(1)
	return core.ClampedDate(next.Year(), next.Month(), account.DueDay)
}

// PeriodEnding builds the full statement period for a given closing date.
func PeriodEnding(account core.Account, closing core.Date) core.StatementPeriod {
	return core.StatementPeriod{
		PrevClosing: PreviousClosing(account, closing),
		Closing:     closing,
		DueDate:     DueDateFor(account, closing),
	}
}

// PeriodFor returns the single statement period containing d. The returned
// period always satisfies prevClosing < d <= closing; a violation means the
// cycle math is inconsistent and surfaces as ErrAmbiguousBoundary.
func PeriodFor(account core.Account, d core.Date) (core.StatementPeriod, error) {
	period := PeriodEnding(account, ClosingOnOrAfter(account, d))
	if !period.Contains(d) {
		return core.StatementPeriod{}, fmt.Errorf("%w: %s against closing day %d", ErrAmbiguousBoundary, d, account.ClosingDay)
	}
	return period, nil
}

// CurrentPeriod is the open cycle at ref: the period whose closing is the
// next closing on or after ref.
func CurrentPeriod(account core.Account, ref core.Date) core.StatementPeriod {
	return PeriodEnding(account, ClosingOnOrAfter(account, ref))
}

// LastClosedPeriod is the most recently closed cycle at ref, the one whose
// payment window may still be open.
func LastClosedPeriod(account core.Account, ref core.Date) core.StatementPeriod {
	return PeriodEnding(account, ClosingOnOrBefore(account, ref))
}
