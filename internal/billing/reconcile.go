package billing

import "gastos/internal/core"

// SettlesStatement reports whether a payment is attributed to a statement:
// its date must fall in the payment window (closing, dueDate].
func SettlesStatement(stmt core.Statement, p core.Payment) bool {
	return p.AccountID == stmt.AccountID &&
		p.Date.After(stmt.Period.Closing) &&
		p.Date.OnOrBefore(stmt.Period.DueDate)
}

// Attribute resolves the StatementKey on every payment that settles the
// statement and returns the annotated copies. Payments outside the window
// are returned unchanged.
func Attribute(stmt core.Statement, payments []core.Payment) []core.Payment {
	out := make([]core.Payment, len(payments))
	for i, p := range payments {
		if SettlesStatement(stmt, p) {
			p.StatementKey = stmt.Period.Key(stmt.AccountID)
		}
		out[i] = p
	}
	return out
}

// PaidAgainst sums the payments attributed to the statement. Multiple
// partial payments in the window all count.
func PaidAgainst(stmt core.Statement, payments []core.Payment) core.Money {
	var total int64
	for _, p := range payments {
		if SettlesStatement(stmt, p) {
			total += p.Amount.Cents
		}
	}
	return core.Money{Cents: total}
}

// Outstanding is the amount still owed on a statement after matched
// payments: max(total - paid, 0). Overpayment clamps to zero; it is not
// carried forward as credit.
func Outstanding(stmt core.Statement, payments []core.Payment) core.Money {
	return stmt.Total.Sub(PaidAgainst(stmt, payments)).ClampZero()
}
