package billing

import "gastos/internal/core"

// Project combines the last closed statement, matched payments and the
// account configuration into the user-facing balance figures at asOf.
//
// Utilization is (open-cycle consumption + outstanding) / creditLimit and
// stays nil when no limit is configured; the caller decides how to render
// the undefined case. Available credit is derived the same way and clamped
// at zero.
func Project(account core.Account, occurrences []core.InstallmentOccurrence, payments []core.Payment, asOf core.Date) core.Balance {
	stmt := StatementFor(account, occurrences, ClosingOnOrBefore(account, asOf))
	outstanding := Outstanding(stmt, payments)
	open := OpenConsumption(account, occurrences, asOf)

	b := core.Balance{
		AccountID:       account.ID,
		AsOf:            asOf,
		Period:          stmt.Period,
		StatementTotal:  stmt.Total,
		Outstanding:     outstanding,
		MinimumPayment:  account.MinPayment.MinimumDue(stmt.Total),
		OpenConsumption: open,
	}

	if account.CreditLimit != nil && account.CreditLimit.Cents > 0 {
		consumed := open.Add(outstanding)
		util := float64(consumed.Cents) / float64(account.CreditLimit.Cents)
		b.Utilization = &util
		available := account.CreditLimit.Sub(consumed).ClampZero()
		b.Available = &available
	}
	return b
}
