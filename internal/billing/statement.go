package billing

import (
	"sort"

	"gastos/internal/core"
)

// StatementFor aggregates the occurrences falling inside the period ending
// at the given closing date. Occurrences from any purchase on the account
// qualify, regardless of when the purchase itself was made; only the
// scheduled date decides the bucket.
func StatementFor(account core.Account, occurrences []core.InstallmentOccurrence, closing core.Date) core.Statement {
	period := PeriodEnding(account, closing)

	var items []core.InstallmentOccurrence
	var total int64
	for _, occ := range occurrences {
		if period.Contains(occ.Date) {
			items = append(items, occ)
			total += occ.Amount.Cents
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].PurchaseID < items[j].PurchaseID
	})

	return core.Statement{
		AccountID: account.ID,
		Period:    period,
		Total:     core.Money{Cents: total},
		Items:     items,
	}
}

// StatementsInRange returns every statement whose due date falls inside
// [from, to]. This answers "what must be paid this calendar month" without
// requiring the caller to do cycle math.
func StatementsInRange(account core.Account, occurrences []core.InstallmentOccurrence, from, to core.Date) []core.Statement {
	if to.Before(from) {
		return nil
	}

	// Due dates trail closings by roughly one month, so start two cycles
	// before the window and walk forward until the due date passes it.
	closing := ClosingOnOrBefore(account, from.AddMonths(-2))

	var out []core.Statement
	for {
		due := DueDateFor(account, closing)
		if due.After(to) {
			break
		}
		if due.OnOrAfter(from) {
			out = append(out, StatementFor(account, occurrences, closing))
		}
		closing = NextClosing(account, closing)
	}
	return out
}

// OpenConsumption sums the occurrences charged to the cycle still open at
// asOf: scheduled after the last closing, up to and including asOf.
func OpenConsumption(account core.Account, occurrences []core.InstallmentOccurrence, asOf core.Date) core.Money {
	closing := ClosingOnOrBefore(account, asOf)
	var total int64
	for _, occ := range occurrences {
		if occ.Date.After(closing) && occ.Date.OnOrBefore(asOf) {
			total += occ.Amount.Cents
		}
	}
	return core.Money{Cents: total}
}

// UpcomingOccurrences returns occurrences scheduled strictly after asOf,
// ordered by date, for "upcoming installments" displays.
func UpcomingOccurrences(occurrences []core.InstallmentOccurrence, asOf core.Date) []core.InstallmentOccurrence {
	var out []core.InstallmentOccurrence
	for _, occ := range occurrences {
		if occ.Date.After(asOf) {
			out = append(out, occ)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].PurchaseID != out[j].PurchaseID {
			return out[i].PurchaseID < out[j].PurchaseID
		}
		return out[i].Number < out[j].Number
	})
	return out
}
