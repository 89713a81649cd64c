package billing

import (
	"fmt"

	"gastos/internal/core"
)

// Expand splits a purchase into its installment occurrences.
//
// A single-installment purchase yields one occurrence at the purchase date
// for the full amount. For N > 1, the first N-1 occurrences carry
// floor(total/N) cents and the last absorbs the remainder, so the
// occurrence amounts always reconstruct the purchase total exactly.
//
// Occurrence i (0-based) is dated purchaseDate + i calendar months with the
// day clamped to month length. Scheduling is by calendar month, not by
// statement cycle: the cycle assignment happens later, when occurrences are
// bucketed into periods.
func Expand(p core.Purchase) ([]core.InstallmentOccurrence, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("expand purchase: %w", err)
	}

	n := int64(p.Installments)
	per := p.Amount.Cents / n
	last := p.Amount.Cents - per*(n-1)

	occurrences := make([]core.InstallmentOccurrence, p.Installments)
	for i := range occurrences {
		amount := per
		if i == p.Installments-1 {
			amount = last
		}
		occurrences[i] = core.InstallmentOccurrence{
			PurchaseID: p.ID,
			Number:     i + 1,
			Date:       p.Date.AddMonths(i),
			Amount:     core.Money{Cents: amount},
		}
	}
	return occurrences, nil
}
