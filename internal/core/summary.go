package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month: cash
// spending plus the card installments that fall in the month, with a
// per-category breakdown and the statement amounts due in the month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	CashTotal  Money
	CardTotal  Money
	DueTotal   Money
	ByCategory []CategoryAmount
}

// Total is cash plus card consumption for the month.
func (o MonthOverview) Total() Money {
	return o.CashTotal.Add(o.CardTotal)
}
