package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"gastos/internal/billing"
	"gastos/internal/cache"
	"gastos/internal/core"
)

// occurrenceLookback bounds how far back purchases can still produce
// occurrences inside a queried window: 24 installments plus slack.
const occurrenceLookback = 25 // months

// BalanceService answers the read-side questions: statement totals,
// outstanding balances, projections and monthly overviews. Every answer is
// recomputed from store data through the billing engine; the statement
// cache only short-circuits identical recomputations and is invalidated by
// the write path on every store change.
type BalanceService struct {
	store      billing.TransactionSource
	statements *cache.StatementCache
}

func NewBalanceService(store billing.TransactionSource, statements *cache.StatementCache) *BalanceService {
	return &BalanceService{store: store, statements: statements}
}

// StatementFor returns the statement for the period containing ref. Pass
// the closing date itself to address a specific statement.
func (s *BalanceService) StatementFor(ctx context.Context, accountID string, ref core.Date) (core.Statement, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Statement{}, fmt.Errorf("load account: %w", err)
	}
	return s.statementFor(ctx, account, billing.ClosingOnOrAfter(account, ref))
}

func (s *BalanceService) statementFor(ctx context.Context, account core.Account, closing core.Date) (core.Statement, error) {
	period := billing.PeriodEnding(account, closing)

	payments, err := s.store.ListPayments(ctx, account.ID, period.Closing.AddDays(1), period.DueDate)
	if err != nil {
		return core.Statement{}, fmt.Errorf("list payments: %w", err)
	}

	if s.statements != nil {
		if stmt, ok := s.statements.Get(account.ID, closing, payments); ok {
			return stmt, nil
		}
	}

	occurrences, err := s.store.ListOccurrences(ctx, account.ID, period.PrevClosing.AddDays(1), period.Closing)
	if err != nil {
		return core.Statement{}, fmt.Errorf("list occurrences: %w", err)
	}

	stmt := billing.StatementFor(account, occurrences, closing)
	if s.statements != nil {
		s.statements.Set(account.ID, closing, payments, stmt)
	}
	return stmt, nil
}

// Accounts lists every configured account.
func (s *BalanceService) Accounts(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

// Project computes the balance snapshot for one account at asOf.
func (s *BalanceService) Project(ctx context.Context, accountID string, asOf core.Date) (core.Balance, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("load account: %w", err)
	}
	return s.project(ctx, account, asOf)
}

func (s *BalanceService) project(ctx context.Context, account core.Account, asOf core.Date) (core.Balance, error) {
	period := billing.LastClosedPeriod(account, asOf)

	occurrences, err := s.store.ListOccurrences(ctx, account.ID, period.PrevClosing.AddDays(1), asOf)
	if err != nil {
		return core.Balance{}, fmt.Errorf("list occurrences: %w", err)
	}
	payments, err := s.store.ListPayments(ctx, account.ID, period.Closing.AddDays(1), period.DueDate)
	if err != nil {
		return core.Balance{}, fmt.Errorf("list payments: %w", err)
	}

	return billing.Project(account, occurrences, payments, asOf), nil
}

// ProjectAll computes balance snapshots for every credit-line account.
// Accounts are independent, so the projections run in parallel.
func (s *BalanceService) ProjectAll(ctx context.Context, asOf core.Date) ([]core.Balance, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var cards []core.Account
	for _, a := range accounts {
		if a.Kind == core.CreditLine {
			cards = append(cards, a)
		}
	}

	balances := make([]core.Balance, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	for i, account := range cards {
		g.Go(func() error {
			b, err := s.project(gctx, account, asOf)
			if err != nil {
				return fmt.Errorf("project %s: %w", account.ID, err)
			}
			balances[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// StatementsDueIn returns the statements of one account whose due date
// falls inside [from, to].
func (s *BalanceService) StatementsDueIn(ctx context.Context, accountID string, from, to core.Date) ([]core.Statement, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	occurrences, err := s.store.ListOccurrences(ctx, accountID, from.AddMonths(-occurrenceLookback), to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return billing.StatementsInRange(account, occurrences, from, to), nil
}

// UpcomingInstallments lists occurrences scheduled after asOf within the
// given number of months, for "upcoming installments" displays.
func (s *BalanceService) UpcomingInstallments(ctx context.Context, accountID string, asOf core.Date, months int) ([]core.InstallmentOccurrence, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	occurrences, err := s.store.ListOccurrences(ctx, accountID, asOf.AddDays(1), asOf.AddMonths(months))
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return billing.UpcomingOccurrences(occurrences, asOf), nil
}

// MonthOverview aggregates one calendar month across all accounts: cash
// spending, card installments falling in the month, the statement amounts
// still owed with a due date in the month, and a per-category breakdown.
func (s *BalanceService) MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	first := core.NewDate(year, month, 1)
	last := core.NewDate(year, month, core.DaysInMonth(year, month))

	overview := core.MonthOverview{Year: year, Month: month}
	byCategory := make(map[string]int64)

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return overview, fmt.Errorf("list accounts: %w", err)
	}

	for _, account := range accounts {
		movements, err := s.store.ListCashMovements(ctx, account.ID, first, last)
		if err != nil {
			return overview, fmt.Errorf("list cash movements: %w", err)
		}
		for _, m := range movements {
			overview.CashTotal = overview.CashTotal.Add(m.Amount)
			byCategory[m.Category] += m.Amount.Cents
		}

		if account.Kind != core.CreditLine {
			continue
		}

		occurrences, err := s.store.ListOccurrences(ctx, account.ID, first, last)
		if err != nil {
			return overview, fmt.Errorf("list occurrences: %w", err)
		}
		categories, err := s.purchaseCategories(ctx, account.ID, last)
		if err != nil {
			return overview, err
		}
		for _, occ := range occurrences {
			overview.CardTotal = overview.CardTotal.Add(occ.Amount)
			byCategory[categories[occ.PurchaseID]] += occ.Amount.Cents
		}

		stmts, err := s.StatementsDueIn(ctx, account.ID, first, last)
		if err != nil {
			return overview, err
		}
		for _, stmt := range stmts {
			payments, err := s.store.ListPayments(ctx, account.ID, stmt.Period.Closing.AddDays(1), stmt.Period.DueDate)
			if err != nil {
				return overview, fmt.Errorf("list payments: %w", err)
			}
			overview.DueTotal = overview.DueTotal.Add(billing.Outstanding(stmt, payments))
		}
	}

	for name, cents := range byCategory {
		overview.ByCategory = append(overview.ByCategory, core.CategoryAmount{
			Name:   name,
			Amount: core.Money{Cents: cents},
		})
	}
	sort.Slice(overview.ByCategory, func(i, j int) bool {
		if overview.ByCategory[i].Amount.Cents != overview.ByCategory[j].Amount.Cents {
			return overview.ByCategory[i].Amount.Cents > overview.ByCategory[j].Amount.Cents
		}
		return overview.ByCategory[i].Name < overview.ByCategory[j].Name
	})

	return overview, nil
}

// purchaseCategories maps purchase id to category for every purchase that
// can still produce occurrences up to the given date.
func (s *BalanceService) purchaseCategories(ctx context.Context, accountID string, until core.Date) (map[string]string, error) {
	purchases, err := s.store.ListPurchases(ctx, accountID, until.AddMonths(-occurrenceLookback), until)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	categories := make(map[string]string, len(purchases))
	for _, p := range purchases {
		categories[p.ID] = p.Category
	}
	return categories, nil
}
