// Package report provides the read-only aggregate views: the monthly
// 50/30/20 budget split, the dashboard totals and the expense calendar.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/bobmcallan/tally/internal/storage"
	"github.com/shopspring/decimal"
)

// LoanEMICategory is the budget category loan EMIs are reported under.
const LoanEMICategory = "Loan EMI"

var hundred = decimal.NewFromInt(100)

// Compile-time interface check
var _ interfaces.ReportService = (*Service)(nil)

// Service implements ReportService
type Service struct {
	expenses     *storage.Collection[models.Expense, *models.Expense]
	incomes      *storage.Collection[models.Income, *models.Income]
	loanPayments *storage.Collection[models.LoanPayment, *models.LoanPayment]
	loans        *storage.Collection[models.Loan, *models.Loan]
	lendBorrow   *storage.Collection[models.LendBorrow, *models.LendBorrow]
	investments  *storage.Collection[models.Investment, *models.Investment]
	banks        *storage.Collection[models.BankAccount, *models.BankAccount]
	cards        *storage.Collection[models.CreditCard, *models.CreditCard]
	modes        *storage.Collection[models.PaymentMode, *models.PaymentMode]
	budget       common.BudgetConfig
	logger       *common.Logger
}

// NewService creates a report service reading from store.
func NewService(store interfaces.DocumentStore, budget common.BudgetConfig, logger *common.Logger) *Service {
	return &Service{
		expenses:     storage.NewCollection[models.Expense](store),
		incomes:      storage.NewCollection[models.Income](store),
		loanPayments: storage.NewCollection[models.LoanPayment](store),
		loans:        storage.NewCollection[models.Loan](store),
		lendBorrow:   storage.NewCollection[models.LendBorrow](store),
		investments:  storage.NewCollection[models.Investment](store),
		banks:        storage.NewCollection[models.BankAccount](store),
		cards:        storage.NewCollection[models.CreditCard](store),
		modes:        storage.NewCollection[models.PaymentMode](store),
		budget:       budget,
		logger:       logger,
	}
}

func monthPrefix(year, month int) (string, error) {
	if year < 1 || year > 9999 {
		return "", common.Invalid("year", "is out of range")
	}
	if month < 1 || month > 12 {
		return "", common.Invalid("month", "must be between 1 and 12")
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

func inCategories(category string, list []string) bool {
	for _, c := range list {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func percentOf(v decimal.Decimal, pct int) decimal.Decimal {
	return v.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
}

// BudgetSplit computes the 50/30/20 view of one month. Expenses count as
// needs or wants by category; anything else is other spend. EMIs paid in
// the month count as needs. Savings is income minus needs and wants.
func (s *Service) BudgetSplit(ctx context.Context, ownerID string, year, month int) (*models.BudgetSplit, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	prefix, err := monthPrefix(year, month)
	if err != nil {
		return nil, err
	}
	opts := interfaces.QueryOptions{DatePrefix: prefix}

	incomes, err := s.incomes.List(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomes: %w", err)
	}
	expenses, err := s.expenses.List(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	emis, err := s.loanPayments.List(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan payments: %w", err)
	}

	b := &models.BudgetSplit{Year: year, Month: month}
	for _, inc := range incomes {
		b.Income = b.Income.Add(inc.Amount)
	}
	b.NeedsLimit = percentOf(b.Income, s.budget.NeedsPct)
	b.WantsLimit = percentOf(b.Income, s.budget.WantsPct)
	b.SavingsLimit = percentOf(b.Income, s.budget.SavingsPct)

	for _, exp := range expenses {
		switch {
		case inCategories(exp.Category, s.budget.NeedsCategories):
			b.NeedsSpent = b.NeedsSpent.Add(exp.Amount)
		case inCategories(exp.Category, s.budget.WantsCategories):
			b.WantsSpent = b.WantsSpent.Add(exp.Amount)
		default:
			b.OtherSpent = b.OtherSpent.Add(exp.Amount)
		}
	}
	for _, p := range emis {
		b.NeedsSpent = b.NeedsSpent.Add(p.Amount)
	}
	b.Savings = b.Income.Sub(b.NeedsSpent.Add(b.WantsSpent))
	return b, nil
}

// Dashboard totals all of the owner's spending and income, breaks spending
// down by day, category and year, and sums every balance holder and open
// obligation.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (*models.Dashboard, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	all := interfaces.QueryOptions{}

	expenses, err := s.expenses.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	emis, err := s.loanPayments.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan payments: %w", err)
	}
	incomes, err := s.incomes.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomes: %w", err)
	}

	d := &models.Dashboard{
		ByDay:      map[string]decimal.Decimal{},
		ByCategory: map[string]decimal.Decimal{},
		ByYear:     map[string]decimal.Decimal{},
	}
	spend := func(date, category string, amount decimal.Decimal) {
		d.TotalSpent = d.TotalSpent.Add(amount)
		d.ByDay[date] = d.ByDay[date].Add(amount)
		d.ByCategory[category] = d.ByCategory[category].Add(amount)
		if len(date) >= 4 {
			d.ByYear[date[:4]] = d.ByYear[date[:4]].Add(amount)
		}
	}
	for _, exp := range expenses {
		spend(exp.Date, exp.Category, exp.Amount)
	}
	for _, p := range emis {
		spend(p.Date, LoanEMICategory, p.Amount)
	}
	for _, inc := range incomes {
		d.TotalIncome = d.TotalIncome.Add(inc.Amount)
	}

	balances, err := s.balances(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	d.Balances = *balances
	return d, nil
}

func (s *Service) balances(ctx context.Context, ownerID string) (*models.BalanceTotals, error) {
	all := interfaces.QueryOptions{}
	var t models.BalanceTotals

	banks, err := s.banks.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	for _, a := range banks {
		if a.Type == models.AccountCash {
			t.Cash = t.Cash.Add(a.Balance)
		} else {
			t.Bank = t.Bank.Add(a.Balance)
		}
	}

	cards, err := s.cards.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	for _, c := range cards {
		t.AvailableCredit = t.AvailableCredit.Add(c.CurrentBalance)
		t.CardOutstanding = t.CardOutstanding.Add(c.Outstanding())
	}

	modes, err := s.modes.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment modes: %w", err)
	}
	for _, m := range modes {
		t.PaymentModes = t.PaymentModes.Add(m.Balance)
	}

	loans, err := s.loans.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	for _, l := range loans {
		if !l.Closed {
			t.LoansRemaining = t.LoansRemaining.Add(l.Remaining)
		}
	}

	entries, err := s.lendBorrow.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list lend/borrow entries: %w", err)
	}
	for _, lb := range entries {
		if lb.IsSettled {
			continue
		}
		if lb.Type == models.Lend {
			t.PendingLent = t.PendingLent.Add(lb.Amount)
		} else {
			t.PendingBorrowed = t.PendingBorrowed.Add(lb.Amount)
		}
	}

	investments, err := s.investments.List(ctx, ownerID, all)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	for _, inv := range investments {
		if !inv.Sold {
			t.Invested = t.Invested.Add(inv.Amount)
		}
	}
	return &t, nil
}

// Calendar groups a month's expenses by day. Only days with expenses are
// returned, in date order.
func (s *Service) Calendar(ctx context.Context, ownerID string, year, month int) (*models.Calendar, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	prefix, err := monthPrefix(year, month)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses.List(ctx, ownerID, interfaces.QueryOptions{
		OrderBy:    interfaces.OrderDateAsc,
		DatePrefix: prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	cal := &models.Calendar{Year: year, Month: month, Days: []models.CalendarDay{}}
	byDate := map[string]*models.CalendarDay{}
	var dates []string
	for _, exp := range expenses {
		day, ok := byDate[exp.Date]
		if !ok {
			day = &models.CalendarDay{Date: exp.Date}
			byDate[exp.Date] = day
			dates = append(dates, exp.Date)
		}
		day.Total = day.Total.Add(exp.Amount)
		day.Expenses = append(day.Expenses, exp)
		cal.Total = cal.Total.Add(exp.Amount)
	}
	sort.Strings(dates)
	for _, date := range dates {
		cal.Days = append(cal.Days, *byDate[date])
	}
	return cal, nil
}
