package models

import "github.com/shopspring/decimal"

// BudgetSplit is the 50/30/20 view of one month.
type BudgetSplit struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	Income       decimal.Decimal `json:"income"`
	NeedsLimit   decimal.Decimal `json:"needsLimit"`
	WantsLimit   decimal.Decimal `json:"wantsLimit"`
	SavingsLimit decimal.Decimal `json:"savingsLimit"`
	NeedsSpent   decimal.Decimal `json:"needsSpent"`
	WantsSpent   decimal.Decimal `json:"wantsSpent"`
	OtherSpent   decimal.Decimal `json:"otherSpent"`
	Savings      decimal.Decimal `json:"savings"`
}

// BalanceTotals summarises every balance holder and open obligation.
type BalanceTotals struct {
	Bank            decimal.Decimal `json:"bank"`
	Cash            decimal.Decimal `json:"cash"`
	PaymentModes    decimal.Decimal `json:"paymentModes"`
	AvailableCredit decimal.Decimal `json:"availableCredit"`
	CardOutstanding decimal.Decimal `json:"cardOutstanding"`
	LoansRemaining  decimal.Decimal `json:"loansRemaining"`
	PendingLent     decimal.Decimal `json:"pendingLent"`
	PendingBorrowed decimal.Decimal `json:"pendingBorrowed"`
	Invested        decimal.Decimal `json:"invested"`
}

// Dashboard is the headline summary for an owner.
type Dashboard struct {
	TotalSpent  decimal.Decimal            `json:"totalSpent"`
	TotalIncome decimal.Decimal            `json:"totalIncome"`
	ByDay       map[string]decimal.Decimal `json:"byDay"`
	ByCategory  map[string]decimal.Decimal `json:"byCategory"`
	ByYear      map[string]decimal.Decimal `json:"byYear"`
	Balances    BalanceTotals              `json:"balances"`
}

// CalendarDay is one day of the expense calendar.
type CalendarDay struct {
	Date     string          `json:"date"`
	Total    decimal.Decimal `json:"total"`
	Expenses []*Expense      `json:"expenses"`
}

// Calendar lists the days in a month that have expenses.
type Calendar struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Total decimal.Decimal `json:"total"`
	Days  []CalendarDay   `json:"days"`
}
