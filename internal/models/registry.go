package models

import "github.com/shopspring/decimal"

// Category is a user-defined expense category.
type Category struct {
	Meta
	Name string `json:"name"`
}

func (c *Category) Collection() string { return CollCategories }
func (c *Category) SortDate() string   { return "" }

// InvestmentCategory groups investments (stocks, gold, deposits).
type InvestmentCategory struct {
	Meta
	Name string `json:"name"`
}

func (c *InvestmentCategory) Collection() string { return CollInvestmentCategories }
func (c *InvestmentCategory) SortDate() string   { return "" }

// InvestmentGoal is a savings target tracked against one investment category.
type InvestmentGoal struct {
	Meta
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   string          `json:"targetDate,omitempty"`
}

func (g *InvestmentGoal) Collection() string { return CollInvestmentGoals }
func (g *InvestmentGoal) SortDate() string   { return g.TargetDate }

// GoalProgress pairs a goal with the amount currently invested towards it.
type GoalProgress struct {
	Goal     *InvestmentGoal `json:"goal"`
	Invested decimal.Decimal `json:"invested"`
	Percent  decimal.Decimal `json:"percent"`
}
