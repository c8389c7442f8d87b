package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/shopspring/decimal"
)

func money(v decimal.Decimal) string { return v.StringFixed(2) }

// usage renders spent against limit as a percentage, "-" when there is no limit.
func usage(spent, limit decimal.Decimal) string {
	if !limit.IsPositive() {
		return "-"
	}
	return spent.Mul(hundred).Div(limit).StringFixed(1) + "%"
}

// FormatBudget renders a budget split as markdown.
func FormatBudget(b *models.BudgetSplit) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Budget: %04d-%02d\n\n", b.Year, b.Month))
	sb.WriteString(fmt.Sprintf("**Income:** %s\n\n", money(b.Income)))

	sb.WriteString("| Bucket | Limit | Spent | Used |\n")
	sb.WriteString("|--------|-------|-------|------|\n")
	sb.WriteString(fmt.Sprintf("| Needs | %s | %s | %s |\n", money(b.NeedsLimit), money(b.NeedsSpent), usage(b.NeedsSpent, b.NeedsLimit)))
	sb.WriteString(fmt.Sprintf("| Wants | %s | %s | %s |\n", money(b.WantsLimit), money(b.WantsSpent), usage(b.WantsSpent, b.WantsLimit)))
	sb.WriteString(fmt.Sprintf("| Savings | %s | %s | %s |\n", money(b.SavingsLimit), money(b.Savings), usage(b.Savings, b.SavingsLimit)))
	if !b.OtherSpent.IsZero() {
		sb.WriteString(fmt.Sprintf("| Other | - | %s | - |\n", money(b.OtherSpent)))
	}
	sb.WriteString("\n")

	if b.Savings.IsNegative() {
		sb.WriteString("Spending exceeded income this month.\n")
	}
	return sb.String()
}

// FormatDashboard renders the dashboard as markdown. Categories are listed
// by amount, largest first.
func FormatDashboard(d *models.Dashboard) string {
	var sb strings.Builder

	sb.WriteString("# Dashboard\n\n")
	sb.WriteString(fmt.Sprintf("**Total Spent:** %s\n", money(d.TotalSpent)))
	sb.WriteString(fmt.Sprintf("**Total Income:** %s\n\n", money(d.TotalIncome)))

	bt := d.Balances
	sb.WriteString("## Balances\n\n")
	sb.WriteString("| Holder | Amount |\n")
	sb.WriteString("|--------|--------|\n")
	for _, row := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"Bank", bt.Bank},
		{"Cash", bt.Cash},
		{"Payment modes", bt.PaymentModes},
		{"Available credit", bt.AvailableCredit},
		{"Card outstanding", bt.CardOutstanding},
		{"Loans remaining", bt.LoansRemaining},
		{"Pending lent", bt.PendingLent},
		{"Pending borrowed", bt.PendingBorrowed},
		{"Invested", bt.Invested},
	} {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row.name, money(row.value)))
	}
	sb.WriteString("\n")

	if len(d.ByCategory) > 0 {
		cats := make([]string, 0, len(d.ByCategory))
		for c := range d.ByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool {
			a, b := d.ByCategory[cats[i]], d.ByCategory[cats[j]]
			if !a.Equal(b) {
				return a.GreaterThan(b)
			}
			return cats[i] < cats[j]
		})

		sb.WriteString("## Spending by Category\n\n")
		sb.WriteString("| Category | Amount |\n")
		sb.WriteString("|----------|--------|\n")
		for _, c := range cats {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", c, money(d.ByCategory[c])))
		}
		sb.WriteString("\n")
	}

	if len(d.ByYear) > 0 {
		years := make([]string, 0, len(d.ByYear))
		for y := range d.ByYear {
			years = append(years, y)
		}
		sort.Strings(years)

		sb.WriteString("## Spending by Year\n\n")
		for _, y := range years {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", y, money(d.ByYear[y])))
		}
	}
	return sb.String()
}
