package registry

import (
	"context"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func validateGoal(g *models.InvestmentGoal) error {
	name, err := cleanName(g.Name)
	if err != nil {
		return err
	}
	g.Name = name
	g.Category = strings.TrimSpace(g.Category)
	if !g.TargetAmount.IsPositive() {
		return common.Invalid("targetAmount", "must be greater than zero")
	}
	if g.TargetDate != "" {
		if _, err := models.ParseDate(g.TargetDate); err != nil {
			return common.Invalid("targetDate", err.Error())
		}
	}
	return nil
}

// CreateGoal adds an investment goal.
func (s *Service) CreateGoal(ctx context.Context, ownerID string, in models.InvestmentGoal) (*models.InvestmentGoal, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	g := &models.InvestmentGoal{
		Meta:         models.Meta{OwnerID: ownerID},
		Name:         in.Name,
		Category:     in.Category,
		TargetAmount: in.TargetAmount,
		TargetDate:   in.TargetDate,
	}
	if err := validateGoal(g); err != nil {
		return nil, err
	}
	if _, err := s.goals.Insert(ctx, g); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", g.ID).
		Str("target", g.TargetAmount.String()).
		Msg("Investment goal created")
	return g, nil
}

// UpdateGoal replaces a goal's name, category, target and date.
func (s *Service) UpdateGoal(ctx context.Context, ownerID, id string, in models.InvestmentGoal) (*models.InvestmentGoal, error) {
	next := in
	if err := validateGoal(&next); err != nil {
		return nil, err
	}
	return modify(ctx, s.goals, ownerID, id, func(g *models.InvestmentGoal) error {
		g.Name = next.Name
		g.Category = next.Category
		g.TargetAmount = next.TargetAmount
		g.TargetDate = next.TargetDate
		return nil
	})
}

func (s *Service) DeleteGoal(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, s.goals, ownerID, id); err != nil {
		return err
	}
	return s.goals.Delete(ctx, id)
}

// ListGoals returns every goal with the amount held in active (unsold)
// investments of its category. A goal without a category counts every
// active investment.
func (s *Service) ListGoals(ctx context.Context, ownerID string) ([]*models.GoalProgress, error) {
	goals, err := list(ctx, s.goals, ownerID)
	if err != nil {
		return nil, err
	}
	investments, err := list(ctx, s.investments, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.GoalProgress, 0, len(goals))
	for _, g := range goals {
		invested := decimal.Zero
		for _, inv := range investments {
			if inv.Sold {
				continue
			}
			if g.Category == "" || strings.EqualFold(inv.Category, g.Category) {
				invested = invested.Add(inv.Amount)
			}
		}
		out = append(out, &models.GoalProgress{
			Goal:     g,
			Invested: invested,
			Percent:  invested.Mul(hundred).Div(g.TargetAmount).Round(2),
		})
	}
	return out, nil
}
