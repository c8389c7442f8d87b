package ledger

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// CreateExpense debits the payment source and records the expense.
func (s *Service) CreateExpense(ctx context.Context, ownerID string, in models.Expense) (*models.Expense, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	exp := &models.Expense{
		Meta:        models.Meta{OwnerID: ownerID},
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Payment:     in.Payment,
	}
	if exp.Date == "" {
		exp.Date = models.Today()
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	if err := create(ctx, s.engine, "expense.create", s.expenses, exp); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", exp.ID).
		Str("amount", exp.Amount.String()).
		Str("payment", exp.Payment.String()).
		Msg("Expense created")
	return exp, nil
}

// GetExpense returns one of the owner's expenses.
func (s *Service) GetExpense(ctx context.Context, ownerID, id string) (*models.Expense, error) {
	return load(ctx, s.expenses, ownerID, id)
}

// ListExpenses returns the owner's expenses by date, optionally for one month ("YYYY-MM").
func (s *Service) ListExpenses(ctx context.Context, ownerID, month string) ([]*models.Expense, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	opts, err := monthOptions(month)
	if err != nil {
		return nil, err
	}
	return s.expenses.List(ctx, ownerID, opts)
}

// UpdateExpense edits an expense. Balances are only touched when the amount
// or the payment source changed.
func (s *Service) UpdateExpense(ctx context.Context, ownerID, id string, in models.Expense) (*models.Expense, []models.Warning, error) {
	cur, err := load(ctx, s.expenses, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	next := *cur
	next.Amount = in.Amount
	next.Category = in.Category
	next.Description = in.Description
	next.Payment = in.Payment
	if in.Date != "" {
		next.Date = in.Date
	}
	if err := next.Validate(); err != nil {
		return nil, nil, err
	}

	moneyChanged := !cur.Amount.Equal(next.Amount) || cur.Payment != next.Payment
	warns, err := update(ctx, s.engine, "expense.update", s.expenses, cur, &next, moneyChanged)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Bool("reapplied", moneyChanged).
		Msg("Expense updated")
	return &next, warns, nil
}

// DeleteExpense restores the amount to the payment source and removes the expense.
func (s *Service) DeleteExpense(ctx context.Context, ownerID, id string) ([]models.Warning, error) {
	exp, err := load(ctx, s.expenses, ownerID, id)
	if err != nil {
		return nil, err
	}
	warns, err := remove(ctx, s.engine, "expense.delete", s.expenses, exp, exp.Effects)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Expense deleted")
	return warns, nil
}
