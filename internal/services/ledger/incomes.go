package ledger

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// CreateIncome credits the payment source and records the income.
func (s *Service) CreateIncome(ctx context.Context, ownerID string, in models.Income) (*models.Income, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	inc := &models.Income{
		Meta:        models.Meta{OwnerID: ownerID},
		Amount:      in.Amount,
		SourceName:  in.SourceName,
		Description: in.Description,
		Date:        in.Date,
		Payment:     in.Payment,
	}
	if inc.Date == "" {
		inc.Date = models.Today()
	}
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	if err := create(ctx, s.engine, "income.create", s.incomes, inc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", inc.ID).
		Str("amount", inc.Amount.String()).
		Str("payment", inc.Payment.String()).
		Msg("Income created")
	return inc, nil
}

// GetIncome returns one of the owner's incomes.
func (s *Service) GetIncome(ctx context.Context, ownerID, id string) (*models.Income, error) {
	return load(ctx, s.incomes, ownerID, id)
}

// ListIncomes returns the owner's incomes by date, optionally for one month ("YYYY-MM").
func (s *Service) ListIncomes(ctx context.Context, ownerID, month string) ([]*models.Income, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	opts, err := monthOptions(month)
	if err != nil {
		return nil, err
	}
	return s.incomes.List(ctx, ownerID, opts)
}

// UpdateIncome edits an income; see UpdateExpense.
func (s *Service) UpdateIncome(ctx context.Context, ownerID, id string, in models.Income) (*models.Income, []models.Warning, error) {
	cur, err := load(ctx, s.incomes, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	next := *cur
	next.Amount = in.Amount
	next.SourceName = in.SourceName
	next.Description = in.Description
	next.Payment = in.Payment
	if in.Date != "" {
		next.Date = in.Date
	}
	if err := next.Validate(); err != nil {
		return nil, nil, err
	}

	moneyChanged := !cur.Amount.Equal(next.Amount) || cur.Payment != next.Payment
	warns, err := update(ctx, s.engine, "income.update", s.incomes, cur, &next, moneyChanged)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Bool("reapplied", moneyChanged).
		Msg("Income updated")
	return &next, warns, nil
}

// DeleteIncome takes the amount back off the payment source and removes the income.
func (s *Service) DeleteIncome(ctx context.Context, ownerID, id string) ([]models.Warning, error) {
	inc, err := load(ctx, s.incomes, ownerID, id)
	if err != nil {
		return nil, err
	}
	warns, err := remove(ctx, s.engine, "income.delete", s.incomes, inc, inc.Effects)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Income deleted")
	return warns, nil
}
