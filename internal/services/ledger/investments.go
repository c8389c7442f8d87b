package ledger

import (
	"context"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/shopspring/decimal"
)

// CreateInvestment debits the purchase amount from the payment source.
func (s *Service) CreateInvestment(ctx context.Context, ownerID string, in models.Investment) (*models.Investment, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	inv := &models.Investment{
		Meta:     models.Meta{OwnerID: ownerID},
		Name:     in.Name,
		Category: in.Category,
		Amount:   in.Amount,
		Date:     in.Date,
		Note:     in.Note,
		Payment:  in.Payment,
	}
	if inv.Date == "" {
		inv.Date = models.Today()
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := create(ctx, s.engine, "investment.create", s.investments, inv); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", inv.ID).
		Str("amount", inv.Amount.String()).
		Str("payment", inv.Payment.String()).
		Msg("Investment created")
	return inv, nil
}

// GetInvestment returns one of the owner's investments.
func (s *Service) GetInvestment(ctx context.Context, ownerID, id string) (*models.Investment, error) {
	return load(ctx, s.investments, ownerID, id)
}

// ListInvestments returns the owner's investments, newest first.
func (s *Service) ListInvestments(ctx context.Context, ownerID string) ([]*models.Investment, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.investments.List(ctx, ownerID, interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
}

// SellInvestment credits the sale proceeds to src and marks the investment
// sold. The sale effects are kept apart from the purchase effects.
func (s *Service) SellInvestment(ctx context.Context, ownerID, id string, amount decimal.Decimal, date string, src models.PaymentSource) (*models.Investment, error) {
	if !amount.IsPositive() {
		return nil, common.Invalid("sellAmount", "must be greater than zero")
	}
	if date == "" {
		date = models.Today()
	}
	if _, err := models.ParseDate(date); err != nil {
		return nil, common.Invalid("sellDate", err.Error())
	}
	if err := src.Validate(); err != nil {
		return nil, common.Invalid("sellMode", err.Error())
	}

	cur, err := load(ctx, s.investments, ownerID, id)
	if err != nil {
		return nil, err
	}
	if cur.Sold {
		return nil, common.Invalid("sold", "investment has already been sold")
	}

	next := *cur
	next.Sold = true
	next.SellAmount = amount
	next.SellDate = date
	next.SalePayment = &src

	err = s.engine.Execute(ctx, "investment.sell", func(x *engine.Engine, sg *saga.Saga) error {
		var effects []models.Effect
		x.AddApply(sg, ownerID, cur.SaleMovements(src, amount), &effects)
		engine.UpdateStep(sg, s.investments.On(x.Store()), &next, cur, func() { next.SaleEffects = effects })
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Str("sell_amount", amount.String()).
		Str("payment", src.String()).
		Msg("Investment sold")
	return &next, nil
}

// DeleteInvestment restores the purchase amount to its payment source and
// removes the record. Sale proceeds stay where they were credited.
func (s *Service) DeleteInvestment(ctx context.Context, ownerID, id string) ([]models.Warning, error) {
	inv, err := load(ctx, s.investments, ownerID, id)
	if err != nil {
		return nil, err
	}
	warns, err := remove(ctx, s.engine, "investment.delete", s.investments, inv, inv.Effects)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Bool("sold", inv.Sold).
		Msg("Investment deleted")
	return warns, nil
}
