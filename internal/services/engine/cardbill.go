package engine

import (
	"context"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/shopspring/decimal"
)

// PayCardBill transfers amount from a bank account to a credit card. The
// bank is debited in full; the card is credited up to its limit. A CcPayment
// history record is written. No expense or income is created.
func (e *Engine) PayCardBill(ctx context.Context, ownerID, cardID, bankID string, amount decimal.Decimal, date string) (*models.CcPayment, error) {
	if date == "" {
		date = models.Today()
	}
	p := &models.CcPayment{
		Meta:   models.Meta{OwnerID: ownerID},
		CardID: cardID,
		BankID: bankID,
		Amount: amount,
		Date:   date,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	if _, err := e.holders.GetCreditCard(ctx, ownerID, cardID); err != nil {
		return nil, err
	}
	if _, err := e.holders.GetBankAccount(ctx, ownerID, bankID); err != nil {
		return nil, err
	}

	err := e.Execute(ctx, "ccpayment.create", func(x *Engine, sg *saga.Saga) error {
		var effects []models.Effect
		x.AddApply(sg, ownerID, p.Movements(), &effects)
		InsertStep(sg, x.ccPayments, p, func() { p.Effects = effects })
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("owner_id", ownerID).
		Str("card_id", cardID).
		Str("bank_id", bankID).
		Str("amount", amount.String()).
		Msg("Credit card bill paid")
	return p, nil
}

// ListCardPayments returns the owner's bill payments, newest first,
// optionally for one card.
func (e *Engine) ListCardPayments(ctx context.Context, ownerID, cardID string) ([]*models.CcPayment, error) {
	all, err := e.ccPayments.List(ctx, ownerID, interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
	if err != nil {
		return nil, err
	}
	if cardID == "" {
		return all, nil
	}
	out := make([]*models.CcPayment, 0, len(all))
	for _, p := range all {
		if p.CardID == cardID {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeleteCardPayment reverses a bill payment and removes its record. A
// *DanglingReferenceError is returned when the bank or card is gone; the
// record is still removed.
func (e *Engine) DeleteCardPayment(ctx context.Context, ownerID, id string) error {
	p, err := e.ccPayments.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ownership.Assert(p, ownerID); err != nil {
		return err
	}

	var dangling Dangling
	err = e.Execute(ctx, "ccpayment.delete", func(x *Engine, sg *saga.Saga) error {
		x.AddReverse(sg, ownerID, p.Effects, &dangling)
		DeleteStep(sg, x.ccPayments, p)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Credit card payment deleted")
	return dangling.Err()
}
