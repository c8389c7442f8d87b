package ledger

import (
	"context"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/engine"
)

// CreateLendBorrow records money lent to or borrowed from a person. With a
// payment source, a lend debits it and a borrow credits it; without one no
// balance moves.
func (s *Service) CreateLendBorrow(ctx context.Context, ownerID string, in models.LendBorrow) (*models.LendBorrow, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	lb := &models.LendBorrow{
		Meta:        models.Meta{OwnerID: ownerID},
		Type:        in.Type,
		PersonName:  in.PersonName,
		SourceName:  in.SourceName,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: in.Description,
		Payment:     in.Payment,
	}
	if lb.Date == "" {
		lb.Date = models.Today()
	}
	if err := lb.Validate(); err != nil {
		return nil, err
	}
	if err := create(ctx, s.engine, "lendborrow.create", s.lendBorrow, lb); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", lb.ID).
		Str("type", string(lb.Type)).
		Str("amount", lb.Amount.String()).
		Msg("Lend/borrow entry created")
	return lb, nil
}

// GetLendBorrow returns one of the owner's lend/borrow entries.
func (s *Service) GetLendBorrow(ctx context.Context, ownerID, id string) (*models.LendBorrow, error) {
	return load(ctx, s.lendBorrow, ownerID, id)
}

// ListLendBorrow returns the owner's entries, newest first, optionally of one type.
func (s *Service) ListLendBorrow(ctx context.Context, ownerID string, typ models.LendBorrowType) ([]*models.LendBorrow, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if typ != "" && typ != models.Lend && typ != models.Borrow {
		return nil, common.Invalid("type", "must be lend or borrow")
	}
	all, err := s.lendBorrow.List(ctx, ownerID, interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return all, nil
	}
	out := make([]*models.LendBorrow, 0, len(all))
	for _, lb := range all {
		if lb.Type == typ {
			out = append(out, lb)
		}
	}
	return out, nil
}

// SettleLendBorrow closes a pending entry. A lend is repaid into src, a
// borrow is repaid out of it, for exactly the entry's amount.
func (s *Service) SettleLendBorrow(ctx context.Context, ownerID, id, date string, src models.PaymentSource) (*models.LendBorrow, error) {
	if date == "" {
		date = models.Today()
	}
	if _, err := models.ParseDate(date); err != nil {
		return nil, common.Invalid("settledDate", err.Error())
	}
	if err := src.Validate(); err != nil {
		return nil, common.Invalid("paymentMode", err.Error())
	}
	cur, err := load(ctx, s.lendBorrow, ownerID, id)
	if err != nil {
		return nil, err
	}
	if cur.IsSettled {
		return nil, common.Invalid("isSettled", "entry is already settled")
	}

	next := *cur
	next.IsSettled = true
	next.SettledDate = date
	next.SettlePayment = &src

	err = s.engine.Execute(ctx, "lendborrow.settle", func(x *engine.Engine, sg *saga.Saga) error {
		var effects []models.Effect
		x.AddApply(sg, ownerID, cur.SettleMovements(src), &effects)
		engine.UpdateStep(sg, s.lendBorrow.On(x.Store()), &next, cur, func() { next.SettleEffects = effects })
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Str("type", string(cur.Type)).
		Str("payment", src.String()).
		Msg("Lend/borrow entry settled")
	return &next, nil
}

// DeleteLendBorrow reverses the settlement and the original movement, then
// removes the entry.
func (s *Service) DeleteLendBorrow(ctx context.Context, ownerID, id string) ([]models.Warning, error) {
	lb, err := load(ctx, s.lendBorrow, ownerID, id)
	if err != nil {
		return nil, err
	}
	warns, err := remove(ctx, s.engine, "lendborrow.delete", s.lendBorrow, lb, lb.SettleEffects, lb.Effects)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Bool("settled", lb.IsSettled).
		Msg("Lend/borrow entry deleted")
	return warns, nil
}
