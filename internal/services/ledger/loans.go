package ledger

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/shopspring/decimal"
)

// CreateLoan records a new open loan with the full amount outstanding.
func (s *Service) CreateLoan(ctx context.Context, ownerID string, in models.Loan) (*models.Loan, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	loan := &models.Loan{
		Meta:        models.Meta{OwnerID: ownerID},
		LoanName:    in.LoanName,
		Lender:      in.Lender,
		LoanAmount:  in.LoanAmount,
		Remaining:   in.LoanAmount,
		EMI:         in.EMI,
		Interest:    in.Interest,
		NextEMIDate: in.NextEMIDate,
	}
	if loan.NextEMIDate == "" {
		loan.NextEMIDate = models.Today()
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.loans.Insert(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", loan.ID).
		Str("loan_amount", loan.LoanAmount.String()).
		Str("emi", loan.EMI.String()).
		Msg("Loan created")
	return loan, nil
}

// GetLoan returns one of the owner's loans.
func (s *Service) GetLoan(ctx context.Context, ownerID, id string) (*models.Loan, error) {
	return load(ctx, s.loans, ownerID, id)
}

// ListLoans returns the owner's loans ordered by next EMI date.
func (s *Service) ListLoans(ctx context.Context, ownerID string) ([]*models.Loan, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.loans.List(ctx, ownerID, interfaces.QueryOptions{OrderBy: interfaces.OrderDateAsc})
}

// UpdateLoan edits a loan's terms. Remaining is taken as given; balances
// are not touched.
func (s *Service) UpdateLoan(ctx context.Context, ownerID, id string, in models.Loan) (*models.Loan, error) {
	cur, err := load(ctx, s.loans, ownerID, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	next.LoanName = in.LoanName
	next.Lender = in.Lender
	next.LoanAmount = in.LoanAmount
	next.Remaining = in.Remaining
	next.EMI = in.EMI
	next.Interest = in.Interest
	if in.NextEMIDate != "" {
		next.NextEMIDate = in.NextEMIDate
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.Remaining.IsNegative() {
		return nil, common.Invalid("remaining", "must not be negative")
	}
	if err := s.loans.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Loan updated")
	return &next, nil
}

// PayEMI debits one EMI from src, records the payment, lowers the remaining
// amount (never below zero) and moves the next EMI date to the payment date.
func (s *Service) PayEMI(ctx context.Context, ownerID, loanID, date string, src models.PaymentSource) (*models.LoanPayment, *models.Loan, error) {
	if date == "" {
		date = models.Today()
	}
	cur, err := load(ctx, s.loans, ownerID, loanID)
	if err != nil {
		return nil, nil, err
	}
	if cur.Closed {
		return nil, nil, fmt.Errorf("loan %q: %w", loanID, common.ErrLoanClosed)
	}

	payment := &models.LoanPayment{
		Meta:    models.Meta{OwnerID: ownerID},
		LoanID:  loanID,
		Amount:  cur.EMI,
		Date:    date,
		Payment: src,
	}
	if err := payment.Validate(); err != nil {
		return nil, nil, err
	}

	next := *cur
	next.Remaining = decimal.Max(decimal.Zero, cur.Remaining.Sub(cur.EMI))
	next.NextEMIDate = date

	err = s.engine.Execute(ctx, "loan.pay", func(x *engine.Engine, sg *saga.Saga) error {
		var effects []models.Effect
		x.AddApply(sg, ownerID, payment.Movements(), &effects)
		engine.InsertStep(sg, s.loanPayments.On(x.Store()), payment, func() { payment.Effects = effects })
		engine.UpdateStep(sg, s.loans.On(x.Store()), &next, cur, nil)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("loan_id", loanID).
		Str("amount", payment.Amount.String()).
		Str("remaining", next.Remaining.String()).
		Msg("Loan EMI paid")
	return payment, &next, nil
}

// ForceCloseLoan marks the loan closed with nothing remaining.
func (s *Service) ForceCloseLoan(ctx context.Context, ownerID, id, date string) (*models.Loan, error) {
	if date == "" {
		date = models.Today()
	}
	if _, err := models.ParseDate(date); err != nil {
		return nil, common.Invalid("closedOn", err.Error())
	}
	cur, err := load(ctx, s.loans, ownerID, id)
	if err != nil {
		return nil, err
	}
	if cur.Closed {
		return cur, nil
	}
	next := *cur
	next.Remaining = decimal.Zero
	next.Closed = true
	next.ClosedOn = date
	if err := s.loans.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to close loan: %w", err)
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Str("closed_on", date).Msg("Loan closed")
	return &next, nil
}

// ListLoanPayments returns the payments made against a loan, newest first.
func (s *Service) ListLoanPayments(ctx context.Context, ownerID, loanID string) ([]*models.LoanPayment, error) {
	if _, err := load(ctx, s.loans, ownerID, loanID); err != nil {
		return nil, err
	}
	return s.paymentsFor(ctx, ownerID, loanID)
}

// ListAllLoanPayments returns every EMI the owner paid, by date,
// optionally for one month.
func (s *Service) ListAllLoanPayments(ctx context.Context, ownerID, month string) ([]*models.LoanPayment, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	opts, err := monthOptions(month)
	if err != nil {
		return nil, err
	}
	return s.loanPayments.List(ctx, ownerID, opts)
}

func (s *Service) paymentsFor(ctx context.Context, ownerID, loanID string) ([]*models.LoanPayment, error) {
	all, err := s.loanPayments.List(ctx, ownerID, interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
	if err != nil {
		return nil, err
	}
	out := make([]*models.LoanPayment, 0, len(all))
	for _, p := range all {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeleteLoan reverses every EMI paid against the loan, deletes the payments
// and then the loan, as one unit.
func (s *Service) DeleteLoan(ctx context.Context, ownerID, id string) ([]models.Warning, error) {
	loan, err := load(ctx, s.loans, ownerID, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentsFor(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	var dangling engine.Dangling
	err = s.engine.Execute(ctx, "loan.delete", func(x *engine.Engine, sg *saga.Saga) error {
		pc := s.loanPayments.On(x.Store())
		for _, p := range payments {
			x.AddReverse(sg, ownerID, p.Effects, &dangling)
			engine.DeleteStep(sg, pc, p)
		}
		engine.DeleteStep(sg, s.loans.On(x.Store()), loan)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Int("payments", len(payments)).
		Msg("Loan deleted")
	return warnings(dangling.Err())
}
