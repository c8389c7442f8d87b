package ledger

import (
	"testing"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvestment_DeleteAfterSaleRestoresPurchaseOnly(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("5000")
	proceeds := f.bank("0")

	inv, err := f.ledger.CreateInvestment(f.ctx, owner, models.Investment{
		Name: "Index fund", Category: "Mutual Funds", Amount: d("1000"),
		Date: "2024-01-10", Payment: models.Bank(bank.ID),
	})
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "4000")

	sold, err := f.ledger.SellInvestment(f.ctx, owner, inv.ID, d("1300"), "2024-06-01", models.Bank(proceeds.ID))
	require.NoError(t, err)
	assert.True(t, sold.Sold)
	assert.Equal(t, "2024-06-01", sold.SellDate)
	require.Len(t, sold.SaleEffects, 1)
	f.assertBalance(proceeds.Ref(), "1300")

	_, err = f.ledger.SellInvestment(f.ctx, owner, inv.ID, d("10"), "2024-06-02", models.Bank(proceeds.ID))
	assert.ErrorIs(t, err, common.ErrValidation)
	f.assertBalance(proceeds.Ref(), "1300")

	_, err = f.ledger.DeleteInvestment(f.ctx, owner, inv.ID)
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "5000")
	f.assertBalance(proceeds.Ref(), "1300")

	list, err := f.ledger.ListInvestments(f.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInvestment_SellValidation(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("5000")
	inv, err := f.ledger.CreateInvestment(f.ctx, owner, models.Investment{
		Name: "Gold", Category: "Gold", Amount: d("100"), Date: "2024-01-10", Payment: models.Bank(bank.ID),
	})
	require.NoError(t, err)

	_, err = f.ledger.SellInvestment(f.ctx, owner, inv.ID, d("0"), "", models.Cash())
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.ledger.SellInvestment(f.ctx, owner, inv.ID, d("10"), "tomorrow", models.Cash())
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.ledger.SellInvestment(f.ctx, "mallory", inv.ID, d("10"), "", models.Cash())
	assert.ErrorIs(t, err, common.ErrForbidden)

	got, err := f.ledger.GetInvestment(f.ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.False(t, got.Sold)
}

func TestLoan_EMIScenario(t *testing.T) {
	for name, newF := range map[string]func(*testing.T) *fixture{
		"memory": newMemFixture,
		"sqlite": newSQLiteFixture,
	} {
		t.Run(name, func(t *testing.T) {
			f := newF(t)
			bank := f.bank("10000")

			loan, err := f.ledger.CreateLoan(f.ctx, owner, models.Loan{
				LoanName: "Car", Lender: "HDFC", LoanAmount: d("12000"), EMI: d("2000"), NextEMIDate: "2024-01-05",
			})
			require.NoError(t, err)
			assert.True(t, loan.Remaining.Equal(d("12000")))

			for _, date := range []string{"2024-01-05", "2024-02-05"} {
				_, updated, err := f.ledger.PayEMI(f.ctx, owner, loan.ID, date, models.Bank(bank.ID))
				require.NoError(t, err)
				assert.Equal(t, date, updated.NextEMIDate)
			}
			got, err := f.ledger.GetLoan(f.ctx, owner, loan.ID)
			require.NoError(t, err)
			assert.True(t, got.Remaining.Equal(d("8000")))
			f.assertBalance(bank.Ref(), "6000")

			payments, err := f.ledger.ListLoanPayments(f.ctx, owner, loan.ID)
			require.NoError(t, err)
			require.Len(t, payments, 2)
			assert.Equal(t, "2024-02-05", payments[0].Date)

			closed, err := f.ledger.ForceCloseLoan(f.ctx, owner, loan.ID, "2024-03-01")
			require.NoError(t, err)
			assert.True(t, closed.Closed)
			assert.True(t, closed.Remaining.IsZero())
			assert.Equal(t, "2024-03-01", closed.ClosedOn)

			_, _, err = f.ledger.PayEMI(f.ctx, owner, loan.ID, "2024-03-05", models.Bank(bank.ID))
			assert.ErrorIs(t, err, common.ErrLoanClosed)
			f.assertBalance(bank.Ref(), "6000")

			// Deleting the loan reverses its payments.
			warns, err := f.ledger.DeleteLoan(f.ctx, owner, loan.ID)
			require.NoError(t, err)
			assert.Empty(t, warns)
			f.assertBalance(bank.Ref(), "10000")

			all, err := f.ledger.ListAllLoanPayments(f.ctx, owner, "")
			require.NoError(t, err)
			assert.Empty(t, all)
			_, err = f.ledger.GetLoan(f.ctx, owner, loan.ID)
			assert.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestLoan_RemainingNeverBelowZero(t *testing.T) {
	f := newMemFixture(t)
	loan, err := f.ledger.CreateLoan(f.ctx, owner, models.Loan{
		LoanName: "Phone", LoanAmount: d("3000"), EMI: d("2000"),
	})
	require.NoError(t, err)

	_, _, err = f.ledger.PayEMI(f.ctx, owner, loan.ID, "2024-01-01", models.Cash())
	require.NoError(t, err)
	_, updated, err := f.ledger.PayEMI(f.ctx, owner, loan.ID, "2024-02-01", models.Cash())
	require.NoError(t, err)
	assert.True(t, updated.Remaining.IsZero())
	assert.False(t, updated.Closed)
	f.assertBalance(f.cashRef(), "-4000")
}

func TestLoan_UpdateAndValidation(t *testing.T) {
	f := newMemFixture(t)

	_, err := f.ledger.CreateLoan(f.ctx, owner, models.Loan{LoanName: "x", LoanAmount: d("100")})
	assert.ErrorIs(t, err, common.ErrValidation)

	loan, err := f.ledger.CreateLoan(f.ctx, owner, models.Loan{LoanName: "Home", LoanAmount: d("100000"), EMI: d("1000")})
	require.NoError(t, err)

	updated, err := f.ledger.UpdateLoan(f.ctx, owner, loan.ID, models.Loan{
		LoanName: "Home", Lender: "SBI", LoanAmount: d("100000"), Remaining: d("90000"), EMI: d("1200"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SBI", updated.Lender)
	assert.True(t, updated.Remaining.Equal(d("90000")))

	_, err = f.ledger.UpdateLoan(f.ctx, owner, loan.ID, models.Loan{
		LoanName: "Home", LoanAmount: d("100000"), Remaining: d("-1"), EMI: d("1200"),
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.ledger.UpdateLoan(f.ctx, "mallory", loan.ID, *updated)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestLendBorrow_SettleMovesExactAmount(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")
	src := models.Bank(bank.ID)

	lend, err := f.ledger.CreateLendBorrow(f.ctx, owner, models.LendBorrow{
		Type: models.Lend, PersonName: "Bob", Amount: d("300"), Date: "2024-03-01", Payment: &src,
	})
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "700")

	settled, err := f.ledger.SettleLendBorrow(f.ctx, owner, lend.ID, "2024-04-01", src)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)
	f.assertBalance(bank.Ref(), "1000")

	_, err = f.ledger.SettleLendBorrow(f.ctx, owner, lend.ID, "2024-04-02", src)
	assert.ErrorIs(t, err, common.ErrValidation)
	f.assertBalance(bank.Ref(), "1000")

	borrow, err := f.ledger.CreateLendBorrow(f.ctx, owner, models.LendBorrow{
		Type: models.Borrow, PersonName: "Eve", Amount: d("250"), Date: "2024-03-02", Payment: &src,
	})
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1250")

	_, err = f.ledger.SettleLendBorrow(f.ctx, owner, borrow.ID, "", src)
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1000")

	lends, err := f.ledger.ListLendBorrow(f.ctx, owner, models.Lend)
	require.NoError(t, err)
	require.Len(t, lends, 1)
	assert.Equal(t, lend.ID, lends[0].ID)

	_, err = f.ledger.ListLendBorrow(f.ctx, owner, "gift")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLendBorrow_DeleteReversesBothPhases(t *testing.T) {
	f := newMemFixture(t)
	lendFrom := f.bank("1000")
	repaidTo := f.bank("0")
	src := models.Bank(lendFrom.ID)

	lend, err := f.ledger.CreateLendBorrow(f.ctx, owner, models.LendBorrow{
		Type: models.Lend, PersonName: "Bob", Amount: d("400"), Date: "2024-03-01", Payment: &src,
	})
	require.NoError(t, err)
	_, err = f.ledger.SettleLendBorrow(f.ctx, owner, lend.ID, "2024-03-10", models.Bank(repaidTo.ID))
	require.NoError(t, err)
	f.assertBalance(lendFrom.Ref(), "600")
	f.assertBalance(repaidTo.Ref(), "400")

	_, err = f.ledger.DeleteLendBorrow(f.ctx, owner, lend.ID)
	require.NoError(t, err)
	f.assertBalance(lendFrom.Ref(), "1000")
	f.assertBalance(repaidTo.Ref(), "0")
}

func TestLendBorrow_WithoutSourceMovesNothing(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")

	lb, err := f.ledger.CreateLendBorrow(f.ctx, owner, models.LendBorrow{
		Type: models.Lend, PersonName: "Bob", SourceName: "pocket", Amount: d("50"), Date: "2024-03-01",
	})
	require.NoError(t, err)
	assert.Empty(t, lb.Effects)

	_, err = f.ledger.DeleteLendBorrow(f.ctx, owner, lb.ID)
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1000")
}
