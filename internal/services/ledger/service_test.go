package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/bobmcallan/tally/internal/services/holders"
	"github.com/bobmcallan/tally/internal/storage"
	"github.com/bobmcallan/tally/internal/storage/memdb"
	"github.com/bobmcallan/tally/internal/storage/sqlitedb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "alice"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   interfaces.DocumentStore
	holders *holders.Service
	engine  *engine.Engine
	ledger  *Service
}

func newFixture(t *testing.T, store interfaces.DocumentStore) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	h := holders.NewService(store, common.BalancesConfig{MaxCASRetries: 5, WriteRetries: 2, RetryInterval: "1ms"}, logger)
	e := engine.NewEngine(h, logger)
	return &fixture{
		t: t, ctx: context.Background(), store: store,
		holders: h, engine: e, ledger: NewService(e, logger),
	}
}

func newMemFixture(t *testing.T) *fixture {
	return newFixture(t, memdb.New(common.NewSilentLogger()))
}

func newSQLiteFixture(t *testing.T) *fixture {
	store, err := sqlitedb.Open(common.NewSilentLogger(), filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newFixture(t, store)
}

func (f *fixture) bank(balance string) *models.BankAccount {
	a, err := f.holders.CreateBankAccount(f.ctx, owner, "Bank", d(balance))
	require.NoError(f.t, err)
	return a
}

func (f *fixture) mode(balance string) *models.PaymentMode {
	m := &models.PaymentMode{Meta: models.Meta{OwnerID: owner}, Name: "GPay", Type: "UPI", Balance: d(balance)}
	_, err := storage.NewCollection[models.PaymentMode](f.store).Insert(f.ctx, m)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) assertBalance(ref models.HolderRef, want string) {
	f.t.Helper()
	got, err := f.holders.GetBalance(f.ctx, owner, ref)
	require.NoError(f.t, err)
	assert.True(f.t, got.Equal(d(want)), "%s: want %s, got %s", ref, want, got)
}

func (f *fixture) cashRef() models.HolderRef {
	w, err := f.holders.CashWallet(f.ctx, owner)
	require.NoError(f.t, err)
	return w.Ref()
}

func expenseInput(amount string, src models.PaymentSource) models.Expense {
	return models.Expense{Amount: d(amount), Category: "Food", Date: "2024-03-05", Payment: src}
}

func TestExpense_CashScenario(t *testing.T) {
	for name, newF := range map[string]func(*testing.T) *fixture{
		"memory": newMemFixture,
		"sqlite": newSQLiteFixture,
	} {
		t.Run(name, func(t *testing.T) {
			f := newF(t)
			_, err := f.holders.DepositCash(f.ctx, owner, d("500"))
			require.NoError(t, err)
			cash := f.cashRef()

			exp, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("200", models.Cash()))
			require.NoError(t, err)
			assert.NotEmpty(t, exp.ID)
			f.assertBalance(cash, "300")

			in := expenseInput("150", models.Cash())
			updated, warns, err := f.ledger.UpdateExpense(f.ctx, owner, exp.ID, in)
			require.NoError(t, err)
			assert.Empty(t, warns)
			assert.True(t, updated.Amount.Equal(d("150")))
			f.assertBalance(cash, "350")

			warns, err = f.ledger.DeleteExpense(f.ctx, owner, exp.ID)
			require.NoError(t, err)
			assert.Empty(t, warns)
			f.assertBalance(cash, "500")

			_, err = f.ledger.GetExpense(f.ctx, owner, exp.ID)
			assert.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestExpense_UpdateWithoutMoneyChangeLeavesBalances(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")

	exp, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("100", models.Bank(bank.ID)))
	require.NoError(t, err)

	in := expenseInput("100", models.Bank(bank.ID))
	in.Category = "Groceries"
	in.Description = "weekly shop"
	updated, _, err := f.ledger.UpdateExpense(f.ctx, owner, exp.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Category)
	require.Len(t, updated.Effects, 1)
	assert.True(t, updated.Effects[0].Delta.Equal(d("-100")))
	f.assertBalance(bank.Ref(), "900")

	stored, err := f.ledger.GetExpense(f.ctx, owner, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekly shop", stored.Description)
	assert.Equal(t, 2, stored.Version)
}

func TestExpense_UpdateMovesToAnotherHolder(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")
	mode := f.mode("400")

	exp, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("100", models.Bank(bank.ID)))
	require.NoError(t, err)

	_, _, err = f.ledger.UpdateExpense(f.ctx, owner, exp.ID, expenseInput("50", models.Custom(mode.ID)))
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1000")
	f.assertBalance(mode.Ref(), "350")
}

func TestExpense_ValidationBeforeAnyWrite(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")

	tests := []struct {
		name string
		in   models.Expense
	}{
		{"zero amount", expenseInput("0", models.Bank(bank.ID))},
		{"negative amount", expenseInput("-5", models.Bank(bank.ID))},
		{"missing category", models.Expense{Amount: d("5"), Date: "2024-03-01", Payment: models.Bank(bank.ID)}},
		{"bad date", models.Expense{Amount: d("5"), Category: "Food", Date: "03/01/2024", Payment: models.Bank(bank.ID)}},
		{"missing payment", models.Expense{Amount: d("5"), Category: "Food", Date: "2024-03-01"}},
		{"bank without id", expenseInput("5", models.PaymentSource{Kind: models.SourceBank})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateExpense(f.ctx, owner, tt.in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	all, err := f.ledger.ListExpenses(f.ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, all)
	f.assertBalance(bank.Ref(), "1000")
}

func TestExpense_MissingHolderRollsBack(t *testing.T) {
	f := newMemFixture(t)

	_, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("10", models.Bank("gone")))
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := f.ledger.ListExpenses(f.ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExpense_OwnershipGuard(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")
	exp, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("100", models.Bank(bank.ID)))
	require.NoError(t, err)

	_, err = f.ledger.GetExpense(f.ctx, "mallory", exp.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, _, err = f.ledger.UpdateExpense(f.ctx, "mallory", exp.ID, expenseInput("1", models.Bank(bank.ID)))
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = f.ledger.DeleteExpense(f.ctx, "mallory", exp.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = f.ledger.CreateExpense(f.ctx, "", expenseInput("1", models.Cash()))
	assert.ErrorIs(t, err, common.ErrForbidden)

	others, err := f.ledger.ListExpenses(f.ctx, "mallory", "")
	require.NoError(t, err)
	assert.Empty(t, others)
	f.assertBalance(bank.Ref(), "900")
}

func TestExpense_ListOrderAndMonthFilter(t *testing.T) {
	f := newMemFixture(t)
	for _, date := range []string{"2024-03-20", "2024-02-10", "2024-03-01", "2024-03-20"} {
		in := expenseInput("1", models.Cash())
		in.Date = date
		_, err := f.ledger.CreateExpense(f.ctx, owner, in)
		require.NoError(t, err)
	}

	all, err := f.ledger.ListExpenses(f.ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2024-02-10", all[0].Date)
	assert.Equal(t, "2024-03-20", all[3].Date)
	assert.True(t, all[2].CreatedAt.Before(all[3].CreatedAt) || all[2].CreatedAt.Equal(all[3].CreatedAt))

	march, err := f.ledger.ListExpenses(f.ctx, owner, "2024-03")
	require.NoError(t, err)
	assert.Len(t, march, 3)

	_, err = f.ledger.ListExpenses(f.ctx, owner, "March")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExpense_DeleteAfterModeRemovedWarns(t *testing.T) {
	f := newMemFixture(t)
	mode := f.mode("400")
	bank := f.bank("100")

	exp, err := f.ledger.CreateExpense(f.ctx, owner, expenseInput("40", models.Custom(mode.ID)))
	require.NoError(t, err)
	require.NoError(t, storage.NewCollection[models.PaymentMode](f.store).Delete(f.ctx, mode.ID))

	warns, err := f.ledger.DeleteExpense(f.ctx, owner, exp.ID)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "dangling_reference", warns[0].Code)

	_, err = f.ledger.GetExpense(f.ctx, owner, exp.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	f.assertBalance(bank.Ref(), "100")
}

func TestIncome_CreditsAndReverses(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")

	inc, err := f.ledger.CreateIncome(f.ctx, owner, models.Income{
		Amount: d("2500"), SourceName: "Salary", Date: "2024-03-01", Payment: models.Bank(bank.ID),
	})
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "3500")

	_, _, err = f.ledger.UpdateIncome(f.ctx, owner, inc.ID, models.Income{
		Amount: d("3000"), SourceName: "Salary", Date: "2024-03-01", Payment: models.Bank(bank.ID),
	})
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "4000")

	_, err = f.ledger.DeleteIncome(f.ctx, owner, inc.ID)
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1000")

	_, err = f.ledger.CreateIncome(f.ctx, owner, models.Income{Amount: d("1"), Date: "2024-03-01", Payment: models.Cash()})
	assert.ErrorIs(t, err, common.ErrValidation)
}
