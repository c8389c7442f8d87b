package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
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
	engine  *Engine
	holders *holders.Service
}

func newFixture(t *testing.T, store interfaces.DocumentStore) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.BalancesConfig{MaxCASRetries: 5, WriteRetries: 2, RetryInterval: "1ms"}
	h := holders.NewService(store, cfg, logger)
	return &fixture{t: t, ctx: context.Background(), engine: NewEngine(h, logger), holders: h}
}

func newMemFixture(t *testing.T) *fixture {
	return newFixture(t, memdb.New(common.NewSilentLogger()))
}

func (f *fixture) bank(balance string) *models.BankAccount {
	a, err := f.holders.CreateBankAccount(f.ctx, owner, "Bank", d(balance))
	require.NoError(f.t, err)
	return a
}

func (f *fixture) card(limit, current string) *models.CreditCard {
	cur := d(current)
	c, err := f.holders.CreateCreditCard(f.ctx, owner, "Card", d(limit), &cur)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) custom(balance string) models.HolderRef {
	m := &models.PaymentMode{Meta: models.Meta{OwnerID: owner}, Name: "GPay", Type: "UPI", Balance: d(balance)}
	_, err := storage.NewCollection[models.PaymentMode](f.holders.Store()).Insert(f.ctx, m)
	require.NoError(f.t, err)
	return m.Ref()
}

func (f *fixture) cash(balance string) models.HolderRef {
	w, err := f.holders.DepositCash(f.ctx, owner, d(balance))
	require.NoError(f.t, err)
	return w.Ref()
}

func (f *fixture) balance(ref models.HolderRef) decimal.Decimal {
	b, err := f.holders.GetBalance(f.ctx, owner, ref)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) assertBalance(ref models.HolderRef, want string) {
	f.t.Helper()
	got := f.balance(ref)
	assert.True(f.t, got.Equal(d(want)), "%s: want %s, got %s", ref, want, got)
}

func expense(amount string, src models.PaymentSource) *models.Expense {
	return &models.Expense{
		Meta: models.Meta{OwnerID: owner}, Amount: d(amount),
		Category: "Food", Date: "2024-03-01", Payment: src,
	}
}

func TestRoundTrip_EveryKindOnEveryHolder(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")
	card := f.card("5000", "5000")
	custom := f.custom("300")
	cash := f.cash("500")

	sources := map[string]models.PaymentSource{
		"cash":   models.Cash(),
		"bank":   models.Bank(bank.ID),
		"card":   models.Card(card.ID),
		"custom": models.Custom(custom.ID),
	}
	lend := models.Lend
	borrow := models.Borrow

	for name, src := range sources {
		src := src
		txs := map[string]models.Transaction{
			"expense": expense("120", src),
			"income": &models.Income{Meta: models.Meta{OwnerID: owner}, Amount: d("80"),
				SourceName: "Salary", Date: "2024-03-01", Payment: src},
			"investment": &models.Investment{Meta: models.Meta{OwnerID: owner}, Name: "Index fund",
				Category: "MF", Amount: d("200"), Date: "2024-03-01", Payment: src},
			"emi":    &models.LoanPayment{Meta: models.Meta{OwnerID: owner}, LoanID: "l1", Amount: d("50"), Date: "2024-03-01", Payment: src},
			"lend":   &models.LendBorrow{Meta: models.Meta{OwnerID: owner}, Type: lend, PersonName: "Bob", Amount: d("70"), Date: "2024-03-01", Payment: &src},
			"borrow": &models.LendBorrow{Meta: models.Meta{OwnerID: owner}, Type: borrow, PersonName: "Bob", Amount: d("90"), Date: "2024-03-01", Payment: &src},
		}
		for kind, tx := range txs {
			t.Run(kind+" via "+name, func(t *testing.T) {
				before := map[models.HolderRef]decimal.Decimal{
					bank.Ref(): f.balance(bank.Ref()),
					card.Ref(): f.balance(card.Ref()),
					custom:     f.balance(custom),
					cash:       f.balance(cash),
				}

				require.NoError(t, f.engine.Apply(f.ctx, owner, tx))
				require.NotEmpty(t, tx.AppliedEffects())
				require.NoError(t, f.engine.Reverse(f.ctx, owner, tx))

				for ref, want := range before {
					got := f.balance(ref)
					assert.True(t, got.Equal(want), "%s: want %s, got %s", ref, want, got)
				}
			})
		}
	}
}

func TestApply_SignConvention(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")
	src := models.Bank(bank.ID)

	require.NoError(t, f.engine.Apply(f.ctx, owner, expense("100", src)))
	f.assertBalance(bank.Ref(), "900")

	require.NoError(t, f.engine.Apply(f.ctx, owner, &models.Income{
		Meta: models.Meta{OwnerID: owner}, Amount: d("40"), SourceName: "Gift", Date: "2024-03-01", Payment: src,
	}))
	f.assertBalance(bank.Ref(), "940")

	lend := &models.LendBorrow{Meta: models.Meta{OwnerID: owner}, Type: models.Lend, PersonName: "Bob", Amount: d("300"), Date: "2024-03-01", Payment: &src}
	require.NoError(t, f.engine.Apply(f.ctx, owner, lend))
	f.assertBalance(bank.Ref(), "640")

	borrow := &models.LendBorrow{Meta: models.Meta{OwnerID: owner}, Type: models.Borrow, PersonName: "Eve", Amount: d("500"), Date: "2024-03-01", Payment: &src}
	require.NoError(t, f.engine.Apply(f.ctx, owner, borrow))
	f.assertBalance(bank.Ref(), "1140")

	// Settlement moves money the other way round.
	_, err := f.engine.ApplyMovements(f.ctx, owner, lend.SettleMovements(src))
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "1440")
	_, err = f.engine.ApplyMovements(f.ctx, owner, borrow.SettleMovements(src))
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "940")
}

func TestApply_CashAutoProvisionsWallet(t *testing.T) {
	f := newMemFixture(t)

	tx := &models.Income{Meta: models.Meta{OwnerID: owner}, Amount: d("25"), SourceName: "Tips", Date: "2024-03-01", Payment: models.Cash()}
	require.NoError(t, f.engine.Apply(f.ctx, owner, tx))

	w, err := f.holders.CashWallet(f.ctx, owner)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("25")))
	assert.Equal(t, w.Ref(), tx.Effects[0].Holder)
}

func TestReverse_UsesFrozenHolderAndClampedDelta(t *testing.T) {
	f := newMemFixture(t)
	card := f.card("1000", "900")

	// Only 100 of the refund fits under the limit.
	refund := &models.Income{Meta: models.Meta{OwnerID: owner}, Amount: d("300"), SourceName: "Refund", Date: "2024-03-01", Payment: models.Card(card.ID)}
	require.NoError(t, f.engine.Apply(f.ctx, owner, refund))
	f.assertBalance(card.Ref(), "1000")
	assert.True(t, refund.Effects[0].Delta.Equal(d("100")))

	require.NoError(t, f.engine.Reverse(f.ctx, owner, refund))
	f.assertBalance(card.Ref(), "900")
}

func TestCashScenario_ApplyEditDelete(t *testing.T) {
	f := newMemFixture(t)
	wallet := f.cash("500")

	old := expense("200", models.Cash())
	require.NoError(t, f.engine.Apply(f.ctx, owner, old))
	f.assertBalance(wallet, "300")

	edited := *old
	edited.Amount = d("150")
	require.NoError(t, f.engine.Reapply(f.ctx, owner, old, &edited))
	f.assertBalance(wallet, "350")

	require.NoError(t, f.engine.Reverse(f.ctx, owner, &edited))
	f.assertBalance(wallet, "500")
}

func TestReapply_MovesBetweenHolders(t *testing.T) {
	f := newMemFixture(t)
	a := f.bank("1000")
	b := f.bank("1000")

	old := expense("100", models.Bank(a.ID))
	require.NoError(t, f.engine.Apply(f.ctx, owner, old))

	next := *old
	next.Amount = d("250")
	next.Payment = models.Bank(b.ID)
	require.NoError(t, f.engine.Reapply(f.ctx, owner, old, &next))

	f.assertBalance(a.Ref(), "1000")
	f.assertBalance(b.Ref(), "750")
	require.Len(t, next.Effects, 1)
	assert.Equal(t, b.Ref(), next.Effects[0].Holder)
}

func TestReverse_DanglingReference(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("9000")
	card := f.card("10000", "4000")

	p, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("2000"), "2024-03-01")
	require.NoError(t, err)
	require.NoError(t, f.holders.DeleteBankAccount(f.ctx, owner, bank.ID))

	err = f.engine.DeleteCardPayment(f.ctx, owner, p.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDanglingReference)

	var dre *DanglingReferenceError
	require.ErrorAs(t, err, &dre)
	assert.Equal(t, []models.HolderRef{bank.Ref()}, dre.Holders)
	require.Len(t, dre.Warnings(), 1)
	assert.Equal(t, "dangling_reference", dre.Warnings()[0].Code)

	// The card side was still reversed and the record removed.
	f.assertBalance(card.Ref(), "4000")
	payments, err := f.engine.ListCardPayments(f.ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// unreachableStore fails reads of one document id.
type unreachableStore struct {
	interfaces.DocumentStore
	id string
}

func (s *unreachableStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	if id == s.id {
		return nil, errors.New("connection refused")
	}
	return s.DocumentStore.Get(ctx, collection, id)
}

func TestReverse_UnreadableHolderIsNotDangling(t *testing.T) {
	store := &unreachableStore{DocumentStore: memdb.New(common.NewSilentLogger())}
	f := newFixture(t, store)
	bank := f.bank("1000")

	tx := expense("100", models.Bank(bank.ID))
	require.NoError(t, f.engine.Apply(f.ctx, owner, tx))
	f.assertBalance(bank.Ref(), "900")

	store.id = bank.ID
	err := f.engine.Reverse(f.ctx, owner, tx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDanglingReference)
	assert.Len(t, tx.AppliedEffects(), 1, "effects are kept for a later retry")

	store.id = ""
	require.NoError(t, f.engine.Reverse(f.ctx, owner, tx))
	f.assertBalance(bank.Ref(), "1000")
}

func TestPayCardBill(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		wantBank string
		wantCard string
	}{
		{"exact payoff", "6000", "3000", "10000"},
		{"overpayment is clamped on the card", "7000", "2000", "10000"},
		{"partial", "1500", "7500", "5500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMemFixture(t)
			bank := f.bank("9000")
			card := f.card("10000", "4000")

			p, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d(tt.amount), "2024-03-10")
			require.NoError(t, err)
			f.assertBalance(bank.Ref(), tt.wantBank)
			f.assertBalance(card.Ref(), tt.wantCard)
			assert.NotEmpty(t, p.ID)

			payments, err := f.engine.ListCardPayments(f.ctx, owner, card.ID)
			require.NoError(t, err)
			require.Len(t, payments, 1)
			assert.True(t, payments[0].Amount.Equal(d(tt.amount)))

			require.NoError(t, f.engine.DeleteCardPayment(f.ctx, owner, p.ID))
			f.assertBalance(bank.Ref(), "9000")
			f.assertBalance(card.Ref(), "4000")
		})
	}
}

func TestPayCardBill_Validation(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("9000")
	card := f.card("10000", "4000")

	_, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("0"), "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.engine.PayCardBill(f.ctx, owner, card.ID, "missing", d("10"), "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.engine.PayCardBill(f.ctx, "bob", card.ID, bank.ID, d("10"), "")
	assert.ErrorIs(t, err, common.ErrForbidden)

	f.assertBalance(bank.Ref(), "9000")
	f.assertBalance(card.Ref(), "4000")
}

func TestCardClampInvariant_RandomSequence(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("100000")
	card := f.card("3000", "3000")
	src := models.Card(card.ID)

	var applied []models.Transaction
	steps := []string{"1200", "-500", "2500", "-4000", "800", "-100", "3100"}
	for _, amt := range steps {
		var tx models.Transaction
		if strings.HasPrefix(amt, "-") {
			tx = &models.Income{Meta: models.Meta{OwnerID: owner}, Amount: d(amt).Neg(), SourceName: "Refund", Date: "2024-03-01", Payment: src}
		} else {
			tx = expense(amt, src)
		}
		require.NoError(t, f.engine.Apply(f.ctx, owner, tx))
		applied = append(applied, tx)

		_, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("700"), "")
		require.NoError(t, err)
		bal := f.balance(card.Ref())
		assert.False(t, bal.IsNegative(), "balance %s below zero", bal)
		assert.True(t, bal.LessThanOrEqual(d("3000")), "balance %s above limit", bal)
	}

	for i := len(applied) - 1; i >= 0; i-- {
		require.NoError(t, f.engine.Reverse(f.ctx, owner, applied[i]))
		bal := f.balance(card.Ref())
		assert.False(t, bal.IsNegative())
		assert.True(t, bal.LessThanOrEqual(d("3000")))
	}
}

// failingStore fails updates to one document id, and optionally every
// update to a second id after the first succeeded.
type failingStore struct {
	interfaces.DocumentStore
	mu          sync.Mutex
	failID      string
	breakAfter  string
	breakActive bool
}

func (s *failingStore) Update(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	if doc.ID == s.failID {
		s.mu.Unlock()
		return errors.New("disk full")
	}
	if doc.ID == s.breakAfter {
		if s.breakActive {
			s.mu.Unlock()
			return errors.New("connection lost")
		}
		s.breakActive = true
	}
	s.mu.Unlock()
	return s.DocumentStore.Update(ctx, doc)
}

func TestExecute_SagaCompensatesOnFailure(t *testing.T) {
	store := &failingStore{DocumentStore: memdb.New(common.NewSilentLogger())}
	f := newFixture(t, store)
	bank := f.bank("9000")
	card := f.card("10000", "4000")
	store.failID = card.ID

	_, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("1000"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolled back")
	assert.NotErrorIs(t, err, common.ErrPartialFailure)

	f.assertBalance(bank.Ref(), "9000")
	payments, err := f.engine.ListCardPayments(f.ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestExecute_PartialFailureWhenCompensationFails(t *testing.T) {
	store := &failingStore{DocumentStore: memdb.New(common.NewSilentLogger())}
	f := newFixture(t, store)
	bank := f.bank("9000")
	card := f.card("10000", "4000")
	store.failID = card.ID
	store.breakAfter = bank.ID

	_, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("1000"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPartialFailure)

	var pf *saga.PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "ccpayment.create", pf.Operation)
	assert.Equal(t, []string{"apply " + models.Bank(bank.ID).String()}, pf.Committed)

	// The bank debit could not be undone.
	f.assertBalance(bank.Ref(), "8000")
}

func TestExecute_CancelledContextLeavesBalancesAlone(t *testing.T) {
	f := newMemFixture(t)
	bank := f.bank("1000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.engine.Apply(ctx, owner, expense("100", models.Bank(bank.ID)))
	assert.ErrorIs(t, err, context.Canceled)
	f.assertBalance(bank.Ref(), "1000")
}

func TestExecute_AtomicOnBatchingStore(t *testing.T) {
	store, err := sqlitedb.Open(common.NewSilentLogger(), filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	defer store.Close()

	f := newFixture(t, store)
	a := f.bank("1000")
	bank := f.bank("9000")
	card := f.card("10000", "4000")

	old := expense("100", models.Bank(a.ID))
	require.NoError(t, f.engine.Apply(f.ctx, owner, old))
	f.assertBalance(a.Ref(), "900")

	// The reverse step commits inside the transaction, then the apply step
	// fails on a missing holder: the whole unit must roll back.
	next := *old
	next.Payment = models.Bank("missing")
	err = f.engine.Reapply(f.ctx, owner, old, &next)
	assert.ErrorIs(t, err, common.ErrNotFound)
	f.assertBalance(a.Ref(), "900")

	p, err := f.engine.PayCardBill(f.ctx, owner, card.ID, bank.ID, d("7000"), "2024-03-10")
	require.NoError(t, err)
	f.assertBalance(bank.Ref(), "2000")
	f.assertBalance(card.Ref(), "10000")

	require.NoError(t, f.engine.DeleteCardPayment(f.ctx, owner, p.ID))
	f.assertBalance(bank.Ref(), "9000")
	f.assertBalance(card.Ref(), "4000")
}
