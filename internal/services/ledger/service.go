// Package ledger records expenses, incomes, investments, loans and
// lend/borrow entries. Every mutation validates its input, loads and guards
// the stored record, then runs the balance effects and the record write as
// one unit through the engine.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/bobmcallan/tally/internal/storage"
)

// Compile-time interface check
var _ interfaces.LedgerService = (*Service)(nil)

// Service implements LedgerService
type Service struct {
	engine       *engine.Engine
	expenses     *storage.Collection[models.Expense, *models.Expense]
	incomes      *storage.Collection[models.Income, *models.Income]
	investments  *storage.Collection[models.Investment, *models.Investment]
	loans        *storage.Collection[models.Loan, *models.Loan]
	loanPayments *storage.Collection[models.LoanPayment, *models.LoanPayment]
	lendBorrow   *storage.Collection[models.LendBorrow, *models.LendBorrow]
	logger       *common.Logger
}

// NewService creates a ledger over the engine's store.
func NewService(e *engine.Engine, logger *common.Logger) *Service {
	store := e.Store()
	return &Service{
		engine:       e,
		expenses:     storage.NewCollection[models.Expense](store),
		incomes:      storage.NewCollection[models.Income](store),
		investments:  storage.NewCollection[models.Investment](store),
		loans:        storage.NewCollection[models.Loan](store),
		loanPayments: storage.NewCollection[models.LoanPayment](store),
		lendBorrow:   storage.NewCollection[models.LendBorrow](store),
		logger:       logger,
	}
}

// txRecord is a stored transaction.
type txRecord[T any] interface {
	*T
	models.Transaction
}

// load fetches a record and checks the acting user owns it.
func load[T any, PT storage.Record[T]](ctx context.Context, coll *storage.Collection[T, PT], ownerID, id string) (PT, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	rec, err := coll.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownership.Assert(rec, ownerID); err != nil {
		return nil, err
	}
	return rec, nil
}

// create applies rec's movements and inserts it as one unit.
func create[T any, PT txRecord[T]](ctx context.Context, e *engine.Engine, op string, coll *storage.Collection[T, PT], rec PT) error {
	return e.Execute(ctx, op, func(x *engine.Engine, sg *saga.Saga) error {
		var effects []models.Effect
		x.AddApply(sg, rec.Owner(), rec.Movements(), &effects)
		engine.InsertStep(sg, coll.On(x.Store()), rec, func() { rec.SetAppliedEffects(effects) })
		return nil
	})
}

// update writes next over cur. When the money moved differently, cur's
// effects are reversed and next's movements applied in the same unit.
func update[T any, PT txRecord[T]](ctx context.Context, e *engine.Engine, op string, coll *storage.Collection[T, PT], cur, next PT, moneyChanged bool) ([]models.Warning, error) {
	var dangling engine.Dangling
	err := e.Execute(ctx, op, func(x *engine.Engine, sg *saga.Saga) error {
		c := coll.On(x.Store())
		if !moneyChanged {
			engine.UpdateStep(sg, c, next, cur, nil)
			return nil
		}
		var effects []models.Effect
		x.AddReverse(sg, cur.Owner(), cur.AppliedEffects(), &dangling)
		x.AddApply(sg, cur.Owner(), next.Movements(), &effects)
		engine.UpdateStep(sg, c, next, cur, func() { next.SetAppliedEffects(effects) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings(dangling.Err())
}

// remove reverses effects and deletes rec as one unit.
func remove[T any, PT storage.Record[T]](ctx context.Context, e *engine.Engine, op string, coll *storage.Collection[T, PT], rec PT, effects ...[]models.Effect) ([]models.Warning, error) {
	var dangling engine.Dangling
	err := e.Execute(ctx, op, func(x *engine.Engine, sg *saga.Saga) error {
		for _, fx := range effects {
			x.AddReverse(sg, rec.Owner(), fx, &dangling)
		}
		engine.DeleteStep(sg, coll.On(x.Store()), rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings(dangling.Err())
}

// warnings turns a dangling reference into warnings; any other error is returned.
func warnings(err error) ([]models.Warning, error) {
	if err == nil {
		return nil, nil
	}
	var dre *engine.DanglingReferenceError
	if errors.As(err, &dre) {
		return dre.Warnings(), nil
	}
	return nil, err
}

// monthOptions lists by ascending date, limited to month ("YYYY-MM") when set.
func monthOptions(month string) (interfaces.QueryOptions, error) {
	opts := interfaces.QueryOptions{OrderBy: interfaces.OrderDateAsc}
	month = strings.TrimSpace(month)
	if month == "" {
		return opts, nil
	}
	if _, err := models.ParseDate(month + "-01"); err != nil {
		return opts, common.Invalid("month", "must be YYYY-MM")
	}
	opts.DatePrefix = month
	return opts, nil
}

func requireOwner(ownerID string) error { return ownership.RequireUser(ownerID) }
