// Package engine is the balance mutation engine. It turns a transaction's
// movements into applied effects on balance holders, reverses those effects,
// and runs every multi-step mutation as one unit: a single storage
// transaction when the store supports it, a compensating saga otherwise.
package engine

import (
	"context"
	"errors"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/services/holders"
	"github.com/bobmcallan/tally/internal/storage"
)

// Compile-time interface check
var _ interfaces.CardBillService = (*Engine)(nil)

// Engine applies and reverses balance effects.
type Engine struct {
	holders    *holders.Service
	ccPayments *storage.Collection[models.CcPayment, *models.CcPayment]
	logger     *common.Logger
}

// NewEngine creates an engine over the holder service.
func NewEngine(h *holders.Service, logger *common.Logger) *Engine {
	return &Engine{
		holders:    h,
		ccPayments: storage.NewCollection[models.CcPayment](h.Store()),
		logger:     logger,
	}
}

// On returns a copy of the engine bound to store.
func (e *Engine) On(store interfaces.DocumentStore) *Engine {
	return &Engine{
		holders:    e.holders.On(store),
		ccPayments: e.ccPayments.On(store),
		logger:     e.logger,
	}
}

// Store returns the store the engine writes through.
func (e *Engine) Store() interfaces.DocumentStore { return e.holders.Store() }

// Holders returns the holder service the engine is bound to.
func (e *Engine) Holders() *holders.Service { return e.holders }

// Logger returns the engine's logger.
func (e *Engine) Logger() *common.Logger { return e.logger }

// BuildFunc adds the steps of one operation to sg. x is the engine bound to
// the store the steps must write through.
type BuildFunc func(x *Engine, sg *saga.Saga) error

// Execute runs an operation as one unit. On a store that implements
// interfaces.Batcher every step runs inside one transaction and a failure
// leaves nothing behind. Otherwise the steps run as a saga and committed
// steps are compensated on failure.
func (e *Engine) Execute(ctx context.Context, name string, build BuildFunc) error {
	if b, ok := e.Store().(interfaces.Batcher); ok {
		return b.Batch(ctx, func(tx interfaces.DocumentStore) error {
			x := e.On(tx)
			sg := saga.New(name, e.logger)
			if err := build(x, sg); err != nil {
				return err
			}
			return sg.RunAtomic(ctx)
		})
	}

	sg := saga.New(name, e.logger)
	if err := build(e, sg); err != nil {
		return err
	}
	return sg.Run(ctx)
}

// AddApply adds one step per movement. Each step resolves the movement's
// source, applies its delta and appends the applied effect to out.
func (e *Engine) AddApply(sg *saga.Saga, ownerID string, movements []models.Movement, out *[]models.Effect) {
	for _, m := range movements {
		m := m
		var fx models.Effect
		sg.Add("apply "+m.Source.String(),
			func(ctx context.Context) error {
				ref, err := e.holders.Resolve(ctx, ownerID, m.Source)
				if err != nil {
					return err
				}
				applied, err := e.holders.ApplyDelta(ctx, ownerID, ref, m.Delta())
				if err != nil {
					return err
				}
				fx = models.Effect{Holder: ref, Delta: applied}
				*out = append(*out, fx)
				return nil
			},
			func(ctx context.Context) error {
				if fx.Delta.IsZero() {
					return nil
				}
				_, err := e.holders.ApplyDelta(ctx, ownerID, fx.Holder, fx.Delta.Neg())
				return err
			})
	}
}

// AddReverse adds one step per effect that applies the negated delta to the
// same holder. A holder that no longer exists is recorded in dangling and
// skipped; the other effects are still reversed.
func (e *Engine) AddReverse(sg *saga.Saga, ownerID string, effects []models.Effect, dangling *Dangling) {
	for _, fx := range effects {
		fx := fx
		var undone models.Effect
		sg.Add("reverse "+fx.Holder.String(),
			func(ctx context.Context) error {
				ok, err := e.holders.Exists(ctx, ownerID, fx.Holder)
				if err != nil {
					return err
				}
				if !ok {
					e.logger.Warn().
						Str("owner_id", ownerID).
						Str("holder", fx.Holder.String()).
						Str("delta", fx.Delta.String()).
						Msg("Cannot reverse effect on deleted holder")
					dangling.add(fx.Holder)
					return nil
				}
				applied, err := e.holders.ApplyDelta(ctx, ownerID, fx.Holder, fx.Delta.Neg())
				if err != nil {
					return err
				}
				undone = models.Effect{Holder: fx.Holder, Delta: applied}
				return nil
			},
			func(ctx context.Context) error {
				if undone.Delta.IsZero() {
					return nil
				}
				_, err := e.holders.ApplyDelta(ctx, ownerID, undone.Holder, undone.Delta.Neg())
				return err
			})
	}
}

// Apply moves money for tx and records the applied effects on it.
func (e *Engine) Apply(ctx context.Context, ownerID string, tx models.Transaction) error {
	effects, err := e.ApplyMovements(ctx, ownerID, tx.Movements())
	if err != nil {
		return err
	}
	tx.SetAppliedEffects(effects)
	return nil
}

// Reverse undoes tx's applied effects. It returns a *DanglingReferenceError
// when some holder was missing; every other effect is still reversed.
func (e *Engine) Reverse(ctx context.Context, ownerID string, tx models.Transaction) error {
	if err := e.ReverseEffects(ctx, ownerID, tx.AppliedEffects()); err != nil {
		if errors.Is(err, common.ErrDanglingReference) {
			tx.SetAppliedEffects(nil)
		}
		return err
	}
	tx.SetAppliedEffects(nil)
	return nil
}

// Reapply reverses old and applies next as one unit. next receives its new
// effects. A *DanglingReferenceError is returned after a successful run
// when some of old's holders were gone.
func (e *Engine) Reapply(ctx context.Context, ownerID string, old, next models.Transaction) error {
	var (
		effects  []models.Effect
		dangling Dangling
	)
	err := e.Execute(ctx, "reapply "+old.Collection(), func(x *Engine, sg *saga.Saga) error {
		x.AddReverse(sg, ownerID, old.AppliedEffects(), &dangling)
		x.AddApply(sg, ownerID, next.Movements(), &effects)
		return nil
	})
	if err != nil {
		return err
	}
	next.SetAppliedEffects(effects)
	return dangling.Err()
}

// ApplyMovements applies movements as one unit and returns their effects.
func (e *Engine) ApplyMovements(ctx context.Context, ownerID string, movements []models.Movement) ([]models.Effect, error) {
	var effects []models.Effect
	err := e.Execute(ctx, "apply", func(x *Engine, sg *saga.Saga) error {
		x.AddApply(sg, ownerID, movements, &effects)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return effects, nil
}

// ReverseEffects reverses effects as one unit.
func (e *Engine) ReverseEffects(ctx context.Context, ownerID string, effects []models.Effect) error {
	var dangling Dangling
	err := e.Execute(ctx, "reverse", func(x *Engine, sg *saga.Saga) error {
		x.AddReverse(sg, ownerID, effects, &dangling)
		return nil
	})
	if err != nil {
		return err
	}
	return dangling.Err()
}
