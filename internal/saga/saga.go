// Package saga runs a multi-step mutation as one unit. Each step has an undo;
// when a step fails, or the caller cancels between steps, the committed
// steps are undone in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
)

// Func is one forward or compensating action.
type Func func(ctx context.Context) error

type step struct {
	name string
	do   Func
	undo Func
}

// Saga is an ordered list of steps. Steps may be added while the saga runs,
// which lets a step schedule follow-up work that depends on its result.
type Saga struct {
	name      string
	steps     []step
	committed []step
	logger    *common.Logger
}

// New creates an empty saga. name identifies the operation in errors and logs.
func New(name string, logger *common.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// Name returns the operation name.
func (s *Saga) Name() string { return s.name }

// Add appends a step. undo may be nil for steps with nothing to compensate.
func (s *Saga) Add(name string, do, undo Func) *Saga {
	s.steps = append(s.steps, step{name: name, do: do, undo: undo})
	return s
}

// Len returns the number of steps added so far.
func (s *Saga) Len() int { return len(s.steps) }

// Committed returns the names of steps that completed, in order.
func (s *Saga) Committed() []string {
	names := make([]string, 0, len(s.committed))
	for _, st := range s.committed {
		names = append(names, st.name)
	}
	return names
}

// Run executes every step in order. On failure it compensates and returns
// either a rolled-back error wrapping the cause, or a *PartialFailure when
// some compensation also failed. A context cancelled between steps is
// treated as a failure of the next step.
func (s *Saga) Run(ctx context.Context) error {
	for i := 0; i < len(s.steps); i++ {
		st := s.steps[i]
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, st.name, err)
		}
		if err := st.do(ctx); err != nil {
			return s.abort(ctx, st.name, err)
		}
		s.committed = append(s.committed, st)
	}
	return nil
}

// RunAtomic executes the steps without compensation. It is used inside a
// storage transaction, where rollback is the store's job.
func (s *Saga) RunAtomic(ctx context.Context) error {
	for i := 0; i < len(s.steps); i++ {
		st := s.steps[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.do(ctx); err != nil {
			return fmt.Errorf("saga %s: step %q failed: %w", s.name, st.name, err)
		}
		s.committed = append(s.committed, st)
	}
	return nil
}

func (s *Saga) abort(ctx context.Context, failed string, cause error) error {
	committed := s.Committed()
	if len(s.committed) == 0 {
		return fmt.Errorf("saga %s: step %q failed: %w", s.name, failed, cause)
	}

	// Compensation must run to completion even if the caller gave up.
	undoCtx := context.WithoutCancel(ctx)

	var undoErrs []error
	for i := len(s.committed) - 1; i >= 0; i-- {
		st := s.committed[i]
		if st.undo == nil {
			continue
		}
		if err := st.undo(undoCtx); err != nil {
			s.logger.Error().
				Str("saga", s.name).
				Str("step", st.name).
				Err(err).
				Msg("Compensation failed")
			undoErrs = append(undoErrs, fmt.Errorf("undo %q: %w", st.name, err))
		}
	}

	if len(undoErrs) == 0 {
		s.logger.Warn().
			Str("saga", s.name).
			Str("failed_step", failed).
			Int("rolled_back", len(committed)).
			Err(cause).
			Msg("Saga rolled back")
		return fmt.Errorf("saga %s: step %q failed, rolled back: %w", s.name, failed, cause)
	}

	return &PartialFailure{
		Operation:       s.name,
		Committed:       committed,
		Failed:          failed,
		Err:             cause,
		CompensationErr: errors.Join(undoErrs...),
	}
}

// PartialFailure reports a saga that failed and could not fully undo itself.
// Committed lists every step that ran forward; CompensationErr says which
// undos failed, so the affected balances can be repaired by hand.
type PartialFailure struct {
	Operation       string
	Committed       []string
	Failed          string
	Err             error
	CompensationErr error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure in %s: step %q failed (%v) after [%s]; compensation failed: %v",
		e.Operation, e.Failed, e.Err, strings.Join(e.Committed, ", "), e.CompensationErr)
}

func (e *PartialFailure) Is(target error) bool { return target == common.ErrPartialFailure }

func (e *PartialFailure) Unwrap() error { return e.Err }
