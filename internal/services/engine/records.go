package engine

import (
	"context"
	"errors"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/saga"
	"github.com/bobmcallan/tally/internal/storage"
)

// InsertStep adds a step that inserts rec; its undo deletes it. prepare, if
// set, runs just before the write so it can copy in results of earlier steps.
func InsertStep[T any, PT storage.Record[T]](sg *saga.Saga, coll *storage.Collection[T, PT], rec PT, prepare func()) {
	sg.Add("insert "+coll.Name(),
		func(ctx context.Context) error {
			if prepare != nil {
				prepare()
			}
			_, err := coll.Insert(ctx, rec)
			return err
		},
		func(ctx context.Context) error {
			return coll.Delete(ctx, rec.EntityMeta().ID)
		})
}

// UpdateStep adds a step that writes rec over its stored version; its undo
// writes prev back. prev must be a copy of rec taken before it was changed.
func UpdateStep[T any, PT storage.Record[T]](sg *saga.Saga, coll *storage.Collection[T, PT], rec, prev PT, prepare func()) {
	sg.Add("update "+coll.Name(),
		func(ctx context.Context) error {
			if prepare != nil {
				prepare()
			}
			return coll.Update(ctx, rec)
		},
		func(ctx context.Context) error {
			restore := PT(new(T))
			*restore = *prev
			restore.EntityMeta().Version = rec.EntityMeta().Version
			return coll.Update(ctx, restore)
		})
}

// DeleteStep adds a step that deletes rec; its undo inserts it again under
// the same id.
func DeleteStep[T any, PT storage.Record[T]](sg *saga.Saga, coll *storage.Collection[T, PT], rec PT) {
	sg.Add("delete "+coll.Name(),
		func(ctx context.Context) error {
			return coll.Delete(ctx, rec.EntityMeta().ID)
		},
		func(ctx context.Context) error {
			restore := PT(new(T))
			*restore = *rec
			restore.EntityMeta().Version = 0
			_, err := coll.Insert(ctx, restore)
			if errors.Is(err, common.ErrAlreadyExists) {
				return nil
			}
			return err
		})
}
