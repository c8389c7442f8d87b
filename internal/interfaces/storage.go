// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// DocumentStore is the narrow persistence capability the core depends on:
// read by id, compare-and-swap writes, owner-scoped listing and a push
// change feed. Every backend filters by owner inside its own query.
type DocumentStore interface {
	// Get returns the document or an error wrapping common.ErrNotFound.
	Get(ctx context.Context, collection, id string) (*models.Document, error)

	// Insert stores a new document at version 1 and returns its id.
	// A uuid is generated when doc.ID is empty. Duplicate ids fail with
	// common.ErrAlreadyExists.
	Insert(ctx context.Context, doc *models.Document) (string, error)

	// Update replaces the document if the stored version equals doc.Version,
	// then bumps doc.Version. A mismatch fails with common.ErrConflict.
	Update(ctx context.Context, doc *models.Document) error

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// List returns the owner's documents in a collection.
	List(ctx context.Context, collection, ownerID string, opts QueryOptions) ([]*models.Document, error)

	// Watch streams changes to the owner's documents in a collection until
	// ctx is done, then closes the channel.
	Watch(ctx context.Context, collection, ownerID string) (<-chan models.ChangeEvent, error)

	// DeleteOwner removes every document the owner has in the given
	// collections and returns how many were removed.
	DeleteOwner(ctx context.Context, ownerID string, collections ...string) (int, error)

	Close() error
}

// Batcher is implemented by stores that can commit several writes atomically.
// fn receives a store bound to the open transaction; returning an error from
// fn rolls every write back.
type Batcher interface {
	Batch(ctx context.Context, fn func(tx DocumentStore) error) error
}

// Ordering for List.
const (
	OrderDateAsc  = "date_asc"
	OrderDateDesc = "date_desc"
)

// QueryOptions configures List.
type QueryOptions struct {
	Limit   int
	OrderBy string // "date_asc" (default) or "date_desc"
	// DatePrefix restricts results to business dates starting with the
	// prefix, e.g. "2024-03" for one month.
	DatePrefix string
}
