package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Record constrains T so that *T is a models.Entity.
type Record[T any] interface {
	*T
	models.Entity
}

// Collection is a typed view over one document collection. Entities are
// stored as JSON in Document.Value; the indexed fields (id, owner, version,
// business date, timestamps) are lifted onto the Document and are
// authoritative when reading back.
type Collection[T any, PT Record[T]] struct {
	store interfaces.DocumentStore
	name  string
}

// NewCollection binds a typed collection to a store.
func NewCollection[T any, PT Record[T]](store interfaces.DocumentStore) *Collection[T, PT] {
	var zero T
	return &Collection[T, PT]{store: store, name: PT(&zero).Collection()}
}

// Name returns the collection name.
func (c *Collection[T, PT]) Name() string { return c.name }

// On returns the same collection bound to another store, typically the
// transactional store handed to a Batcher callback.
func (c *Collection[T, PT]) On(store interfaces.DocumentStore) *Collection[T, PT] {
	return &Collection[T, PT]{store: store, name: c.name}
}

// Get loads an entity by id.
func (c *Collection[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

// Insert stores a new entity and fills in its id, version and timestamps.
func (c *Collection[T, PT]) Insert(ctx context.Context, e PT) (string, error) {
	doc, err := c.encode(e)
	if err != nil {
		return "", err
	}
	id, err := c.store.Insert(ctx, doc)
	if err != nil {
		return "", err
	}
	copyMeta(e.EntityMeta(), doc)
	return id, nil
}

// Update writes e if its version is still current and bumps the version.
func (c *Collection[T, PT]) Update(ctx context.Context, e PT) error {
	doc, err := c.encode(e)
	if err != nil {
		return err
	}
	if err := c.store.Update(ctx, doc); err != nil {
		return err
	}
	copyMeta(e.EntityMeta(), doc)
	return nil
}

// Delete removes an entity by id.
func (c *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

// List returns the owner's entities in the store's order.
func (c *Collection[T, PT]) List(ctx context.Context, ownerID string, opts interfaces.QueryOptions) ([]PT, error) {
	docs, err := c.store.List(ctx, c.name, ownerID, opts)
	if err != nil {
		return nil, err
	}
	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		e, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Decode converts a raw document (e.g. from a change event) into an entity.
func (c *Collection[T, PT]) Decode(doc *models.Document) (PT, error) {
	return c.decode(doc)
}

func (c *Collection[T, PT]) encode(e PT) (*models.Document, error) {
	m := e.EntityMeta()
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.name, err)
	}
	return &models.Document{
		Collection: c.name,
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Version:    m.Version,
		Date:       e.SortDate(),
		Value:      string(data),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func (c *Collection[T, PT]) decode(doc *models.Document) (PT, error) {
	e := PT(new(T))
	if err := json.Unmarshal([]byte(doc.Value), e); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", c.name, doc.ID, err)
	}
	copyMeta(e.EntityMeta(), doc)
	return e, nil
}

func copyMeta(m *models.Meta, doc *models.Document) {
	m.ID = doc.ID
	m.OwnerID = doc.OwnerID
	m.Version = doc.Version
	m.CreatedAt = doc.CreatedAt
	m.UpdatedAt = doc.UpdatedAt
}
