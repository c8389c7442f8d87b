// Package memdb is an in-memory DocumentStore for tests and ephemeral runs.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/storage/notify"
	"github.com/google/uuid"
)

type entry struct {
	doc models.Document
	seq uint64
}

// Store keeps documents in per-collection maps guarded by one RWMutex.
type Store struct {
	mu     sync.RWMutex
	colls  map[string]map[string]*entry
	seq    uint64
	hub    *notify.Hub
	logger *common.Logger
	now    func() time.Time
}

// New creates an empty store.
func New(logger *common.Logger) *Store {
	return &Store{
		colls:  make(map[string]map[string]*entry),
		hub:    notify.NewHub(logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.colls[collection][id]
	if !ok {
		return nil, common.NotFound(collection, id)
	}
	doc := e.doc
	return &doc, nil
}

func (s *Store) Insert(ctx context.Context, doc *models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	coll := s.colls[doc.Collection]
	if coll == nil {
		coll = make(map[string]*entry)
		s.colls[doc.Collection] = coll
	}
	if _, exists := coll[doc.ID]; exists {
		s.mu.Unlock()
		return "", common.AlreadyExists(doc.Collection, doc.ID)
	}

	now := s.now().UTC()
	doc.Version = 1
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.seq++
	coll[doc.ID] = &entry{doc: *doc, seq: s.seq}
	stored := *doc
	s.mu.Unlock()

	s.hub.Publish(models.ChangeEvent{
		Action: models.ChangeCreate, Collection: doc.Collection,
		ID: doc.ID, OwnerID: doc.OwnerID, Document: &stored,
	})
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.colls[doc.Collection][doc.ID]
	if !ok {
		s.mu.Unlock()
		return common.NotFound(doc.Collection, doc.ID)
	}
	if e.doc.Version != doc.Version {
		s.mu.Unlock()
		return common.Conflict(doc.Collection, doc.ID, doc.Version, e.doc.Version)
	}

	doc.Version++
	doc.OwnerID = e.doc.OwnerID
	doc.CreatedAt = e.doc.CreatedAt
	doc.UpdatedAt = s.now().UTC()
	e.doc = *doc
	stored := *doc
	s.mu.Unlock()

	s.hub.Publish(models.ChangeEvent{
		Action: models.ChangeUpdate, Collection: doc.Collection,
		ID: doc.ID, OwnerID: doc.OwnerID, Document: &stored,
	})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	e, ok := s.colls[collection][id]
	if ok {
		delete(s.colls[collection], id)
	}
	s.mu.Unlock()

	if ok {
		s.hub.Publish(models.ChangeEvent{
			Action: models.ChangeDelete, Collection: collection,
			ID: id, OwnerID: e.doc.OwnerID,
		})
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection, ownerID string, opts interfaces.QueryOptions) ([]*models.Document, error) {
	s.mu.RLock()
	var matched []*entry
	for _, e := range s.colls[collection] {
		if e.doc.OwnerID != ownerID {
			continue
		}
		if opts.DatePrefix != "" && !strings.HasPrefix(e.doc.Date, opts.DatePrefix) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	desc := opts.OrderBy == interfaces.OrderDateDesc
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.doc.Date != b.doc.Date {
			return (a.doc.Date < b.doc.Date) != desc
		}
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.Before(b.doc.CreatedAt) != desc
		}
		return (a.seq < b.seq) != desc
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	out := make([]*models.Document, 0, len(matched))
	for _, e := range matched {
		doc := e.doc
		out = append(out, &doc)
	}
	return out, nil
}

func (s *Store) Watch(ctx context.Context, collection, ownerID string) (<-chan models.ChangeEvent, error) {
	return s.hub.Subscribe(ctx, collection, ownerID), nil
}

func (s *Store) DeleteOwner(ctx context.Context, ownerID string, collections ...string) (int, error) {
	var removed []models.ChangeEvent

	s.mu.Lock()
	for _, name := range collections {
		for id, e := range s.colls[name] {
			if e.doc.OwnerID != ownerID {
				continue
			}
			delete(s.colls[name], id)
			removed = append(removed, models.ChangeEvent{
				Action: models.ChangeDelete, Collection: name, ID: id, OwnerID: ownerID,
			})
		}
	}
	s.mu.Unlock()

	for _, ev := range removed {
		s.hub.Publish(ev)
	}
	return len(removed), nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

var _ interfaces.DocumentStore = (*Store)(nil)
