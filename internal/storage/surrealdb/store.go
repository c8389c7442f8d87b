// Package surrealdb is a DocumentStore on SurrealDB. Watch is backed by a
// LIVE SELECT so changes made by other server instances are seen too.
package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// documentRow is the stored shape of a models.Document.
type documentRow struct {
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	OwnerID    string    `json:"owner_id"`
	Version    int       `json:"version"`
	Date       string    `json:"date"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *documentRow) document() *models.Document {
	return &models.Document{
		Collection: r.Collection,
		ID:         r.DocID,
		OwnerID:    r.OwnerID,
		Version:    r.Version,
		Date:       r.Date,
		Value:      r.Value,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

// Store implements interfaces.DocumentStore on one SurrealDB connection.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// New connects and returns a ready store.
func New(ctx context.Context, logger *common.Logger, cfg common.SurrealDBConfig) (*Store, error) {
	db, err := Connect(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an existing connection.
func NewStore(db *surrealdb.DB, logger *common.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func recordID(collection, id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(documentsTable, collection+"_"+id)
}

func firstResult(results *[]surrealdb.QueryResult[[]documentRow]) []documentRow {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

func (s *Store) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	row, err := surrealdb.Select[documentRow](ctx, s.db, recordID(collection, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, common.NotFound(collection, id)
		}
		return nil, fmt.Errorf("failed to select %s %s: %w", collection, id, err)
	}
	if row == nil || row.DocID == "" {
		return nil, common.NotFound(collection, id)
	}
	return row.document(), nil
}

func (s *Store) Insert(ctx context.Context, doc *models.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version = 1

	row := documentRow{
		Collection: doc.Collection,
		DocID:      doc.ID,
		OwnerID:    doc.OwnerID,
		Version:    doc.Version,
		Date:       doc.Date,
		Value:      doc.Value,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	vars := map[string]any{"rid": recordID(doc.Collection, doc.ID), "row": row}
	if _, err := surrealdb.Query[[]documentRow](ctx, s.db, "CREATE $rid CONTENT $row", vars); err != nil {
		if isAlreadyExistsError(err) {
			return "", common.AlreadyExists(doc.Collection, doc.ID)
		}
		return "", fmt.Errorf("failed to create %s: %w", doc.Collection, err)
	}
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	sql := `UPDATE $rid SET value = $value, date = $date, version = version + 1, updated_at = $now
		WHERE version = $expected RETURN AFTER`
	vars := map[string]any{
		"rid":      recordID(doc.Collection, doc.ID),
		"value":    doc.Value,
		"date":     doc.Date,
		"now":      now,
		"expected": doc.Version,
	}

	results, err := surrealdb.Query[[]documentRow](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", doc.Collection, doc.ID, err)
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		current, err := s.Get(ctx, doc.Collection, doc.ID)
		if err != nil {
			return err
		}
		return common.Conflict(doc.Collection, doc.ID, doc.Version, current.Version)
	}

	stored := rows[0].document()
	doc.Version = stored.Version
	doc.OwnerID = stored.OwnerID
	doc.CreatedAt = stored.CreatedAt
	doc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := surrealdb.Delete[documentRow](ctx, s.db, recordID(collection, id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection, ownerID string, opts interfaces.QueryOptions) ([]*models.Document, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM documents WHERE collection = $collection AND owner_id = $owner")
	vars := map[string]any{"collection": collection, "owner": ownerID}

	if opts.DatePrefix != "" {
		b.WriteString(" AND string::starts_with(date, $prefix)")
		vars["prefix"] = opts.DatePrefix
	}
	if opts.OrderBy == interfaces.OrderDateDesc {
		b.WriteString(" ORDER BY date DESC, created_at DESC")
	} else {
		b.WriteString(" ORDER BY date ASC, created_at ASC")
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	results, err := surrealdb.Query[[]documentRow](ctx, s.db, b.String(), vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	rows := firstResult(results)
	out := make([]*models.Document, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].document())
	}
	return out, nil
}

func (s *Store) DeleteOwner(ctx context.Context, ownerID string, collections ...string) (int, error) {
	sql := "DELETE documents WHERE owner_id = $owner AND collection IN $collections RETURN BEFORE"
	vars := map[string]any{"owner": ownerID, "collections": collections}

	results, err := surrealdb.Query[[]documentRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete owner data: %w", err)
	}
	return len(firstResult(results)), nil
}

// Watch registers a LIVE SELECT for the owner's collection. The live query
// is killed when ctx is done.
func (s *Store) Watch(ctx context.Context, collection, ownerID string) (<-chan models.ChangeEvent, error) {
	sql := "LIVE SELECT * FROM documents WHERE collection = $collection AND owner_id = $owner"
	vars := map[string]any{"collection": collection, "owner": ownerID}

	results, err := surrealdb.Query[surrealmodels.UUID](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to start live query: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, fmt.Errorf("live query returned no id")
	}
	liveID := (*results)[0].Result.String()

	notifications, err := s.db.LiveNotifications(liveID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to live query: %w", err)
	}

	out := make(chan models.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer func() {
			if err := surrealdb.Kill(context.WithoutCancel(ctx), s.db, liveID); err != nil {
				s.logger.Debug().Err(err).Str("live_id", liveID).Msg("Failed to kill live query")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notifications:
				if !ok {
					return
				}
				ev, ok := s.toEvent(ctx, collection, ownerID, n)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// toEvent maps a live notification to a ChangeEvent. Creates and updates
// re-read the document so watchers always receive the committed version.
func (s *Store) toEvent(ctx context.Context, collection, ownerID string, n connection.Notification) (models.ChangeEvent, bool) {
	id := stringField(n.Result, "doc_id")
	if id == "" {
		return models.ChangeEvent{}, false
	}
	ev := models.ChangeEvent{Collection: collection, ID: id, OwnerID: ownerID}

	switch n.Action {
	case connection.CreateAction:
		ev.Action = models.ChangeCreate
	case connection.UpdateAction:
		ev.Action = models.ChangeUpdate
	case connection.DeleteAction:
		ev.Action = models.ChangeDelete
		return ev, true
	default:
		return models.ChangeEvent{}, false
	}

	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("collection", collection).Str("id", id).Msg("Live document vanished before re-read")
		return models.ChangeEvent{}, false
	}
	ev.Document = doc
	return ev, true
}

// stringField reads key from a decoded CBOR map of either key type.
func stringField(v any, key string) string {
	switch m := v.(type) {
	case map[string]any:
		s, _ := m[key].(string)
		return s
	case map[any]any:
		s, _ := m[key].(string)
		return s
	}
	return ""
}

func (s *Store) Close() error {
	s.db.Close(context.Background())
	return nil
}

var _ interfaces.DocumentStore = (*Store)(nil)
