// Package sqlitedb is a DocumentStore on an embedded SQLite database.
// Writes are compare-and-swap on the version column and Batch commits a
// group of writes in one SQL transaction.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/storage/notify"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements interfaces.DocumentStore and interfaces.Batcher.
type Store struct {
	db     *sql.DB
	q      querier
	hub    *notify.Hub
	logger *common.Logger

	// pending collects events raised inside a Batch; they are published
	// only once the transaction commits.
	pending *[]models.ChangeEvent
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(logger *common.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("SQLite document store initialized")

	return &Store{
		db:     db,
		q:      db,
		hub:    notify.NewHub(logger),
		logger: logger,
	}, nil
}

func (s *Store) publish(ev models.ChangeEvent) {
	if s.pending != nil {
		*s.pending = append(*s.pending, ev)
		return
	}
	s.hub.Publish(ev)
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

const selectColumns = "collection, id, owner_id, version, date, value, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		d                models.Document
		created, updated int64
	)
	if err := row.Scan(&d.Collection, &d.ID, &d.OwnerID, &d.Version, &d.Date, &d.Value, &created, &updated); err != nil {
		return nil, err
	}
	d.CreatedAt = fromNanos(created)
	d.UpdatedAt = fromNanos(updated)
	return &d, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM documents WHERE collection = ? AND id = ?",
		collection, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", collection, id, err)
	}
	return d, nil
}

func isConstraintViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
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

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, owner_id, version, date, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Collection, doc.ID, doc.OwnerID, doc.Version, doc.Date, doc.Value,
		nanos(doc.CreatedAt), nanos(doc.UpdatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return "", common.AlreadyExists(doc.Collection, doc.ID)
		}
		return "", fmt.Errorf("failed to insert %s: %w", doc.Collection, err)
	}

	stored := *doc
	s.publish(models.ChangeEvent{
		Action: models.ChangeCreate, Collection: doc.Collection,
		ID: doc.ID, OwnerID: doc.OwnerID, Document: &stored,
	})
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()

	var (
		owner   string
		created int64
	)
	err := s.q.QueryRowContext(ctx,
		`UPDATE documents
		    SET value = ?, date = ?, version = version + 1, updated_at = ?
		  WHERE collection = ? AND id = ? AND version = ?
		  RETURNING owner_id, created_at`,
		doc.Value, doc.Date, nanos(now), doc.Collection, doc.ID, doc.Version,
	).Scan(&owner, &created)

	if errors.Is(err, sql.ErrNoRows) {
		var actual int
		err := s.q.QueryRowContext(ctx,
			"SELECT version FROM documents WHERE collection = ? AND id = ?",
			doc.Collection, doc.ID).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return common.NotFound(doc.Collection, doc.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s %s version: %w", doc.Collection, doc.ID, err)
		}
		return common.Conflict(doc.Collection, doc.ID, doc.Version, actual)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", doc.Collection, doc.ID, err)
	}

	doc.Version++
	doc.OwnerID = owner
	doc.CreatedAt = fromNanos(created)
	doc.UpdatedAt = now

	stored := *doc
	s.publish(models.ChangeEvent{
		Action: models.ChangeUpdate, Collection: doc.Collection,
		ID: doc.ID, OwnerID: doc.OwnerID, Document: &stored,
	})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var owner string
	err := s.q.QueryRowContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ? RETURNING owner_id",
		collection, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}

	s.publish(models.ChangeEvent{
		Action: models.ChangeDelete, Collection: collection, ID: id, OwnerID: owner,
	})
	return nil
}

func (s *Store) List(ctx context.Context, collection, ownerID string, opts interfaces.QueryOptions) ([]*models.Document, error) {
	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + " FROM documents WHERE collection = ? AND owner_id = ?")
	args := []any{collection, ownerID}

	if opts.DatePrefix != "" {
		b.WriteString(" AND substr(date, 1, ?) = ?")
		args = append(args, len(opts.DatePrefix), opts.DatePrefix)
	}
	if opts.OrderBy == interfaces.OrderDateDesc {
		b.WriteString(" ORDER BY date DESC, created_at DESC, rowid DESC")
	} else {
		b.WriteString(" ORDER BY date ASC, created_at ASC, rowid ASC")
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	}

	rows, err := s.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Watch(ctx context.Context, collection, ownerID string) (<-chan models.ChangeEvent, error) {
	return s.hub.Subscribe(ctx, collection, ownerID), nil
}

func (s *Store) DeleteOwner(ctx context.Context, ownerID string, collections ...string) (int, error) {
	var removed []models.ChangeEvent
	for _, name := range collections {
		rows, err := s.q.QueryContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND owner_id = ? RETURNING id",
			name, ownerID)
		if err != nil {
			return len(removed), fmt.Errorf("failed to delete %s for owner: %w", name, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return len(removed), err
			}
			removed = append(removed, models.ChangeEvent{
				Action: models.ChangeDelete, Collection: name, ID: id, OwnerID: ownerID,
			})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return len(removed), err
		}
	}
	for _, ev := range removed {
		s.publish(ev)
	}
	return len(removed), nil
}

// Batch runs fn against a store bound to one SQL transaction. Nothing fn
// writes is visible, or announced to watchers, until it returns nil.
func (s *Store) Batch(ctx context.Context, fn func(tx interfaces.DocumentStore) error) error {
	if s.pending != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var events []models.ChangeEvent
	txStore := &Store{db: s.db, q: tx, hub: s.hub, logger: s.logger, pending: &events}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn().Err(rbErr).Msg("Failed to roll back batch")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	for _, ev := range events {
		s.hub.Publish(ev)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pending != nil {
		return nil
	}
	s.hub.Close()
	return s.db.Close()
}

var (
	_ interfaces.DocumentStore = (*Store)(nil)
	_ interfaces.Batcher       = (*Store)(nil)
)
