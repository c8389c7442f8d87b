// Package storage selects and builds the document store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/storage/memdb"
	"github.com/bobmcallan/tally/internal/storage/sqlitedb"
	"github.com/bobmcallan/tally/internal/storage/surrealdb"
)

// Backend names accepted in [storage].backend.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendSurrealDB = "surrealdb"
)

// NewDocumentStore creates the document store named by the configuration.
func NewDocumentStore(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.DocumentStore, error) {
	switch config.Storage.Backend {
	case BackendMemory:
		logger.Warn().Msg("Using in-memory document store; data is lost on exit")
		return memdb.New(logger), nil

	case BackendSQLite, "":
		return sqlitedb.Open(logger, config.Storage.SQLite.Path)

	case BackendSurrealDB:
		return surrealdb.New(ctx, logger, config.Storage.SurrealDB)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, surrealdb)", config.Storage.Backend)
	}
}
