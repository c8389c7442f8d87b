package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

const documentsTable = "documents"

// Connect opens a SurrealDB connection, signs in, selects the namespace and
// database, and ensures the documents table and its indexes exist.
func Connect(ctx context.Context, logger *common.Logger, cfg common.SurrealDBConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// Querying a table that was never defined is an error on recent servers.
	schema := []string{
		"DEFINE TABLE IF NOT EXISTS documents SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS documents_owner ON TABLE documents FIELDS collection, owner_id, date",
	}
	for _, sql := range schema {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to apply schema %q: %w", sql, err)
		}
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB document store initialized")

	return db, nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

func isAlreadyExistsError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
