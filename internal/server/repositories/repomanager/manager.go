package repomanager

import (
	"context"
	"database/sql"

	"github.com/arbolado/treeregistry/internal/dbx"
	"github.com/arbolado/treeregistry/internal/server/repositories/trees"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	Trees(db dbx.DBTX) trees.Repository

	// InTx runs fn with a trees repository bound to a single transaction,
	// committing on success and rolling back on error.
	InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, r trees.Repository) error) error

	RunMigrations(ctx context.Context, db *sql.DB) error
}
