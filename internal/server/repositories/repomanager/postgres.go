// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/arbolado/treeregistry/internal/dbx"
	"github.com/arbolado/treeregistry/internal/server/migrations"
	"github.com/arbolado/treeregistry/internal/server/repositories/trees"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Trees returns a trees.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Trees(db dbx.DBTX) trees.Repository {
	return trees.NewPostgresRepository(db)
}

// InTx binds a trees repository to one transaction for the duration of fn.
// Multi-statement operations (the conditional publish write plus its
// existence re-check) see a consistent snapshot this way.
func (m *PostgresRepositoryManager) InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, r trees.Repository) error) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, m.Trees(tx))
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
