// Package trees provides the PostgreSQL-backed repository for tree records.
package trees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arbolado/treeregistry/internal/common"
	"github.com/arbolado/treeregistry/internal/dbx"
	"github.com/arbolado/treeregistry/internal/server/models"
)

// PostgresRepository implements tree storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new tree record. Visibility is forced to pending at the
// SQL level; whatever the caller set on the struct is ignored.
func (r *PostgresRepository) Create(ctx context.Context, tree *models.TreeRecord) error {
	query := `
		INSERT INTO trees (id, species_name, estimated_age, health_status, notes, address,
			latitude, longitude, image_ref, created_by, created_at, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending');
	`
	res, err := r.db.ExecContext(ctx, query,
		tree.ID, tree.SpeciesName, tree.EstimatedAge, tree.HealthStatus, tree.Notes, tree.Address,
		tree.Location.Latitude, tree.Location.Longitude, tree.ImageRef, tree.CreatedBy, tree.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// Get returns the record by id, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.TreeRecord, error) {
	query := `SELECT id, species_name, estimated_age, health_status, notes, address,
			latitude, longitude, image_ref, created_by, created_at, visibility
		FROM trees WHERE id=$1`

	item := &models.TreeRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.SpeciesName, &item.EstimatedAge, &item.HealthStatus, &item.Notes, &item.Address,
		&item.Location.Latitude, &item.Location.Longitude, &item.ImageRef, &item.CreatedBy,
		&item.CreatedAt, &item.Visibility,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select tree: %w", err)
	}
	return item, nil
}

// ListByVisibility returns all records in the given state, oldest first.
func (r *PostgresRepository) ListByVisibility(ctx context.Context, v models.Visibility) ([]*models.TreeRecord, error) {
	query := `SELECT id, species_name, estimated_age, health_status, notes, address,
			latitude, longitude, image_ref, created_by, created_at, visibility
		FROM trees WHERE visibility=$1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, v)
	if err != nil {
		return nil, fmt.Errorf("failed to select trees: %w", err)
	}
	defer rows.Close()

	var result []*models.TreeRecord
	for rows.Next() {
		var item models.TreeRecord
		if err := rows.Scan(
			&item.ID, &item.SpeciesName, &item.EstimatedAge, &item.HealthStatus, &item.Notes, &item.Address,
			&item.Location.Latitude, &item.Location.Longitude, &item.ImageRef, &item.CreatedBy,
			&item.CreatedAt, &item.Visibility,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Publish flips the record to public and rewrites its image reference in
// one conditional UPDATE. A reader can never observe visibility and
// image_ref out of step. Returns false (no error) when the record exists
// but is no longer pending.
func (r *PostgresRepository) Publish(ctx context.Context, id string, publicRef string) (bool, error) {
	query := `UPDATE trees SET visibility='public', image_ref=$2
		WHERE id=$1 AND visibility='pending'`
	res, err := r.db.ExecContext(ctx, query, id, publicRef)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return true, nil
	case 0:
		// Either the record is already public or it does not exist.
		var exists bool
		err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM trees WHERE id=$1)`, id).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return false, common.ErrNotFound
		}
		return false, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}
