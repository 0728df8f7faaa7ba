package trees

import (
	"context"

	"github.com/arbolado/treeregistry/internal/server/models"
)

// Repository is the durable store of tree records and the source of truth
// for their visibility state.
type Repository interface {
	// Create inserts a new record. The caller assigns ID and ImageRef;
	// visibility is always stored as pending regardless of the value set
	// on the record.
	Create(ctx context.Context, tree *models.TreeRecord) error

	// Get returns the record by id, or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.TreeRecord, error)

	// ListByVisibility returns all records in the given state, oldest first.
	ListByVisibility(ctx context.Context, v models.Visibility) ([]*models.TreeRecord, error)

	// Publish atomically sets visibility=public and image_ref=publicRef,
	// but only if the record is still pending. Returns true when this call
	// performed the transition, false when the record was not pending
	// (already public). Returns common.ErrNotFound when no record with the
	// id exists in any state.
	Publish(ctx context.Context, id string, publicRef string) (bool, error)
}
