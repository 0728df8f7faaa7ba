// Package services implements the business operations of the tree registry:
// submission intake, the public map feed, and the moderation pipeline.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"time"

	"github.com/arbolado/treeregistry/internal/common"
	"github.com/arbolado/treeregistry/internal/logging"
	"github.com/arbolado/treeregistry/internal/server/blob"
	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/repositories/repomanager"
	"github.com/arbolado/treeregistry/internal/server/watch"
	"github.com/google/uuid"
)

// TreeView pairs a record with the URL a client should load its image from:
// the permanent public URL for public records, a short-lived presigned URL
// for pending ones.
type TreeView struct {
	Tree     *models.TreeRecord
	ImageURL string
}

// Submission carries the client-supplied fields of a new tree observation.
type Submission struct {
	SpeciesName   string
	EstimatedAge  int
	HealthStatus  models.HealthStatus
	Notes         string
	Address       string
	Location      models.GeoPoint
	ImageFilename string
}

// TreeService handles submission intake and the read surfaces.
type TreeService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blob.Store
	hub    *watch.Hub
	logger logging.Logger
}

func NewTreeService(db *sql.DB, repos repomanager.RepositoryManager, blobs blob.Store,
	hub *watch.Hub, logger logging.Logger) *TreeService {
	return &TreeService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		hub:    hub,
		logger: logger.With("component", "trees"),
	}
}

// newPrivateRef builds the storage key a submission's image is uploaded to.
// The trailing segment carries the original filename so the public reference
// derived at approval time stays recognizable.
func newPrivateRef(filename string) string {
	return fmt.Sprintf("%s%s-%s", models.PrivatePrefix, uuid.New(), path.Base(filename))
}

// Submit stores a new pending record and returns it together with a
// presigned URL the client must upload the photo to. The caller identity is
// required; descriptive fields are checked for presence only.
func (s *TreeService) Submit(ctx context.Context, callerUID string, sub Submission) (*models.TreeRecord, string, error) {
	if callerUID == "" {
		return nil, "", common.ErrUnauthenticated
	}
	if sub.SpeciesName == "" {
		return nil, "", fmt.Errorf("%w: species name is required", common.ErrInvalidArgument)
	}
	if sub.ImageFilename == "" {
		return nil, "", fmt.Errorf("%w: image filename is required", common.ErrInvalidArgument)
	}
	if !models.ValidHealthStatus(sub.HealthStatus) {
		return nil, "", fmt.Errorf("%w: unknown health status %q", common.ErrInvalidArgument, sub.HealthStatus)
	}
	if sub.Location.Latitude < -90 || sub.Location.Latitude > 90 ||
		sub.Location.Longitude < -180 || sub.Location.Longitude > 180 {
		return nil, "", fmt.Errorf("%w: location out of range", common.ErrInvalidArgument)
	}

	tree := &models.TreeRecord{
		ID:           uuid.New().String(),
		SpeciesName:  sub.SpeciesName,
		EstimatedAge: sub.EstimatedAge,
		HealthStatus: sub.HealthStatus,
		Notes:        sub.Notes,
		Address:      sub.Address,
		Location:     sub.Location,
		ImageRef:     newPrivateRef(sub.ImageFilename),
		CreatedBy:    callerUID,
		CreatedAt:    time.Now().UTC(),
		Visibility:   models.VisibilityPending,
	}

	if err := s.repos.Trees(s.db).Create(ctx, tree); err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	uploadURL, err := s.blobs.PresignPut(ctx, tree.ImageRef)
	if err != nil {
		return nil, "", fmt.Errorf("%w: presign %s: %v", common.ErrInternal, tree.ImageRef, err)
	}

	s.hub.TreeCreated(tree)

	s.logger.Info(ctx, "tree submitted", "tree_id", tree.ID, "created_by", callerUID)
	return tree, uploadURL, nil
}

// PublicTrees returns every public record with its permanent image URL.
// This is the feed the map display consumes; it needs no authentication.
func (s *TreeService) PublicTrees(ctx context.Context) ([]*TreeView, error) {
	records, err := s.repos.Trees(s.db).ListByVisibility(ctx, models.VisibilityPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	result := make([]*TreeView, 0, len(records))
	for _, tr := range records {
		result = append(result, &TreeView{Tree: tr, ImageURL: s.blobs.PublicURL(tr.ImageRef)})
	}
	return result, nil
}
