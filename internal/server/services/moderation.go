package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arbolado/treeregistry/internal/common"
	"github.com/arbolado/treeregistry/internal/logging"
	"github.com/arbolado/treeregistry/internal/server/blob"
	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/repositories/repomanager"
	"github.com/arbolado/treeregistry/internal/server/repositories/trees"
	"github.com/arbolado/treeregistry/internal/server/watch"
	"golang.org/x/sync/singleflight"
)

// ModerationService owns the single privileged operation of the registry:
// publishing a pending tree record. It authorizes the caller against the
// one configured administrator UID, relocates the record's image from the
// private to the public namespace, and commits the transition with a single
// conditional record write.
type ModerationService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	blobs    blob.Store
	hub      *watch.Hub
	adminUID string
	logger   logging.Logger

	// group serializes concurrent approvals of the same tree id; the loser
	// of a race shares the winner's result instead of racing the blob move.
	group singleflight.Group
}

// NewModerationService constructs the service. An empty adminUID disables
// approvals entirely: every call fails with permission denied. That state is
// logged loudly at startup so a misconfigured deployment cannot silently
// pass authorization.
func NewModerationService(db *sql.DB, repos repomanager.RepositoryManager, blobs blob.Store,
	hub *watch.Hub, adminUID string, logger logging.Logger) *ModerationService {

	s := &ModerationService{
		db:       db,
		repos:    repos,
		blobs:    blobs,
		hub:      hub,
		adminUID: adminUID,
		logger:   logger.With("component", "moderation"),
	}
	if adminUID == "" {
		s.logger.Warn(context.Background(), "no administrator UID configured, tree approval is disabled")
	}
	return s
}

// ApproveTree publishes the pending tree with id treeID.
//
// The step order matters: every failure before the blob move leaves no side
// effect, and the record write is the last step, applied only when the blob
// is already in place and public. A crash between those two steps leaves the
// record pending with a moved blob; re-invoking ApproveTree recovers,
// because relocation treats an already-moved blob as success.
func (s *ModerationService) ApproveTree(ctx context.Context, callerUID, treeID string) error {
	// Authorization first, before any lookup. An unconfigured admin UID
	// matches no caller, including an anonymous one.
	if s.adminUID == "" || callerUID != s.adminUID {
		s.logger.Warn(ctx, "approve denied", "caller", callerUID, "tree_id", treeID)
		return common.ErrPermissionDenied
	}

	// Only presence is validated. An id that matches no record is a
	// lookup miss, not a malformed request.
	if treeID == "" {
		return fmt.Errorf("%w: tree id is required", common.ErrInvalidArgument)
	}

	_, err, _ := s.group.Do(treeID, func() (any, error) {
		return nil, s.approve(ctx, treeID)
	})
	return err
}

func (s *ModerationService) approve(ctx context.Context, treeID string) error {
	repo := s.repos.Trees(s.db)

	tree, err := repo.Get(ctx, treeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	// Re-invocation of a finished approval is a no-op success.
	if tree.Visibility == models.VisibilityPublic {
		s.logger.Info(ctx, "tree already public", "tree_id", treeID)
		return nil
	}

	// A pending record must reference an image in the private namespace;
	// anything else means a submission bypassed validation.
	if !tree.HasPrivateImageRef() {
		return fmt.Errorf("%w: tree %s has no valid private image reference (%q)",
			common.ErrInternal, treeID, tree.ImageRef)
	}

	publicRef, err := s.blobs.Relocate(ctx, tree.ImageRef)
	if err != nil {
		return err
	}

	if err := s.blobs.SetPublic(ctx, publicRef); err != nil {
		return err
	}

	var won bool
	err = s.repos.InTx(ctx, s.db, func(ctx context.Context, r trees.Repository) error {
		var txErr error
		won, txErr = r.Publish(ctx, treeID, publicRef)
		return txErr
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if !won {
		// Another approval completed between our read and write.
		s.logger.Info(ctx, "tree published concurrently", "tree_id", treeID)
		return nil
	}

	published := *tree
	published.Visibility = models.VisibilityPublic
	published.ImageRef = publicRef
	s.hub.TreePublished(&published)

	s.logger.Info(ctx, "tree approved", "tree_id", treeID, "image_ref", publicRef)
	return nil
}

// PendingTrees returns the moderation queue: all pending records, each with
// a short-lived download URL for its private image. Restricted to the
// administrator.
func (s *ModerationService) PendingTrees(ctx context.Context, callerUID string) ([]*TreeView, error) {
	if s.adminUID == "" || callerUID != s.adminUID {
		return nil, common.ErrPermissionDenied
	}

	records, err := s.repos.Trees(s.db).ListByVisibility(ctx, models.VisibilityPending)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	result := make([]*TreeView, 0, len(records))
	for _, tr := range records {
		url, err := s.blobs.PresignGet(ctx, tr.ImageRef)
		if err != nil {
			return nil, fmt.Errorf("%w: presign %s: %v", common.ErrInternal, tr.ImageRef, err)
		}
		result = append(result, &TreeView{Tree: tr, ImageURL: url})
	}
	return result, nil
}
