package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/arbolado/treeregistry/internal/server/services"
	"github.com/arbolado/treeregistry/internal/server/watch"
)

// handlePublicEvents serves GET /api/v1/events/public: an SSE stream of the
// public view. The stream opens with a snapshot event holding the full
// feed, then emits one add/update/remove event per change.
func (s *Server) handlePublicEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before reading the snapshot so no transition is lost in
	// between. A change landing in both the snapshot and an early delta is
	// harmless; clients apply deltas as upserts.
	sub := s.hub.Subscribe(models.VisibilityPublic)
	defer sub.Close()

	views, err := s.trees.PublicTrees(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.streamEvents(w, r, sub, views, func(d watch.Delta) string {
		return s.blobs.PublicURL(d.Tree.ImageRef)
	})
}

// handlePendingEvents serves GET /api/v1/events/pending: the moderation
// queue as a live stream. The snapshot read doubles as the authorization
// check, so an unauthorized caller is rejected before the stream starts.
func (s *Server) handlePendingEvents(w http.ResponseWriter, r *http.Request) {
	sub := s.hub.Subscribe(models.VisibilityPending)
	defer sub.Close()

	views, err := s.moderation.PendingTrees(r.Context(), UIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.streamEvents(w, r, sub, views, func(d watch.Delta) string {
		if d.Kind == watch.DeltaRemove {
			return ""
		}
		url, err := s.blobs.PresignGet(r.Context(), d.Tree.ImageRef)
		if err != nil {
			s.logger.Error(r.Context(), "presign for event failed",
				"tree_id", d.Tree.ID, "error", err.Error())
			return ""
		}
		return url
	})
}

// streamEvents runs the SSE loop: headers, snapshot, then deltas and
// periodic keep-alive comments until the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request,
	sub *watch.Subscription, snapshot []*services.TreeView, imageURL func(watch.Delta) string) {

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// ResponseController finds the Flusher through wrapping middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		writeError(w, http.StatusInternalServerError, KindInternal, "streaming unsupported")
		return
	}

	s.sendEvent(w, rc, "snapshot", treeListResponse{Trees: treesFromViews(snapshot)})

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	s.logger.Debug(ctx, "event stream opened", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	defer s.logger.Debug(context.Background(), "event stream closed", "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-sub.C:
			if !ok {
				return
			}
			s.sendEvent(w, rc, string(d.Kind), treeFromRecord(d.Tree, imageURL(d)))
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			_ = rc.Flush()
		}
	}
}

func (s *Server) sendEvent(w http.ResponseWriter, rc *http.ResponseController, event string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error(context.Background(), "event marshal failed", "event", event, "error", err.Error())
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	_ = rc.Flush()
}
