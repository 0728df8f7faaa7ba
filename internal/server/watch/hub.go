// Package watch implements the live read projections over the tree store:
// one continuously-updated view of pending records (moderation queue) and
// one of public records (map). Subscribers receive add/update/remove deltas
// as the services mutate the store; the two views never contain the same
// record after a completed transition.
package watch

import (
	"sync"

	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

// SubscriberQueueSize is the delta buffer per subscription. A subscriber
// that falls this far behind starts losing deltas instead of stalling
// writers; the dropped counter records it.
const SubscriberQueueSize = 20

// DeltaKind describes how a record changed relative to a view.
type DeltaKind string

const (
	DeltaAdd    DeltaKind = "add"
	DeltaUpdate DeltaKind = "update"
	DeltaRemove DeltaKind = "remove"
)

// Delta is one change to a view.
type Delta struct {
	Kind DeltaKind
	Tree *models.TreeRecord
}

type subscriberID int

// Subscription is a live feed of deltas for one view. Close is idempotent.
type Subscription struct {
	C <-chan Delta

	hub       *Hub
	id        subscriberID
	view      models.Visibility
	ch        chan Delta
	closeOnce sync.Once
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s.view, s.id)
		close(s.ch)
	})
}

// Hub fans store mutations out to view subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[models.Visibility]map[subscriberID]*Subscription
	lastID subscriberID

	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewHub creates a Hub. promRegistry may be nil to skip metrics.
func NewHub(promRegistry prometheus.Registerer) *Hub {
	h := &Hub{
		subs: make(map[models.Visibility]map[subscriberID]*Subscription),
	}
	h.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treeregistry_watch_deltas_published_total",
		Help: "Deltas delivered to view subscribers.",
	}, []string{"view", "kind"})
	h.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treeregistry_watch_deltas_dropped_total",
		Help: "Deltas dropped because a subscriber's buffer was full.",
	}, []string{"view", "kind"})
	if promRegistry != nil {
		promRegistry.MustRegister(h.published, h.dropped)
	}
	return h
}

// Subscribe registers a new subscription on the view for the given
// visibility state.
func (h *Hub) Subscribe(view models.Visibility) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ch := make(chan Delta, SubscriberQueueSize)
	sub := &Subscription{C: ch, hub: h, id: h.lastID, view: view, ch: ch}
	if h.subs[view] == nil {
		h.subs[view] = make(map[subscriberID]*Subscription)
	}
	h.subs[view][sub.id] = sub
	return sub
}

func (h *Hub) remove(view models.Visibility, id subscriberID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[view], id)
}

// publish delivers a delta to every subscriber of the view without blocking.
func (h *Hub) publish(view models.Visibility, d Delta) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[view] {
		select {
		case sub.ch <- d:
			h.published.WithLabelValues(string(view), string(d.Kind)).Inc()
		default:
			h.dropped.WithLabelValues(string(view), string(d.Kind)).Inc()
		}
	}
}

// TreeCreated announces a freshly submitted record to the pending view.
func (h *Hub) TreeCreated(tree *models.TreeRecord) {
	h.publish(models.VisibilityPending, Delta{Kind: DeltaAdd, Tree: tree})
}

// TreePublished announces an approved record: it leaves the pending view
// and enters the public view. The record passed in already carries the
// public image reference and visibility.
func (h *Hub) TreePublished(tree *models.TreeRecord) {
	h.publish(models.VisibilityPending, Delta{Kind: DeltaRemove, Tree: tree})
	h.publish(models.VisibilityPublic, Delta{Kind: DeltaAdd, Tree: tree})
}
