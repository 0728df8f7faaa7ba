package watch

import (
	"testing"
	"time"

	"github.com/arbolado/treeregistry/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

func tree(id string, v models.Visibility) *models.TreeRecord {
	return &models.TreeRecord{ID: id, Visibility: v, ImageRef: "private/" + id + ".jpg"}
}

func recvDelta(t *testing.T, sub *Subscription) Delta {
	t.Helper()
	select {
	case d := <-sub.C:
		return d
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delta")
		return Delta{}
	}
}

func assertNoDelta(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case d, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected delta: %+v", d)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTreeCreated_ReachesPendingViewOnly(t *testing.T) {
	h := NewHub(prometheus.NewRegistry())

	pending := h.Subscribe(models.VisibilityPending)
	defer pending.Close()
	public := h.Subscribe(models.VisibilityPublic)
	defer public.Close()

	h.TreeCreated(tree("t1", models.VisibilityPending))

	d := recvDelta(t, pending)
	if d.Kind != DeltaAdd || d.Tree.ID != "t1" {
		t.Fatalf("unexpected delta: %+v", d)
	}
	assertNoDelta(t, public)
}

func TestTreePublished_MovesBetweenViews(t *testing.T) {
	h := NewHub(nil)

	pending := h.Subscribe(models.VisibilityPending)
	defer pending.Close()
	public := h.Subscribe(models.VisibilityPublic)
	defer public.Close()

	approved := tree("t1", models.VisibilityPublic)
	approved.ImageRef = "public/t1.jpg"
	h.TreePublished(approved)

	d := recvDelta(t, pending)
	if d.Kind != DeltaRemove || d.Tree.ID != "t1" {
		t.Fatalf("pending view: unexpected delta %+v", d)
	}

	d = recvDelta(t, public)
	if d.Kind != DeltaAdd || d.Tree.ID != "t1" {
		t.Fatalf("public view: unexpected delta %+v", d)
	}
	if d.Tree.ImageRef != "public/t1.jpg" {
		t.Fatalf("public view delta must carry the public ref, got %q", d.Tree.ImageRef)
	}
}

func TestClose_UnsubscribesAndIsIdempotent(t *testing.T) {
	h := NewHub(nil)

	sub := h.Subscribe(models.VisibilityPending)
	sub.Close()
	sub.Close() // must not panic

	// Publishing after close must not deliver (channel closed, subscriber gone).
	h.TreeCreated(tree("t1", models.VisibilityPending))
	assertNoDelta(t, sub)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)

	sub := h.Subscribe(models.VisibilityPending)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < SubscriberQueueSize*2; i++ {
			h.TreeCreated(tree("t", models.VisibilityPending))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on slow subscriber")
	}

	if got := len(sub.C); got != SubscriberQueueSize {
		t.Fatalf("expected full buffer of %d, got %d", SubscriberQueueSize, got)
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	h := NewHub(nil)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				h.TreeCreated(tree("t", models.VisibilityPending))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		sub := h.Subscribe(models.VisibilityPending)
		sub.Close()
	}
	close(stop)
}
