package realtime

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	h := NewHub(4)
	id1, ch1 := h.Register()
	id2, ch2 := h.Register()
	defer h.Unregister(id1)
	defer h.Unregister(id2)

	h.Publish(Event{Type: TypeSearchStarted, Seq: 1, Query: "q"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypeSearchStarted || e.Seq != 1 {
				t.Errorf("listener %d got %+v", i, e)
			}
			if e.At.IsZero() {
				t.Errorf("listener %d: event time not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d received nothing", i)
		}
	}
}

func TestSlowListenerDropsEvents(t *testing.T) {
	h := NewHub(1)
	id, ch := h.Register()
	defer h.Unregister(id)

	h.Publish(Event{Type: TypeTab, Seq: 1})
	h.Publish(Event{Type: TypeTab, Seq: 2})

	e := <-ch
	if e.Seq != 1 {
		t.Fatalf("got seq %d, want 1", e.Seq)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected second event to be dropped, got %+v", e)
	default:
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	h := NewHub(0)
	id, ch := h.Register()
	if h.Size() != 1 {
		t.Fatalf("size = %d", h.Size())
	}

	h.Unregister(id)
	h.Unregister(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if h.Size() != 0 {
		t.Fatalf("size = %d after unregister", h.Size())
	}
}
