package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	pid := "p1"
	ch := b.Subscribe(pid)
	if n := b.Subscribers(pid); n != 1 {
		t.Fatalf("subscribers: got %d", n)
	}

	evt := SSEEvent{Type: "plan.clustered", Data: map[string]any{"k": 3}}
	b.Publish(pid, evt)
	b.Publish("other", SSEEvent{Type: "plan.routed"})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["k"].(int) != 3 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for another plan: %+v", got)
	default:
	}

	b.Unsubscribe(pid, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if n := b.Subscribers(pid); n != 0 {
		t.Fatalf("subscribers after unsubscribe: got %d", n)
	}
	// second unsubscribe is a no-op
	b.Unsubscribe(pid, ch)
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p1")
	defer b.Unsubscribe("p1", ch)
	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("p1", SSEEvent{Type: "heartbeat"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered: got %d, want %d", len(ch), cap(ch))
	}
}
