package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicDashboard)

	evt := NewEvent("test.event", map[string]any{"x": 1})
	b.Publish(TopicDashboard, evt)
	b.Publish("other", NewEvent("ignored", nil))

	select {
	case got := <-ch:
		if got.Type != evt.Type || got.ID != evt.ID {
			t.Fatalf("got %+v, want %+v", got, evt)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(TopicDashboard, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// second unsubscribe is a no-op
	b.Unsubscribe(TopicDashboard, ch)
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicDashboard)
	defer b.Unsubscribe(TopicDashboard, ch)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(TopicDashboard, NewEvent("flood", nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffer should be full: %d/%d", len(ch), cap(ch))
	}
}
