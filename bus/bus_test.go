package bus

import (
	"testing"
)

func recv(t *testing.T, s *Subscription) *Message {
	t.Helper()
	select {
	case m := <-s.Channel():
		return m
	default:
		t.Fatalf("no message on %s", s.Topic())
		return nil
	}
}

func empty(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case m, ok := <-s.Channel():
		if ok {
			t.Fatalf("unexpected message %+v", m)
		}
	default:
	}
}

func TestPublishReachesOnlyItsTopic(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("t")
	a := c.Subscribe("display/status")
	other := c.Subscribe("display/other")

	c.Publish(&Message{Topic: "display/status", Payload: 1})
	if m := recv(t, a); m.Payload != 1 {
		t.Fatalf("payload %v", m.Payload)
	}
	empty(t, other)
}

func TestRetainedDeliveredToLateSubscriber(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("t")
	c.Publish(&Message{Topic: "s", Payload: "old", Retained: true})
	c.Publish(&Message{Topic: "s", Payload: "new", Retained: true})

	sub := c.Subscribe("s")
	if m := recv(t, sub); m.Payload != "new" {
		t.Fatalf("retained: %v", m.Payload)
	}

	c.Publish(&Message{Topic: "s", Retained: true})
	if _, ok := b.Retained("s"); ok {
		t.Fatalf("nil payload should clear retained state")
	}
	late := c.Subscribe("s")
	empty(t, late)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("t")
	sub := c.Subscribe("s")
	for i := 1; i <= 5; i++ {
		c.Publish(&Message{Topic: "s", Payload: i})
	}
	if m := recv(t, sub); m.Payload != 4 {
		t.Fatalf("first kept: %v", m.Payload)
	}
	if m := recv(t, sub); m.Payload != 5 {
		t.Fatalf("second kept: %v", m.Payload)
	}
}

func TestUnsubscribeAndDisconnectCloseChannels(t *testing.T) {
	b := NewBus(1)
	c := b.NewConnection("t")
	s1 := c.Subscribe("a")
	s2 := c.Subscribe("b")

	s1.Unsubscribe()
	s1.Unsubscribe()
	if _, ok := <-s1.Channel(); ok {
		t.Fatalf("s1 should be closed")
	}

	c.Disconnect()
	if _, ok := <-s2.Channel(); ok {
		t.Fatalf("s2 should be closed")
	}
	c.Publish(&Message{Topic: "b", Payload: 1}) // no subscribers left
	if len(b.subs) != 0 {
		t.Fatalf("subscriptions leaked: %v", b.subs)
	}
}
