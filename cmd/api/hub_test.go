package main

import (
	"errors"
	"sync"
	"testing"
)

type fakeSender struct {
	mu     sync.Mutex
	events []*Event
	fail   bool
}

func (f *fakeSender) Send(e *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send fail")
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeSender) last() *Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestHub_RegisterAndSendToUser(t *testing.T) {
	hub := NewHub()

	senderA := &fakeSender{}
	senderB := &fakeSender{}

	idA := hub.Register("alice", senderA)
	_ = hub.Register("alice", senderB) // second device

	hub.SendToUser("alice", &Event{Event: evtMessage, Data: messageData{MessageID: "m1"}})

	// multi-device: both connections receive the event
	if senderA.count() != 1 || senderB.count() != 1 {
		t.Fatalf("expected both connections to receive the event, got %d and %d", senderA.count(), senderB.count())
	}

	// Unregister senderA and ensure it no longer receives events
	hub.Unregister("alice", idA)

	hub.SendToUser("alice", &Event{Event: evtMessage, Data: messageData{MessageID: "m2"}})
	if senderA.count() != 1 {
		t.Fatalf("sender A should not have received events after unregister")
	}
	if senderB.count() != 2 {
		t.Fatalf("sender B should have received the second event")
	}
}

func TestHub_UnregisterLastRemovesUser(t *testing.T) {
	hub := NewHub()

	id := hub.Register("bob", &fakeSender{})
	hub.Unregister("bob", id)

	if n := len(hub.ConnectionsOf("bob")); n != 0 {
		t.Fatalf("expected no connections after unregister, got %d", n)
	}
	hub.mu.RLock()
	_, stillThere := hub.users["bob"]
	hub.mu.RUnlock()
	if stillThere {
		t.Fatalf("user entry leaked after last connection unregistered")
	}
}

func TestHub_RoomBroadcast(t *testing.T) {
	hub := NewHub()

	alice := &fakeSender{}
	bob := &fakeSender{}
	carol := &fakeSender{}

	aliceID := hub.Register("alice", alice)
	bobID := hub.Register("bob", bob)
	_ = hub.Register("carol", carol)

	hub.Join(aliceID, "chat1")
	hub.Join(bobID, "chat1")
	// joining twice is fine
	hub.Join(bobID, "chat1")

	hub.SendToChat("chat1", &Event{Event: evtMessage}, "")

	if alice.count() != 1 || bob.count() != 1 {
		t.Fatalf("room members did not receive broadcast: alice=%d bob=%d", alice.count(), bob.count())
	}
	if carol.count() != 0 {
		t.Fatalf("carol is not in the room but received %d events", carol.count())
	}

	// exclusion skips the excluded user's connections
	hub.SendToChat("chat1", &Event{Event: evtTyping}, "alice")
	if alice.count() != 1 {
		t.Fatalf("excluded user received the broadcast")
	}
	if bob.count() != 2 {
		t.Fatalf("bob should have received the typing broadcast")
	}
}

func TestHub_UnregisterReleasesRooms(t *testing.T) {
	hub := NewHub()

	bob := &fakeSender{}
	bobID := hub.Register("bob", bob)
	hub.Join(bobID, "chat1")

	hub.Unregister("bob", bobID)

	hub.SendToChat("chat1", &Event{Event: evtMessage}, "")
	if bob.count() != 0 {
		t.Fatalf("unregistered connection still receives room broadcasts")
	}

	hub.mu.RLock()
	_, stillThere := hub.rooms["chat1"]
	hub.mu.RUnlock()
	if stillThere {
		t.Fatalf("empty room entry leaked after unregister")
	}
}

func TestHub_PrunesFailedConnections(t *testing.T) {
	hub := NewHub()

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	_ = hub.Register("dave", ok)
	_ = hub.Register("dave", bad)

	hub.SendToUser("dave", &Event{Event: evtMessage, Data: messageData{MessageID: "x"}})

	// The failing connection should have been unregistered; a subsequent
	// send only reaches the healthy one.
	if n := len(hub.ConnectionsOf("dave")); n != 1 {
		t.Fatalf("expected 1 live connection after prune, got %d", n)
	}

	hub.SendToUser("dave", &Event{Event: evtMessage, Data: messageData{MessageID: "y"}})
	if ok.count() != 2 {
		t.Fatalf("healthy sender did not receive message after cleanup")
	}
}

func TestHub_SendToConn(t *testing.T) {
	hub := NewHub()

	a := &fakeSender{}
	b := &fakeSender{}
	idA := hub.Register("erin", a)
	_ = hub.Register("erin", b)

	hub.SendToConn(idA, &Event{Event: evtMessage})

	if a.count() != 1 || b.count() != 0 {
		t.Fatalf("SendToConn should address a single connection: a=%d b=%d", a.count(), b.count())
	}
}
