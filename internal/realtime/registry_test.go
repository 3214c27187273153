package realtime

import (
	"reflect"
	"testing"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()

	if r.Online("u1") {
		t.Error("unregistered user should be offline")
	}

	r.Register("u1", "c1")

	if !r.Online("u1") {
		t.Error("registered user should be online")
	}
	if got := r.Connections("u1"); len(got) != 1 || got[0] != "c1" {
		t.Errorf("Connections(u1) = %v, want [c1]", got)
	}

	userID, offline := r.Unregister("c1")
	if userID != "u1" || !offline {
		t.Errorf("Unregister(c1) = (%q, %v), want (u1, true)", userID, offline)
	}
	if r.Online("u1") {
		t.Error("user should be offline after last connection closes")
	}
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()

	r.Register("u1", "c1")
	r.Register("u1", "c2")

	if got := len(r.Connections("u1")); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	// Closing the stale first connection must not evict the second.
	if _, offline := r.Unregister("c1"); offline {
		t.Error("user should remain online while c2 is open")
	}
	if !r.Online("u1") {
		t.Error("user went offline with an open connection")
	}
	if got := r.Connections("u1"); len(got) != 1 || got[0] != "c2" {
		t.Errorf("Connections(u1) = %v, want [c2]", got)
	}

	if _, offline := r.Unregister("c2"); !offline {
		t.Error("user should be offline after the final connection closes")
	}
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")

	userID, offline := r.Unregister("nope")
	if userID != "" || offline {
		t.Errorf("Unregister(unknown) = (%q, %v), want no-op", userID, offline)
	}
	if !r.Online("u1") {
		t.Error("unrelated unregister must not affect other entries")
	}
}

func TestRegisterSameConnectionTwice(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1")
	r.Register("u1", "c1")

	if got := len(r.Connections("u1")); got != 1 {
		t.Errorf("duplicate register created %d entries, want 1", got)
	}
}

func TestOnlineUsersSortedAndDeduplicated(t *testing.T) {
	r := NewRegistry()
	r.Register("u2", "c1")
	r.Register("u1", "c2")
	r.Register("u1", "c3")

	if got := r.OnlineUsers(); !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Errorf("OnlineUsers() = %v, want [u1 u2]", got)
	}
}
