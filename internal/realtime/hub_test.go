package realtime

import (
	"encoding/json"
	"testing"
)

func newTestClient(userID, connID string) *Client {
	return &Client{
		userID: userID,
		connID: connID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func attachAndRegister(h *Hub, userID, connID string) *Client {
	c := newTestClient(userID, connID)
	c.hub = h
	h.Attach(c)
	h.Register(c)
	return c
}

func decodeEnvelope(t *testing.T, frame []byte) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("bad frame %s: %v", frame, err)
	}
	return env
}

// drainUntil reads frames from c.send until it finds one with the given
// event name, skipping presence broadcasts interleaved by other clients.
func drainUntil(t *testing.T, c *Client, event string) Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		select {
		case frame := <-c.send:
			env := decodeEnvelope(t, frame)
			if env.Event == event {
				return env
			}
		default:
			t.Fatalf("no %q frame queued for %s", event, c.userID)
		}
	}
	t.Fatalf("gave up waiting for %q frame", event)
	return Envelope{}
}

func TestDeliverMessageToOnlineReceiver(t *testing.T) {
	h := NewHub()
	attachAndRegister(h, "alice", "c1")
	bob := attachAndRegister(h, "bob", "c2")

	h.DeliverMessage(&MessagePayload{Sender: "alice", Receiver: "bob", Text: "hi"})

	env := drainUntil(t, bob, EventGetMessage)
	var msg DeliveredMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Sender != "alice" || msg.Text != "hi" || !msg.Delivered {
		t.Errorf("got %+v, want sender=alice text=hi delivered=true", msg)
	}
}

func TestDeliverMessageOfflineReceiverIsSilent(t *testing.T) {
	h := NewHub()
	alice := attachAndRegister(h, "alice", "c1")

	// Must not panic, error, or bounce anything back to the sender.
	h.DeliverMessage(&MessagePayload{Sender: "alice", Receiver: "ghost", Text: "hello?"})

	for {
		select {
		case frame := <-alice.send:
			if env := decodeEnvelope(t, frame); env.Event == EventGetMessage {
				t.Errorf("sender received a message frame: %s", frame)
			}
		default:
			return
		}
	}
}

func TestDeliverMessageFansOutToAllConnections(t *testing.T) {
	h := NewHub()
	attachAndRegister(h, "alice", "c1")
	bobPhone := attachAndRegister(h, "bob", "c2")
	bobLaptop := attachAndRegister(h, "bob", "c3")

	h.DeliverMessage(&MessagePayload{Sender: "alice", Receiver: "bob", Text: "hi"})

	drainUntil(t, bobPhone, EventGetMessage)
	drainUntil(t, bobLaptop, EventGetMessage)
}

func TestDeliverTypingCarriesSenderID(t *testing.T) {
	h := NewHub()
	attachAndRegister(h, "alice", "c1")
	bob := attachAndRegister(h, "bob", "c2")

	h.DeliverTyping(EventTyping, &TypingPayload{Sender: "alice", Receiver: "bob"})

	env := drainUntil(t, bob, EventTyping)
	var sender string
	if err := json.Unmarshal(env.Data, &sender); err != nil {
		t.Fatal(err)
	}
	if sender != "alice" {
		t.Errorf("typing payload = %q, want alice", sender)
	}
}

func TestPresenceBroadcastOnRegister(t *testing.T) {
	h := NewHub()
	alice := attachAndRegister(h, "alice", "c1")
	attachAndRegister(h, "bob", "c2")

	// Alice should have seen a presence frame that includes bob.
	var last Envelope
	for {
		select {
		case frame := <-alice.send:
			if env := decodeEnvelope(t, frame); env.Event == EventGetUsers {
				last = env
			}
			continue
		default:
		}
		break
	}
	if last.Event == "" {
		t.Fatal("no presence frame broadcast")
	}

	var list PresenceList
	if err := json.Unmarshal(last.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Users) != 2 || list.Users[0] != "alice" || list.Users[1] != "bob" {
		t.Errorf("presence list = %v, want [alice bob]", list.Users)
	}
}

func TestDetachBroadcastsPresenceAndDropsClient(t *testing.T) {
	h := NewHub()
	alice := attachAndRegister(h, "alice", "c1")
	bob := attachAndRegister(h, "bob", "c2")

	h.Detach(bob)

	if h.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", h.ClientCount())
	}
	if h.Registry().Online("bob") {
		t.Error("bob should be offline after detach")
	}

	var last PresenceList
	seen := false
	for {
		select {
		case frame := <-alice.send:
			if env := decodeEnvelope(t, frame); env.Event == EventGetUsers {
				if err := json.Unmarshal(env.Data, &last); err != nil {
					t.Fatal(err)
				}
				seen = true
			}
			continue
		default:
		}
		break
	}
	if !seen {
		t.Fatal("no presence frame after detach")
	}
	if len(last.Users) != 1 || last.Users[0] != "alice" {
		t.Errorf("presence list = %v, want [alice]", last.Users)
	}
}

func TestSlowClientDisconnectedOnFullBuffer(t *testing.T) {
	h := NewHub()
	attachAndRegister(h, "alice", "c1")
	attachAndRegister(h, "bob", "c2")

	// Bob never drains his channel; once it fills the hub must cut the
	// connection loose instead of leaving a dead client in the presence
	// list.
	for i := 0; i < sendBufferSize+10; i++ {
		h.DeliverMessage(&MessagePayload{Sender: "alice", Receiver: "bob", Text: "spam"})
	}

	if h.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", h.ClientCount())
	}
	if h.Registry().Online("bob") {
		t.Error("bob should be offline after overflowing his send buffer")
	}

	// Later deliveries find no connection and are dropped silently.
	h.DeliverMessage(&MessagePayload{Sender: "alice", Receiver: "bob", Text: "again"})
}

func TestDetachUnregisteredConnection(t *testing.T) {
	h := NewHub()
	c := newTestClient("alice", "c1")
	c.hub = h
	h.Attach(c)

	// Never sent addUser; detach must not broadcast or panic.
	h.Detach(c)
	h.Detach(c) // double detach is a no-op

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestDispatchOverridesSenderIdentity(t *testing.T) {
	h := NewHub()
	mallory := attachAndRegister(h, "mallory", "c1")
	bob := attachAndRegister(h, "bob", "c2")

	// Spoofed sender field in the payload must be replaced with the
	// authenticated identity.
	raw, _ := json.Marshal(Envelope{
		Event: EventSendMessage,
		Data:  json.RawMessage(`{"sender":"alice","receiver":"bob","text":"pay me"}`),
	})
	mallory.dispatch(raw)

	env := drainUntil(t, bob, EventGetMessage)
	var msg DeliveredMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Sender != "mallory" {
		t.Errorf("sender = %q, want mallory", msg.Sender)
	}
}

func TestDispatchIgnoresMalformedFrames(t *testing.T) {
	h := NewHub()
	alice := attachAndRegister(h, "alice", "c1")

	alice.dispatch([]byte(`not json`))
	alice.dispatch([]byte(`{"event":"sendMessage","data":"nope"}`))
	alice.dispatch([]byte(`{"event":"unknownEvent","data":{}}`))
	alice.dispatch([]byte(`{"event":"typing","data":{"receiver":""}}`))

	select {
	case frame := <-alice.send:
		if env := decodeEnvelope(t, frame); env.Event != EventGetUsers {
			t.Errorf("unexpected frame: %s", frame)
		}
	default:
	}
}
