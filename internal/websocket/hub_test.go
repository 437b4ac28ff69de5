package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func testClient(userID int64) *Client {
	return &Client{userID: userID, send: make(chan []byte, sendBufferSize)}
}

func TestBroadcastToScopedByUser(t *testing.T) {
	hub := NewHub(slog.Default())

	alice := testClient(1)
	bob := testClient(2)
	hub.Register(alice)
	hub.Register(bob)

	hub.BroadcastTo(1, NewMessage("purchase", "completed", 42, nil))

	select {
	case data := <-alice.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "purchase_completed" {
			t.Errorf("type = %q, want %q", msg.Type, "purchase_completed")
		}
		if msg.ID != 42 {
			t.Errorf("id = %d, want 42", msg.ID)
		}
	default:
		t.Fatal("expected a message for alice")
	}

	select {
	case <-bob.send:
		t.Fatal("bob must not receive alice's message")
	default:
	}
}

func TestBroadcastToFullBufferDropsMessage(t *testing.T) {
	hub := NewHub(slog.Default())

	c := &Client{userID: 1, send: make(chan []byte)} // no buffer, never read
	hub.Register(c)

	// Must not block.
	hub.BroadcastTo(1, NewMessage("purchase", "created", 1, nil))
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub(slog.Default())

	c := testClient(1)
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}

	// Unregistering twice is harmless.
	hub.Unregister(c)
}
