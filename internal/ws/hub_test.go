package ws

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(id string) *Client {
	return &Client{
		conn:   nil, // Not needed for hub tests
		id:     id,
		send:   make(chan Message, 256),
		logger: testLogger(),
	}
}

// TestNewHub verifies that NewHub creates a hub with no clients.
func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

// TestRegisterUnregister verifies the client lifecycle.
func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Verify channel is closed by attempting to receive.
	_, ok := <-client.send
	if ok {
		t.Error("client.send channel is not closed")
	}
}

// TestUnregisterNotRegistered verifies that Unregister on a client not
// in the hub does nothing.
func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if !ok {
			t.Error("channel closed for unregistered client")
		}
	default:
		// Channel is empty and not closed, as expected.
	}
}

// TestBroadcast verifies that every registered client receives the message.
func TestBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	clients := []*Client{
		newTestClient("client-1"),
		newTestClient("client-2"),
		newTestClient("client-3"),
	}
	for _, c := range clients {
		hub.Register(c)
	}

	msg := Message{Type: MessageSnapshotUpdated, Timestamp: time.Now()}
	hub.Broadcast(msg)

	for _, c := range clients {
		select {
		case got := <-c.send:
			if got.Type != MessageSnapshotUpdated {
				t.Errorf("client %s got type %q, want %q", c.id, got.Type, MessageSnapshotUpdated)
			}
		default:
			t.Errorf("client %s received no message", c.id)
		}
	}
}

// TestBroadcastSlowClient verifies that a client with a full send buffer
// drops the message instead of blocking the broadcast.
func TestBroadcastSlowClient(t *testing.T) {
	hub := NewHub(testLogger())

	slow := newTestClient("slow")
	slow.send = make(chan Message, 1)
	slow.send <- Message{Type: MessageAlertsUpdated} // buffer full

	fast := newTestClient("fast")

	hub.Register(slow)
	hub.Register(fast)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{Type: MessageSnapshotUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}

	select {
	case got := <-fast.send:
		if got.Type != MessageSnapshotUpdated {
			t.Errorf("fast client got type %q", got.Type)
		}
	default:
		t.Error("fast client received no message")
	}
}

// TestBroadcastNoClients verifies broadcasting to an empty hub is a no-op.
func TestBroadcastNoClients(t *testing.T) {
	hub := NewHub(testLogger())

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Broadcast() panicked: %v", r)
		}
	}()
	hub.Broadcast(Message{Type: MessageSnapshotUpdated})
}

// TestConcurrentRegisterBroadcast exercises the hub under concurrent
// registration, broadcast, and unregistration.
func TestConcurrentRegisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newTestClient("client")
			hub.Register(c)
			hub.Broadcast(Message{Type: MessageSnapshotUpdated})
			hub.Unregister(c)
		}(i)
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after all unregister", hub.ClientCount())
	}
}
