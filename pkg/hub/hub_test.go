package hub

import (
	"log/slog"
	"testing"
	"time"
)

// attach registers a bare client without a websocket connection.
// The pumps are not started; tests read from send directly.
func attach(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan Message, buffer)}
	h.register <- c
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := New("test", slog.Default())
	go h.Run()
	defer h.Stop()

	c1 := attach(h, 4)
	c2 := attach(h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]string{"type": "status"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Kind != KindJSON {
				t.Errorf("Expected JSON message, got kind %d", msg.Kind)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Client never received the broadcast")
		}
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := New("test", slog.Default())
	go h.Run()
	defer h.Stop()

	attach(h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	// First fills the buffer, second finds it full
	h.BroadcastAudio([]byte{1})
	h.BroadcastAudio([]byte{2})

	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestSubscribeReceivesAudio(t *testing.T) {
	h := New("test", slog.Default())
	go h.Run()
	defer h.Stop()

	msgs, detach := h.Subscribe(4)
	defer detach()

	h.BroadcastAudio([]byte{0xff, 0xf1})

	select {
	case msg := <-msgs:
		if msg.Kind != KindAudio {
			t.Errorf("Expected audio message, got kind %d", msg.Kind)
		}
		if len(msg.Data) != 2 {
			t.Errorf("Unexpected payload: %v", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscriber never received the audio frame")
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	h := New("test", slog.Default())
	go h.Run()

	c := attach(h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Stop()
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	// Channel closed signals the write pump to send a close frame
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("Expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
