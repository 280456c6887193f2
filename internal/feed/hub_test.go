package feed

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func TestHub_BroadcastsTurnEvents(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.TurnStarted("hi")
	h.Chunk("Hel")
	h.Chunk("lo")
	h.Reply("Hello")
	h.TurnFailed(errors.New("boom"))

	want := []Frame{
		{FrameUser, "hi"},
		{FrameDelta, "Hel"},
		{FrameDelta, "lo"},
		{FrameReply, "Hello"},
		{FrameError, "boom"},
	}
	for i, w := range want {
		if got := readFrame(t, conn); got != w {
			t.Errorf("frame %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Chunk("nobody listening")
}

func TestHub_SlowClientDropped(t *testing.T) {
	h := NewHub()
	c := &client{send: make(chan Frame, 1)}
	h.clients[c] = struct{}{}

	h.Chunk("a")
	h.Chunk("b")
	if h.Clients() != 0 {
		t.Fatalf("clients = %d, want 0", h.Clients())
	}
	h.Close()
}

func TestHub_CloseDisconnects(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	h.Close()
	if h.Clients() != 0 {
		t.Fatalf("clients = %d", h.Clients())
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected closed connection")
	}
}
