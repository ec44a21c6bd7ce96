package progress

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastLog(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	hub.Log("Generating text-to-speech for title...")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	if event.Type != "log_update" {
		t.Errorf("expected log_update, got %q", event.Type)
	}
	if event.Log != "Generating text-to-speech for title..." {
		t.Errorf("unexpected log %q", event.Log)
	}
}

func TestHubVideoGeneratedEmitsCompletion(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	hub.VideoGenerated("/files/reel_abc.mp4")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read first event: %v", err)
	}
	if first.Type != "video_generated" || first.VideoURL != "/files/reel_abc.mp4" {
		t.Errorf("unexpected first event %+v", first)
	}

	var second Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("failed to read second event: %v", err)
	}
	if second.Type != "process_complete" || second.VideoURL != "/files/reel_abc.mp4" {
		t.Errorf("unexpected second event %+v", second)
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	a := dialHub(t, server)
	b := dialHub(t, server)
	waitForClients(t, hub, 2)

	hub.Log("hello")

	for i, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("client %d failed to read event: %v", i, err)
		}
		if event.Log != "hello" {
			t.Errorf("client %d got unexpected log %q", i, event.Log)
		}
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting to an empty hub is a no-op, not a panic
	hub.Log("nobody listening")
}
