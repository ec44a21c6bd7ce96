package progress

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ---------------------------------------------------------------------------
// Live progress channel
//
// One-way, best-effort push to any connected viewer. Events are emitted at
// most once, in emission order, with no acknowledgment, no replay, and no
// backpressure — a lost message never affects job outcome. Clients that
// cannot keep up are dropped.
// ---------------------------------------------------------------------------

const writeTimeout = 5 * time.Second

// Event is one progress message: a log line, or an artifact URL when the
// final video lands.
type Event struct {
	Type     string `json:"type"` // "log_update", "video_generated", "process_complete"
	Log      string `json:"log,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away. Inbound messages are drained and ignored — the
// channel is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Progress] Upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes an event to every connected client, fire-and-forget.
// Write failures drop the client; nothing is retried.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Log broadcasts a log_update event.
func (h *Hub) Log(msg string) {
	h.Broadcast(Event{Type: "log_update", Log: msg})
}

// VideoGenerated broadcasts the final artifact URL.
func (h *Hub) VideoGenerated(videoURL string) {
	h.Broadcast(Event{Type: "video_generated", VideoURL: videoURL})
	h.Broadcast(Event{Type: "process_complete", VideoURL: videoURL})
}

// ClientCount reports connected viewers (used in tests and health output).
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
