package websocket

import (
	"context"
	"sync"
	"time"

	"facecam/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 5 * time.Second
	broadcastBuffer = 8
)

// Client is one connected viewer.
type Client struct {
	ID        string
	conn      *websocket.Conn
	connected time.Time
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), conn: conn, connected: time.Now()}
}

// HubService owns every write to viewer sockets. New viewers first get the
// last status and the last frame so the page is never blank.
type HubService struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger

	lastMu     sync.Mutex
	lastFrame  []byte
	lastStatus []byte
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every viewer connection. It must be called once.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer %s connected. Total: %d", client.ID, total)

			h.lastMu.Lock()
			greeting := [][]byte{h.lastStatus, h.lastFrame}
			h.lastMu.Unlock()
			for _, message := range greeting {
				if message != nil && !h.write(client, message) {
					break
				}
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer %s disconnected. Total: %d", client.ID, total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()

			for _, client := range clients {
				h.write(client, message)
			}
		}
	}
}

// write sends message to client and drops the client on failure.
func (h *HubService) write(client *Client, message []byte) bool {
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending message to viewer %s: %v", client.ID, err)
		h.mutex.Lock()
		delete(h.clients, client)
		h.mutex.Unlock()
		client.conn.Close()
		return false
	}
	return true
}

// Register adds a viewer. After Run has returned the connection is closed instead.
func (h *HubService) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.conn.Close()
	}
}

func (h *HubService) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastFrame queues a frame message. When viewers fall behind the
// frame is dropped; the next one supersedes it anyway.
func (h *HubService) BroadcastFrame(message []byte) {
	h.lastMu.Lock()
	h.lastFrame = message
	h.lastMu.Unlock()

	select {
	case h.broadcast <- message:
	default:
		h.logger.Debug("Viewer queue full - dropping frame")
	}
}

// LastFrame returns the frame new viewers are greeted with, or nil.
func (h *HubService) LastFrame() []byte {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()
	return h.lastFrame
}

// ForgetLastFrame drops the frame new viewers are greeted with. Called
// while nobody is watching so a late viewer never sees an old frame.
func (h *HubService) ForgetLastFrame() {
	h.lastMu.Lock()
	h.lastFrame = nil
	h.lastMu.Unlock()
}

// BroadcastStatus queues a status message, waiting for room in the queue.
func (h *HubService) BroadcastStatus(ctx context.Context, message []byte) {
	h.lastMu.Lock()
	h.lastStatus = message
	h.lastMu.Unlock()

	select {
	case h.broadcast <- message:
	case <-ctx.Done():
	case <-h.done:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
