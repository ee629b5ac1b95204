package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"detectionsite/internal/dto"
	"detectionsite/internal/logger"

	"github.com/gorilla/websocket"
)

// broadcastBuffer bounds how many events may wait for the hub loop.
const broadcastBuffer = 64

// HubService fans processing events out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	count      chan chan int
	done       chan struct{}
	running    atomic.Bool
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done, then closes every connection.
// Run must be called once; after it returns the hub stays stopped.
func (h *HubService) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Register adds a viewer. A stopped hub closes the connection instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// BroadcastEvent queues the event for every viewer. Events are dropped
// when the hub is not running or the queue is full.
func (h *HubService) BroadcastEvent(event dto.ProcessedEvent) {
	if !h.running.Load() {
		return
	}

	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Event queue full, dropping %s for feed %d", event.Type, event.FeedID)
	}
}

// GetClientCount returns the number of connected viewers, 0 once the hub
// has stopped.
func (h *HubService) GetClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
