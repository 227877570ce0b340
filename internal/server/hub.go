package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

// MessageStreamsUpdate is the only message type the server pushes.
const MessageStreamsUpdate = "streams_update"

var ErrHubStopped = errors.New("hub stopped")

// Message is the envelope written to every WebSocket client.
type Message struct {
	Type string                          `json:"type"`
	Data map[string]monitor.ChannelState `json:"data"`
}

func encodeUpdate(streams map[string]monitor.ChannelState) ([]byte, error) {
	if streams == nil {
		streams = map[string]monitor.ChannelState{}
	}
	return json.Marshal(Message{Type: MessageStreamsUpdate, Data: streams})
}

// Hub keeps the set of connected clients and fans cycle results out to them.
type Hub struct {
	clients map[uuid.UUID]*Client

	// snapshot supplies the state sent to a client as it registers. Being
	// read on the hub goroutine, it is ordered with every broadcast.
	snapshot func() map[string]monitor.ChannelState

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub builds a hub; snapshot may be nil, in which case new clients wait
// for the next broadcast.
func NewHub(snapshot func() map[string]monitor.ChannelState) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		snapshot:   snapshot,
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, c := range h.clients {
			close(c.send)
			delete(h.clients, id)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.sendCurrent(c)
			log.Printf("ws: client connected id=%s total=%d", c.id, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: client disconnected id=%s total=%d", c.id, n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Printf("ws: dropping slow client id=%s", id)
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) sendCurrent(c *Client) {
	if h.snapshot == nil {
		return
	}
	msg, err := encodeUpdate(h.snapshot())
	if err != nil {
		log.Printf("ws: encode initial update: %v", err)
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Register hands c to the hub; it receives the current state before any
// later broadcast. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish broadcasts a streams_update to every connected client.
func (h *Hub) Publish(ctx context.Context, streams map[string]monitor.ChannelState) error {
	msg, err := encodeUpdate(streams)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count is the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
