package wsfeed

import (
	"context"

	"go.uber.org/zap"
)

// ViewportCommand is a viewer's resize request. The host loop drains these
// and applies them to the simulation between ticks.
type ViewportCommand struct {
	W float64
	H float64
}

// Hub tracks connected viewers and fans broadcast payloads out to them.
// The Run goroutine owns the client set; clients and publishers talk to it
// only through channels.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	viewport   chan ViewportCommand

	// snapshot produces the catch-up messages replayed to each new viewer.
	// Set by NewFeed before Run starts.
	snapshot func() [][]byte

	log *zap.Logger
}

// NewHub initializes a hub. Call Run in its own goroutine to start it.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		viewport:   make(chan ViewportCommand, 16),
		log:        log,
	}
}

// Run services registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.log.Info("feed hub stopped")
			return
		case c := <-h.register:
			h.clients[c] = true
			if h.snapshot != nil {
				for _, msg := range h.snapshot() {
					select {
					case c.send <- msg:
					default:
					}
				}
			}
			h.log.Info("viewer connected",
				zap.String("addr", c.addr),
				zap.Int("viewers", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("viewer disconnected",
					zap.String("addr", c.addr),
					zap.Int("viewers", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("viewer too slow, dropping connection",
						zap.String("addr", c.addr))
				}
			}
		}
	}
}

// offer enqueues a payload without blocking. It reports false when the hub
// buffer is full, in which case the payload is lost.
func (h *Hub) offer(payload []byte) bool {
	select {
	case h.broadcast <- payload:
		return true
	default:
		return false
	}
}

// Viewport returns the channel of viewer resize requests.
func (h *Hub) Viewport() <-chan ViewportCommand {
	return h.viewport
}
