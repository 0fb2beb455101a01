package wsfeed

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-client outbound queue. A viewer that falls this far behind is
	// disconnected rather than allowed to stall the hub.
	sendBuffer = 256

	// Hub-level queue between the simulation loop and the Run goroutine.
	broadcastBuffer = 256
)

// client is one connected viewer.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	addr string
	log  *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, log *zap.Logger) *client {
	return &client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		addr: conn.RemoteAddr().String(),
		log:  log,
	}
}

// register adds the client to the hub.
func (c *client) register() {
	c.hub.register <- c
}

// command is an incoming viewer message.
type command struct {
	Type string  `json:"type"`
	W    float64 `json:"w,omitempty"`
	H    float64 `json:"h,omitempty"`
}

// readPump pumps viewer commands from the websocket connection to the hub.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("viewer read error", zap.String("addr", c.addr), zap.Error(err))
			}
			break
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.log.Warn("unparseable viewer command", zap.String("addr", c.addr), zap.Error(err))
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *client) handleCommand(cmd command) {
	switch cmd.Type {
	case "viewport":
		select {
		case c.hub.viewport <- ViewportCommand{W: cmd.W, H: cmd.H}:
		default:
			c.log.Warn("viewport queue full, request dropped", zap.String("addr", c.addr))
		}
	default:
		c.log.Warn("unknown viewer command", zap.String("type", cmd.Type), zap.String("addr", c.addr))
	}
}

// writePump pumps hub payloads to the websocket connection. Queued payloads
// are coalesced into a single newline-separated write.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
