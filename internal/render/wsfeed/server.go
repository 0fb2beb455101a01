package wsfeed

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers connect from file:// pages and dev servers
	},
}

// Server exposes the feed hub over HTTP. Viewers connect to /ws.
type Server struct {
	hub     *Hub
	ln      net.Listener
	httpSrv *http.Server
	log     *zap.Logger
}

// NewServer binds bindAddr immediately so the caller learns about port
// conflicts before the simulation starts. Call Serve to begin accepting.
func NewServer(bindAddr string, hub *Hub, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("bind feed server: %w", err)
	}
	s := &Server{
		hub: hub,
		ln:  ln,
		log: log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	s.httpSrv = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown. A clean stop returns http.ErrServerClosed.
func (s *Server) Serve() error {
	return s.httpSrv.Serve(s.ln)
}

// Shutdown stops accepting and drains in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// serveWS upgrades the connection and hands it to the hub.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(s.hub, conn, s.log)
	c.register()

	go c.writePump()
	go c.readPump()
}
