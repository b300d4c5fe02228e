package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/protocol"
)

// commandTimeout bounds how long a client command may wait for the polling loop.
const commandTimeout = 2 * time.Second

// Controller is the part of the monitor the server drives.
type Controller interface {
	Latest() monitor.Snapshot
	OnUpdate(func(monitor.Snapshot))
	VoltageStep(ctx context.Context, dir protocol.Direction) error
	SetVoltage(ctx context.Context, text string) error
	SetFrequency(ctx context.Context, text string) error
	ToggleChannel(ctx context.Context, ch int) error
	SetAllChannels(ctx context.Context, activate bool) error
}

// Server broadcasts telemetry to WebSocket clients and accepts operator commands from them.
type Server struct {
	cfg  config.ServerConfig
	ctrl Controller

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a server and subscribes it to ctrl's updates.
func New(cfg config.ServerConfig, ctrl Controller) *Server {
	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ctrl.OnUpdate(s.Publish)
	return s
}

// Handler returns the HTTP routes: /ws for the feed and /api/status for the latest frame.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on %s", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish sends snap to every client if it carries a new sample.
func (s *Server) Publish(snap monitor.Snapshot) {
	if !snap.Updated {
		return
	}
	s.broadcast(telemetryFrame(snap))
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(telemetryFrame(s.ctrl.Latest()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Initial state before any broadcast
	if data, err := json.Marshal(telemetryFrame(s.ctrl.Latest())); err == nil {
		client.send <- data
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[server] client connected (%d total)", n)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine: commands
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[server] client disconnected (%d total)", n)
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := s.handleCommand(context.Background(), msg)
			if data, err := json.Marshal(reply); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}
		}
	}()
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
