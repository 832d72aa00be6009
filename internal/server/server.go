package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blackjacktable/internal/auth"
)

// Server is the websocket gateway: it authenticates upgrades, tracks live
// connections, and fans table snapshots out to them. Game semantics live
// entirely in the table hosts.
type Server struct {
	upgrader websocket.Upgrader
	logger   *log.Logger
	verifier *auth.Verifier
	manager  *Manager

	mu          sync.RWMutex
	connections map[string]*Connection

	ctx        context.Context
	cancel     context.CancelFunc
	httpServer *http.Server
}

// New creates a gateway over the given verifier and table registry.
func New(logger *log.Logger, verifier *auth.Verifier, manager *Manager) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from the game origin; origin
				// enforcement belongs to the deployment proxy.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		verifier:    verifier,
		manager:     manager,
		connections: make(map[string]*Connection),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Handler returns the HTTP handler serving /ws, /health and /tables.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tables", s.handleTables)
	return mux
}

// Start serves HTTP on addr, blocking until shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	s.logger.Info("starting websocket server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	for _, conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleWebSocket authenticates and upgrades a client connection. Identity
// resolution happens before the upgrade: a bad wallet token is refused with
// 401 and never reaches a table.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	identity, err := s.verifier.Identify(query.Get("walletAddress"), query.Get("token"))
	if err != nil {
		s.logger.Warn("rejected connection", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized: valid wallet token required", http.StatusUnauthorized)
		return
	}

	var host *TableHost
	var ok bool
	if tableID := query.Get("table"); tableID != "" {
		host, ok = s.manager.Get(tableID)
	} else {
		host, ok = s.manager.Default()
	}
	if !ok {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(uuid.New().String(), identity, ws, host, s.logger)
	s.addConnection(conn)
	conn.Start()

	// Returning identities reclaim their seat; everyone gets the snapshot.
	host.OnConnect(conn.id, identity)

	go func() {
		<-conn.ctx.Done()
		s.removeConnection(conn)
	}()
}

func (s *Server) addConnection(conn *Connection) {
	s.mu.Lock()
	s.connections[conn.id] = conn
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client connected", "conn", conn.id, "player", conn.identity, "total", total)
}

func (s *Server) removeConnection(conn *Connection) {
	s.mu.Lock()
	_, ok := s.connections[conn.id]
	if ok {
		delete(s.connections, conn.id)
	}
	total := len(s.connections)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = conn.Close()
	// The seat is kept: the identity may reconnect and reclaim its
	// connection binding. Vacating a seat takes an explicit leave intent.
	s.logger.Info("client disconnected", "conn", conn.id, "player", conn.identity, "total", total)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// handleTables lists the registered tables as JSON.
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.manager.List()); err != nil {
		s.logger.Error("failed to encode table list", "error", err)
	}
}

// BroadcastToTable sends a message to every connection attached to tableID.
func (s *Server) BroadcastToTable(tableID string, msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, conn := range s.connections {
		if conn.TableID() == tableID {
			if err := conn.SendMessage(msg); err != nil {
				s.logger.Error("failed to send to client", "error", err, "conn", conn.id)
			} else {
				count++
			}
		}
	}

	s.logger.Debug("broadcast", "table", tableID, "type", msg.Type, "recipients", count)
}

// SendToConn sends a message to a single connection.
func (s *Server) SendToConn(connID string, msg *Message) {
	s.mu.RLock()
	conn, ok := s.connections[connID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := conn.SendMessage(msg); err != nil {
		s.logger.Error("failed to send to client", "error", err, "conn", connID)
	}
}

// CloseConn terminates a connection by id. Used when an identity reconnects
// and the old connection is superseded.
func (s *Server) CloseConn(connID string) {
	s.mu.RLock()
	conn, ok := s.connections[connID]
	s.mu.RUnlock()
	if ok {
		_ = conn.Close()
	}
}
