// Package events pushes survey activity to connected WebSocket clients so a
// UI can refresh its unsynced counters and connectivity badge without
// polling. It also serves /health and the prometheus /metrics endpoint.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MessageType names the kind of event in a Message.
type MessageType string

// Event kinds. Status is only ever sent as the first message on a new
// connection.
const (
	MessageTypeRecordSaved  MessageType = "record_saved"
	MessageTypeSyncComplete MessageType = "sync_complete"
	MessageTypeConnectivity MessageType = "connectivity"
	MessageTypeReset        MessageType = "reset"
	MessageTypeStatus       MessageType = "status"
)

// Message is one broadcast event.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	queueSize    = 100
	writeTimeout = 5 * time.Second
)

// Server fans events out to every connected WebSocket client.
type Server struct {
	config *Config
	addr   string
	ln     net.Listener
	http   *http.Server

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}

	queue chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on. Zero picks a free port.
	Port int

	// Status returns the snapshot sent as the welcome message. Optional.
	Status func() any

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

// DefaultConfig returns the configuration used for a nil Config.
func DefaultConfig() *Config {
	return &Config{
		Port:     8080,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   log.Default(),
	}
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:  config,
		addr:    fmt.Sprintf(":%d", config.Port),
		clients: make(map[*websocket.Conn]struct{}),
		queue:   make(chan Message, queueSize),
		logger:  config.Logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Handler returns the HTTP routes. Start serves them; tests may mount them
// on an httptest server instead.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start listens and begins broadcasting.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.StartBroadcasting()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Events server listening on %s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// StartBroadcasting runs the delivery loop without listening, for use with
// Handler mounted elsewhere.
func (s *Server) StartBroadcasting() {
	s.wg.Add(1)
	go s.deliverLoop()
}

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	clear(s.clients)
	s.mu.Unlock()

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := s.http.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("failed to shut down events server: %w", serr)
		}
	}
	s.wg.Wait()
	s.logger.Println("Events server stopped")
	return err
}

// Broadcast queues msg for every connected client. It never blocks; a full
// queue drops the message.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.queue <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("WARNING: Event queue full, dropping %s", msg.Type)
	}
}

// Publish marshals data and broadcasts it as a message of type t.
func (s *Server) Publish(t MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s event: %v", t, err)
		return
	}
	s.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: raw})
}

func (s *Server) deliverLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.queue:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal %s event: %v", msg.Type, err)
				continue
			}
			for _, conn := range s.snapshot() {
				if err := s.write(s.ctx, conn, frame); err != nil {
					s.logger.Printf("Dropping client after failed write: %v", err)
					s.drop(conn, websocket.StatusNormalClosure)
				}
			}
		}
	}
}

// snapshot copies the client set so writes happen without the lock.
func (s *Server) snapshot() []*websocket.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// The status snapshot goes out before the client can receive broadcasts.
	if err := s.write(r.Context(), conn, s.welcome()); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Printf("Client connected (total: %d)", n)

	go func() {
		defer s.drop(conn, websocket.StatusNormalClosure)
		for {
			if _, _, err := conn.Read(s.ctx); err != nil {
				return
			}
		}
	}()
}

func (s *Server) welcome() []byte {
	msg := Message{Type: MessageTypeStatus, Timestamp: time.Now()}
	if s.config.Status != nil {
		if raw, err := json.Marshal(s.config.Status()); err == nil {
			msg.Data = raw
		}
	}
	frame, _ := json.Marshal(msg)
	return frame
}

// drop forgets conn and closes it. Dropping an unknown conn is a no-op.
func (s *Server) drop(conn *websocket.Conn, code websocket.StatusCode) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	n := len(s.clients)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = conn.Close(code, "")
	s.logger.Printf("Client disconnected (total: %d)", n)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
