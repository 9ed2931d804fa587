package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

func startServer(t *testing.T, config *Config) *Server {
	t.Helper()
	if config == nil {
		config = &Config{}
	}
	config.Logger = log.New(io.Discard, "", 0)
	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", server.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWelcomeCarriesStatus(t *testing.T) {
	server := startServer(t, &Config{Status: func() any {
		return map[string]int{"unsynced": 3}
	}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("welcome type = %s, want %s", msg.Type, MessageTypeStatus)
	}
	var status map[string]int
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if status["unsynced"] != 3 {
		t.Errorf("status = %v, want unsynced=3", status)
	}
}

func TestBroadcastToClients(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := []*websocket.Conn{dial(t, ctx, server), dial(t, ctx, server)}
	for _, c := range conns {
		readMessage(t, ctx, c)
	}
	waitForClients(t, server, 2)

	server.RecordSaved("households", 7, false)
	for i, c := range conns {
		msg := readMessage(t, ctx, c)
		if msg.Type != MessageTypeRecordSaved {
			t.Fatalf("client %d got %s, want %s", i, msg.Type, MessageTypeRecordSaved)
		}
		var data RecordSavedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatalf("Failed to unmarshal data: %v", err)
		}
		if data != (RecordSavedData{Table: "households", ID: 7}) {
			t.Errorf("client %d data = %+v", i, data)
		}
	}
}

func TestNotifierMessages(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	pass := &sync.PassSummary{
		ID:       uuid.New(),
		Duration: 40 * time.Millisecond,
		Rows: []sync.RowResult{
			{Table: "households", ID: 1, Outcome: sync.Synced},
			{Table: "members", ID: 1, Outcome: sync.Failed, Reason: "timeout"},
		},
	}
	server.SyncComplete(pass)
	server.Connectivity(true)
	server.Reset()

	msg := readMessage(t, ctx, conn)
	var sc SyncCompleteData
	if err := json.Unmarshal(msg.Data, &sc); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}
	if msg.Type != MessageTypeSyncComplete || sc.PassID != pass.ID.String() || sc.Synced != 1 || sc.Failed != 1 {
		t.Errorf("sync_complete = %s %+v", msg.Type, sc)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeConnectivity || !strings.Contains(string(msg.Data), `"connected":true`) {
		t.Errorf("connectivity = %s %s", msg.Type, msg.Data)
	}
	if msg = readMessage(t, ctx, conn); msg.Type != MessageTypeReset {
		t.Errorf("got %s, want %s", msg.Type, MessageTypeReset)
	}
}

func TestClientDisconnect(t *testing.T) {
	server := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, server, 0)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hhsync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := NewServer(&Config{Gatherer: reg, Logger: log.New(io.Discard, "", 0)})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "hhsync_test_total 1") {
		t.Errorf("/metrics missing counter:\n%s", body)
	}
}
