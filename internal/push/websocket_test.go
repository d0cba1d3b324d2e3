package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func TestWebSocketEndpoint(t *testing.T) {
	tr := NewWebSocketTransport("https://backend.example.com", 1, time.Millisecond, testLogger())
	got, err := tr.endpoint(Credentials{UserID: "u1"})
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "wss://backend.example.com/socket?userId=u1" {
		t.Fatalf("unexpected endpoint %q", got)
	}

	tr = NewWebSocketTransport("http://localhost:5000", 1, time.Millisecond, testLogger())
	got, err = tr.endpoint(Credentials{UserID: "u1"})
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "ws://localhost:5000/socket?userId=u1" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestWebSocketDeliversNotificationEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket" || r.URL.Query().Get("userId") != "u1" {
			t.Errorf("unexpected request %s", r.URL)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"ping","data":{}}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`not json`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"notification","data":{"_id":"srv-1","type":"info","title":"hi","message":"there"}}`))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	tr := NewWebSocketTransport(server.URL, 1, time.Millisecond, testLogger())

	var mu sync.Mutex
	var received []core.NotificationEvent
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Connect(ctx, Credentials{UserID: "u1", Token: "tok"}, func(ev core.NotificationEvent) {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
			cancel()
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(received))
	}
	if received[0].ServerID != "srv-1" || received[0].Title != "hi" {
		t.Fatalf("unexpected event: %+v", received[0])
	}
}

func TestWebSocketGivesUpAfterBoundedAttempts(t *testing.T) {
	// Nothing listens on this address.
	tr := NewWebSocketTransport("http://127.0.0.1:1", 3, time.Millisecond, testLogger())

	start := time.Now()
	err := tr.Connect(context.Background(), Credentials{UserID: "u1"}, func(core.NotificationEvent) {})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("bounded retry took too long")
	}
}

func TestWebSocketStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewWebSocketTransport("http://127.0.0.1:1", 1000, time.Second, testLogger())
	err := tr.Connect(ctx, Credentials{UserID: "u1"}, func(core.NotificationEvent) {})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
