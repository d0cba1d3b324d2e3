package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"fintrack/internal/log"
)

// WebSocketTransport connects directly to the backend's socket endpoint.
// Reconnection is automatic with a bounded number of consecutive attempts and
// a fixed delay between them; a successful connect resets the counter.
type WebSocketTransport struct {
	url      string
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

func NewWebSocketTransport(baseURL string, attempts int, delay time.Duration, logger *log.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:      baseURL,
		attempts: attempts,
		delay:    delay,
		logger:   logger.WithComponent(log.ComponentPush),
	}
}

// endpoint converts the configured HTTP origin into the websocket URL for
// the given user.
func (t *WebSocketTransport) endpoint(creds Credentials) (string, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return "", fmt.Errorf("parse push URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket"
	q := u.Query()
	q.Set("userId", creds.UserID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the socket endpoint and delivers notification events until
// the context is canceled. Dial failures and dropped connections count
// against the reconnect budget; exhausting it returns an error.
func (t *WebSocketTransport) Connect(ctx context.Context, creds Credentials, handler Handler) error {
	endpoint, err := t.endpoint(creds)
	if err != nil {
		return err
	}

	header := http.Header{}
	if creds.Token != "" {
		header.Set("Authorization", "Bearer "+creds.Token)
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
		if err != nil {
			failures++
			t.logger.WarnContext(ctx, "Push channel connect failed",
				log.FieldAttempt, failures,
				log.FieldError, err)
			if failures >= t.attempts {
				return fmt.Errorf("push channel: giving up after %d attempts: %w", failures, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.delay):
			}
			continue
		}

		t.logger.InfoContext(ctx, "Push channel connected", log.FieldUserID, creds.UserID)
		failures = 0

		if err := t.readLoop(ctx, conn, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			t.logger.WarnContext(ctx, "Push channel dropped",
				log.FieldAttempt, failures,
				log.FieldError, err)
			if failures >= t.attempts {
				return fmt.Errorf("push channel: giving up after %d attempts: %w", failures, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.delay):
			}
		}
	}
}

// readLoop reads frames until the connection drops or the context ends. A
// goroutine watches the context and closes the connection to unblock the
// read.
func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn, handler Handler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.logger.WarnContext(ctx, "Discarding malformed push frame", log.FieldError, err)
			continue
		}
		if ev.Event != EventNotification {
			continue
		}
		handler(ev.Data)
	}
}
