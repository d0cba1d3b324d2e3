// Package push implements the live notification channel: one persistent
// connection per authenticated session delivering server-initiated
// notification events. Two transports exist; which one is used depends on the
// deployment (direct WebSocket to the backend, or an AMQP broker in front of
// it). Redundant delivery is safe because the store deduplicates by server id.
package push

import (
	"context"

	"fintrack/internal/core"
)

// Handler receives each delivered notification event. It must not block.
type Handler func(core.NotificationEvent)

// Credentials identify the session on connect. Token may be empty when the
// deployment authenticates the channel via cookie.
type Credentials struct {
	UserID string
	Token  string
}

// Transport is a push-channel implementation. Connect blocks, delivering
// events to the handler until the context is canceled or the bounded
// reconnect attempts are exhausted.
type Transport interface {
	Connect(ctx context.Context, creds Credentials, handler Handler) error
}

// event is the wire envelope shared by both transports.
type event struct {
	Event string                 `json:"event"`
	Data  core.NotificationEvent `json:"data"`
}

// EventNotification is the only event type the channel carries.
const EventNotification = "notification"
