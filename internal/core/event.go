package core

import "time"

// NotificationEvent is the server-shaped notification payload, as delivered
// both by the REST unread endpoint and by the push channel.
type NotificationEvent struct {
	ServerID      string            `json:"_id"`
	Kind          NotificationKind  `json:"type"`
	Title         string            `json:"title,omitempty"`
	Message       string            `json:"message,omitempty"`
	TitleKey      string            `json:"titleKey,omitempty"`
	MessageKey    string            `json:"messageKey,omitempty"`
	MessageParams map[string]string `json:"messageParams,omitempty"`
	Link          string            `json:"link,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Notification converts the wire payload into a store entry. The local id is
// assigned by the caller; CreatedAt falls back to the observation time when
// the server did not set one.
func (e NotificationEvent) Notification(localID string, now time.Time) Notification {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	kind := e.Kind
	if !kind.Valid() {
		kind = NotificationInfo
	}
	return Notification{
		ID:            localID,
		ServerID:      e.ServerID,
		Kind:          kind,
		Title:         e.Title,
		Message:       e.Message,
		TitleKey:      e.TitleKey,
		MessageKey:    e.MessageKey,
		MessageParams: e.MessageParams,
		Link:          e.Link,
		Read:          false,
		CreatedAt:     createdAt,
	}
}
