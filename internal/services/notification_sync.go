// Package services contains the synchronization logic between the local
// stores and the backend: the notification synchronizer and the outbox
// processor that retries best-effort server syncs.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

// NotificationAPI is the slice of the REST client the synchronizer needs.
type NotificationAPI interface {
	FetchUnread(ctx context.Context, userID string) ([]core.NotificationEvent, error)
	MarkNotificationRead(ctx context.Context, userID, serverID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, serverID string) error
}

// NotFoundChecker lets the synchronizer distinguish "nothing unread" from a
// real failure without depending on the api package's error type.
type NotFoundChecker interface {
	NotFound() bool
}

// OutboxEnqueuer records pending sync operations for durable retry. When no
// outbox is configured the synchronizer calls the API directly, best-effort.
type OutboxEnqueuer interface {
	EnqueueOutbox(ctx context.Context, operation, userID, serverID string) error
}

// NotificationSynchronizer keeps the local notification list consistent with
// server state under two concurrent input paths (initial REST pull, live
// push) plus user-initiated mutations. Local mutations are optimistic: the
// store changes first, the server sync is best-effort and never rolled back.
type NotificationSynchronizer struct {
	api    NotificationAPI
	store  *store.NotificationStore
	outbox OutboxEnqueuer
	logger *log.Logger

	mu     sync.Mutex
	loaded bool
}

func NewNotificationSynchronizer(api NotificationAPI, st *store.NotificationStore, outbox OutboxEnqueuer, logger *log.Logger) *NotificationSynchronizer {
	return &NotificationSynchronizer{
		api:    api,
		store:  st,
		outbox: outbox,
		logger: logger.WithComponent(log.ComponentSync),
	}
}

// LoadUnread fetches the server's unread set once per session. The guard is
// set before the request so concurrent callers cannot double-fetch; it is
// reset on failure (other than "nothing found") so a later retry is possible.
func (s *NotificationSynchronizer) LoadUnread(ctx context.Context, userID string) {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return
	}
	s.loaded = true
	s.mu.Unlock()

	events, err := s.api.FetchUnread(ctx, userID)
	if err != nil {
		if nf, ok := err.(NotFoundChecker); ok && nf.NotFound() {
			return
		}
		s.logger.ErrorContext(ctx, "Failed to load unread notifications",
			log.FieldOperation, log.OpLoadUnread,
			log.FieldUserID, userID,
			log.FieldError, err)
		s.mu.Lock()
		s.loaded = false
		s.mu.Unlock()
		return
	}

	inserted := 0
	for _, ev := range events {
		if ev.ServerID == "" {
			continue
		}
		if s.store.Add(ev.Notification(uuid.NewString(), time.Now())) {
			inserted++
		}
	}

	s.logger.InfoContext(ctx, "Loaded unread notifications",
		log.FieldOperation, log.OpLoadUnread,
		log.FieldUserID, userID,
		log.FieldCount, inserted)
}

// ResetLoadGuard clears the once-per-session fetch guard; called on logout so
// the next login fetches again.
func (s *NotificationSynchronizer) ResetLoadGuard() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// ReceivePush handles a live event from the push channel. Deduplication by
// server id makes redundant delivery safe.
func (s *NotificationSynchronizer) ReceivePush(ev core.NotificationEvent) {
	if s.store.Add(ev.Notification(uuid.NewString(), time.Now())) {
		s.logger.Debug("Push notification stored", log.FieldServerID, ev.ServerID)
	}
}

// MarkRead marks a notification read locally, then mirrors the change
// server-side when the entry has been persisted there.
func (s *NotificationSynchronizer) MarkRead(ctx context.Context, userID, id string) {
	serverID := ""
	for _, n := range s.store.Notifications() {
		if n.ID == id || n.ServerID == id {
			serverID = n.ServerID
			break
		}
	}

	if !s.store.MarkRead(id) {
		return
	}
	if serverID == "" {
		return
	}

	s.sync(ctx, log.OpMarkRead, userID, func() error {
		if s.outbox != nil {
			return s.outbox.EnqueueOutbox(ctx, storage.OpMarkRead, userID, serverID)
		}
		return s.api.MarkNotificationRead(ctx, userID, serverID)
	})
}

// MarkAllRead marks every notification read locally, then mirrors the change
// server-side with a single call.
func (s *NotificationSynchronizer) MarkAllRead(ctx context.Context, userID string) {
	s.store.MarkAllRead()

	s.sync(ctx, log.OpMarkAllRead, userID, func() error {
		if s.outbox != nil {
			return s.outbox.EnqueueOutbox(ctx, storage.OpMarkAllRead, userID, "")
		}
		return s.api.MarkAllNotificationsRead(ctx, userID)
	})
}

// Remove deletes a notification locally, then server-side when it has a
// server id. Local removal happens before any acknowledgment.
func (s *NotificationSynchronizer) Remove(ctx context.Context, userID, id string) {
	removed, ok := s.store.Remove(id)
	if !ok || removed.ServerID == "" {
		return
	}

	s.sync(ctx, log.OpRemove, userID, func() error {
		if s.outbox != nil {
			return s.outbox.EnqueueOutbox(ctx, storage.OpDelete, userID, removed.ServerID)
		}
		return s.api.DeleteNotification(ctx, userID, removed.ServerID)
	})
}

// ClearAll empties the store and issues one server delete per entry that has
// a server id. Local-only notifications are simply dropped. Partial failures
// are logged and not compensated; the server remains the source of truth on
// the next full reload.
func (s *NotificationSynchronizer) ClearAll(ctx context.Context, userID string) {
	dropped := s.store.Clear()

	if s.outbox != nil {
		for _, n := range dropped {
			if n.ServerID == "" {
				continue
			}
			serverID := n.ServerID
			s.sync(ctx, log.OpClearAll, userID, func() error {
				return s.outbox.EnqueueOutbox(ctx, storage.OpDelete, userID, serverID)
			})
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range dropped {
		if n.ServerID == "" {
			continue
		}
		serverID := n.ServerID
		g.Go(func() error {
			if err := s.api.DeleteNotification(gctx, userID, serverID); err != nil {
				s.logger.WarnContext(gctx, "Failed to delete notification server-side",
					log.FieldOperation, log.OpClearAll,
					log.FieldServerID, serverID,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Reset empties the store without any server sync; used on session
// invalidation.
func (s *NotificationSynchronizer) Reset() {
	s.store.Clear()
	s.ResetLoadGuard()
}

// sync runs a best-effort server mirror of an optimistic local change. A
// failure is logged, never surfaced and never rolled back.
func (s *NotificationSynchronizer) sync(ctx context.Context, op, userID string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "Notification sync failed",
			log.FieldOperation, op,
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}
