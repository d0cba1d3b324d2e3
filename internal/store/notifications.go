package store

import (
	"sync"

	"fintrack/internal/core"
)

// DefaultNotificationCap is the maximum number of notifications kept locally.
const DefaultNotificationCap = 50

// NotificationStore keeps the local notification list. Entries are ordered
// newest first. The store enforces two invariants: at most one entry per
// distinct server id, and at most cap entries with the oldest inserted
// evicted first.
type NotificationStore struct {
	broadcaster

	mu      sync.RWMutex
	cap     int
	entries []core.Notification
	unread  int
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{cap: DefaultNotificationCap}
}

// NewNotificationStoreWithCap creates a store with a custom capacity,
// mainly for tests.
func NewNotificationStoreWithCap(capacity int) *NotificationStore {
	if capacity < 1 {
		capacity = DefaultNotificationCap
	}
	return &NotificationStore{cap: capacity}
}

// Add inserts a notification at the head of the list. When the entry carries
// a server id that is already present, the insert is a no-op and Add returns
// false. Local-only notifications are never deduplicated against each other.
func (s *NotificationStore) Add(n core.Notification) bool {
	s.mu.Lock()
	if n.ServerID != "" {
		for _, existing := range s.entries {
			if existing.ServerID == n.ServerID {
				s.mu.Unlock()
				return false
			}
		}
	}

	s.entries = append([]core.Notification{n}, s.entries...)
	if !n.Read {
		s.unread++
	}

	// FIFO eviction: the tail is the oldest insertion.
	for len(s.entries) > s.cap {
		evicted := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		if !evicted.Read {
			s.unread--
		}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// MarkRead flips a notification's read flag to true. The transition is
// one-way; marking an already-read entry is a no-op.
func (s *NotificationStore) MarkRead(id string) bool {
	s.mu.Lock()
	changed := false
	for i := range s.entries {
		if s.entries[i].ID == id || (s.entries[i].ServerID != "" && s.entries[i].ServerID == id) {
			if !s.entries[i].Read {
				s.entries[i].Read = true
				s.unread--
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// MarkAllRead flips every unread entry to read.
func (s *NotificationStore) MarkAllRead() {
	s.mu.Lock()
	for i := range s.entries {
		s.entries[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()
	s.notify()
}

// Remove deletes a notification by local or server id and returns the
// removed entry.
func (s *NotificationStore) Remove(id string) (core.Notification, bool) {
	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ID == id || (s.entries[i].ServerID != "" && s.entries[i].ServerID == id) {
			removed := s.entries[i]
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			if !removed.Read {
				s.unread--
			}
			s.mu.Unlock()
			s.notify()
			return removed, true
		}
	}
	s.mu.Unlock()
	return core.Notification{}, false
}

// Clear empties the store and returns the dropped entries so the caller can
// mirror the deletion server-side.
func (s *NotificationStore) Clear() []core.Notification {
	s.mu.Lock()
	dropped := s.entries
	s.entries = nil
	s.unread = 0
	s.mu.Unlock()
	s.notify()
	return dropped
}

// Notifications returns a copy of the list, newest first.
func (s *NotificationStore) Notifications() []core.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Notification(nil), s.entries...)
}

// UnreadCount returns the number of unread entries; it drives the badge.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Len returns the number of stored entries.
func (s *NotificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HasServerID reports whether an entry with the given server id is present.
func (s *NotificationStore) HasServerID(serverID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.entries {
		if n.ServerID == serverID {
			return true
		}
	}
	return false
}

// Restore hydrates the store from a persisted snapshot, replacing current
// contents. The snapshot is assumed newest first and is re-capped.
func (s *NotificationStore) Restore(entries []core.Notification) {
	s.mu.Lock()
	if len(entries) > s.cap {
		entries = entries[:s.cap]
	}
	s.entries = append([]core.Notification(nil), entries...)
	s.unread = 0
	for _, n := range s.entries {
		if !n.Read {
			s.unread++
		}
	}
	s.mu.Unlock()
	s.notify()
}
