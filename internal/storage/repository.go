// Package storage persists the client's local state between runs: the
// session and notification snapshots the stores hydrate from, and the outbox
// of pending server-sync operations.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// Outbox operations.
const (
	OpMarkRead    = "mark_read"
	OpMarkAllRead = "mark_all_read"
	OpDelete      = "delete"
)

// Outbox item statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// OutboxItem is a pending notification-sync operation.
type OutboxItem struct {
	ID        int64
	Operation string
	UserID    string
	ServerID  string
	Status    string
	Attempts  int64
	LastError string
	CreatedAt time.Time
}

// OutboxStats summarizes the outbox by status.
type OutboxStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSession writes the persisted part of the session: user and
// authenticated flag, never the token.
func (r *Repository) SaveSession(ctx context.Context, user core.User, authenticated bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_snapshot (id, user_id, name, email, language, currency, authenticated, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			email = excluded.email,
			language = excluded.language,
			currency = excluded.currency,
			authenticated = excluded.authenticated,
			updated_at = CURRENT_TIMESTAMP`,
		user.ID, user.Name, user.Email, user.Language, user.Currency, boolToInt(authenticated))
	if err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}
	return nil
}

// LoadSession reads the persisted session snapshot. A missing row is not an
// error; it returns an empty user and false.
func (r *Repository) LoadSession(ctx context.Context) (core.User, bool, error) {
	var user core.User
	var authenticated int
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, name, email, language, currency, authenticated
		FROM session_snapshot WHERE id = 1`).
		Scan(&user.ID, &user.Name, &user.Email, &user.Language, &user.Currency, &authenticated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("load session snapshot: %w", err)
	}
	return user, authenticated != 0, nil
}

// ClearSession removes the persisted session snapshot.
func (r *Repository) ClearSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_snapshot`); err != nil {
		return fmt.Errorf("clear session snapshot: %w", err)
	}
	return nil
}

// ReplaceNotifications overwrites the notification snapshot with the given
// list, preserving order (index 0 = newest).
func (r *Repository) ReplaceNotifications(ctx context.Context, notifications []core.Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("clear notification snapshot: %w", err)
	}

	for i, n := range notifications {
		params := ""
		if len(n.MessageParams) > 0 {
			encoded, err := json.Marshal(n.MessageParams)
			if err != nil {
				return fmt.Errorf("encode message params: %w", err)
			}
			params = string(encoded)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications
				(id, server_id, kind, title, message, title_key, message_key, message_params, link, read, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.ServerID, string(n.Kind), n.Title, n.Message, n.TitleKey, n.MessageKey,
			params, n.Link, boolToInt(n.Read), n.CreatedAt.UTC(), i)
		if err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification snapshot: %w", err)
	}
	return nil
}

// LoadNotifications reads the snapshot in stored order (newest first).
func (r *Repository) LoadNotifications(ctx context.Context) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_id, kind, title, message, title_key, message_key, message_params, link, read, created_at
		FROM notifications ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	defer rows.Close()

	var notifications []core.Notification
	for rows.Next() {
		var n core.Notification
		var kind, params string
		var read int
		if err := rows.Scan(&n.ID, &n.ServerID, &kind, &n.Title, &n.Message,
			&n.TitleKey, &n.MessageKey, &params, &n.Link, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = core.NotificationKind(kind)
		n.Read = read != 0
		if params != "" {
			if err := json.Unmarshal([]byte(params), &n.MessageParams); err != nil {
				return nil, fmt.Errorf("decode message params: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// EnqueueOutbox records a pending sync operation.
func (r *Repository) EnqueueOutbox(ctx context.Context, operation, userID, serverID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (operation, user_id, server_id) VALUES (?, ?, ?)`,
		operation, userID, serverID)
	if err != nil {
		return fmt.Errorf("enqueue outbox item: %w", err)
	}
	return nil
}

// DequeueOutboxBatch returns up to limit pending items, oldest first.
func (r *Repository) DequeueOutboxBatch(ctx context.Context, limit int64) ([]OutboxItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, user_id, server_id, status, attempts, last_error, created_at
		FROM outbox WHERE status = ? ORDER BY id ASC LIMIT ?`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue outbox batch: %w", err)
	}
	defer rows.Close()

	var items []OutboxItem
	for rows.Next() {
		var item OutboxItem
		if err := rows.Scan(&item.ID, &item.Operation, &item.UserID, &item.ServerID,
			&item.Status, &item.Attempts, &item.LastError, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox items: %w", err)
	}
	return items, nil
}

func (r *Repository) setOutboxStatus(ctx context.Context, id int64, status, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, lastError, id)
	if err != nil {
		return fmt.Errorf("set outbox status %s: %w", status, err)
	}
	return nil
}

func (r *Repository) MarkOutboxProcessing(ctx context.Context, id int64) error {
	return r.setOutboxStatus(ctx, id, StatusProcessing, "")
}

func (r *Repository) MarkOutboxComplete(ctx context.Context, id int64) error {
	return r.setOutboxStatus(ctx, id, StatusCompleted, "")
}

func (r *Repository) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	return r.setOutboxStatus(ctx, id, StatusFailed, lastError)
}

// IncrementOutboxAttempt records a failed attempt and puts the item back in
// the pending state for a later retry.
func (r *Repository) IncrementOutboxAttempt(ctx context.Context, id int64, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, StatusPending, lastError, id)
	if err != nil {
		return fmt.Errorf("increment outbox attempt: %w", err)
	}
	return nil
}

// ResetStaleProcessing returns items stuck in processing (from a crashed run)
// to the pending state.
func (r *Repository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("reset stale processing items: %w", err)
	}
	return nil
}

// CleanupCompletedOutbox removes completed items older than the cutoff.
func (r *Repository) CleanupCompletedOutbox(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox WHERE status = ? AND updated_at < ?`, StatusCompleted, cutoff.UTC())
	if err != nil {
		return fmt.Errorf("cleanup completed outbox items: %w", err)
	}
	return nil
}

// RetryFailedOutbox resets all failed items for another round of attempts.
func (r *Repository) RetryFailedOutbox(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		StatusPending, StatusFailed)
	if err != nil {
		return fmt.Errorf("retry failed outbox items: %w", err)
	}
	return nil
}

// GetOutboxStats returns per-status counts.
func (r *Repository) GetOutboxStats(ctx context.Context) (*OutboxStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("get outbox stats: %w", err)
	}
	defer rows.Close()

	stats := &OutboxStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan outbox stats: %w", err)
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox stats: %w", err)
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
