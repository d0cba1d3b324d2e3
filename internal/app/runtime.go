// Package app wires the client together: the REST client, the three stores,
// the push channel and the persistence layer, with one place owning the
// session lifecycle.
package app

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/push"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// SnapshotStore is the persistence surface the runtime hydrates from and
// snapshots to. A nil store means state lives only in memory.
type SnapshotStore interface {
	SaveSession(ctx context.Context, user core.User, authenticated bool) error
	LoadSession(ctx context.Context) (core.User, bool, error)
	ClearSession(ctx context.Context) error
	ReplaceNotifications(ctx context.Context, notifications []core.Notification) error
	LoadNotifications(ctx context.Context) ([]core.Notification, error)
}

// Runtime composes the client's moving parts and owns the session lifecycle:
// login, logout, push connection, hydration and the global reaction to an
// expired session.
type Runtime struct {
	cfg    *config.Config
	logger *log.Logger

	client        *api.Client
	sessions      *store.SessionStore
	transactions  *store.TransactionStore
	notifications *store.NotificationStore
	synchronizer  *services.NotificationSynchronizer
	snapshots     SnapshotStore
	transport     push.Transport

	mu          sync.Mutex
	pushCancel  context.CancelFunc
	pushDone    chan struct{}
	invalidated bool
}

// Options carries the optional collaborators.
type Options struct {
	// Snapshots persists session and notification state between runs.
	Snapshots SnapshotStore

	// Outbox records server-sync operations for durable retry instead of
	// calling the API inline.
	Outbox services.OutboxEnqueuer

	// Transport is the push channel; nil disables live notifications.
	Transport push.Transport
}

func NewRuntime(cfg *config.Config, logger *log.Logger, opts Options) *Runtime {
	r := &Runtime{
		cfg:           cfg,
		logger:        logger.WithComponent(log.ComponentApp),
		sessions:      store.NewSessionStore(),
		transactions:  store.NewTransactionStore(),
		notifications: store.NewNotificationStore(),
		snapshots:     opts.Snapshots,
		transport:     opts.Transport,
	}

	r.client = api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithTokenSource(r.sessions.Token),
		api.WithUnauthorizedHandler(r.invalidateSession),
	)
	r.synchronizer = services.NewNotificationSynchronizer(r.client, r.notifications, opts.Outbox, logger)

	return r
}

func (r *Runtime) Client() *api.Client           { return r.client }
func (r *Runtime) Sessions() *store.SessionStore { return r.sessions }
func (r *Runtime) Transactions() *store.TransactionStore {
	return r.transactions
}
func (r *Runtime) Notifications() *store.NotificationStore {
	return r.notifications
}
func (r *Runtime) Synchronizer() *services.NotificationSynchronizer {
	return r.synchronizer
}

// Hydrate restores persisted state into the stores. The restored session
// never carries a token, so the first authenticated call after a restart
// either succeeds (cookie deployments) or triggers the expired-session path.
func (r *Runtime) Hydrate(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}

	user, authenticated, err := r.snapshots.LoadSession(ctx)
	if err != nil {
		return err
	}
	if authenticated || user.ID != "" {
		r.sessions.Restore(user, authenticated)
	}

	notifications, err := r.snapshots.LoadNotifications(ctx)
	if err != nil {
		return err
	}
	r.notifications.Restore(notifications)

	r.logger.InfoContext(ctx, "State hydrated",
		log.FieldOperation, log.OpHydrate,
		log.FieldCount, len(notifications))
	return nil
}

// Snapshot persists the current session and notification state.
func (r *Runtime) Snapshot(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}

	session := r.sessions.Session()
	if session.User != nil {
		if err := r.snapshots.SaveSession(ctx, *session.User, session.Authenticated); err != nil {
			return err
		}
	} else if err := r.snapshots.ClearSession(ctx); err != nil {
		return err
	}

	if err := r.snapshots.ReplaceNotifications(ctx, r.notifications.Notifications()); err != nil {
		return err
	}

	r.logger.DebugContext(ctx, "State snapshot written", log.FieldOperation, log.OpSnapshot)
	return nil
}

// Login authenticates, establishes the session and brings the notification
// side online: the initial unread pull plus the live push channel.
func (r *Runtime) Login(ctx context.Context, email, password string) error {
	result, err := r.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.invalidated = false
	r.mu.Unlock()

	user := result.User
	if result.Language != "" {
		user.Language = result.Language
	}
	r.sessions.Login(user, result.Token)

	r.logger.InfoContext(ctx, "Logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, user.ID)

	r.synchronizer.LoadUnread(ctx, user.ID)
	r.StartPush(ctx)
	return nil
}

// Logout tells the server, tears down the push channel and clears all local
// state. The server call is best-effort; local state clears regardless.
func (r *Runtime) Logout(ctx context.Context) {
	session := r.sessions.Session()
	if session.User != nil {
		if err := r.client.Logout(ctx, session.User.Email); err != nil {
			r.logger.WarnContext(ctx, "Server logout failed",
				log.FieldOperation, log.OpLogout,
				log.FieldError, err)
		}
	}

	r.StopPush()
	r.clearLocalState(ctx)
	r.logger.InfoContext(ctx, "Logged out", log.FieldOperation, log.OpLogout)
}

// StartPush opens the live notification channel for the current session. At
// most one connection exists at a time; extra calls are no-ops.
func (r *Runtime) StartPush(ctx context.Context) {
	if r.transport == nil || !r.cfg.PushEnabled {
		return
	}
	session := r.sessions.Session()
	if session.User == nil || !session.Authenticated {
		return
	}

	r.mu.Lock()
	if r.pushCancel != nil {
		r.mu.Unlock()
		return
	}
	pushCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.pushCancel = cancel
	r.pushDone = done
	r.mu.Unlock()

	creds := push.Credentials{UserID: session.User.ID, Token: session.Token}
	go func() {
		defer close(done)
		err := r.transport.Connect(pushCtx, creds, r.synchronizer.ReceivePush)
		if err != nil && pushCtx.Err() == nil {
			r.logger.ErrorContext(pushCtx, "Push channel gave up", log.FieldError, err)
		}
		r.mu.Lock()
		if r.pushDone == done {
			r.pushCancel = nil
			r.pushDone = nil
		}
		r.mu.Unlock()
	}()
}

// StopPush closes the live notification channel and waits for it to wind
// down.
func (r *Runtime) StopPush() {
	r.mu.Lock()
	cancel := r.pushCancel
	done := r.pushDone
	r.pushCancel = nil
	r.pushDone = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// invalidateSession is the global reaction to any 401: the session is gone,
// so every store clears and the push channel closes. Concurrent in-flight
// requests can all hit 401 at once; the teardown runs exactly once per
// session.
func (r *Runtime) invalidateSession() {
	r.mu.Lock()
	if r.invalidated {
		r.mu.Unlock()
		return
	}
	r.invalidated = true
	cancel := r.pushCancel
	r.pushCancel = nil
	r.pushDone = nil
	r.mu.Unlock()

	// Cancel without waiting: this hook runs inside a request, and the push
	// goroutine may take a moment to notice.
	if cancel != nil {
		cancel()
	}

	ctx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	r.clearLocalState(ctx)

	r.logger.Warn("Session expired, local state cleared")
}

func (r *Runtime) clearLocalState(ctx context.Context) {
	r.sessions.Logout()
	r.transactions.Clear()
	r.synchronizer.Reset()

	if r.snapshots != nil {
		if err := r.snapshots.ClearSession(ctx); err != nil {
			r.logger.WarnContext(ctx, "Failed to clear persisted session", log.FieldError, err)
		}
		if err := r.snapshots.ReplaceNotifications(ctx, nil); err != nil {
			r.logger.WarnContext(ctx, "Failed to clear persisted notifications", log.FieldError, err)
		}
	}
}

// UpdateLanguage changes the user's preferred language server-side, then
// mirrors it into the session.
func (r *Runtime) UpdateLanguage(ctx context.Context, language string) error {
	if err := r.client.UpdateLanguage(ctx, language); err != nil {
		return err
	}
	r.sessions.SetLanguage(language)
	return nil
}

// UpdateCurrency changes the user's preferred currency server-side, then
// mirrors it into the session.
func (r *Runtime) UpdateCurrency(ctx context.Context, currency string) error {
	if err := r.client.UpdateCurrency(ctx, currency); err != nil {
		return err
	}
	r.sessions.SetCurrency(currency)
	return nil
}

// RefreshTransactions loads a page of transactions into the store.
func (r *Runtime) RefreshTransactions(ctx context.Context, filters api.TransactionFilters) error {
	r.transactions.SetLoading(true)
	defer r.transactions.SetLoading(false)

	page, err := r.client.ListTransactions(ctx, filters)
	if err != nil {
		return err
	}
	r.transactions.SetTransactions(page.Transactions)
	if page.Summary != nil {
		r.transactions.SetSummary(*page.Summary)
	}
	return nil
}
