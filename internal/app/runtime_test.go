package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/push"
)

// fakeBackend serves the API envelope and can be flipped into a state where
// every call returns 401.
type fakeBackend struct {
	mu      sync.Mutex
	expired bool
	unread  string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.respond(w, `{"success":true,"data":{"user":{"id":"u1","name":"Ada","email":"ada@example.com"},"token":"tok-1"}}`)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.respond(w, `{"success":true}`)
	})
	mux.HandleFunc("POST /notifications/u1", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		unread := b.unread
		b.mu.Unlock()
		if unread == "" {
			unread = "[]"
		}
		b.respond(w, `{"success":true,"data":`+unread+`}`)
	})
	mux.HandleFunc("GET /transactions", func(w http.ResponseWriter, r *http.Request) {
		b.respond(w, `{"success":true,"data":{"transactions":[{"_id":"t1","type":"expense","amount":"10","category":"Food","description":"lunch","date":"2024-01-10"}],"pagination":{"page":1,"limit":20,"total":1,"pages":1}}}`)
	})
	return mux
}

func (b *fakeBackend) respond(w http.ResponseWriter, body string) {
	b.mu.Lock()
	expired := b.expired
	b.mu.Unlock()
	if expired {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (b *fakeBackend) expire() {
	b.mu.Lock()
	b.expired = true
	b.mu.Unlock()
}

// fakeSnapshots is an in-memory SnapshotStore that counts clears.
type fakeSnapshots struct {
	mu            sync.Mutex
	user          core.User
	authenticated bool
	notifications []core.Notification
	clearCalls    int
}

func (f *fakeSnapshots) SaveSession(ctx context.Context, user core.User, authenticated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = user
	f.authenticated = authenticated
	return nil
}

func (f *fakeSnapshots) LoadSession(ctx context.Context) (core.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.authenticated, nil
}

func (f *fakeSnapshots) ClearSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = core.User{}
	f.authenticated = false
	f.clearCalls++
	return nil
}

func (f *fakeSnapshots) ReplaceNotifications(ctx context.Context, notifications []core.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append([]core.Notification(nil), notifications...)
	return nil
}

func (f *fakeSnapshots) LoadNotifications(ctx context.Context) ([]core.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Notification(nil), f.notifications...), nil
}

// fakeTransport counts connections and blocks until canceled.
type fakeTransport struct {
	connects atomic.Int32
}

func (f *fakeTransport) Connect(ctx context.Context, creds push.Credentials, handler push.Handler) error {
	f.connects.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func apiFilters() api.TransactionFilters {
	return api.TransactionFilters{Page: 1, Limit: 20}
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:        baseURL,
		APITimeout:        5 * time.Second,
		PushTransport:     config.TransportWebSocket,
		ReconnectAttempts: 1,
		ReconnectDelay:    10 * time.Millisecond,
	}
}

func newTestRuntime(t *testing.T, backend *fakeBackend, opts Options) *Runtime {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)
	cfg := testConfig(server.URL)
	if opts.Transport != nil {
		cfg.PushEnabled = true
	}
	return NewRuntime(cfg, log.New(log.DefaultConfig()), opts)
}

func TestLoginEstablishesSessionAndLoadsUnread(t *testing.T) {
	backend := &fakeBackend{unread: `[{"_id":"srv-1","type":"info","title":"hi","message":"there"}]`}
	r := newTestRuntime(t, backend, Options{})

	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	session := r.Sessions().Session()
	if !session.LoggedIn() || session.Token != "tok-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if r.Notifications().Len() != 1 || !r.Notifications().HasServerID("srv-1") {
		t.Fatalf("unread not loaded: %d entries", r.Notifications().Len())
	}
}

func TestSessionExpiryClearsEverythingOnce(t *testing.T) {
	backend := &fakeBackend{unread: `[{"_id":"srv-1","type":"info","title":"hi","message":"there"}]`}
	snapshots := &fakeSnapshots{}
	r := newTestRuntime(t, backend, Options{Snapshots: snapshots})

	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	backend.expire()

	// Several requests hit the expired session; the teardown runs once.
	for i := 0; i < 3; i++ {
		_ = r.RefreshTransactions(context.Background(), apiFilters())
	}

	if r.Sessions().Authenticated() {
		t.Fatal("session must be cleared")
	}
	if r.Notifications().Len() != 0 {
		t.Fatal("notifications must be cleared")
	}
	if len(r.Transactions().Transactions()) != 0 {
		t.Fatal("transactions must be cleared")
	}
	snapshots.mu.Lock()
	clears := snapshots.clearCalls
	snapshots.mu.Unlock()
	if clears != 1 {
		t.Fatalf("invalidation must run exactly once, got %d", clears)
	}
}

func TestLoginAfterExpiryReArmsInvalidation(t *testing.T) {
	backend := &fakeBackend{}
	snapshots := &fakeSnapshots{}
	r := newTestRuntime(t, backend, Options{Snapshots: snapshots})

	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	backend.expire()
	_ = r.RefreshTransactions(context.Background(), apiFilters())

	backend.mu.Lock()
	backend.expired = false
	backend.mu.Unlock()
	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("re-login: %v", err)
	}

	backend.expire()
	_ = r.RefreshTransactions(context.Background(), apiFilters())

	snapshots.mu.Lock()
	clears := snapshots.clearCalls
	snapshots.mu.Unlock()
	if clears != 2 {
		t.Fatalf("each session gets its own invalidation, got %d clears", clears)
	}
}

func TestHydrateAndSnapshotRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	snapshots := &fakeSnapshots{
		user:          core.User{ID: "u1", Name: "Ada", Email: "ada@example.com"},
		authenticated: true,
		notifications: []core.Notification{
			{ID: "n1", ServerID: "srv-1", Kind: core.NotificationInfo, Title: "t", Message: "m", CreatedAt: time.Now()},
		},
	}
	r := newTestRuntime(t, backend, Options{Snapshots: snapshots})

	if err := r.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	session := r.Sessions().Session()
	if !session.Authenticated || session.User == nil || session.User.ID != "u1" {
		t.Fatalf("session not restored: %+v", session)
	}
	if session.Token != "" {
		t.Fatal("restored session must not carry a token")
	}
	if r.Notifications().Len() != 1 {
		t.Fatalf("notifications not restored: %d", r.Notifications().Len())
	}

	r.Notifications().MarkAllRead()
	if err := r.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	snapshots.mu.Lock()
	persisted := snapshots.notifications
	snapshots.mu.Unlock()
	if len(persisted) != 1 || !persisted[0].Read {
		t.Fatalf("snapshot must reflect store state: %+v", persisted)
	}
}

func TestStartPushSingleConnection(t *testing.T) {
	backend := &fakeBackend{}
	transport := &fakeTransport{}
	r := newTestRuntime(t, backend, Options{Transport: transport})

	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	r.StartPush(context.Background())
	r.StartPush(context.Background())
	time.Sleep(50 * time.Millisecond)

	if got := transport.connects.Load(); got != 1 {
		t.Fatalf("expected a single push connection, got %d", got)
	}

	r.StopPush()
	// After an explicit stop a new connection may open.
	r.StartPush(context.Background())
	time.Sleep(50 * time.Millisecond)
	if got := transport.connects.Load(); got != 2 {
		t.Fatalf("expected reconnect after stop, got %d", got)
	}
	r.StopPush()
}

func TestStartPushRequiresSession(t *testing.T) {
	backend := &fakeBackend{}
	transport := &fakeTransport{}
	r := newTestRuntime(t, backend, Options{Transport: transport})

	r.StartPush(context.Background())
	time.Sleep(20 * time.Millisecond)
	if got := transport.connects.Load(); got != 0 {
		t.Fatalf("no session means no push connection, got %d", got)
	}
}

func TestRefreshTransactions(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestRuntime(t, backend, Options{})

	if err := r.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := r.RefreshTransactions(context.Background(), apiFilters()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	transactions := r.Transactions().Transactions()
	if len(transactions) != 1 || transactions[0].ID != "t1" {
		t.Fatalf("unexpected transactions: %+v", transactions)
	}
	if r.Transactions().Loading() {
		t.Fatal("loading flag must reset")
	}
}
