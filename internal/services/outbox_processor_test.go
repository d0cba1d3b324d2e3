package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/storage"
)

func testRepository(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fastConfig() OutboxProcessorConfig {
	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.CleanupInterval = time.Hour
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestOutboxProcessorLifecycle(t *testing.T) {
	p := NewOutboxProcessor(testRepository(t), &fakeNotificationAPI{}, fastConfig(), testLogger())
	ctx := context.Background()

	if p.IsRunning() {
		t.Fatal("should not be running before Start")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.IsRunning() {
		t.Fatal("should be running after Start")
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second Start must fail")
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("should not be running after Stop")
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stopping a stopped processor should be a no-op, got %v", err)
	}
}

func TestOutboxProcessorReplaysOperations(t *testing.T) {
	repo := testRepository(t)
	api := &fakeNotificationAPI{}
	ctx := context.Background()

	if err := repo.EnqueueOutbox(ctx, storage.OpMarkRead, "u1", "srv-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.EnqueueOutbox(ctx, storage.OpDelete, "u1", "srv-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.EnqueueOutbox(ctx, storage.OpMarkAllRead, "u1", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	p := NewOutboxProcessor(repo, api, fastConfig(), testLogger())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool {
		stats, err := p.Stats(ctx)
		return err == nil && stats.Completed == 3 && stats.Pending == 0
	})

	if len(api.markedRead) != 1 || api.markedRead[0] != "srv-1" {
		t.Fatalf("expected mark_read replay, got %v", api.markedRead)
	}
	if got := api.deletedIDs(); len(got) != 1 || got[0] != "srv-2" {
		t.Fatalf("expected delete replay, got %v", got)
	}
	if api.markedAll != 1 {
		t.Fatalf("expected mark_all_read replay, got %d", api.markedAll)
	}
}

func TestOutboxProcessorRetriesThenFails(t *testing.T) {
	repo := testRepository(t)
	api := &fakeNotificationAPI{deleteErr: errors.New("backend down")}
	ctx := context.Background()

	if err := repo.EnqueueOutbox(ctx, storage.OpDelete, "u1", "srv-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cfg := fastConfig()
	cfg.MaxRetries = 2
	p := NewOutboxProcessor(repo, api, cfg, testLogger())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool {
		stats, err := p.Stats(ctx)
		return err == nil && stats.Failed == 1
	})

	// RetryFailed puts it back; with a healthy backend it completes.
	api.mu.Lock()
	api.deleteErr = nil
	api.mu.Unlock()
	if err := p.RetryFailed(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		stats, err := p.Stats(ctx)
		return err == nil && stats.Completed == 1 && stats.Failed == 0
	})
}

func TestOutboxProcessorTreatsNotFoundAsSuccess(t *testing.T) {
	repo := testRepository(t)
	api := &fakeNotificationAPI{deleteErr: notFoundErr{}}
	ctx := context.Background()

	if err := repo.EnqueueOutbox(ctx, storage.OpDelete, "u1", "srv-gone"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	p := NewOutboxProcessor(repo, api, fastConfig(), testLogger())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool {
		stats, err := p.Stats(ctx)
		return err == nil && stats.Completed == 1
	})
}

func TestOutboxProcessorUnknownOperationFails(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.EnqueueOutbox(ctx, "bogus", "u1", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cfg := fastConfig()
	cfg.MaxRetries = 1
	p := NewOutboxProcessor(repo, &fakeNotificationAPI{}, cfg, testLogger())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(ctx)

	waitFor(t, 2*time.Second, func() bool {
		stats, err := p.Stats(ctx)
		return err == nil && stats.Failed == 1
	})
}
