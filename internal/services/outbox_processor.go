package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// OutboxProcessorConfig holds configuration for the outbox processor.
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultOutboxProcessorConfig returns sensible defaults.
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// OutboxProcessor drains the durable outbox of notification-sync operations,
// replaying them against the backend with bounded retries.
type OutboxProcessor struct {
	storage *storage.Repository
	api     NotificationAPI
	config  OutboxProcessorConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(repo *storage.Repository, api NotificationAPI, config OutboxProcessorConfig, logger *log.Logger) *OutboxProcessor {
	return &OutboxProcessor{
		storage: repo,
		api:     api,
		config:  config,
		logger:  logger.WithComponent(log.ComponentOutbox),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Reset any stale processing items from previous crashes
	if err := p.storage.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", log.FieldError, err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Outbox processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running.
func (p *OutboxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop.
func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// processBatch processes a single batch of pending items.
func (p *OutboxProcessor) processBatch(ctx context.Context) {
	items, err := p.storage.DequeueOutboxBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue outbox batch", log.FieldError, err)
		return
	}

	if len(items) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "Processing outbox batch", log.FieldCount, len(items))

	for _, item := range items {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.storage.MarkOutboxProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, log.FieldError, err)
			continue
		}

		if processErr := p.processItem(ctx, item); processErr != nil {
			p.handleFailure(ctx, item, processErr)
		} else {
			p.handleSuccess(ctx, item)
		}
	}
}

// processItem replays one operation against the backend. A "not found" reply
// counts as success: the server-side entry is already gone or already read.
func (p *OutboxProcessor) processItem(ctx context.Context, item storage.OutboxItem) error {
	var err error
	switch item.Operation {
	case storage.OpMarkRead:
		err = p.api.MarkNotificationRead(ctx, item.UserID, item.ServerID)
	case storage.OpMarkAllRead:
		err = p.api.MarkAllNotificationsRead(ctx, item.UserID)
	case storage.OpDelete:
		err = p.api.DeleteNotification(ctx, item.UserID, item.ServerID)
	default:
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}

	if err != nil {
		if nf, ok := err.(NotFoundChecker); ok && nf.NotFound() {
			return nil
		}
		return fmt.Errorf("replay %s: %w", item.Operation, err)
	}
	return nil
}

// handleSuccess marks an item as completed.
func (p *OutboxProcessor) handleSuccess(ctx context.Context, item storage.OutboxItem) {
	if err := p.storage.MarkOutboxComplete(ctx, item.ID); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark outbox item complete",
			"id", item.ID, log.FieldError, err)
	}
}

// handleFailure handles a failed attempt with retry logic.
func (p *OutboxProcessor) handleFailure(ctx context.Context, item storage.OutboxItem, processErr error) {
	p.logger.WarnContext(ctx, "Outbox processing failed",
		"id", item.ID,
		log.FieldOperation, item.Operation,
		log.FieldAttempt, item.Attempts+1,
		log.FieldError, processErr)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.storage.MarkOutboxFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark outbox item as failed",
				"id", item.ID, log.FieldError, err)
		}
		return
	}

	if err := p.storage.IncrementOutboxAttempt(ctx, item.ID, processErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record outbox attempt",
			"id", item.ID, log.FieldError, err)
	}
}

// cleanupCompleted removes old completed items.
func (p *OutboxProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if err := p.storage.CleanupCompletedOutbox(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to clean up completed outbox items", log.FieldError, err)
	}
}

// Stats returns current outbox counts by status.
func (p *OutboxProcessor) Stats(ctx context.Context) (*storage.OutboxStats, error) {
	return p.storage.GetOutboxStats(ctx)
}

// RetryFailed resets all failed items for another round of attempts.
func (p *OutboxProcessor) RetryFailed(ctx context.Context) error {
	return p.storage.RetryFailedOutbox(ctx)
}
