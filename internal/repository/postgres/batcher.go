package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// BatcherConfig configures the history batcher behavior.
type BatcherConfig struct {
	// MaxSize is the maximum number of entries to batch before flushing.
	MaxSize int
	// MaxWait is the maximum time to wait before flushing a partial batch.
	MaxWait time.Duration
}

// DefaultBatcherConfig returns sensible defaults for batching.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		MaxSize: 50,
		MaxWait: 5 * time.Millisecond,
	}
}

// pendingEntry holds a history entry and its completion channel.
type pendingEntry struct {
	entry *domain.SubscriptionHistoryEntry
	done  chan error
}

// HistoryBatcher batches history appends for improved throughput during
// provider webhook bursts. It collects entries and flushes them in batches,
// either when the batch is full or after a timeout, whichever comes first.
// Each caller blocks until their entry is persisted, preserving the
// "transition observable afterward" invariant.
type HistoryBatcher struct {
	pool   *pgxpool.Pool
	config BatcherConfig

	mu      sync.Mutex
	pending []pendingEntry
	timer   *time.Timer

	shutdown chan struct{}
	done     chan struct{}
}

// NewHistoryBatcher creates a new batcher with the given configuration.
func NewHistoryBatcher(pool *pgxpool.Pool, config BatcherConfig) *HistoryBatcher {
	b := &HistoryBatcher{
		pool:     pool,
		config:   config,
		pending:  make([]pendingEntry, 0, config.MaxSize),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Add adds an entry to the batch and blocks until it's persisted.
func (b *HistoryBatcher) Add(ctx context.Context, entry *domain.SubscriptionHistoryEntry) error {
	done := make(chan error, 1)

	b.mu.Lock()
	b.pending = append(b.pending, pendingEntry{entry: entry, done: done})
	shouldFlush := len(b.pending) >= b.config.MaxSize

	// Start timer on first entry in batch
	if len(b.pending) == 1 && b.timer == nil {
		b.timer = time.AfterFunc(b.config.MaxWait, func() {
			b.mu.Lock()
			b.flushLocked()
			b.mu.Unlock()
		})
	}

	if shouldFlush {
		b.flushLocked()
	}
	b.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the batcher, flushing any pending entries.
func (b *HistoryBatcher) Shutdown(ctx context.Context) error {
	close(b.shutdown)

	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) > 0 {
		b.flushLocked()
	}
	return nil
}

func (b *HistoryBatcher) run() {
	defer close(b.done)
	<-b.shutdown
}

// flushLocked flushes all pending entries. Must be called with mu held.
func (b *HistoryBatcher) flushLocked() {
	if len(b.pending) == 0 {
		return
	}

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	toFlush := b.pending
	b.pending = make([]pendingEntry, 0, b.config.MaxSize)

	// Execute batch insert in background to release lock quickly
	go b.executeBatch(toFlush)
}

func (b *HistoryBatcher) executeBatch(entries []pendingEntry) {
	ctx := context.Background()
	err := b.batchInsert(ctx, entries)

	for _, pe := range entries {
		pe.done <- err
		close(pe.done)
	}
}

// batchInsert performs a single INSERT with multiple VALUES.
// 10 parameters per entry keeps even large batches well under PostgreSQL's
// 65535 parameter limit at the default MaxSize.
func (b *HistoryBatcher) batchInsert(ctx context.Context, entries []pendingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		INSERT INTO subscription_history (
			id, user_id, provider, provider_event_type, previous_status,
			new_status, provider_subscription_id, provider_transaction_id,
			raw_payload, created_at
		)
		VALUES `)

	args := make([]interface{}, 0, len(entries)*10)
	for i, pe := range entries {
		if i > 0 {
			queryBuilder.WriteString(", ")
		}
		base := i * 10
		queryBuilder.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))

		e := pe.entry
		args = append(args,
			e.ID,
			e.UserID,
			e.Provider,
			e.ProviderEventType,
			e.PreviousStatus,
			e.NewStatus,
			e.ProviderSubscriptionID,
			e.ProviderTransactionID,
			e.RawPayload,
			e.CreatedAt,
		)
	}

	_, err := b.pool.Exec(ctx, queryBuilder.String(), args...)
	return err
}
