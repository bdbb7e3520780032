package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// HistoryRepository appends subscription transition audit rows. There is no
// update or delete path: the table is write-once by construction.
type HistoryRepository struct {
	pool    *pgxpool.Pool
	batcher *HistoryBatcher
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// WithBatcher enables batched appends for high webhook volume.
// When enabled, Append collects entries and flushes them in groups.
func (r *HistoryRepository) WithBatcher(config BatcherConfig) *HistoryRepository {
	r.batcher = NewHistoryBatcher(r.pool, config)
	return r
}

// Shutdown flushes any pending batched entries.
func (r *HistoryRepository) Shutdown(ctx context.Context) error {
	if r.batcher != nil {
		return r.batcher.Shutdown(ctx)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, entry *domain.SubscriptionHistoryEntry) error {
	if r.batcher != nil {
		return r.batcher.Add(ctx, entry)
	}

	const query = `
		INSERT INTO subscription_history (
			id, user_id, provider, provider_event_type, previous_status,
			new_status, provider_subscription_id, provider_transaction_id,
			raw_payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Provider,
		entry.ProviderEventType,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ProviderSubscriptionID,
		entry.ProviderTransactionID,
		entry.RawPayload,
		entry.CreatedAt,
	)
	return err
}

func (r *HistoryRepository) ListBySubscription(ctx context.Context, provider, providerSubscriptionID string) ([]*domain.SubscriptionHistoryEntry, error) {
	const query = `
		SELECT id, user_id, provider, provider_event_type, previous_status,
		       new_status, provider_subscription_id, provider_transaction_id,
		       raw_payload, created_at
		FROM subscription_history
		WHERE provider = $1 AND provider_subscription_id = $2
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, provider, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.SubscriptionHistoryEntry
	for rows.Next() {
		var e domain.SubscriptionHistoryEntry
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Provider,
			&e.ProviderEventType,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.ProviderSubscriptionID,
			&e.ProviderTransactionID,
			&e.RawPayload,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
