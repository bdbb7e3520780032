package repository

import (
	"context"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// SubscriptionStore persists one row per (provider, provider subscription
// id). The store's unique constraint, not the application, is the
// concurrency-control boundary: every write is a full-row upsert, so
// replaying the same provider event converges to the same final state.
type SubscriptionStore interface {
	// Upsert writes the full row. It returns domain.ErrAlreadyExists when
	// the row exists under a different user id (cross-user reassignment of
	// a provider subscription id is rejected, not silently applied).
	Upsert(ctx context.Context, sub *domain.Subscription) error
	GetByProviderSubscriptionID(ctx context.Context, provider, providerSubscriptionID string) (*domain.Subscription, error)
	GetActiveByUser(ctx context.Context, userID, provider string) (*domain.Subscription, error)
}

// HistoryStore is the append-only audit log. Entries are write-once; there
// is deliberately no update or delete.
type HistoryStore interface {
	Append(ctx context.Context, entry *domain.SubscriptionHistoryEntry) error
	ListBySubscription(ctx context.Context, provider, providerSubscriptionID string) ([]*domain.SubscriptionHistoryEntry, error)
}
