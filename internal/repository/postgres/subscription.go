package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// ErrNotFound aliases the domain sentinel so callers can use errors.Is
// against either package.
var ErrNotFound = domain.ErrNotFound

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Upsert writes the full subscription row keyed by
// (provider, provider_subscription_id). The DO UPDATE is guarded by a
// same-user predicate: if the row already belongs to a different user the
// update is suppressed and domain.ErrAlreadyExists is returned, so a
// misbehaving provider cannot silently reassign a subscription across users.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	const query = `
		INSERT INTO subscriptions (
			user_id, provider, provider_subscription_id, provider_customer_id,
			plan_id, status, currency, amount_minor, period_start, period_end,
			cancelled_at, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider, provider_subscription_id) DO UPDATE SET
			provider_customer_id = EXCLUDED.provider_customer_id,
			plan_id              = EXCLUDED.plan_id,
			status               = EXCLUDED.status,
			currency             = EXCLUDED.currency,
			amount_minor         = EXCLUDED.amount_minor,
			period_start         = EXCLUDED.period_start,
			period_end           = EXCLUDED.period_end,
			cancelled_at         = EXCLUDED.cancelled_at,
			metadata             = EXCLUDED.metadata,
			updated_at           = EXCLUDED.updated_at
		WHERE subscriptions.user_id = EXCLUDED.user_id
		RETURNING user_id
	`

	var userID string
	err := r.pool.QueryRow(ctx, query,
		sub.UserID,
		sub.Provider,
		sub.ProviderSubscriptionID,
		sub.ProviderCustomerID,
		sub.PlanID,
		sub.Status,
		sub.Currency,
		sub.AmountMinor,
		sub.PeriodStart,
		sub.PeriodEnd,
		sub.CancelledAt,
		sub.Metadata,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict row exists but the user predicate failed.
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *SubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, provider, providerSubscriptionID string) (*domain.Subscription, error) {
	const query = `
		SELECT user_id, provider, provider_subscription_id, provider_customer_id,
		       plan_id, status, currency, amount_minor, period_start, period_end,
		       cancelled_at, metadata, created_at, updated_at
		FROM subscriptions
		WHERE provider = $1 AND provider_subscription_id = $2
	`

	var sub domain.Subscription
	err := r.pool.QueryRow(ctx, query, provider, providerSubscriptionID).Scan(
		&sub.UserID,
		&sub.Provider,
		&sub.ProviderSubscriptionID,
		&sub.ProviderCustomerID,
		&sub.PlanID,
		&sub.Status,
		&sub.Currency,
		&sub.AmountMinor,
		&sub.PeriodStart,
		&sub.PeriodEnd,
		&sub.CancelledAt,
		&sub.Metadata,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID, provider string) (*domain.Subscription, error) {
	const query = `
		SELECT user_id, provider, provider_subscription_id, provider_customer_id,
		       plan_id, status, currency, amount_minor, period_start, period_end,
		       cancelled_at, metadata, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND provider = $2 AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var sub domain.Subscription
	err := r.pool.QueryRow(ctx, query, userID, provider).Scan(
		&sub.UserID,
		&sub.Provider,
		&sub.ProviderSubscriptionID,
		&sub.ProviderCustomerID,
		&sub.PlanID,
		&sub.Status,
		&sub.Currency,
		&sub.AmountMinor,
		&sub.PeriodStart,
		&sub.PeriodEnd,
		&sub.CancelledAt,
		&sub.Metadata,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
