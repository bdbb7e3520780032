package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/clock"
	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/observability"
	"github.com/checkpointhq/checkpoint/internal/repository"
)

// Processor applies verified provider events to the subscription state
// machine. Every transition is a full-row upsert keyed by the provider
// subscription id, so the provider's at-least-once redelivery converges to
// the same final state; history appends are deliberately not idempotent so
// the audit log records every delivery.
type Processor struct {
	provider string
	subs     repository.SubscriptionStore
	history  repository.HistoryStore
	events   *bus.Bus
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

func WithProcessorMetrics(m *observability.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithProcessorClock(c clock.Clock) ProcessorOption {
	return func(p *Processor) { p.clock = c }
}

// NewProcessor creates the state machine for one payment provider.
func NewProcessor(
	provider string,
	subs repository.SubscriptionStore,
	history repository.HistoryStore,
	events *bus.Bus,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		provider: provider,
		subs:     subs,
		history:  history,
		events:   events,
		clock:    clock.RealClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process dispatches one verified envelope to its transition handler.
// Unknown event types are logged and acknowledged: failing the webhook call
// for them would trigger unbounded provider-side redelivery. A non-nil error
// means a store failure; the caller maps it to HTTP 500 so the provider
// redelivers.
func (p *Processor) Process(ctx context.Context, env *Envelope, raw []byte) error {
	switch env.EventType {
	case ProviderSubscriptionCreated:
		return p.handleCreated(ctx, env, raw)
	case ProviderSubscriptionRenewed:
		return p.handleRenewed(ctx, env, raw)
	case ProviderSubscriptionPlanChanged:
		return p.handlePlanChanged(ctx, env, raw)
	case ProviderSubscriptionOnHold:
		return p.handleTerminal(ctx, env, raw, domain.StatusOnHold)
	case ProviderSubscriptionCancelled:
		return p.handleTerminal(ctx, env, raw, domain.StatusCancelled)
	case ProviderSubscriptionFailed:
		return p.handleTerminal(ctx, env, raw, domain.StatusFailed)
	case ProviderSubscriptionExpired:
		return p.handleTerminal(ctx, env, raw, domain.StatusExpired)
	case ProviderPaymentSucceeded:
		return p.handlePaymentSucceeded(ctx, env, raw)
	case ProviderPaymentFailed:
		return p.handlePaymentFailed(ctx, env, raw)
	default:
		p.logger.Info("unhandled provider event type, acknowledging",
			"provider", p.provider,
			"event_type", env.EventType,
			"event_id", env.EventID,
		)
		if p.metrics != nil {
			p.metrics.WebhooksUnknown.Inc()
		}
		return nil
	}
}

func (p *Processor) handleCreated(ctx context.Context, env *Envelope, raw []byte) error {
	userID, err := env.UserID()
	if err != nil {
		// Provider misconfiguration, not a transient failure: redelivery
		// would carry the same payload, so acknowledge after logging.
		p.anomaly("missing_user_id", env, "creation event without user id in custom data")
		return nil
	}

	now := p.clock.Now()
	sub := &domain.Subscription{
		UserID:                 userID,
		Provider:               p.provider,
		ProviderSubscriptionID: env.Data.ID,
		ProviderCustomerID:     env.Data.CustomerID,
		PlanID:                 env.Data.PlanID,
		Status:                 domain.StatusActive,
		Currency:               env.Data.CurrencyCode,
		AmountMinor:            env.Data.UnitPrice,
		PeriodStart:            env.Data.PeriodStart,
		PeriodEnd:              env.Data.PeriodEnd,
		Metadata:               marshalCustomData(env.Data.CustomData),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := p.subs.Upsert(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			p.anomaly("cross_user_reassignment", env, "provider subscription id already bound to another user")
			return nil
		}
		return fmt.Errorf("upsert subscription: %w", err)
	}

	if err := p.appendHistory(ctx, env, raw, userID, domain.StatusNone, domain.StatusActive); err != nil {
		return err
	}
	p.applied(env.EventType)

	p.events.Emit(ctx, domain.SubscriptionCreated{
		UserID:                 userID,
		Provider:               p.provider,
		ProviderSubscriptionID: env.Data.ID,
		PlanID:                 env.Data.PlanID,
	})
	return nil
}

func (p *Processor) handleRenewed(ctx context.Context, env *Envelope, raw []byte) error {
	sub, ok, err := p.lookup(ctx, env)
	if err != nil || !ok {
		return err
	}

	previous := sub.Status
	sub.Status = domain.StatusActive
	sub.PeriodStart = env.Data.PeriodStart
	sub.PeriodEnd = env.Data.PeriodEnd
	sub.UpdatedAt = p.clock.Now()

	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, sub.Status); err != nil {
		return err
	}
	p.applied(env.EventType)

	if previous == domain.StatusPastDue {
		p.events.Emit(ctx, domain.SubscriptionReactivated{
			UserID:                 sub.UserID,
			Provider:               p.provider,
			ProviderSubscriptionID: sub.ProviderSubscriptionID,
		})
	}
	return nil
}

func (p *Processor) handlePlanChanged(ctx context.Context, env *Envelope, raw []byte) error {
	sub, ok, err := p.lookup(ctx, env)
	if err != nil || !ok {
		return err
	}

	previous := sub.Status
	sub.PlanID = env.Data.PlanID
	sub.Currency = env.Data.CurrencyCode
	sub.AmountMinor = env.Data.UnitPrice
	sub.PeriodStart = env.Data.PeriodStart
	sub.PeriodEnd = env.Data.PeriodEnd
	sub.UpdatedAt = p.clock.Now()

	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, sub.Status); err != nil {
		return err
	}
	p.applied(env.EventType)
	return nil
}

func (p *Processor) handleTerminal(ctx context.Context, env *Envelope, raw []byte, status domain.SubscriptionStatus) error {
	sub, ok, err := p.lookup(ctx, env)
	if err != nil || !ok {
		return err
	}

	previous := sub.Status
	now := p.clock.Now()
	sub.Status = status
	if status == domain.StatusCancelled {
		sub.CancelledAt = &now
	}
	sub.UpdatedAt = now

	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, status); err != nil {
		return err
	}
	p.applied(env.EventType)

	p.events.Emit(ctx, domain.SubscriptionCancelled{
		UserID:                 sub.UserID,
		Provider:               p.provider,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		FinalStatus:            status,
	})
	return nil
}

// handlePaymentSucceeded only transitions past_due back to active; a
// successful payment on an already-active subscription is not itself a state
// transition, but the payment still lands in history for audit.
func (p *Processor) handlePaymentSucceeded(ctx context.Context, env *Envelope, raw []byte) error {
	sub, ok, err := p.lookup(ctx, env)
	if err != nil || !ok {
		return err
	}

	previous := sub.Status
	if previous != domain.StatusPastDue {
		if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, previous); err != nil {
			return err
		}
		p.applied(env.EventType)
		return nil
	}

	sub.Status = domain.StatusActive
	sub.UpdatedAt = p.clock.Now()

	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, domain.StatusActive); err != nil {
		return err
	}
	p.applied(env.EventType)

	p.events.Emit(ctx, domain.SubscriptionReactivated{
		UserID:                 sub.UserID,
		Provider:               p.provider,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
	})
	return nil
}

// handlePaymentFailed moves the row to past_due regardless of prior status,
// except terminal states, which are left as-is.
func (p *Processor) handlePaymentFailed(ctx context.Context, env *Envelope, raw []byte) error {
	sub, ok, err := p.lookup(ctx, env)
	if err != nil || !ok {
		return err
	}

	previous := sub.Status
	if previous.Terminal() {
		if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, previous); err != nil {
			return err
		}
		p.applied(env.EventType)
		return nil
	}

	sub.Status = domain.StatusPastDue
	sub.UpdatedAt = p.clock.Now()

	if err := p.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := p.appendHistory(ctx, env, raw, sub.UserID, previous, domain.StatusPastDue); err != nil {
		return err
	}
	p.applied(env.EventType)

	p.events.Emit(ctx, domain.SubscriptionPastDue{
		UserID:                 sub.UserID,
		Provider:               p.provider,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
	})
	return nil
}

// lookup finds the row for a non-creation event. A missing row means the
// provider sent a lifecycle event for a subscription we never saw created;
// no row is fabricated, the event is dropped as a logged anomaly.
func (p *Processor) lookup(ctx context.Context, env *Envelope) (*domain.Subscription, bool, error) {
	sub, err := p.subs.GetByProviderSubscriptionID(ctx, p.provider, env.Data.ID)
	if err == nil {
		return sub, true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		p.anomaly("unknown_subscription", env, "lifecycle event for unknown provider subscription id")
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("lookup subscription: %w", err)
}

func (p *Processor) appendHistory(ctx context.Context, env *Envelope, raw []byte, userID string, previous, next domain.SubscriptionStatus) error {
	entry := &domain.SubscriptionHistoryEntry{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		Provider:               p.provider,
		ProviderEventType:      env.EventType,
		PreviousStatus:         previous,
		NewStatus:              next,
		ProviderSubscriptionID: env.Data.ID,
		ProviderTransactionID:  env.Data.TransactionID,
		RawPayload:             raw,
		CreatedAt:              p.clock.Now(),
	}
	if err := p.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (p *Processor) anomaly(reason string, env *Envelope, msg string) {
	p.logger.Warn("subscription transition anomaly",
		"reason", reason,
		"detail", msg,
		"provider", p.provider,
		"event_type", env.EventType,
		"event_id", env.EventID,
		"provider_subscription_id", env.Data.ID,
	)
	if p.metrics != nil {
		p.metrics.TransitionAnomalies.WithLabelValues(reason).Inc()
	}
}

func (p *Processor) applied(providerEventType string) {
	if p.metrics != nil {
		p.metrics.TransitionsApplied.WithLabelValues(providerEventType).Inc()
	}
}

func marshalCustomData(data map[string]string) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}
