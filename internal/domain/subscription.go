package domain

import (
	"encoding/json"
	"time"
)

// SubscriptionStatus is the lifecycle state of a payment-provider
// subscription. The absence of a row represents the "none" state.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusOnHold    SubscriptionStatus = "on_hold"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusFailed    SubscriptionStatus = "failed"
	StatusExpired   SubscriptionStatus = "expired"

	// StatusNone is never stored; it only appears as the previous status in
	// history entries for newly created subscriptions.
	StatusNone SubscriptionStatus = "none"
)

// Subscription is one row per (user, payment provider). Status changes only
// through verified webhook events or an explicit user-initiated cancel, never
// through direct client writes. Rows are never hard-deleted.
type Subscription struct {
	UserID                 string             `json:"user_id"`
	Provider               string             `json:"provider"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	ProviderCustomerID     string             `json:"provider_customer_id"`
	PlanID                 string             `json:"plan_id"`
	Status                 SubscriptionStatus `json:"status"`
	Currency               string             `json:"currency"`
	AmountMinor            int64              `json:"amount_minor"`
	PeriodStart            *time.Time         `json:"period_start,omitempty"`
	PeriodEnd              *time.Time         `json:"period_end,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	Metadata               json.RawMessage    `json:"metadata,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// IsTerminal reports whether the subscription has reached a state that only a
// brand-new provider subscription can leave. past_due is not terminal: a later
// successful payment moves it back to active.
func (s *Subscription) IsTerminal() bool {
	return s.Status.Terminal()
}

// Terminal reports whether a status is terminal-until-new-subscription.
func (st SubscriptionStatus) Terminal() bool {
	switch st {
	case StatusOnHold, StatusCancelled, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state graph permits moving from st to
// next. Creation is the only way out of none, terminal states have no exits,
// and active/past_due may move between each other, renew in place, or end.
func (st SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	if st.Terminal() || next == StatusNone {
		return false
	}
	switch st {
	case StatusNone:
		return next == StatusActive
	case StatusActive, StatusPastDue:
		return next == StatusActive || next == StatusPastDue || next.Terminal()
	}
	return false
}

// SubscriptionHistoryEntry is one append-only audit row per transition
// attempt, including failed and duplicate ones. Entries are write-once and
// never mutated or deleted by the application.
type SubscriptionHistoryEntry struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	Provider               string             `json:"provider"`
	ProviderEventType      string             `json:"provider_event_type"`
	PreviousStatus         SubscriptionStatus `json:"previous_status"`
	NewStatus              SubscriptionStatus `json:"new_status"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	ProviderTransactionID  string             `json:"provider_transaction_id,omitempty"`
	RawPayload             json.RawMessage    `json:"raw_payload,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
}
