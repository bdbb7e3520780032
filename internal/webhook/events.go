package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// Provider event type tags as they appear on the wire.
const (
	ProviderSubscriptionCreated     = "subscription_created"
	ProviderSubscriptionRenewed     = "subscription_renewed"
	ProviderSubscriptionPlanChanged = "subscription_plan_changed"
	ProviderSubscriptionOnHold      = "subscription_on_hold"
	ProviderSubscriptionCancelled   = "subscription_cancelled"
	ProviderSubscriptionFailed      = "subscription_failed"
	ProviderSubscriptionExpired     = "subscription_expired"
	ProviderPaymentSucceeded        = "payment_succeeded"
	ProviderPaymentFailed           = "payment_failed"
)

// Envelope is the verified, parsed form of a provider delivery. Loosely
// typed provider metadata stops here: downstream code only sees the typed
// fields, and required fields are validated per event type instead of
// guessed at.
type Envelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Data       SubscriptionData `json:"data"`
}

// SubscriptionData is the provider's view of one subscription. The provider
// subscription id is the lookup key for every transition; the local user id
// is only guaranteed present on creation events (via custom data).
type SubscriptionData struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customer_id"`
	TransactionID string            `json:"transaction_id,omitempty"`
	PlanID        string            `json:"plan_id,omitempty"`
	CurrencyCode  string            `json:"currency_code,omitempty"`
	UnitPrice     int64             `json:"unit_price,omitempty"`
	PeriodStart   *time.Time        `json:"period_start,omitempty"`
	PeriodEnd     *time.Time        `json:"period_end,omitempty"`
	CustomData    map[string]string `json:"custom_data,omitempty"`
}

// ParseEnvelope decodes a verified raw body. Only called after signature
// verification has succeeded.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", domain.ErrInvalidInput)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", domain.ErrInvalidInput)
	}
	return &env, nil
}

// UserID extracts the local user id from provider custom data. Creation
// events must carry it; its absence is a provider misconfiguration, not a
// transient failure.
func (e *Envelope) UserID() (string, error) {
	if id := e.Data.CustomData["user_id"]; id != "" {
		return id, nil
	}
	return "", domain.ErrMissingUserID
}

// KnownEventType reports whether the tag is one this service processes.
// Unknown types are acknowledged without processing so the provider does not
// redeliver them forever.
func KnownEventType(tag string) bool {
	switch tag {
	case ProviderSubscriptionCreated,
		ProviderSubscriptionRenewed,
		ProviderSubscriptionPlanChanged,
		ProviderSubscriptionOnHold,
		ProviderSubscriptionCancelled,
		ProviderSubscriptionFailed,
		ProviderSubscriptionExpired,
		ProviderPaymentSucceeded,
		ProviderPaymentFailed:
		return true
	}
	return false
}
