package domain

import "time"

// EventType identifies one kind of domain event. The set of valid types is
// closed: handlers register for exactly one type and the bus refuses types
// outside this set.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription.created"
	EventSubscriptionReactivated EventType = "subscription.reactivated"
	EventSubscriptionPastDue     EventType = "subscription.past_due"
	EventSubscriptionCancelled   EventType = "subscription.cancelled"
	EventCallCompleted           EventType = "call.completed"
	EventCallMissed              EventType = "call.missed"
	EventOnboardingCompleted     EventType = "onboarding.completed"
	EventXPAwarded               EventType = "xp.awarded"
	EventStreakExtended          EventType = "streak.extended"
)

// AllEventTypes returns every valid event type. Used by consumers that
// subscribe across the board, such as the stream mirror.
func AllEventTypes() []EventType {
	return []EventType{
		EventSubscriptionCreated,
		EventSubscriptionReactivated,
		EventSubscriptionPastDue,
		EventSubscriptionCancelled,
		EventCallCompleted,
		EventCallMissed,
		EventOnboardingCompleted,
		EventXPAwarded,
		EventStreakExtended,
	}
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a typed, immutable fact describing something that happened in the
// business. Events are values: created, published once, never mutated. The
// bus does not persist them; durability is the receiving handler's concern.
type Event interface {
	Type() EventType
}

// SubscriptionCreated fires when a verified provider webhook activates a new
// subscription for a user.
type SubscriptionCreated struct {
	UserID                 string
	Provider               string
	ProviderSubscriptionID string
	PlanID                 string
}

func (SubscriptionCreated) Type() EventType { return EventSubscriptionCreated }

// SubscriptionReactivated fires when a past-due subscription returns to
// active after a successful payment.
type SubscriptionReactivated struct {
	UserID                 string
	Provider               string
	ProviderSubscriptionID string
}

func (SubscriptionReactivated) Type() EventType { return EventSubscriptionReactivated }

// SubscriptionPastDue fires when a payment failure moves a subscription to
// past_due.
type SubscriptionPastDue struct {
	UserID                 string
	Provider               string
	ProviderSubscriptionID string
}

func (SubscriptionPastDue) Type() EventType { return EventSubscriptionPastDue }

// SubscriptionCancelled fires when a subscription reaches a terminal state
// (cancelled, failed, expired, on hold).
type SubscriptionCancelled struct {
	UserID                 string
	Provider               string
	ProviderSubscriptionID string
	FinalStatus            SubscriptionStatus
}

func (SubscriptionCancelled) Type() EventType { return EventSubscriptionCancelled }

// CallCompleted fires after an accountability call finishes and its
// transcript is stored.
type CallCompleted struct {
	UserID        string
	CallID        string
	Duration      time.Duration
	TranscriptURL string
}

func (CallCompleted) Type() EventType { return EventCallCompleted }

// CallMissed fires when a scheduled call was not answered.
type CallMissed struct {
	UserID       string
	ScheduledFor time.Time
}

func (CallMissed) Type() EventType { return EventCallMissed }

// OnboardingCompleted fires when a user finishes the onboarding flow and has
// chosen a daily call time.
type OnboardingCompleted struct {
	UserID   string
	CallTime string // HH:MM wall clock
	Timezone string // IANA name
	Phone    string
}

func (OnboardingCompleted) Type() EventType { return EventOnboardingCompleted }

// XPAwarded fires when a user earns experience points.
type XPAwarded struct {
	UserID string
	Amount int
	Reason string
}

func (XPAwarded) Type() EventType { return EventXPAwarded }

// StreakExtended fires when a user's daily streak grows.
type StreakExtended struct {
	UserID string
	Length int
}

func (StreakExtended) Type() EventType { return EventStreakExtended }
