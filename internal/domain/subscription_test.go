package domain

import "testing"

func TestSubscriptionStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   SubscriptionStatus
		terminal bool
	}{
		{StatusActive, false},
		{StatusPastDue, false},
		{StatusOnHold, true},
		{StatusCancelled, true},
		{StatusFailed, true},
		{StatusExpired, true},
		{StatusNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			sub := Subscription{Status: tt.status}
			if got := sub.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestSubscriptionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from SubscriptionStatus
		to   SubscriptionStatus
		want bool
	}{
		{"creation activates", StatusNone, StatusActive, true},
		{"creation cannot skip to past_due", StatusNone, StatusPastDue, false},
		{"creation cannot skip to cancelled", StatusNone, StatusCancelled, false},
		{"renewal in place", StatusActive, StatusActive, true},
		{"payment failure demotes", StatusActive, StatusPastDue, true},
		{"active can cancel", StatusActive, StatusCancelled, true},
		{"active can expire", StatusActive, StatusExpired, true},
		{"past_due recovers", StatusPastDue, StatusActive, true},
		{"past_due can fail", StatusPastDue, StatusFailed, true},
		{"cancelled has no exits", StatusCancelled, StatusActive, false},
		{"expired has no exits", StatusExpired, StatusPastDue, false},
		{"failed has no exits", StatusFailed, StatusFailed, false},
		{"nothing returns to none", StatusActive, StatusNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
