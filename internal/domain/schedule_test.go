package domain

import (
	"errors"
	"testing"
)

func TestScheduleName(t *testing.T) {
	if got := ScheduleName("usr_123"); got != "daily-call-usr_123" {
		t.Errorf("ScheduleName = %q, want %q", got, "daily-call-usr_123")
	}
	// Same user always maps to the same trigger.
	if ScheduleName("u1") != ScheduleName("u1") {
		t.Error("ScheduleName is not deterministic")
	}
}

func TestValidateCallTime(t *testing.T) {
	valid := []string{"00:00", "9:05", "09:05", "12:30", "21:00", "23:59", "1:00"}
	for _, s := range valid {
		if err := ValidateCallTime(s); err != nil {
			t.Errorf("ValidateCallTime(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "24:00", "12:60", "12:5", "noon", "12", "12:00:00", "-1:00", "12:00 "}
	for _, s := range invalid {
		err := ValidateCallTime(s)
		if err == nil {
			t.Errorf("ValidateCallTime(%q) = nil, want error", s)
			continue
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateCallTime(%q) error = %v, want ErrInvalidInput", s, err)
		}
	}
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range AllEventTypes() {
		if !et.Valid() {
			t.Errorf("%s should be valid", et)
		}
	}
	if EventType("subscription.exploded").Valid() {
		t.Error("unknown type reported valid")
	}
	if EventType("").Valid() {
		t.Error("empty type reported valid")
	}
}
