package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// CallSchedule describes a user's recurring accountability call. One schedule
// per user; the deterministic name makes create/update/delete idempotent.
type CallSchedule struct {
	UserID   string          `json:"user_id"`
	CallTime string          `json:"call_time"` // HH:MM wall clock
	Timezone string          `json:"timezone"`  // IANA name
	Payload  json.RawMessage `json:"payload"`   // delivered to the dialer on each fire
	Enabled  bool            `json:"enabled"`
}

// ScheduleName derives the external trigger name for a user. The mapping is
// deterministic so repeated upserts target the same trigger.
func ScheduleName(userID string) string {
	return "daily-call-" + userID
}

var callTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ValidateCallTime checks an HH:MM wall-clock string.
func ValidateCallTime(s string) error {
	if !callTimeRe.MatchString(s) {
		return fmt.Errorf("%w: call time %q is not HH:MM", ErrInvalidInput, s)
	}
	return nil
}
