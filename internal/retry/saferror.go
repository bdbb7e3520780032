package retry

import (
	"fmt"
	"strings"
)

// ErrorType is the stable, provider-agnostic failure taxonomy surfaced to
// callers and users instead of raw provider errors.
type ErrorType string

const (
	TypeTimeout            ErrorType = "timeout_error"
	TypeNetwork            ErrorType = "network_error"
	TypeRateLimited        ErrorType = "rate_limit_error"
	TypeServiceUnavailable ErrorType = "service_unavailable"
	TypeAuth               ErrorType = "auth_error"
	TypeValidation         ErrorType = "validation_error"
	TypeNotFound           ErrorType = "not_found"
	TypeUnknown            ErrorType = "unknown_error"
)

// SafeError is produced only at the boundary, when an operation has exhausted
// its retries or failed terminally. End users see UserMessage, never the raw
// provider text.
type SafeError struct {
	Type        ErrorType
	Message     string
	UserMessage string
	Retryable   bool
}

func (e *SafeError) Error() string {
	return e.Message
}

// matcher rows are evaluated in order; the first hit wins. The table matches
// on lower-cased substrings of the error message, which keeps the fragile
// duck-typed introspection of provider errors in one reproducible place.
type matcher struct {
	typ        ErrorType
	retryable  bool
	substrings []string
}

var matchers = []matcher{
	{TypeTimeout, true, []string{"timeout", "timed out", "deadline exceeded", "etimedout"}},
	{TypeNetwork, true, []string{"econnreset", "econnrefused", "connection refused", "connection reset", "no such host", "broken pipe", "network", "eof"}},
	{TypeRateLimited, true, []string{"429", "rate limit", "too many requests"}},
	{TypeServiceUnavailable, true, []string{"503", "502", "504", "500", "service unavailable", "bad gateway", "internal server error", "unavailable"}},
	{TypeAuth, false, []string{"401", "403", "unauthorized", "forbidden", "invalid api key", "authentication"}},
	{TypeValidation, false, []string{"400", "422", "invalid", "validation", "bad request", "unprocessable"}},
	{TypeNotFound, false, []string{"404", "not found"}},
}

var userMessages = map[ErrorType]string{
	TypeTimeout:            "%s took too long to respond. Please try again.",
	TypeNetwork:            "We couldn't reach %s. Please check your connection and try again.",
	TypeRateLimited:        "%s is receiving too many requests right now. Please wait a moment.",
	TypeServiceUnavailable: "%s is temporarily unavailable. Please try again shortly.",
	TypeAuth:               "We couldn't authenticate with %s. Please contact support.",
	TypeValidation:         "The request to %s was invalid. Please contact support.",
	TypeNotFound:           "The requested resource on %s could not be found.",
	TypeUnknown:            "Something went wrong talking to %s. Please try again.",
}

// Classify maps any error to exactly one SafeError. The function is total:
// unmatched messages fall through to unknown_error with retryable=true.
// operation names the failing call in the user-facing message.
func Classify(err error, operation string) *SafeError {
	if operation == "" {
		operation = "the service"
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)

	for _, m := range matchers {
		for _, sub := range m.substrings {
			if strings.Contains(lower, sub) {
				return &SafeError{
					Type:        m.typ,
					Message:     msg,
					UserMessage: fmt.Sprintf(userMessages[m.typ], operation),
					Retryable:   m.retryable,
				}
			}
		}
	}

	return &SafeError{
		Type:        TypeUnknown,
		Message:     msg,
		UserMessage: fmt.Sprintf(userMessages[TypeUnknown], operation),
		Retryable:   true,
	}
}

// DefaultRetryable is the retryability predicate used when a Policy does not
// supply its own. It follows the classification table: auth, validation and
// not-found failures are never retried.
func DefaultRetryable(err error) bool {
	return Classify(err, "").Retryable
}
