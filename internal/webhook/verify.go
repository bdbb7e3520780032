// Package webhook ingests payment-provider callbacks: it authenticates the
// raw request with an HMAC scheme, parses the payload into typed provider
// events, and drives the subscription state machine.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Header names carried by every provider delivery.
const (
	HeaderEventID   = "Webhook-Id"
	HeaderTimestamp = "Webhook-Timestamp"
	HeaderSignature = "Webhook-Signature"
)

var (
	// ErrMissingHeader indicates one of the required signature headers was absent.
	ErrMissingHeader = errors.New("missing webhook signature header")
	// ErrBadSignature indicates the signature did not match the payload.
	ErrBadSignature = errors.New("webhook signature mismatch")
)

// Verifier authenticates inbound webhooks against the provider's shared
// secret. The signed message is "{id}.{timestamp}.{rawBody}" and the
// signature is hex-encoded HMAC-SHA256.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign computes the expected hex signature for a delivery. Exposed for the
// test sender tooling.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a delivery's signature header against the raw body. The
// header may be a bare hex string or a comma-separated k=v list carrying a
// v1 entry (e.g. "t=1712000000,v1=abc123"). Comparison is constant-time.
// The body must not be parsed before Verify succeeds.
func (v *Verifier) Verify(id, timestamp string, body []byte, signatureHeader string) error {
	if id == "" || timestamp == "" || signatureHeader == "" {
		return ErrMissingHeader
	}

	provided, ok := extractSignature(signatureHeader)
	if !ok {
		return fmt.Errorf("%w: unparseable signature header", ErrBadSignature)
	}

	expected := v.Sign(id, timestamp, body)

	// hmac.Equal compares every byte regardless of early mismatch.
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}

// extractSignature accepts both header forms: bare hex, or a k=v list with a
// v1 entry.
func extractSignature(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	if !strings.Contains(header, "=") {
		if !isHex(header) {
			return "", false
		}
		return header, true
	}

	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		if k == "v1" && isHex(val) {
			return val, true
		}
	}
	return "", false
}

func isHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
