package webhook

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{"event_type":"subscription_created"}`)

	sig := v.Sign("evt_1", "1712000000", body)
	if err := v.Verify("evt_1", "1712000000", body, sig); err != nil {
		t.Errorf("Verify = %v, want nil", err)
	}
}

func TestVerifier_AcceptsV1ListHeader(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{}`)

	sig := v.Sign("evt_1", "1712000000", body)
	header := fmt.Sprintf("t=1712000000,v1=%s", sig)
	if err := v.Verify("evt_1", "1712000000", body, header); err != nil {
		t.Errorf("Verify = %v, want nil", err)
	}

	// Whitespace between entries is tolerated.
	header = fmt.Sprintf("t=1712000000, v1=%s", sig)
	if err := v.Verify("evt_1", "1712000000", body, header); err != nil {
		t.Errorf("Verify with spaces = %v, want nil", err)
	}
}

func TestVerifier_AcceptsUppercaseHex(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{}`)

	sig := strings.ToUpper(v.Sign("evt_1", "1712000000", body))
	if err := v.Verify("evt_1", "1712000000", body, sig); err != nil {
		t.Errorf("Verify = %v, want nil", err)
	}
}

func TestVerifier_RejectsTamperedInputs(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{"amount":100}`)
	sig := v.Sign("evt_1", "1712000000", body)

	tests := []struct {
		name   string
		id, ts string
		body   []byte
		header string
	}{
		{"tampered body", "evt_1", "1712000000", []byte(`{"amount":999}`), sig},
		{"different id", "evt_2", "1712000000", body, sig},
		{"different timestamp", "evt_1", "1712000001", body, sig},
		{"wrong secret", "evt_1", "1712000000", body, NewVerifier("other-secret").Sign("evt_1", "1712000000", body)},
		{"flipped hex char", "evt_1", "1712000000", body, flipHexChar(sig)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.id, tt.ts, tt.body, tt.header)
			if !errors.Is(err, ErrBadSignature) {
				t.Errorf("Verify = %v, want ErrBadSignature", err)
			}
		})
	}
}

func TestVerifier_MissingHeaders(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{}`)
	sig := v.Sign("evt_1", "1712000000", body)

	tests := []struct {
		name   string
		id, ts string
		header string
	}{
		{"missing id", "", "1712000000", sig},
		{"missing timestamp", "evt_1", "", sig},
		{"missing signature", "evt_1", "1712000000", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.id, tt.ts, body, tt.header)
			if !errors.Is(err, ErrMissingHeader) {
				t.Errorf("Verify = %v, want ErrMissingHeader", err)
			}
		})
	}
}

func TestVerifier_UnparseableHeader(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{}`)

	for _, header := range []string{"not-hex!", "zz00", "t=123", "v2=abcd12"} {
		if err := v.Verify("evt_1", "1712000000", body, header); !errors.Is(err, ErrBadSignature) {
			t.Errorf("Verify(%q) = %v, want ErrBadSignature", header, err)
		}
	}
}

func flipHexChar(sig string) string {
	b := []byte(sig)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
