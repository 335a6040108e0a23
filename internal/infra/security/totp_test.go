package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// base32 of the ASCII string "12345678901234567890" used by RFC 6238 test vectors.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func newTestTOTPEngine(t *testing.T) *TOTPEngine {
	t.Helper()

	engine, err := NewTOTPEngine(DefaultTOTPConfig())
	if err != nil {
		t.Fatalf("NewTOTPEngine returned error: %v", err)
	}
	return engine
}

func TestTOTPCodeMatchesReferenceVector(t *testing.T) {
	engine, err := NewTOTPEngine(TOTPConfig{Digits: 8})
	if err != nil {
		t.Fatalf("NewTOTPEngine returned error: %v", err)
	}

	code, err := engine.Code(rfcSecret, time.Unix(59, 0))
	if err != nil {
		t.Fatalf("Code returned error: %v", err)
	}
	if code != "94287082" {
		t.Fatalf("expected 94287082, got %s", code)
	}
}

func TestTOTPVerifyDriftWindow(t *testing.T) {
	engine := newTestTOTPEngine(t)
	now := time.Unix(1_700_000_010, 0)
	counter := engine.Counter(now)

	cases := []struct {
		name        string
		offset      time.Duration
		wantOK      bool
		wantCounter uint64
	}{
		{name: "previous step", offset: -30 * time.Second, wantOK: true, wantCounter: counter - 1},
		{name: "current step", offset: 0, wantOK: true, wantCounter: counter},
		{name: "next step", offset: 30 * time.Second, wantOK: true, wantCounter: counter + 1},
		{name: "two steps behind", offset: -60 * time.Second, wantOK: false},
		{name: "two steps ahead", offset: 60 * time.Second, wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, err := engine.Code(rfcSecret, now.Add(tc.offset))
			if err != nil {
				t.Fatalf("Code returned error: %v", err)
			}

			ok, matched := engine.Verify(rfcSecret, code, now, engine.Skew())
			if ok != tc.wantOK {
				t.Fatalf("Verify = %v, want %v", ok, tc.wantOK)
			}
			if ok && matched != tc.wantCounter {
				t.Fatalf("matched counter = %d, want %d", matched, tc.wantCounter)
			}
		})
	}
}

func TestTOTPVerifyZeroWindowIsExact(t *testing.T) {
	engine := newTestTOTPEngine(t)
	now := time.Unix(1_700_000_010, 0)

	previous, err := engine.Code(rfcSecret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("Code returned error: %v", err)
	}
	if ok, _ := engine.Verify(rfcSecret, previous, now, 0); ok {
		t.Fatal("expected previous step to be rejected with zero window")
	}
}

func TestTOTPVerifyMalformedInput(t *testing.T) {
	engine := newTestTOTPEngine(t)
	now := time.Unix(1_700_000_010, 0)

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		if ok, _ := engine.Verify(rfcSecret, code, now, 1); ok {
			t.Fatalf("Verify accepted malformed code %q", code)
		}
	}

	valid, err := engine.Code(rfcSecret, now)
	if err != nil {
		t.Fatalf("Code returned error: %v", err)
	}
	if ok, _ := engine.Verify("", valid, now, 1); ok {
		t.Fatal("Verify accepted empty secret")
	}
	if ok, _ := engine.Verify("not base32 !!", valid, now, 1); ok {
		t.Fatal("Verify accepted malformed secret")
	}
}

func TestTOTPGenerateSecret(t *testing.T) {
	engine := newTestTOTPEngine(t)

	first, err := engine.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	second, err := engine.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct secrets")
	}
	if len(first) != 32 || strings.Contains(first, "=") {
		t.Fatalf("unexpected secret encoding: %q", first)
	}

	code, err := engine.Code(first, time.Now())
	if err != nil {
		t.Fatalf("generated secret is not usable: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}
}

func TestTOTPProvisioningURI(t *testing.T) {
	engine := newTestTOTPEngine(t)

	uri, err := engine.ProvisioningURI(rfcSecret, "alice", "Media Admin")
	if err != nil {
		t.Fatalf("ProvisioningURI returned error: %v", err)
	}

	for _, fragment := range []string{"otpauth://totp/", "secret=" + rfcSecret, "issuer=Media", "alice"} {
		if !strings.Contains(uri, fragment) {
			t.Fatalf("uri %q missing %q", uri, fragment)
		}
	}

	if _, err := engine.ProvisioningURI("", "alice", "Media Admin"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestNewTOTPEngineValidation(t *testing.T) {
	if _, err := NewTOTPEngine(TOTPConfig{Digits: 7}); err == nil {
		t.Fatal("expected error for unsupported digit count")
	}
	if _, err := NewTOTPEngine(TOTPConfig{Period: 1500 * time.Millisecond}); err == nil {
		t.Fatal("expected error for fractional period")
	}
	if _, err := NewTOTPEngine(TOTPConfig{SecretSize: 4}); err == nil {
		t.Fatal("expected error for short secret size")
	}
}
