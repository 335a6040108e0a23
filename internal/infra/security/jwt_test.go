package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSigningSecret = "test-signing-secret-with-enough-entropy"

func newTestTokenService(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()

	svc, err := NewTokenService(TokenConfig{
		Secret:    []byte(testSigningSecret),
		Algorithm: "HS256",
		Issuer:    "media-admin-test",
		AccessTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}
	return svc.WithClock(now)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, fixedClock(now))

	raw, expiresAt, err := svc.Issue(42, "editor", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry: %s", expiresAt)
	}

	claims, err := svc.Validate(raw)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("expected subject 42, got %q", claims.Subject)
	}
	if claims.Role != "editor" {
		t.Fatalf("expected role editor, got %q", claims.Role)
	}
	id, err := claims.AdminID()
	if err != nil || id != 42 {
		t.Fatalf("AdminID = %d, %v", id, err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be populated")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	svc := newTestTokenService(t, func() time.Time { return current })

	raw, _, err := svc.Issue(7, "", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	current = now.Add(31 * time.Minute)
	if _, err := svc.Validate(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateRejectsEveryTamperedByte(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, fixedClock(now))

	raw, _, err := svc.Issue(42, "superadmin", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			continue
		}
		replacement := byte('A')
		if raw[i] == 'A' {
			replacement = 'B'
		}
		tampered := raw[:i] + string(replacement) + raw[i+1:]

		if _, err := svc.Validate(tampered); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("tampered byte %d accepted or misclassified: %v", i, err)
		}
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, fixedClock(now))

	claims := AccessClaims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "media-admin-test",
			Audience:  jwt.ClaimStrings{accessTokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := svc.Validate(hs512); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := svc.Validate(unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected unsigned token to be rejected, got %v", err)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, fixedClock(now))

	other, err := NewTokenService(TokenConfig{
		Secret: []byte("another-secret-of-decent-length"),
		Issuer: "media-admin-test",
	})
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}
	raw, _, err := other.WithClock(fixedClock(now)).Issue(42, "", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.Validate(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestChallengeAndAccessTokensAreNotInterchangeable(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, fixedClock(now))

	challenge, expiresAt, err := svc.IssueChallenge(9)
	if err != nil {
		t.Fatalf("IssueChallenge returned error: %v", err)
	}
	if !expiresAt.Equal(now.Add(defaultChallengeTokenTTL)) {
		t.Fatalf("unexpected challenge expiry: %s", expiresAt)
	}
	if _, err := svc.Validate(challenge); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("challenge token accepted as access token: %v", err)
	}
	if _, err := svc.ValidateChallenge(challenge); err != nil {
		t.Fatalf("ValidateChallenge returned error: %v", err)
	}

	access, _, err := svc.Issue(9, "", 0)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := svc.ValidateChallenge(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as challenge: %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t, time.Now)

	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c", strings.Repeat("x", 512)} {
		if _, err := svc.Validate(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", raw, err)
		}
	}
}

func TestNewTokenServiceConfiguration(t *testing.T) {
	if _, err := NewTokenService(TokenConfig{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewTokenService(TokenConfig{Secret: []byte("secret"), Algorithm: "RS256"}); err == nil {
		t.Fatal("expected error for non-HMAC algorithm")
	}

	svc, err := NewTokenService(TokenConfig{Secret: []byte("secret"), Algorithm: "hs384"})
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}
	if svc.Algorithm() != "HS384" {
		t.Fatalf("expected HS384, got %s", svc.Algorithm())
	}
	if svc.AccessTTL() != defaultAccessTokenTTL {
		t.Fatalf("expected default ttl, got %s", svc.AccessTTL())
	}
}
