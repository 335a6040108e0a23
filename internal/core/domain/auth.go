package domain

import "time"

// AuthState describes where a login attempt ended up.
type AuthState string

const (
	// AuthStateAuthenticated means an access token was issued.
	AuthStateAuthenticated AuthState = "authenticated"
	// AuthStateMFAChallenge means the password was accepted but a TOTP code is still required.
	AuthStateMFAChallenge AuthState = "mfa_challenge"
)

// AuthResult is the outcome of a successful login or MFA verification step.
type AuthResult struct {
	State          AuthState
	AdminID        int64
	Username       string
	AccessToken    string
	ExpiresAt      time.Time
	ChallengeToken string
}

// ExpiresIn returns the remaining access token lifetime in whole seconds relative to now.
func (r AuthResult) ExpiresIn(now time.Time) int {
	if r.ExpiresAt.IsZero() {
		return 0
	}
	remaining := r.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// MFAEnrollment carries the material needed to register an authenticator app.
type MFAEnrollment struct {
	Username        string
	Secret          string
	ProvisioningURI string
	QRCode          string
	AlreadyEnabled  bool
}
