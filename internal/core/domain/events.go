package domain

import "time"

// AdminLoginEvent represents the payload for admin.login.* messages.
type AdminLoginEvent struct {
	EventID     string
	AdminID     int64
	Username    string
	Succeeded   bool
	MFARequired bool
	Reason      string
	OccurredAt  time.Time
}

// MFAEnrolledEvent represents the payload for admin.mfa.enrolled messages.
type MFAEnrolledEvent struct {
	EventID    string
	AdminID    int64
	Username   string
	Reused     bool
	EnrolledAt time.Time
}

// MFAEnabledEvent represents the payload for admin.mfa.enabled messages.
type MFAEnabledEvent struct {
	EventID   string
	AdminID   int64
	Username  string
	EnabledAt time.Time
}

// MFAVerificationFailedEvent represents the payload for admin.mfa.verification_failed messages.
type MFAVerificationFailedEvent struct {
	EventID  string
	AdminID  int64
	Username string
	Reason   string
	FailedAt time.Time
}
