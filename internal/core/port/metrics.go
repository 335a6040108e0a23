package port

// AuthMetrics records outcomes of the authentication state machine.
type AuthMetrics interface {
	LoginAttempt(outcome string)
	MFAVerificationAttempt(outcome string)
	MFAEnrolled(reused bool)
}
