package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, detail string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Detail:  detail,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminLoginRequest defines the payload for the login endpoint.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned when an access token has been issued.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// MFARequiredResponse is returned when the password was accepted but a TOTP code is still needed.
type MFARequiredResponse struct {
	MFARequired    bool   `json:"mfa_required"`
	Username       string `json:"username"`
	ChallengeToken string `json:"challenge_token"`
}

// MFAGenerateResponse carries the enrollment material for an authenticator app.
type MFAGenerateResponse struct {
	QRCode          string `json:"qr_code"`
	MFASecret       string `json:"mfa_secret"`
	MFAEnabled      bool   `json:"mfa_enabled"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// MFAVerifyRequest is the second login step.
type MFAVerifyRequest struct {
	Username       string `json:"username" binding:"required"`
	Token          string `json:"token" binding:"required"`
	ChallengeToken string `json:"challenge_token"`
}

// MFAVerifyResponse is returned after a successful TOTP verification.
type MFAVerifyResponse struct {
	Verified bool `json:"verified"`
	TokenResponse
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
