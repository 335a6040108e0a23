package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/media-admin/internal/transport/http/middleware"
	"github.com/arklim/media-admin/internal/usecase"
)

var enrollErrorCases = []ErrorCase{
	{Err: usecase.ErrEnrollmentForbidden, Status: http.StatusForbidden, Message: "MFA can only be managed for your own account"},
	{Err: usecase.ErrAdminNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Err: usecase.ErrUpstreamUnavailable, Status: http.StatusServiceUnavailable, Message: "Service temporarily unavailable"},
}

var verifyErrorCases = []ErrorCase{
	{Err: usecase.ErrMFANotInitialized, Status: http.StatusBadRequest, Message: "MFA not initialized"},
	{Err: usecase.ErrInvalidOTP, Status: http.StatusUnauthorized, Message: "Invalid OTP"},
	{Err: usecase.ErrOTPReplayed, Status: http.StatusUnauthorized, Message: "OTP already used"},
	{Err: usecase.ErrInvalidChallenge, Status: http.StatusUnauthorized, Message: "Invalid or expired MFA challenge"},
	{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "Too many failed attempts"},
	{Err: usecase.ErrUpstreamUnavailable, Status: http.StatusServiceUnavailable, Message: "Service temporarily unavailable"},
}

// MFAHandler exposes TOTP enrollment and verification.
type MFAHandler struct {
	auth AdminAuthenticator
	now  func() time.Time
}

// NewMFAHandler constructs MFAHandler.
func NewMFAHandler(auth AdminAuthenticator) *MFAHandler {
	return &MFAHandler{auth: auth, now: time.Now}
}

// RegisterRoutes binds the MFA routes. Enrollment sits behind authMiddleware; verifyMiddlewares
// run ahead of the verify handler.
func (h *MFAHandler) RegisterRoutes(r gin.IRoutes, authMiddleware gin.HandlerFunc, verifyMiddlewares ...gin.HandlerFunc) {
	r.GET("/mfa/generate/:username", authMiddleware, h.generate)

	chain := append([]gin.HandlerFunc{}, verifyMiddlewares...)
	chain = append(chain, h.verify)
	r.POST("/mfa/verify", chain...)
}

// generate returns the QR code and secret for the authenticated admin, creating the secret
// on first use.
func (h *MFAHandler) generate(c *gin.Context) {
	adminID, ok := middleware.GetAuthenticatedAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Not authenticated"))
		return
	}

	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	enrollment, err := h.auth.EnrollMFA(c.Request.Context(), adminID, username)
	if err != nil {
		RespondWithMappedError(c, err, enrollErrorCases, http.StatusInternalServerError, "QR Code generation failed")
		return
	}

	c.JSON(http.StatusOK, MFAGenerateResponse{
		QRCode:          enrollment.QRCode,
		MFASecret:       enrollment.Secret,
		MFAEnabled:      enrollment.AlreadyEnabled,
		ProvisioningURI: enrollment.ProvisioningURI,
	})
}

// verify checks a TOTP code and issues an access token on success.
func (h *MFAHandler) verify(c *gin.Context) {
	var req MFAVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and token are required"))
		return
	}

	result, err := h.auth.VerifyMFA(c.Request.Context(), usecase.VerifyMFAInput{
		Username:       strings.TrimSpace(req.Username),
		Code:           strings.TrimSpace(req.Token),
		ChallengeToken: strings.TrimSpace(req.ChallengeToken),
	})
	if err != nil {
		RespondWithMappedError(c, err, verifyErrorCases, http.StatusInternalServerError, "Server error during verification")
		return
	}

	c.JSON(http.StatusOK, MFAVerifyResponse{
		Verified: true,
		TokenResponse: TokenResponse{
			AccessToken: result.AccessToken,
			TokenType:   tokenTypeBearer,
			ExpiresIn:   result.ExpiresIn(h.now()),
		},
	})
}
