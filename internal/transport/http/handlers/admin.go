package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/transport/http/middleware"
	"github.com/arklim/media-admin/internal/usecase"
)

const tokenTypeBearer = "bearer"

// AdminAuthenticator is the part of the auth usecase driven over HTTP.
type AdminAuthenticator interface {
	Login(ctx context.Context, username, password string) (domain.AuthResult, error)
	EnrollMFA(ctx context.Context, requesterID int64, username string) (domain.MFAEnrollment, error)
	VerifyMFA(ctx context.Context, in usecase.VerifyMFAInput) (domain.AuthResult, error)
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid credentials"},
	{Err: usecase.ErrUpstreamUnavailable, Status: http.StatusServiceUnavailable, Message: "Service temporarily unavailable"},
}

// AdminHandler exposes the admin login and protected endpoints.
type AdminHandler struct {
	auth AdminAuthenticator
	now  func() time.Time
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(auth AdminAuthenticator) *AdminHandler {
	return &AdminHandler{auth: auth, now: time.Now}
}

// RegisterRoutes binds the admin routes, applying optional middleware ahead of the login handler.
func (h *AdminHandler) RegisterRoutes(r gin.IRoutes, authMiddleware gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.login)
	r.POST("/admin/login", chain...)

	r.GET("/admin/protected", authMiddleware, h.protected)
}

// login verifies a username and password. Admins with MFA enabled receive a challenge token
// instead of an access token and must complete /mfa/verify.
func (h *AdminHandler) login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), username, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "Internal server error")
		return
	}

	if result.State == domain.AuthStateMFAChallenge {
		c.JSON(http.StatusOK, MFARequiredResponse{
			MFARequired:    true,
			Username:       result.Username,
			ChallengeToken: result.ChallengeToken,
		})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   result.ExpiresIn(h.now()),
	})
}

func (h *AdminHandler) protected(c *gin.Context) {
	adminID, ok := middleware.GetAuthenticatedAdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Invalid authentication"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Hello Admin %d, you have access!", adminID),
	})
}
