package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/media-admin/internal/infra/security"
	"github.com/arklim/media-admin/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, detail string) ErrorResponse {
	return ErrorResponse{
		Detail:  detail,
		TraceID: GetTraceID(c),
	}
}

// TokenAuthorizer validates bearer access tokens.
type TokenAuthorizer interface {
	Authorize(ctx context.Context, token string) (*security.AccessClaims, error)
}

// RequireAuth validates the Authorization header and stores the admin id in the context.
func RequireAuth(authorizer TokenAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "Not authenticated"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := authorizer.Authorize(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "Token has expired"))
			case errors.Is(err, usecase.ErrTokenInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "Invalid token. Please log in again."))
			default:
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		adminID, err := claims.AdminID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "Invalid token. Please log in again."))
			return
		}

		c.Set(AdminIDKey, adminID)
		c.Set(ClaimsKey, claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AdminID = adminID
		}

		c.Next()
	}
}

// GetAuthenticatedAdminID retrieves the admin ID from context (helper for handlers)
func GetAuthenticatedAdminID(c *gin.Context) (int64, bool) {
	adminID, exists := c.Get(AdminIDKey)
	if !exists {
		return 0, false
	}

	id, ok := adminID.(int64)
	return id, ok
}
