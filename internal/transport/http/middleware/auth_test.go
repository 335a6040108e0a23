package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/media-admin/internal/infra/security"
	"github.com/arklim/media-admin/internal/usecase"
)

type authorizerFunc func(ctx context.Context, token string) (*security.AccessClaims, error)

func (f authorizerFunc) Authorize(ctx context.Context, token string) (*security.AccessClaims, error) {
	return f(ctx, token)
}

func claimsFor(subject, role string) *security.AccessClaims {
	claims := &security.AccessClaims{Role: role}
	claims.Subject = subject
	return claims
}

func newAuthRouter(authorizer TokenAuthorizer, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(EnrichContext())

	handlers := append([]gin.HandlerFunc{RequireAuth(authorizer)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, ok := GetAuthenticatedAdminID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"admin_id": id})
	})
	router.GET("/admin/protected", handlers...)
	return router
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authorizer := authorizerFunc(func(_ context.Context, token string) (*security.AccessClaims, error) {
		switch token {
		case "good":
			return claimsFor("42", "editor"), nil
		case "expired":
			return nil, usecase.ErrTokenExpired
		case "broken":
			return nil, errors.New("boom")
		case "bad-subject":
			return claimsFor("abc", "editor"), nil
		default:
			return nil, usecase.ErrTokenInvalid
		}
	})

	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
	}{
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantDetail: "Not authenticated"},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer  ", wantStatus: http.StatusUnauthorized, wantDetail: "missing access token"},
		{name: "expired token", header: "Bearer expired", wantStatus: http.StatusUnauthorized, wantDetail: "Token has expired"},
		{name: "invalid token", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantDetail: "Invalid token. Please log in again."},
		{name: "non numeric subject", header: "Bearer bad-subject", wantStatus: http.StatusUnauthorized},
		{name: "authorizer failure", header: "Bearer broken", wantStatus: http.StatusInternalServerError},
	}

	router := newAuthRouter(authorizer)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tc.wantStatus, rr.Code, rr.Body.String())
			}

			if tc.wantStatus == http.StatusOK {
				var body struct {
					AdminID int64 `json:"admin_id"`
				}
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.AdminID != 42 {
					t.Fatalf("expected admin id 42, got %d", body.AdminID)
				}
				return
			}

			var errBody ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errBody.TraceID == "" {
				t.Fatalf("expected trace id in error body")
			}
			if tc.wantDetail != "" && errBody.Detail != tc.wantDetail {
				t.Fatalf("expected detail %q, got %q", tc.wantDetail, errBody.Detail)
			}
		})
	}
}
