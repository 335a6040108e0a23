package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/media-admin/internal/core/port"
	appLogger "github.com/arklim/media-admin/internal/infra/logger"
)

const (
	rateLimitProblemType  = "https://media-admin.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore is the subset of port.RateLimitStore the middleware needs.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

var _ RateLimitStore = port.RateLimitStore(nil)

// IdentifierFunc extracts the value a rule is scoped to, such as the client IP.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding-window limit of Limit requests per Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

func (r RateLimitRule) usable() bool {
	return r.Identifier != nil && r.Limit > 0 && r.Window > 0
}

// ProblemDetails is the RFC 9457 body returned with 429 responses.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter throttles the credential endpoints (/admin/login, /mfa/verify). Store
// failures let the request through so a Redis outage does not lock every admin out.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a limiter backed by store.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the clock, used in tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to the caller's IP address.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// decision is the outcome of one rule for one request.
type decision struct {
	limit     int
	remaining int
	reset     time.Time
	denied    bool
}

func (d decision) retryAfterSeconds(now time.Time) int {
	wait := d.reset.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}

// tighter reports whether d should be advertised in the headers instead of other.
func (d decision) tighter(other decision) bool {
	if d.denied != other.denied {
		return d.denied
	}
	if d.remaining != other.remaining {
		return d.remaining < other.remaining
	}
	return d.reset.Before(other.reset)
}

// RateLimit enforces rules in order and stops at the first one that denies the request.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.usable() {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if rl.store == nil || len(active) == 0 {
			c.Next()
			return
		}

		now := rl.now()
		var advertised *decision

		for _, rule := range active {
			id, ok := rule.Identifier(c)
			if !ok || id == "" {
				continue
			}

			d, err := rl.check(c.Request.Context(), rule, rule.Name+":"+id, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(id)),
					zap.Error(err),
				)
				continue
			}

			if d.denied {
				writeRateLimitHeaders(c, d, now)
				rl.reject(c, d.retryAfterSeconds(now))
				return
			}
			if advertised == nil || d.tighter(*advertised) {
				advertised = &d
			}
		}

		if advertised != nil {
			writeRateLimitHeaders(c, *advertised, now)
		}
		c.Next()
	}
}

// check counts the attempts inside rule's window and records this one when it fits.
func (rl *RateLimiter) check(ctx context.Context, rule RateLimitRule, key string, now time.Time) (decision, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return decision{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}
	oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}

	d := decision{limit: rule.Limit, reset: now.Add(rule.Window)}
	if found {
		d.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		d.denied = true
		return d, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return decision{}, err
	}
	d.remaining = max(rule.Limit-count-1, 0)
	return d, nil
}

func writeRateLimitHeaders(c *gin.Context, d decision, now time.Time) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))
	if d.denied {
		h.Set("Retry-After", strconv.Itoa(d.retryAfterSeconds(now)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, retryAfter int) {
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many attempts. Try again in %d seconds.", retryAfter),
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    GetTraceID(c),
	})
}
