package port

import (
	"context"
	"time"
)

// ReplayStore remembers one-shot values (OTP time-steps, challenge ids) for a bounded time.
type ReplayStore interface {
	// MarkUsed records key under scope and reports whether this was the first use.
	MarkUsed(ctx context.Context, scope, key string, ttl time.Duration) (bool, error)
}
