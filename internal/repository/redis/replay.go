package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/media-admin/internal/core/port"
)

const defaultReplayPrefix = "replay"

// ReplayRepository records one-shot values (OTP time-steps, challenge ids) with SET NX so
// that a second use inside the TTL is detected atomically.
type ReplayRepository struct {
	client *red.Client
	prefix string
}

// NewReplayRepository wires a Redis client into a replay repository.
func NewReplayRepository(client *red.Client, keyPrefix string) *ReplayRepository {
	prefix := strings.Trim(strings.TrimSpace(keyPrefix), ":")
	if prefix == "" {
		prefix = defaultReplayPrefix
	}

	return &ReplayRepository{client: client, prefix: prefix}
}

// MarkUsed stores scope/key for ttl and reports whether this call was the first to do so.
func (r *ReplayRepository) MarkUsed(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	redisKey := r.key(scope, key)
	if redisKey == "" {
		return false, errors.New("scope and key must not be empty")
	}

	stored, err := r.client.SetNX(ctx, redisKey, "1", ttl).Result()
	if err != nil {
		return false, unavailable("redis setnx replay marker", err)
	}

	return stored, nil
}

func (r *ReplayRepository) key(scope, key string) string {
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" || key == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, key)
}

var _ port.ReplayStore = (*ReplayRepository)(nil)
