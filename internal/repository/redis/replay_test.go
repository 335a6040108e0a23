package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/media-admin/internal/repository"
)

func TestReplayRepository_FirstUseWins(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewReplayRepository(client, "media_admin:replay")

	ctx := context.Background()
	ttl := 90 * time.Second

	first, err := repo.MarkUsed(ctx, "otp", "42:56666667", ttl)
	if err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if !first {
		t.Fatal("expected first use to be accepted")
	}

	second, err := repo.MarkUsed(ctx, "otp", "42:56666667", ttl)
	if err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if second {
		t.Fatal("expected second use to be rejected")
	}

	remaining := server.TTL("media_admin:replay:otp:42:56666667")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestReplayRepository_ScopesAreIndependent(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewReplayRepository(client, "")

	ctx := context.Background()

	if ok, err := repo.MarkUsed(ctx, "otp", "abc", time.Minute); err != nil || !ok {
		t.Fatalf("otp scope: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkUsed(ctx, "challenge", "abc", time.Minute); err != nil || !ok {
		t.Fatalf("challenge scope: ok=%v err=%v", ok, err)
	}
}

func TestReplayRepository_ExpiresAfterTTL(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewReplayRepository(client, "replay")

	ctx := context.Background()

	if _, err := repo.MarkUsed(ctx, "challenge", "jti-1", time.Minute); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	ok, err := repo.MarkUsed(ctx, "challenge", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected marker to be reusable once expired")
	}
}

func TestReplayRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewReplayRepository(client, "replay")

	ctx := context.Background()

	if _, err := repo.MarkUsed(ctx, "otp", "key", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if _, err := repo.MarkUsed(ctx, " ", "key", time.Minute); err == nil {
		t.Fatal("expected error for empty scope")
	}
	if _, err := repo.MarkUsed(ctx, "otp", "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestReplayRepository_BackendDown(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewReplayRepository(client, "replay")

	server.Close()

	_, err := repo.MarkUsed(context.Background(), "otp", "key", time.Minute)
	if !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
