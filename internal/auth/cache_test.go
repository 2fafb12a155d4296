package auth

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/aria/internal/user"
	"github.com/redis/go-redis/v9"
)

// TestRedisCredentialCache requires a Redis instance on localhost:6379 and
// is skipped otherwise.
func TestRedisCredentialCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	cache := NewRedisCredentialCache(client, time.Minute, nil)
	ctx = context.Background()
	username := "cache-test-" + time.Now().Format("150405.000000")

	if _, ok := cache.Get(ctx, username); ok {
		t.Fatal("expected miss before Set")
	}

	cache.Set(ctx, &user.User{ID: "u-1", Username: username, PasswordHash: "hash", IsActive: true})
	got, ok := cache.Get(ctx, username)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.ID != "u-1" || !got.IsActive || got.IsAdmin {
		t.Errorf("unexpected cached user: %+v", got)
	}

	ttl := client.TTL(ctx, credentialKey(username)).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL within a minute, got %v", ttl)
	}

	cache.Invalidate(ctx, username)
	if _, ok := cache.Get(ctx, username); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestRedisCredentialCache_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	cache := NewRedisCredentialCache(client, 0, nil)
	ctx := context.Background()

	// Failures degrade to misses and never panic.
	cache.Set(ctx, &user.User{ID: "u-1", Username: "ada"})
	if _, ok := cache.Get(ctx, "ada"); ok {
		t.Error("expected miss when Redis is unreachable")
	}
	cache.Invalidate(ctx, "ada")
}

func TestCredentialKey(t *testing.T) {
	if got := credentialKey("Ada"); got != "aria:auth:user:ada" {
		t.Errorf("unexpected key %q", got)
	}
}
