package auth

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/aria/internal/user"
	"github.com/redis/go-redis/v9"
)

// DefaultCredentialTTL is how long cached credentials stay valid.
const DefaultCredentialTTL = 15 * time.Minute

const credentialKeyPrefix = "aria:auth:user:"

// CredentialCache caches the fields needed to authenticate a user.
// Implementations never fail the caller; errors degrade to a cache miss.
type CredentialCache interface {
	Get(ctx context.Context, username string) (*user.User, bool)
	Set(ctx context.Context, u *user.User)
	Invalidate(ctx context.Context, username string)
}

// NoopCredentialCache disables credential caching.
type NoopCredentialCache struct{}

func (NoopCredentialCache) Get(context.Context, string) (*user.User, bool) { return nil, false }
func (NoopCredentialCache) Set(context.Context, *user.User)                {}
func (NoopCredentialCache) Invalidate(context.Context, string)             {}

// RedisCredentialCache stores credentials in a Redis hash per username.
type RedisCredentialCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCredentialCache creates a Redis-backed credential cache.
func NewRedisCredentialCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCredentialCache {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCredentialCache{client: client, ttl: ttl, logger: logger}
}

func credentialKey(username string) string {
	return credentialKeyPrefix + strings.ToLower(username)
}

// Get returns the cached user, if any.
func (c *RedisCredentialCache) Get(ctx context.Context, username string) (*user.User, bool) {
	fields, err := c.client.HGetAll(ctx, credentialKey(username)).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "credential cache read failed", "error", err)
		return nil, false
	}
	if len(fields) == 0 || fields["id"] == "" || fields["password_hash"] == "" {
		return nil, false
	}

	active, _ := strconv.ParseBool(fields["is_active"])
	admin, _ := strconv.ParseBool(fields["is_admin"])
	return &user.User{
		ID:           fields["id"],
		Username:     fields["username"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		IsActive:     active,
		IsAdmin:      admin,
	}, true
}

// Set caches u under its username.
func (c *RedisCredentialCache) Set(ctx context.Context, u *user.User) {
	key := credentialKey(u.Username)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"is_active":     strconv.FormatBool(u.IsActive),
		"is_admin":      strconv.FormatBool(u.IsAdmin),
	})
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "credential cache write failed", "error", err)
	}
}

// Invalidate removes the cached entry for username.
func (c *RedisCredentialCache) Invalidate(ctx context.Context, username string) {
	if err := c.client.Del(ctx, credentialKey(username)).Err(); err != nil {
		c.logger.WarnContext(ctx, "credential cache invalidate failed", "error", err)
	}
}
