package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist stores revoked refresh-token IDs in Redis until their
// natural expiry. A nil client disables revocation (logout still succeeds
// but the refresh token stays usable until it expires).
type TokenBlacklist struct {
	rdb *redis.Client
}

// NewTokenBlacklist creates a blacklist over the given Redis client
func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("auth:blacklist:%s", jti)
}

// Revoke marks a refresh token ID as unusable until expiresAt
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if b.rdb == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to store
	}
	return b.rdb.Set(ctx, blacklistKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether a refresh token ID has been blacklisted
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if b.rdb == nil {
		return false, nil
	}
	_, err := b.rdb.Get(ctx, blacklistKey(jti)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
