package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "docbridge:revoked:"

// RedisRevocationList stores revoked token ids in Redis until they would
// have expired anyway.
type RedisRevocationList struct {
	client redis.Cmdable
}

func NewRedisRevocationList(client redis.Cmdable) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func (l *RedisRevocationList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	err := l.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}

// Revoke marks jti as revoked for ttl, which should cover the token's remaining lifetime.
func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := l.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
