package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers tokens that were logged out before they expired
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type noopRevocationStore struct{}

func (noopRevocationStore) Revoke(context.Context, string, time.Time) error { return nil }
func (noopRevocationStore) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevocations keeps one key per revoked jti, expiring with the token
type RedisRevocations struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ RevocationStore = (*RedisRevocations)(nil)

// NewRedisRevocations stores revoked token ids in client under prefix
func NewRedisRevocations(client *redis.Client, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = "auth:revoked:"
	}
	return &RedisRevocations{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisRevocations) key(tokenID string) string {
	return r.prefix + tokenID
}

// Revoke marks tokenID as revoked until the token would have expired anyway
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}

	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.key(tokenID), "1", ttl).Err(); err != nil {
		return wrapError(ErrStoreUnavailable, err).WithMetadata(map[string]any{"operation": "revoke_token"})
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	err := r.client.Get(ctx, r.key(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case goerrors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, wrapError(ErrStoreUnavailable, err).WithMetadata(map[string]any{"operation": "check_revocation"})
	}
}
