package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "session:revoked:"

// SessionTokenRepository keeps a deny-list of session token IDs that were
// logged out before they expired.
type SessionTokenRepository struct {
	client *redis.Client
}

// NewSessionTokenRepository constructs the repository. A nil client disables revocation.
func NewSessionTokenRepository(client *redis.Client) *SessionTokenRepository {
	return &SessionTokenRepository{client: client}
}

// Revoke marks the token id revoked until it would have expired anyway.
func (r *SessionTokenRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r.client == nil || tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is on the deny-list.
func (r *SessionTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.client == nil || tokenID == "" {
		return false, nil
	}
	err := r.client.Get(ctx, revokedTokenPrefix+tokenID).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("check session token revocation: %w", err)
}
