package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked_guest:"

type redisStore struct {
	client *redis.Client
}

// NewRedis returns a Store that keeps each revocation as a key expiring with the credential.
func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Revoke(ctx context.Context, guestID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+guestID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke guest credential: %w", err)
	}
	return nil
}

func (s *redisStore) IsRevoked(ctx context.Context, guestID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+guestID).Result()
	if err != nil {
		return false, fmt.Errorf("check guest credential: %w", err)
	}
	return n > 0, nil
}
