package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/ringforge/callgate/pkg/storage/postgres"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound indicates the token does not resolve to a session
var ErrSessionNotFound = fmt.Errorf("session not found")

// SessionStore issues and resolves bearer tokens backed by Redis
type SessionStore struct {
	redis *postgres.RedisClient
	ttl   time.Duration
}

// NewSessionStore creates a session store
func NewSessionStore(redisClient *postgres.RedisClient, ttl time.Duration) *SessionStore {
	return &SessionStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Handshake creates a session for an account and returns the bearer token
func (s *SessionStore) Handshake(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("handshake requires an account")
	}

	token := "tok_" + uuid.NewString()
	if err := s.redis.Set(ctx, sessionKeyPrefix+token, accountID, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Resolve maps a bearer token back to its account ID and slides the TTL
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	accountID, err := s.redis.Get(ctx, sessionKeyPrefix+token)
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}

	if err := s.redis.Expire(ctx, sessionKeyPrefix+token, s.ttl); err != nil {
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}

	return accountID, nil
}

// Revoke deletes a session. Revoking an unknown token is a no-op.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
