package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notifyhub/notifyhub/internal/pkg/cache"
	"github.com/notifyhub/notifyhub/internal/pkg/token"
)

// Store tracks the server-side half of issued bearer tokens, keyed by the
// token's session ID (jti). A token whose session was invalidated is no
// longer accepted even if its signature and expiry are still good.
type Store interface {
	Create(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}

type redisStore struct {
	client *redis.Client
}

var store Store

// NewSessionStore initializes the Redis-backed session store.
func NewSessionStore() Store {
	store = &redisStore{client: cache.GetClient()}
	return store
}

// GetSessionStore returns the session store instance
func GetSessionStore() Store {
	if store == nil {
		return NewSessionStore()
	}
	return store
}

// SetSessionStore swaps the store; used by tests and by main for injection.
func SetSessionStore(s Store) {
	store = s
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (s *redisStore) Create(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = token.Lifetime
	}
	return s.client.Set(ctx, sessionKey(sessionID), userID, ttl).Err()
}

func (s *redisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Invalidate(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}
