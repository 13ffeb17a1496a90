package recovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/notifyhub/notifyhub/internal/pkg/cache"
)

// TokenTTL bounds how long a password recovery link stays usable.
const TokenTTL = time.Hour

var ErrTokenInvalid = errors.New("recovery token is invalid or expired")

// Store issues and consumes single-use password recovery tokens.
type Store interface {
	Issue(ctx context.Context, userID uint) (string, error)
	Consume(ctx context.Context, tokenValue string) (uint, error)
}

type redisStore struct {
	client *redis.Client
}

// NewStore creates a recovery token store backed by the shared Redis client.
func NewStore() Store {
	return &redisStore{client: cache.GetClient()}
}

func recoveryKey(tokenValue string) string {
	return "recovery:" + tokenValue
}

func (s *redisStore) Issue(ctx context.Context, userID uint) (string, error) {
	tokenValue := uuid.NewString()
	if err := s.client.Set(ctx, recoveryKey(tokenValue), userID, TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("storing recovery token: %w", err)
	}
	return tokenValue, nil
}

// Consume validates and deletes the token in one step so a link cannot be
// replayed after a successful reset.
func (s *redisStore) Consume(ctx context.Context, tokenValue string) (uint, error) {
	val, err := s.client.GetDel(ctx, recoveryKey(tokenValue)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(userID), nil
}
