package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-client/internal/domain"
)

// TokenStore keeps bearer tokens in Redis so every instance behind a load
// balancer sees the same login:
//
//	SET quiz:token:{userID} {token} EX ttl
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore stores tokens with ttl; zero keeps them until cleared.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func (s *TokenStore) Token(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (s *TokenStore) SetToken(ctx context.Context, userID, token string) error {
	if err := s.client.Set(ctx, s.key(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *TokenStore) ClearToken(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (s *TokenStore) key(userID string) string {
	return "quiz:token:" + userID
}
