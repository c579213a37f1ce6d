package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-client/internal/domain"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore()

	if _, err := store.Token(ctx, "u1"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SetToken(ctx, "u1", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := store.Token(ctx, "u1"); err != nil || got != "abc" {
		t.Fatalf("expected abc, got %q (%v)", got, err)
	}
	if err := store.ClearToken(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Token(ctx, "u1"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected not found after clear, got %v", err)
	}
}

type countingTokenStore struct {
	*TokenStore
	calls int
}

func (s *countingTokenStore) Token(ctx context.Context, userID string) (string, error) {
	s.calls++
	return s.TokenStore.Token(ctx, userID)
}

func TestCachedTokenStoreCaches(t *testing.T) {
	ctx := context.Background()
	backing := &countingTokenStore{TokenStore: NewTokenStore()}
	_ = backing.TokenStore.SetToken(ctx, "u1", "abc")

	cached := NewCachedTokenStore(backing, time.Minute)
	now := time.Now()
	cached.clock = func() time.Time { return now }

	if _, err := cached.Token(ctx, "u1"); err != nil {
		t.Fatalf("token: %v", err)
	}
	if _, err := cached.Token(ctx, "u1"); err != nil {
		t.Fatalf("token 2: %v", err)
	}
	if backing.calls != 1 {
		t.Fatalf("expected cache hit, backing calls %d", backing.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cached.Token(ctx, "u1"); err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if backing.calls != 2 {
		t.Fatalf("expected reload after ttl, backing calls %d", backing.calls)
	}
}

func TestCachedTokenStoreClearEvicts(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedTokenStore(NewTokenStore(), time.Minute)

	if err := cached.SetToken(ctx, "u1", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cached.ClearToken(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := cached.Token(ctx, "u1"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected not found after clear, got %v", err)
	}
}
