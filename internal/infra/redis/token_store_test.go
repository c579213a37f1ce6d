package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-client/internal/domain"
)

func TestTokenStoreInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewTokenStore(newClient(mr), time.Hour)

	if _, err := store.Token(ctx, "u1"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SetToken(ctx, "u1", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("quiz:token:u1"); got != "abc" {
		t.Fatalf("expected stored token, got %q", got)
	}
	if ttl := mr.TTL("quiz:token:u1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	got, err := store.Token(ctx, "u1")
	if err != nil || got != "abc" {
		t.Fatalf("expected abc, got %q (%v)", got, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Token(ctx, "u1"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected token to expire, got %v", err)
	}

	_ = store.SetToken(ctx, "u1", "def")
	if err := store.ClearToken(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("quiz:token:u1") {
		t.Fatalf("expected key removed")
	}
}
