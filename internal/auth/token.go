// Package auth holds the bearer-token collaborator: where tokens are kept and
// the pre-flight check run before any remote call.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-client/internal/domain"
)

// TokenStore keeps one bearer token per user.
type TokenStore interface {
	Token(ctx context.Context, userID string) (string, error)
	SetToken(ctx context.Context, userID, token string) error
	ClearToken(ctx context.Context, userID string) error
}

// CheckToken rejects empty tokens and JWTs whose exp claim has passed.
// Tokens that are not JWTs are treated as opaque and accepted; the remote API
// remains the authority on validity.
func CheckToken(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrUnauthorized
	}
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return errors.Join(domain.ErrUnauthorized, errors.New("token expired"))
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
