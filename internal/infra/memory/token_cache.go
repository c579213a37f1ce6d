package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-client/internal/auth"
)

// CachedTokenStore fronts a slower TokenStore (e.g. Redis) with a TTL cache
// so each websocket message does not hit the backing store.
type CachedTokenStore struct {
	backing auth.TokenStore
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func NewCachedTokenStore(backing auth.TokenStore, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedToken),
	}
}

func (c *CachedTokenStore) Token(ctx context.Context, userID string) (string, error) {
	if token, ok := c.lookup(userID); ok {
		return token, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		if token, ok := c.lookup(userID); ok {
			return token, nil
		}

		token, err := c.backing.Token(ctx, userID)
		if err != nil {
			return "", err
		}

		c.store(userID, token)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *CachedTokenStore) SetToken(ctx context.Context, userID, token string) error {
	if err := c.backing.SetToken(ctx, userID, token); err != nil {
		return err
	}
	c.store(userID, token)
	return nil
}

// ClearToken evicts locally even if the backing store fails, so a logged-out
// user is never served a stale token from this instance.
func (c *CachedTokenStore) ClearToken(ctx context.Context, userID string) error {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
	return c.backing.ClearToken(ctx, userID)
}

func (c *CachedTokenStore) lookup(userID string) (string, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[userID]
	if !ok || !entry.expiresAt.After(now) {
		return "", false
	}
	return entry.token, true
}

func (c *CachedTokenStore) store(userID, token string) {
	if c.ttl <= 0 {
		return
	}
	expiresAt := c.clock().Add(c.ttlWithJitter())
	c.mu.Lock()
	c.cache[userID] = cachedToken{token: token, expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *CachedTokenStore) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
