package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quiz-client/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions own goroutines and channels, so they stay in a local map; Redis
// only carries a liveness marker per session so operators can see what an
// instance is running.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      logrus.FieldLogger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(session.ID()), session.ResultID(), s.ttl).Err(); err != nil {
		s.log.WithError(err).WithField("session_id", session.ID()).Warn("redis session marker not set")
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("redis session marker not cleared")
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
