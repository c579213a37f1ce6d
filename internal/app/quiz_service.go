package app

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/domain"
	"quiz-client/internal/timer"
)

// SessionRepository abstracts where live sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions     SessionRepository
	loader       QuestionLoader
	reporter     Reporter
	journal      Journal
	cfg          SessionConfig
	newCountdown func() Countdown
	now          func() time.Time
	log          logrus.FieldLogger
}

// ServiceOption customizes a QuizService.
type ServiceOption func(*QuizService)

func WithJournal(j Journal) ServiceOption {
	return func(s *QuizService) { s.journal = j }
}

func WithSessionConfig(cfg SessionConfig) ServiceOption {
	return func(s *QuizService) { s.cfg = cfg }
}

// WithCountdownFactory swaps the per-session timer, mainly for tests.
func WithCountdownFactory(f func() Countdown) ServiceOption {
	return func(s *QuizService) { s.newCountdown = f }
}

func WithLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *QuizService) { s.log = log }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(store SessionRepository, loader QuestionLoader, reporter Reporter, opts ...ServiceOption) *QuizService {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &QuizService{
		sessions: store,
		loader:   loader,
		reporter: reporter,
		cfg:      SessionConfig{SecondsPerQuestion: DefaultSecondsPerQuestion},
		now:      time.Now,
		log:      discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newCountdown == nil {
		log := s.log
		s.newCountdown = func() Countdown { return timer.New(log) }
	}
	return s
}

// Start loads a fresh question set and begins a new attempt. A non-positive
// count is refused before any session exists. On load failure no session is
// registered and the error is a *domain.LoadError.
func (s *QuizService) Start(ctx context.Context, token string, count int) (*Session, error) {
	if count <= 0 {
		return nil, domain.NewLoadError(domain.ErrInvalidCount)
	}

	session := newSession(token, count, s.cfg, sessionDeps{
		loader:    s.loader,
		reporter:  s.reporter,
		journal:   s.journal,
		countdown: s.newCountdown(),
		log:       s.log,
		now:       s.now,
	})
	if err := session.start(ctx); err != nil {
		session.Close()
		return nil, err
	}
	s.sessions.Put(session)
	return session, nil
}

// Get looks up a live session.
func (s *QuizService) Get(sessionID string) (*Session, bool) {
	return s.sessions.Get(sessionID)
}

// Retry abandons sessionID and starts a new attempt with the same count and
// token. Questions are fetched again, so the result id is new.
func (s *QuizService) Retry(ctx context.Context, sessionID string) (*Session, error) {
	old, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.Abandon(sessionID)
	return s.Start(ctx, old.token, old.count)
}

// Abandon stops a session and forgets it. Unknown ids are ignored.
func (s *QuizService) Abandon(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}
