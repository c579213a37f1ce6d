package app

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quiz-client/internal/domain"
	"quiz-client/internal/timer"
)

// DefaultSecondsPerQuestion sizes the whole-session budget when none is configured.
const DefaultSecondsPerQuestion = 30

// QuestionLoader yields a normalized question set or a *domain.LoadError.
type QuestionLoader interface {
	Load(ctx context.Context, token string, count int) (QuestionSet, error)
}

// Reporter submits a final score once.
type Reporter interface {
	Submit(ctx context.Context, token, resultID string, score int) error
}

// Countdown is the timer a session drives.
type Countdown interface {
	Start(total int, ev timer.Events)
	Stop()
}

// SessionConfig holds per-attempt settings.
type SessionConfig struct {
	SecondsPerQuestion int
}

// Budget is the whole-session countdown for n questions.
func (c SessionConfig) Budget(n int) int {
	per := c.SecondsPerQuestion
	if per <= 0 {
		per = DefaultSecondsPerQuestion
	}
	return n * per
}

type sessionDeps struct {
	loader    QuestionLoader
	reporter  Reporter
	journal   Journal
	countdown Countdown
	log       logrus.FieldLogger
	now       func() time.Time
}

// Session is one quiz attempt: Loading -> InProgress -> Completed, or Failed.
// It owns its questions and countdown; callers only read snapshots and send intents.
type Session struct {
	id    string
	token string
	count int
	cfg   SessionConfig
	deps  sessionDeps
	log   logrus.FieldLogger

	mu          sync.Mutex
	status      domain.Status
	questions   []domain.Question
	resultID    string
	current     int
	remaining   int
	result      *domain.Result
	failure     error
	submission  domain.SubmissionState
	submitted   chan struct{}
	reporting   bool
	closed      bool
	cancelLoad  context.CancelFunc
	updatedAt   time.Time
	subscribers map[chan domain.Snapshot]struct{}
}

func newSession(token string, count int, cfg SessionConfig, deps sessionDeps) *Session {
	if deps.now == nil {
		deps.now = time.Now
	}
	id := uuid.NewString()
	return &Session{
		id:          id,
		token:       token,
		count:       count,
		cfg:         cfg,
		deps:        deps,
		log:         deps.log.WithField("session_id", id),
		status:      domain.StatusLoading,
		submitted:   make(chan struct{}),
		updatedAt:   deps.now(),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

// ID is the session instance identity; a retry always gets a new one.
func (s *Session) ID() string { return s.id }

// Count is the requested number of questions.
func (s *Session) Count() int { return s.count }

func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) ResultID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultID
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Err returns the failure that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Questions returns a copy of the question list.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// SubmissionDone is closed once the single post-completion report attempt has
// finished, or on Close when the session never completed.
func (s *Session) SubmissionDone() <-chan struct{} {
	return s.submitted
}

// start loads the questions and arms the countdown. A response that arrives
// after Close is discarded.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.mu.Unlock()
	defer cancel()

	set, err := s.deps.loader.Load(loadCtx, s.token, s.count)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLoad = nil
	if s.closed {
		s.log.Debug("discarding load response for closed session")
		return domain.ErrSessionClosed
	}
	if err != nil {
		s.status = domain.StatusFailed
		s.failure = err
		s.log.WithError(err).Warn("quiz load failed")
		s.broadcastLocked()
		return err
	}

	s.questions = set.Questions
	s.resultID = set.ResultID
	s.current = 0
	s.remaining = s.cfg.Budget(len(set.Questions))
	s.status = domain.StatusInProgress
	s.log = s.log.WithField("result_id", set.ResultID)
	s.deps.countdown.Start(s.remaining, timer.Events{
		OnTick:   s.onTick,
		OnExpire: s.onExpire,
	})
	s.log.WithFields(logrus.Fields{
		"questions": len(set.Questions),
		"budget":    s.remaining,
	}).Info("quiz started")
	s.broadcastLocked()
	return nil
}

// Answer records option for the current question.
func (s *Session) Answer(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(s.current, option)
}

// RecordAnswer records option for the question at index, overwriting any
// earlier answer. option may be the option text or its letter.
func (s *Session) RecordAnswer(index int, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(index, option)
}

func (s *Session) recordLocked(index int, option string) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.status != domain.StatusInProgress {
		return domain.ErrNotInProgress
	}
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionOutOfRange
	}

	q := &s.questions[index]
	if !q.HasOption(option) {
		byLetter, ok := q.OptionByLetter(option)
		if !ok {
			return domain.ErrInvalidOption
		}
		option = byLetter
	}
	q.UserAnswer = option
	q.Answered = true
	s.broadcastLocked()
	return nil
}

// Navigate moves by step, clamped to the question range, and returns the new index.
func (s *Session) Navigate(step int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(s.current + step)
}

// Jump moves directly to index, clamped to the question range.
func (s *Session) Jump(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(index)
}

// moveLocked works in progress and for review after completion.
func (s *Session) moveLocked(target int) int {
	if s.closed || len(s.questions) == 0 {
		return s.current
	}
	if target < 0 {
		target = 0
	}
	if last := len(s.questions) - 1; target > last {
		target = last
	}
	if target != s.current {
		s.current = target
		s.broadcastLocked()
	}
	return s.current
}

// Submit completes the attempt. Repeated calls return the first result.
func (s *Session) Submit() (domain.Result, error) {
	return s.complete(domain.ReasonSubmitted)
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != domain.StatusInProgress {
		return
	}
	s.remaining = remaining
	s.broadcastLocked()
}

func (s *Session) onExpire() {
	if _, err := s.complete(domain.ReasonTimeout); err != nil {
		s.log.WithError(err).Debug("expiry ignored")
	}
}

// complete is the single completion path for submit and expiry. The status
// check under the lock makes the first caller win; later callers get the
// stored result.
func (s *Session) complete(reason domain.CompletionReason) (domain.Result, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return domain.Result{}, domain.ErrSessionClosed
	case s.status == domain.StatusLoading:
		s.mu.Unlock()
		return domain.Result{}, domain.ErrNotInProgress
	case s.status != domain.StatusInProgress:
		res := domain.Result{}
		err := s.failure
		if s.result != nil {
			res = *s.result
		} else if err == nil {
			err = domain.ErrNotInProgress
		}
		s.mu.Unlock()
		return res, err
	}

	s.deps.countdown.Stop()
	if reason == domain.ReasonTimeout {
		s.remaining = 0
	}
	res := BuildResult(s.questions, reason)
	s.result = &res

	attempt := domain.Attempt{
		SessionID:   s.id,
		ResultID:    s.resultID,
		Score:       res.Score,
		Total:       res.Total,
		Reason:      reason,
		CompletedAt: s.deps.now(),
	}
	if s.resultID == "" {
		s.status = domain.StatusFailed
		s.failure = domain.ErrMissingResultID
		s.submission = domain.SubmissionSkipped
	} else {
		s.status = domain.StatusCompleted
		s.submission = domain.SubmissionPending
	}
	s.log.WithFields(logrus.Fields{
		"score":  res.Score,
		"total":  res.Total,
		"reason": reason,
	}).Info("quiz completed")
	s.reporting = true
	s.broadcastLocked()
	s.mu.Unlock()

	go s.report(attempt)
	return res, nil
}

// report makes the one best-effort submission and journals the outcome.
// Its result never changes the completed status.
func (s *Session) report(attempt domain.Attempt) {
	defer close(s.submitted)

	state := domain.SubmissionSkipped
	var err error
	if attempt.ResultID != "" {
		err = s.deps.reporter.Submit(context.Background(), s.token, attempt.ResultID, attempt.Score)
		state = domain.SubmissionSent
		if err != nil {
			state = domain.SubmissionFailed
		}
	} else {
		err = &domain.SubmissionError{Score: attempt.Score, Err: domain.ErrMissingResultID}
	}

	s.mu.Lock()
	s.submission = state
	if !s.closed {
		s.broadcastLocked()
	}
	s.mu.Unlock()

	attempt.Submission = state
	if err != nil {
		attempt.Error = err.Error()
	}
	if s.deps.journal == nil {
		return
	}
	if jerr := s.deps.journal.Record(context.Background(), attempt); jerr != nil {
		s.log.WithError(jerr).Warn("journal attempt failed")
	}
}

// Close abandons the session: the countdown stops, an in-flight load is
// cancelled and its response discarded, and subscribers are released.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if !s.reporting {
		close(s.submitted)
	}
	s.deps.countdown.Stop()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	s.updatedAt = s.deps.now()
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: replace the oldest pending snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:  s.id,
		Status:     s.status,
		Count:      s.count,
		Index:      s.current,
		Total:      len(s.questions),
		Remaining:  s.remaining,
		Answered:   make(map[int]string),
		Submission: s.submission,
		UpdatedAt:  s.updatedAt,
	}
	for i, q := range s.questions {
		if q.Answered {
			snap.Answered[i] = q.UserAnswer
		}
	}
	if s.current < len(s.questions) {
		q := s.questions[s.current]
		snap.Question = &domain.QuestionView{
			Index:      s.current,
			ID:         q.ID,
			Text:       q.Text,
			Choices:    q.Choices(),
			UserAnswer: q.UserAnswer,
		}
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	if s.failure != nil {
		snap.Error = s.failure.Error()
	}
	return snap
}

// Score counts questions whose recorded answer equals the resolved correct option.
func Score(questions []domain.Question) int {
	score := 0
	for _, q := range questions {
		if q.IsCorrect() {
			score++
		}
	}
	return score
}

// BuildResult shapes the review screen. Unscorable questions stay in the total.
func BuildResult(questions []domain.Question, reason domain.CompletionReason) domain.Result {
	res := domain.Result{
		Score:  Score(questions),
		Total:  len(questions),
		Reason: reason,
		Items:  make([]domain.ReviewItem, 0, len(questions)),
	}
	for i, q := range questions {
		if !q.Answered {
			res.Unanswered++
		}
		if !q.Scorable() {
			res.Unscorable++
		}
		res.Items = append(res.Items, domain.ReviewItem{
			Index:         i,
			QuestionID:    q.ID,
			Text:          q.Text,
			UserAnswer:    q.UserAnswer,
			CorrectOption: q.CorrectOption,
			Answered:      q.Answered,
			Correct:       q.IsCorrect(),
		})
	}
	if res.Total > 0 {
		res.Percent = math.Round(float64(res.Score)/float64(res.Total)*10000) / 100
	}
	return res
}
