package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/domain"
)

// ScoreSink persists a score on the backend.
type ScoreSink interface {
	SubmitScore(ctx context.Context, token, resultID string, score int) error
}

// Journal records completed attempts for diagnostics.
type Journal interface {
	Record(ctx context.Context, attempt domain.Attempt) error
}

// ScoreReporter makes exactly one submission attempt per call; it never retries.
type ScoreReporter struct {
	sink    ScoreSink
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewScoreReporter(sink ScoreSink, timeout time.Duration, log logrus.FieldLogger) *ScoreReporter {
	return &ScoreReporter{sink: sink, timeout: timeout, log: log}
}

// Submit posts score for resultID. Failures come back as *domain.SubmissionError.
func (r *ScoreReporter) Submit(ctx context.Context, token, resultID string, score int) error {
	log := r.log.WithFields(logrus.Fields{
		"result_id": resultID,
		"score":     score,
	})
	if resultID == "" {
		err := &domain.SubmissionError{Score: score, Err: domain.ErrMissingResultID}
		log.WithError(err).Warn("score not submitted")
		return err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.sink.SubmitScore(ctx, token, resultID, score); err != nil {
		serr := &domain.SubmissionError{ResultID: resultID, Score: score, Err: err}
		log.WithError(err).Warn("score submission failed")
		return serr
	}
	log.Info("score submitted")
	return nil
}

// LogJournal writes attempts to the log when no database is configured.
type LogJournal struct {
	log logrus.FieldLogger
}

func NewLogJournal(log logrus.FieldLogger) *LogJournal {
	return &LogJournal{log: log}
}

func (j *LogJournal) Record(_ context.Context, attempt domain.Attempt) error {
	j.log.WithFields(logrus.Fields{
		"session_id": attempt.SessionID,
		"result_id":  attempt.ResultID,
		"score":      attempt.Score,
		"total":      attempt.Total,
		"reason":     attempt.Reason,
		"submission": attempt.Submission,
		"error":      attempt.Error,
	}).Info("attempt completed")
	return nil
}
