package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-client/internal/domain"
)

type sinkFunc func(ctx context.Context, token, resultID string, score int) error

func (f sinkFunc) SubmitScore(ctx context.Context, token, resultID string, score int) error {
	return f(ctx, token, resultID, score)
}

func TestScoreReporterSubmitsOnce(t *testing.T) {
	calls := 0
	sink := sinkFunc(func(ctx context.Context, token, resultID string, score int) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected submit deadline")
		}
		if token != "tok" || resultID != "r-1" || score != 4 {
			t.Fatalf("unexpected submission %s %s %d", token, resultID, score)
		}
		return nil
	})

	if err := NewScoreReporter(sink, time.Second, quietLogger()).Submit(context.Background(), "tok", "r-1", 4); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestScoreReporterWrapsFailure(t *testing.T) {
	boom := errors.New("503 from backend")
	calls := 0
	sink := sinkFunc(func(context.Context, string, string, int) error {
		calls++
		return boom
	})

	err := NewScoreReporter(sink, 0, quietLogger()).Submit(context.Background(), "tok", "r-1", 2)
	var serr *domain.SubmissionError
	if !errors.As(err, &serr) || !errors.Is(err, boom) {
		t.Fatalf("expected submission error wrapping cause, got %v", err)
	}
	if serr.ResultID != "r-1" || serr.Score != 2 {
		t.Fatalf("unexpected error fields %+v", serr)
	}
	if calls != 1 {
		t.Fatalf("expected no retry, got %d calls", calls)
	}
}

func TestScoreReporterNeedsResultID(t *testing.T) {
	sink := sinkFunc(func(context.Context, string, string, int) error {
		t.Fatalf("sink must not be called without a result id")
		return nil
	})
	err := NewScoreReporter(sink, 0, quietLogger()).Submit(context.Background(), "tok", "", 1)
	if !errors.Is(err, domain.ErrMissingResultID) {
		t.Fatalf("expected missing result id, got %v", err)
	}
}
