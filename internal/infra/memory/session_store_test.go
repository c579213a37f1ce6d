package memory

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/app"
	"quiz-client/internal/domain"
)

type oneQuestionSource struct{}

func (oneQuestionSource) FetchQuestionBundle(_ context.Context, _ string, _ int) (domain.QuestionBundle, error) {
	return domain.QuestionBundle{
		ResultID: "r-1",
		Questions: []domain.WireQuestion{
			{ID: "q1", Text: "2 + 2?", OptionA: "3", OptionB: "4", CorrectAnswer: "B"},
		},
	}, nil
}

type nopReporter struct{}

func (nopReporter) Submit(context.Context, string, string, int) error { return nil }

func TestSessionStoreLifecycle(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := NewSessionStore()
	service := app.NewQuizService(store, app.NewLoader(oneQuestionSource{}, log), nopReporter{})

	session, err := service.Start(context.Background(), "token", 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	if got, ok := store.Get(session.ID()); !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}

	store.Delete(session.ID())
	if _, ok := store.Get(session.ID()); ok {
		t.Fatalf("expected session removed")
	}
}
