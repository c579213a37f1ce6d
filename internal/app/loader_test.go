package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-client/internal/domain"
)

type fixedSource struct {
	bundle domain.QuestionBundle
	err    error
	calls  int
}

func (s *fixedSource) FetchQuestionBundle(context.Context, string, int) (domain.QuestionBundle, error) {
	s.calls++
	return s.bundle, s.err
}

func wireQuestions(n int) []domain.WireQuestion {
	out := make([]domain.WireQuestion, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.WireQuestion{
			ID:            domain.WireID(string(rune('a' + i))),
			Text:          "  Capital of France?  ",
			OptionA:       " Paris ",
			OptionB:       "Lyon",
			OptionC:       "Nice",
			CorrectAnswer: "a",
		})
	}
	return out
}

func TestLoadNormalizesBundle(t *testing.T) {
	source := &fixedSource{bundle: domain.QuestionBundle{Questions: wireQuestions(3), ResultID: "77"}}
	loader := NewLoader(source, quietLogger())

	set, err := loader.Load(context.Background(), "token", 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if set.ResultID != "77" || len(set.Questions) != 3 {
		t.Fatalf("unexpected set %+v", set)
	}
	q := set.Questions[0]
	if q.Text != "Capital of France?" || q.Options[0] != "Paris" || q.CorrectOption != "Paris" {
		t.Fatalf("unexpected normalized question %+v", q)
	}
	if q.Answered || q.UserAnswer != "" {
		t.Fatalf("expected fresh question unanswered")
	}
}

func TestLoadTruncatesOversizedBundle(t *testing.T) {
	source := &fixedSource{bundle: domain.QuestionBundle{Questions: wireQuestions(5), ResultID: "r"}}
	set, err := NewLoader(source, quietLogger()).Load(context.Background(), "token", 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set.Questions))
	}
}

func TestLoadFailures(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name    string
		token   string
		count   int
		source  *fixedSource
		reason  domain.LoadReason
		fetches int
	}{
		{name: "zero count", token: "t", count: 0, source: &fixedSource{}, reason: domain.LoadInvalidCount},
		{name: "no token", token: "", count: 1, source: &fixedSource{}, reason: domain.LoadUnauthenticated},
		{name: "expired jwt", token: expired, count: 1, source: &fixedSource{}, reason: domain.LoadUnauthenticated},
		{name: "rejected by api", token: "t", count: 1, source: &fixedSource{err: domain.ErrUnauthorized}, reason: domain.LoadUnauthenticated, fetches: 1},
		{name: "network", token: "t", count: 1, source: &fixedSource{err: errors.New("dial tcp: refused")}, reason: domain.LoadNetwork, fetches: 1},
		{name: "empty", token: "t", count: 2, source: &fixedSource{bundle: domain.QuestionBundle{ResultID: "r"}}, reason: domain.LoadEmpty, fetches: 1},
		{name: "short", token: "t", count: 4, source: &fixedSource{bundle: domain.QuestionBundle{Questions: wireQuestions(2), ResultID: "r"}}, reason: domain.LoadShort, fetches: 1},
		{name: "no result id", token: "t", count: 1, source: &fixedSource{bundle: domain.QuestionBundle{Questions: wireQuestions(1)}}, reason: domain.LoadNoResultID, fetches: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader(tc.source, quietLogger()).Load(context.Background(), tc.token, tc.count)
			var le *domain.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected LoadError, got %v", err)
			}
			if le.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s (%v)", tc.reason, le.Reason, err)
			}
			if tc.source.calls != tc.fetches {
				t.Fatalf("expected %d fetches, got %d", tc.fetches, tc.source.calls)
			}
		})
	}
}

func TestNormalizeUnresolvableAnswer(t *testing.T) {
	q, err := Normalize(domain.WireQuestion{ID: "9", Text: "t", OptionA: "x", OptionB: "y", CorrectAnswer: "D"})
	if !errors.Is(err, domain.ErrUnresolvableAnswer) {
		t.Fatalf("expected unresolvable answer, got %v", err)
	}
	if q.ID != "9" || q.CorrectOption != "" || q.Scorable() {
		t.Fatalf("expected unscorable question, got %+v", q)
	}

	if _, err := Normalize(domain.WireQuestion{OptionA: "x", CorrectAnswer: "E"}); !errors.Is(err, domain.ErrUnresolvableAnswer) {
		t.Fatalf("expected unknown letter to be unresolvable, got %v", err)
	}
}

func TestParseCount(t *testing.T) {
	cases := map[string]struct {
		want int
		ok   bool
	}{
		"20":   {want: 20, ok: true},
		" 5 ":  {want: 5, ok: true},
		"":     {},
		"0":    {},
		"-1":   {},
		"ten":  {},
		"2.5":  {},
		"null": {},
	}
	for raw, tc := range cases {
		got, err := ParseCount(raw)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseCount(%q) = %d, %v; want %d", raw, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, domain.ErrInvalidCount) {
			t.Fatalf("ParseCount(%q) expected invalid count, got %d, %v", raw, got, err)
		}
	}
}
