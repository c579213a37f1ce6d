package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/auth"
	"quiz-client/internal/domain"
)

// QuestionSource fetches raw question bundles from the backend.
type QuestionSource interface {
	FetchQuestionBundle(ctx context.Context, token string, count int) (domain.QuestionBundle, error)
}

// QuestionSet is a normalized bundle ready for a session.
type QuestionSet struct {
	Questions []domain.Question
	ResultID  string
}

// Loader fetches and normalizes question bundles. Failures are always *domain.LoadError.
type Loader struct {
	source QuestionSource
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewLoader(source QuestionSource, log logrus.FieldLogger) *Loader {
	return &Loader{source: source, log: log, now: time.Now}
}

// Load requests count questions for the holder of token.
func (l *Loader) Load(ctx context.Context, token string, count int) (QuestionSet, error) {
	if count <= 0 {
		return QuestionSet{}, domain.NewLoadError(domain.ErrInvalidCount)
	}
	if err := auth.CheckToken(token, l.now()); err != nil {
		return QuestionSet{}, domain.NewLoadError(err)
	}

	bundle, err := l.source.FetchQuestionBundle(ctx, token, count)
	if err != nil {
		return QuestionSet{}, domain.NewLoadError(err)
	}
	if len(bundle.Questions) == 0 {
		return QuestionSet{}, domain.NewLoadError(domain.ErrEmptyBundle)
	}
	if len(bundle.Questions) < count {
		return QuestionSet{}, domain.NewLoadError(fmt.Errorf("%w: got %d of %d", domain.ErrShortBundle, len(bundle.Questions), count))
	}
	resultID := strings.TrimSpace(string(bundle.ResultID))
	if resultID == "" {
		return QuestionSet{}, domain.NewLoadError(domain.ErrMissingResultID)
	}

	questions := make([]domain.Question, 0, count)
	for _, raw := range bundle.Questions[:count] {
		q, err := Normalize(raw)
		if err != nil {
			l.log.WithError(err).WithFields(logrus.Fields{
				"question_id": q.ID,
				"code":        raw.CorrectAnswer,
			}).Warn("question has no resolvable correct option")
		}
		questions = append(questions, q)
	}
	return QuestionSet{Questions: questions, ResultID: resultID}, nil
}

// Normalize converts a wire record into a Question. A non-nil error means the
// correct option could not be resolved; the question is still returned and
// can never be scored as correct.
func Normalize(raw domain.WireQuestion) (domain.Question, error) {
	q := domain.Question{
		ID:   strings.TrimSpace(string(raw.ID)),
		Text: strings.TrimSpace(raw.Text),
	}
	for i, opt := range raw.Options() {
		q.Options[i] = strings.TrimSpace(opt)
	}
	correct, err := ResolveCorrectOption(q.Options, raw.CorrectAnswer)
	q.CorrectOption = correct
	return q, err
}

// ResolveCorrectOption maps a letter code A..D onto the option at that position.
func ResolveCorrectOption(options [4]string, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, letter := range domain.OptionLetters {
		if letter != code {
			continue
		}
		if options[i] == "" {
			return "", fmt.Errorf("%w: %q points at an empty option", domain.ErrUnresolvableAnswer, code)
		}
		return options[i], nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnresolvableAnswer, code)
}

// ParseCount validates a question count supplied as text, e.g. from a query string.
func ParseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidCount
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidCount, raw)
	}
	return n, nil
}
