package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session id is unknown.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidCount indicates a missing, non-numeric or non-positive question count.
	ErrInvalidCount = errors.New("invalid question count")
	// ErrUnauthorized means the bearer token is absent, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyBundle indicates the backend returned no questions.
	ErrEmptyBundle = errors.New("no questions returned")
	// ErrShortBundle indicates the backend returned fewer questions than requested.
	ErrShortBundle = errors.New("fewer questions returned than requested")
	// ErrMissingResultID indicates the backend did not issue a result identifier.
	ErrMissingResultID = errors.New("missing result id")
	// ErrUnresolvableAnswer indicates a correct-answer code with no matching option.
	ErrUnresolvableAnswer = errors.New("correct answer code does not match an option")
	// ErrInvalidOption indicates an answer that is not one of the question's options.
	ErrInvalidOption = errors.New("option not found")
	// ErrQuestionOutOfRange indicates an answer aimed at a question index that does not exist.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrNotInProgress is returned for answer intents outside the in-progress state.
	ErrNotInProgress = errors.New("quiz session is not in progress")
	// ErrSessionClosed is returned when a session was abandoned while loading.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrTokenNotFound is returned by token stores when no token is held for a user.
	ErrTokenNotFound = errors.New("token not found")
)

// LoadReason classifies why a question bundle could not be obtained.
type LoadReason string

const (
	LoadInvalidCount    LoadReason = "invalid_count"
	LoadUnauthenticated LoadReason = "unauthenticated"
	LoadNetwork         LoadReason = "network"
	LoadEmpty           LoadReason = "empty"
	LoadShort           LoadReason = "short"
	LoadNoResultID      LoadReason = "no_result_id"
)

// LoadError is returned when a session cannot start.
type LoadError struct {
	Reason LoadReason
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load questions (%s): %v", e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError classifies err into a LoadError.
func NewLoadError(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	reason := LoadNetwork
	switch {
	case errors.Is(err, ErrInvalidCount):
		reason = LoadInvalidCount
	case errors.Is(err, ErrUnauthorized):
		reason = LoadUnauthenticated
	case errors.Is(err, ErrEmptyBundle):
		reason = LoadEmpty
	case errors.Is(err, ErrShortBundle):
		reason = LoadShort
	case errors.Is(err, ErrMissingResultID):
		reason = LoadNoResultID
	}
	return &LoadError{Reason: reason, Err: err}
}

// SubmissionError is reported when persisting a score failed after completion.
type SubmissionError struct {
	ResultID string
	Score    int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit score %d for result %s: %v", e.Score, e.ResultID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
