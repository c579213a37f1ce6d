package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// OptionLetters maps option positions to the single-letter codes used on the wire.
var OptionLetters = [4]string{"A", "B", "C", "D"}

// Status is the lifecycle state of a quiz session.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CompletionReason records what ended a quiz attempt.
type CompletionReason string

const (
	ReasonSubmitted CompletionReason = "submitted"
	ReasonTimeout   CompletionReason = "timeout"
)

// SubmissionState tracks the single best-effort score report of a session.
type SubmissionState string

const (
	SubmissionNone    SubmissionState = ""
	SubmissionPending SubmissionState = "pending"
	SubmissionSent    SubmissionState = "sent"
	SubmissionFailed  SubmissionState = "failed"
	SubmissionSkipped SubmissionState = "skipped"
)

// WireID accepts both JSON strings and numbers as an identifier.
type WireID string

func (id *WireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = WireID(n.String())
	return nil
}

// WireQuestion is a raw question record as returned by the remote API.
type WireQuestion struct {
	ID            WireID `json:"id"`
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
}

// Options returns the lettered option fields in A..D order.
func (w WireQuestion) Options() [4]string {
	return [4]string{w.OptionA, w.OptionB, w.OptionC, w.OptionD}
}

// QuestionBundle is the response of the question retrieval call.
type QuestionBundle struct {
	Questions []WireQuestion `json:"questions"`
	ResultID  WireID         `json:"result_id"`
}

// Question is the session-local form of a wire record. Options stay aligned
// with their letters; an empty string marks a missing option.
type Question struct {
	ID            string
	Text          string
	Options       [4]string
	CorrectOption string // empty when the correct-answer code could not be resolved
	UserAnswer    string
	Answered      bool
}

// Choice is a displayable option.
type Choice struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Choices lists the non-empty options in display order.
func (q Question) Choices() []Choice {
	choices := make([]Choice, 0, len(q.Options))
	for i, opt := range q.Options {
		if opt == "" {
			continue
		}
		choices = append(choices, Choice{Letter: OptionLetters[i], Text: opt})
	}
	return choices
}

// HasOption reports whether option is one of the question's present options.
func (q Question) HasOption(option string) bool {
	if option == "" {
		return false
	}
	for _, opt := range q.Options {
		if opt == option {
			return true
		}
	}
	return false
}

// OptionByLetter resolves a letter code (case-insensitive) to its option text.
func (q Question) OptionByLetter(letter string) (string, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	for i, l := range OptionLetters {
		if l == letter && q.Options[i] != "" {
			return q.Options[i], true
		}
	}
	return "", false
}

// Scorable reports whether a correct option was resolved at load time.
func (q Question) Scorable() bool {
	return q.CorrectOption != ""
}

// IsCorrect reports whether the recorded answer matches the correct option.
// Unanswered and unscorable questions are never correct.
func (q Question) IsCorrect() bool {
	return q.Answered && q.Scorable() && q.UserAnswer == q.CorrectOption
}

// QuestionView is what the presentation layer renders for the current question.
type QuestionView struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Choices    []Choice `json:"choices"`
	UserAnswer string   `json:"userAnswer,omitempty"`
}

// ReviewItem is one row of the results/review screen.
type ReviewItem struct {
	Index         int    `json:"index"`
	QuestionID    string `json:"questionId"`
	Text          string `json:"text"`
	UserAnswer    string `json:"userAnswer,omitempty"`
	CorrectOption string `json:"correctOption,omitempty"`
	Answered      bool   `json:"answered"`
	Correct       bool   `json:"correct"`
}

// Result summarizes a completed attempt.
type Result struct {
	Score      int              `json:"score"`
	Total      int              `json:"total"`
	Percent    float64          `json:"percent"`
	Unanswered int              `json:"unanswered"`
	Unscorable int              `json:"unscorable"`
	Reason     CompletionReason `json:"reason"`
	Items      []ReviewItem     `json:"items"`
}

// Snapshot is an immutable view of a session for rendering.
type Snapshot struct {
	SessionID  string          `json:"sessionId"`
	Status     Status          `json:"status"`
	Count      int             `json:"count"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Remaining  int             `json:"remainingSeconds"`
	Answered   map[int]string  `json:"answered"`
	Question   *QuestionView   `json:"question,omitempty"`
	Result     *Result         `json:"result,omitempty"`
	Submission SubmissionState `json:"submission,omitempty"`
	Error      string          `json:"error,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Attempt is what gets journaled for diagnostics after a completion.
type Attempt struct {
	SessionID   string
	ResultID    string
	Score       int
	Total       int
	Reason      CompletionReason
	Submission  SubmissionState
	Error       string
	CompletedAt time.Time
}

// Pack is a preset question count offered on the dashboard.
type Pack struct {
	Count int    `json:"count" yaml:"count"`
	Title string `json:"title" yaml:"title"`
}

// Profile is the dashboard view of the signed-in user.
type Profile struct {
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	LastScore int    `json:"lastScore"`
}
