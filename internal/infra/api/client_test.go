package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/domain"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestFetchQuestionBundle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quiz/questions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("count"); got != "2" {
			t.Errorf("expected count=2, got %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Write([]byte(`{"result_id": 77, "questions": [
			{"id": 1, "text": "Capital of France?", "option_a": "London", "option_b": "Paris", "option_c": "Rome", "option_d": "Madrid", "correct_answer": "B"},
			{"id": "q-2", "text": "Red planet?", "option_a": "Mars", "option_b": "Venus", "correct_answer": "A"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second, quietLogger())
	bundle, err := client.FetchQuestionBundle(context.Background(), "tok", 2)
	if err != nil {
		t.Fatalf("fetch bundle: %v", err)
	}
	if bundle.ResultID != "77" {
		t.Fatalf("expected numeric result id decoded as 77, got %q", bundle.ResultID)
	}
	if len(bundle.Questions) != 2 || bundle.Questions[0].ID != "1" || bundle.Questions[1].ID != "q-2" {
		t.Fatalf("unexpected questions %+v", bundle.Questions)
	}
	if bundle.Questions[1].OptionC != "" {
		t.Fatalf("expected missing option to stay empty")
	}
}

func TestRejectedTokenMapsToUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, quietLogger())
	_, err := client.FetchQuestionBundle(context.Background(), "stale", 5)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := client.FetchProfile(context.Background(), "stale"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized profile, got %v", err)
	}
}

func TestSubmitScore(t *testing.T) {
	var got submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/quiz/submit" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, quietLogger())
	if err := client.SubmitScore(context.Background(), "tok", "r-1", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.ResultID != "r-1" || got.Score != 2 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSubmitScoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, quietLogger())
	err := client.SubmitScore(context.Background(), "tok", "r-1", 2)
	if err == nil || errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected plain status error, got %v", err)
	}
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user": {"fullname": "Lan Nguyen", "email": "lan@example.com", "is_active": 0}, "last_score": 14}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, quietLogger())
	profile, err := client.FetchProfile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Fullname != "Lan Nguyen" || profile.Active || profile.LastScore != 14 {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
