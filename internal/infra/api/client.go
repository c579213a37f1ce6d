// Package api talks to the remote quiz backend over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/domain"
)

// Client calls the quiz backend. Every call takes the caller's bearer token explicitly.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        logrus.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type submitRequest struct {
	ResultID string `json:"result_id"`
	Score    int    `json:"score"`
}

type profileResponse struct {
	User struct {
		Fullname string          `json:"fullname"`
		Email    string          `json:"email"`
		IsActive json.RawMessage `json:"is_active"`
	} `json:"user"`
	LastScore int `json:"last_score"`
}

// FetchQuestionBundle retrieves count questions and a fresh result id.
func (c *Client) FetchQuestionBundle(ctx context.Context, token string, count int) (domain.QuestionBundle, error) {
	endpoint := fmt.Sprintf("%s/quiz/questions?count=%s", c.BaseURL, url.QueryEscape(strconv.Itoa(count)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.QuestionBundle{}, fmt.Errorf("build question request: %w", err)
	}
	setHeaders(req, token)

	var bundle domain.QuestionBundle
	if err := c.do(req, "fetch questions", &bundle); err != nil {
		return domain.QuestionBundle{}, err
	}
	return bundle, nil
}

// SubmitScore persists the score for a result id.
func (c *Client) SubmitScore(ctx context.Context, token, resultID string, score int) error {
	payload, err := json.Marshal(submitRequest{ResultID: resultID, Score: score})
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/quiz/submit", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "submit score", nil)
}

// FetchProfile loads the dashboard profile (name, activation flag, last score).
func (c *Client) FetchProfile(ctx context.Context, token string) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/user/info", nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("build profile request: %w", err)
	}
	setHeaders(req, token)

	var resp profileResponse
	if err := c.do(req, "fetch profile", &resp); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		Fullname:  resp.User.Fullname,
		Email:     resp.User.Email,
		Active:    truthy(resp.User.IsActive),
		LastScore: resp.LastScore,
	}, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.log.WithField("timeout", c.HTTPClient.Timeout.String()).Warnf("%s timed out", op)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w (%s)", op, domain.ErrUnauthorized, resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.WithFields(logrus.Fields{
			"status": resp.Status,
			"body":   string(body),
		}).Warnf("%s returned non-success status", op)
		return fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// truthy accepts the backend's 0/1 or boolean activation flags.
func truthy(raw json.RawMessage) bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	switch strings.ToLower(s) {
	case "1", "true":
		return true
	}
	return false
}
