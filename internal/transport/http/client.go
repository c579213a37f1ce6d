package http

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"quiz-client/internal/app"
	"quiz-client/internal/domain"
)

// wsClient is the per-connection presentation state. It holds at most one
// session and tags every asynchronous start with a generation so a response
// for a superseded request is thrown away.
type wsClient struct {
	h           *WSHandler
	ctx         context.Context
	userID      string
	token       string
	storedToken bool
	log         logrus.FieldLogger

	send     chan outboundMessage[any]
	done     chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	generation  uint64
	session     *app.Session
	cancelLoad  context.CancelFunc
	unsubscribe func()
}

func newClient(ctx context.Context, h *WSHandler, log logrus.FieldLogger) *wsClient {
	return &wsClient{
		h:    h,
		ctx:  ctx,
		log:  log,
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
}

func (c *wsClient) enqueue(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.done:
	}
}

func (c *wsClient) fail(err error) {
	payload := errorPayload{Message: err.Error()}
	var le *domain.LoadError
	if errors.As(err, &le) {
		payload.Reason = string(le.Reason)
	}
	c.enqueue("error", payload)
}

func (c *wsClient) redirect(to string) {
	c.enqueue("redirect", redirectPayload{To: to})
}

// unauthorized drops a stored token the backend rejected, so a reconnect
// does not reuse it, and sends the client to login.
func (c *wsClient) unauthorized() {
	if c.storedToken && c.h.tokens != nil {
		c.h.forgetToken(context.WithoutCancel(c.ctx), c.userID, c.log)
	}
	c.redirect(redirectLogin)
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// greet sends the dashboard data. It returns false when the client was
// redirected to login.
func (c *wsClient) greet() bool {
	c.enqueue("packs", c.h.packs)
	if c.h.profiles == nil {
		return true
	}

	profile, err := c.h.profiles.FetchProfile(c.ctx, c.token)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.unauthorized()
		return false
	case err != nil:
		c.log.WithError(err).Warn("profile unavailable")
		c.enqueue("notice", noticePayload{Message: "profile unavailable"})
		return true
	}
	c.enqueue("profile", profile)
	if !profile.Active {
		c.enqueue("notice", noticePayload{Message: "your account is not active yet"})
	}
	return true
}

// handle dispatches one inbound message. It returns false when the
// connection should end.
func (c *wsClient) handle(msg inboundMessage) bool {
	switch msg.Type {
	case "start":
		var p startPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.enqueue("error", errorPayload{Message: "invalid start payload"})
			return true
		}
		count, err := app.ParseCount(strings.Trim(string(p.Count), `"`))
		if err != nil {
			c.fail(domain.NewLoadError(err))
			c.redirect(redirectDashboard)
			return true
		}
		c.start(count)
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.enqueue("error", errorPayload{Message: "invalid answer payload"})
			return true
		}
		c.withSession(func(s *app.Session) error {
			if p.Index != nil {
				return s.RecordAnswer(*p.Index, p.Option)
			}
			return s.Answer(p.Option)
		})
	case "navigate":
		var p navigatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.enqueue("error", errorPayload{Message: "invalid navigate payload"})
			return true
		}
		c.withSession(func(s *app.Session) error {
			s.Navigate(p.Step)
			return nil
		})
	case "jump":
		var p jumpPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.enqueue("error", errorPayload{Message: "invalid jump payload"})
			return true
		}
		c.withSession(func(s *app.Session) error {
			s.Jump(p.Index)
			return nil
		})
	case "submit":
		c.withSession(func(s *app.Session) error {
			_, err := s.Submit()
			return err
		})
	case "retry":
		c.retry()
	case "leave":
		c.mu.Lock()
		c.generation++
		c.detachLocked(true)
		c.mu.Unlock()
		c.redirect(redirectDashboard)
	default:
		c.enqueue("error", errorPayload{Message: "unsupported message type"})
	}
	return true
}

func (c *wsClient) withSession(fn func(*app.Session) error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		c.enqueue("error", errorPayload{Message: "no active quiz"})
		return
	}
	if err := fn(s); err != nil {
		c.fail(err)
	}
}

func (c *wsClient) start(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.generation++
	c.detachLocked(true)
	c.launchLocked(func(ctx context.Context) (*app.Session, error) {
		return c.h.service.Start(ctx, c.token, count)
	})
}

func (c *wsClient) retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.session == nil {
		c.enqueue("error", errorPayload{Message: "no quiz to retry"})
		return
	}
	oldID := c.session.ID()
	c.generation++
	// Retry abandons the old session itself.
	c.detachLocked(false)
	c.launchLocked(func(ctx context.Context) (*app.Session, error) {
		return c.h.service.Retry(ctx, oldID)
	})
}

func (c *wsClient) launchLocked(begin func(context.Context) (*app.Session, error)) {
	gen := c.generation
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelLoad = cancel
	c.workers.Add(1)

	go func() {
		defer c.workers.Done()
		defer cancel()

		session, err := begin(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.generation {
			if session != nil {
				c.h.service.Abandon(session.ID())
			}
			c.log.Debug("discarding superseded quiz start")
			return
		}
		c.cancelLoad = nil
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				c.unauthorized()
				return
			}
			c.fail(err)
			return
		}
		c.attachLocked(session)
	}()
}

func (c *wsClient) attachLocked(s *app.Session) {
	c.session = s
	updates, unsubscribe := s.Subscribe()
	c.unsubscribe = unsubscribe
	c.workers.Add(1)

	go func() {
		defer c.workers.Done()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				c.enqueue("state", snap)
			case <-c.done:
				return
			}
		}
	}()
}

// detachLocked drops the current session and any in-flight load.
func (c *wsClient) detachLocked(abandon bool) {
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.session != nil && abandon {
		c.h.service.Abandon(c.session.ID())
	}
	c.session = nil
}

// shutdown abandons the session and waits for every producer before
// closing the send channel.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.detachLocked(true)
	c.mu.Unlock()

	c.stop()
	c.workers.Wait()
	close(c.send)
}
