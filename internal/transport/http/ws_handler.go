package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-client/internal/app"
	"quiz-client/internal/auth"
	"quiz-client/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ProfileSource returns the signed-in user's dashboard profile.
type ProfileSource interface {
	FetchProfile(ctx context.Context, token string) (domain.Profile, error)
}

type WSHandler struct {
	service  *app.QuizService
	tokens   auth.TokenStore
	profiles ProfileSource
	packs    []domain.Pack
	log      logrus.FieldLogger
	now      func() time.Time
	upgrader websocket.Upgrader
}

// NewWSHandler wires the quiz use cases to websocket clients. tokens and
// profiles may be nil.
func NewWSHandler(service *app.QuizService, tokens auth.TokenStore, profiles ProfileSource, packs []domain.Pack, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service:  service,
		tokens:   tokens,
		profiles: profiles,
		packs:    packs,
		log:      log,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	// Count is accepted as a JSON number or string, as it often comes from a query string.
	Count json.RawMessage `json:"count"`
}

type answerPayload struct {
	Index  *int   `json:"index"`
	Option string `json:"option"`
}

type navigatePayload struct {
	Step int `json:"step"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type noticePayload struct {
	Message string `json:"message"`
}

type redirectPayload struct {
	To string `json:"to"`
}

const (
	redirectLogin     = "/login"
	redirectDashboard = "/"
)

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	headerToken := auth.BearerToken(r.Header.Get("Authorization"))
	if userID == "" && headerToken == "" {
		http.Error(w, "missing userId or bearer token", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("user_id", userID)
	c := newClient(r.Context(), h, log)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn)
	}()

	c.userID = userID
	if token, stored, ok := h.resolveToken(r.Context(), userID, headerToken, log); ok {
		c.token = token
		c.storedToken = stored
		if c.greet() {
			c.readPump(conn)
		}
	} else {
		c.redirect(redirectLogin)
	}

	c.shutdown()
	<-writerDone
}

// resolveToken prefers the Authorization header and falls back to the
// TokenStore. stored reports whether the token came from the store. A stored
// token that fails the pre-flight check is cleared.
func (h *WSHandler) resolveToken(ctx context.Context, userID, headerToken string, log logrus.FieldLogger) (token string, stored bool, ok bool) {
	token = headerToken
	if token == "" && h.tokens != nil {
		found, err := h.tokens.Token(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
			log.WithError(err).Warn("token lookup failed")
		}
		token, stored = found, found != ""
	}
	if err := auth.CheckToken(token, h.now()); err != nil {
		log.WithError(err).Info("unauthenticated websocket client")
		if stored {
			h.forgetToken(ctx, userID, log)
		}
		return "", false, false
	}
	return token, stored, true
}

func (h *WSHandler) forgetToken(ctx context.Context, userID string, log logrus.FieldLogger) {
	if err := h.tokens.ClearToken(ctx, userID); err != nil {
		log.WithError(err).Warn("rejected token not cleared")
		return
	}
	log.Info("rejected token cleared")
}

func (c *wsClient) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("ws write error")
				c.stop()
				// keep draining so producers never block on a dead socket
				for range c.send {
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				for range c.send {
				}
				return
			}
		}
	}
}

func (c *wsClient) readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("ws read error")
			}
			return
		}
		if !c.handle(inbound) {
			return
		}
	}
}
