// Package events subscribes to the server's websocket stream and reports
// chats that changed. Polling stays the baseline; events only make refreshes
// arrive sooner.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cloudzz-dev/speakly/internal/models"
)

var ErrAuthRejected = errors.New("event stream rejected credentials")

var errStreamClosed = errors.New("event stream closed")

// URL turns the API base URL into the event stream URL.
func URL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

type Subscriber struct {
	url      string
	userID   int
	onUpdate func(chatID int)
	log      *zap.Logger
	dialer   *websocket.Dialer
}

func NewSubscriber(serverURL string, userID int, onUpdate func(chatID int), log *zap.Logger) (*Subscriber, error) {
	wsURL, err := URL(serverURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		url:      wsURL,
		userID:   userID,
		onUpdate: onUpdate,
		log:      log,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Run keeps a connection open until ctx is done, reconnecting with backoff.
// A rejected auth ends the loop.
func (s *Subscriber) Run(ctx context.Context) error {
	b := newBackOff()
	reconnect := func() error {
		start := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, ErrAuthRejected) {
			return backoff.Permanent(err)
		}
		if time.Since(start) > b.MaxInterval {
			b.Reset()
		}
		if err == nil {
			err = errStreamClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Debug("event stream dropped", zap.Error(err), zap.Duration("retry_in", wait))
	}
	return backoff.RetryNotify(reconnect, backoff.WithContext(b, ctx), notify)
}

// newBackOff retries forever, from one second up to thirty.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, _ := json.Marshal(models.WSAuthPayload{UserID: s.userID})
	if err := conn.WriteJSON(models.WSMessage{Type: "auth", Payload: payload}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame struct {
			Type   string `json:"type"`
			ChatID int    `json:"chat_id"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "auth_success":
			s.log.Debug("event stream authenticated", zap.Int("user_id", s.userID))
		case "auth_error":
			return fmt.Errorf("%w: %s", ErrAuthRejected, frame.Error)
		case models.EventChatUpdated:
			if s.onUpdate != nil {
				s.onUpdate(frame.ChatID)
			}
		}
	}
}
