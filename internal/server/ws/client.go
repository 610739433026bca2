package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/ratelimit"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// UserChecker resolves the user id a connection claims.
type UserChecker interface {
	UserExists(ctx context.Context, id int) (bool, error)
}

type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  int
	IP      string
	Limiter *ratelimit.RateLimiter
	Users   UserChecker
	Log     *zap.Logger

	closed bool // owned by the hub goroutine
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessage)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			c.Log.Debug("bad ws frame", zap.Error(err))
			continue
		}

		c.ProcessMessage(wsMsg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ProcessMessage handles the only client frame of the event stream: auth.
// Once registered the hub owns Send, so nothing else is written from here.
func (c *Client) ProcessMessage(msg models.WSMessage) {
	if msg.Type != "auth" || c.UserID != 0 {
		return
	}
	if !c.Limiter.CanAuth(c.IP) {
		c.sendError("Too many login attempts. Please wait a minute.")
		return
	}

	var payload models.WSAuthPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.UserID <= 0 {
		c.sendError("invalid auth payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := c.Users.UserExists(ctx, payload.UserID)
	if err != nil || !ok {
		c.sendError("unknown user")
		return
	}

	c.sendJSON(map[string]any{"type": "auth_success", "user_id": payload.UserID})
	c.UserID = payload.UserID
	if !c.Hub.join(c) {
		c.Conn.Close()
	}
}

func (c *Client) sendJSON(v any) {
	data, _ := json.Marshal(v)
	c.Send <- data
}

func (c *Client) sendError(errStr string) {
	c.sendJSON(map[string]string{
		"type":  "auth_error",
		"error": errStr,
	})
}
