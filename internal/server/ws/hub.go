package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
	"go.uber.org/zap"
)

type delivery struct {
	userIDs []int
	data    []byte
}

// Hub tracks authenticated event connections per user and fans chat events
// out to them. All mutations of the client set happen on the Run goroutine.
type Hub struct {
	clients    map[int]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case d := <-h.deliver:
			h.mu.Lock()
			for _, id := range d.userIDs {
				for client := range h.clients[id] {
					select {
					case client.Send <- d.data:
					default:
						h.log.Warn("dropping slow event client", zap.Int("user_id", id))
						h.remove(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// join and leave give up once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// remove closes the client's outbound queue exactly once. Callers hold mu.
func (h *Hub) remove(client *Client) {
	if set, ok := h.clients[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	if !client.closed {
		client.closed = true
		close(client.Send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.remove(client)
		}
	}
}

// NotifyChat tells every listed user that chatID changed. It never blocks
// the caller; events are dropped when the hub is saturated since clients
// also poll.
func (h *Hub) NotifyChat(userIDs []int, chatID int) {
	if len(userIDs) == 0 {
		return
	}
	data, err := json.Marshal(models.ChatUpdatedEvent{Type: models.EventChatUpdated, ChatID: chatID})
	if err != nil {
		return
	}
	select {
	case h.deliver <- delivery{userIDs: userIDs, data: data}:
	default:
		h.log.Warn("event queue full, dropping chat update", zap.Int("chat_id", chatID))
	}
}

// Connected reports how many event connections userID has open.
func (h *Hub) Connected(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
