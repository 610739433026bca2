package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

// ListAPI is the part of the API client the chat list needs.
type ListAPI interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	CreateChat(ctx context.Context, req models.CreateChatRequest) (int, error)
}

// List is the conversation list. While the search query is non-empty it
// shows user search results instead of chats.
type List struct {
	api ListAPI

	mu      sync.Mutex
	chats   []models.Chat
	query   string
	results []models.User
}

func NewList(api ListAPI) *List {
	return &List{api: api}
}

func (l *List) Load(ctx context.Context) error {
	chats, err := l.api.ListChats(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.chats = chats
	l.mu.Unlock()
	return nil
}

func (l *List) Chats() []models.Chat {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Chat(nil), l.chats...)
}

func (l *List) Results() []models.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.User(nil), l.results...)
}

func (l *List) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Searching reports whether search results replace the chat list.
func (l *List) Searching() bool {
	return strings.TrimSpace(l.Query()) != ""
}

// Search runs a live user search. An empty query clears the results without
// a request. Results of a query that is no longer current are dropped.
func (l *List) Search(ctx context.Context, query string) error {
	l.mu.Lock()
	l.query = query
	if strings.TrimSpace(query) == "" {
		l.results = nil
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	users, err := l.api.SearchUsers(ctx, strings.TrimSpace(query))
	if err != nil {
		return err
	}
	l.mu.Lock()
	if l.query == query {
		l.results = users
	}
	l.mu.Unlock()
	return nil
}

var (
	ErrChatName = errors.New("enter a chat name")
	ErrChatType = errors.New("unsupported chat type")
)

// Create makes a chat the caller owns, clears the search and reloads the
// list. Group and channel chats need a name; private chats go without one so
// every member sees the other side's name.
func (l *List) Create(ctx context.Context, typ models.ChatType, name string, members []int) (int, error) {
	name = strings.TrimSpace(name)
	switch typ {
	case models.ChatGroup, models.ChatChannel:
		if name == "" {
			return 0, ErrChatName
		}
	case models.ChatPrivate:
		name = ""
	default:
		return 0, ErrChatType
	}

	chatID, err := l.api.CreateChat(ctx, models.CreateChatRequest{
		Type:    typ,
		Name:    name,
		Members: members,
	})
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.query = ""
	l.results = nil
	l.mu.Unlock()
	return chatID, l.Load(ctx)
}

// StartChat opens a private chat with user and returns the new chat id.
func (l *List) StartChat(ctx context.Context, user models.User) (int, error) {
	return l.Create(ctx, models.ChatPrivate, "", []int{user.ID})
}
