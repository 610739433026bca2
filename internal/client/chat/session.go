// Package chat holds the chat list and the state of an open conversation.
package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoChat         = errors.New("no chat selected")
	ErrNotConfirmed   = errors.New("clearing the chat needs confirmation")
	ErrUnknownEmoji   = errors.New("unsupported reaction")
	ErrNoRecorder     = errors.New("voice recording is not available")
	ErrEmptyRecording = errors.New("nothing was recorded")
)

// MessageAPI is the part of the API client an open chat needs.
type MessageAPI interface {
	GetMessages(ctx context.Context, chatID int) ([]models.Message, error)
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	AddReaction(ctx context.Context, messageID int, emoji string) error
	ClearChat(ctx context.Context, chatID int) error
}

// Recorder captures voice notes.
type Recorder interface {
	Start() error
	Stop() ([]byte, time.Duration, error)
	Recording() bool
}

// Session is one open conversation: its message snapshot, the composer
// input and the pending reply. Every failed action leaves it unchanged.
type Session struct {
	api      MessageAPI
	recorder Recorder

	mu       sync.Mutex
	chatID   int
	messages []models.Message
	input    string
	replyTo  *models.Message
	poller   *Poller[[]models.Message]
}

func NewSession(api MessageAPI, rec Recorder) *Session {
	return &Session{api: api, recorder: rec}
}

// Open switches to chatID and starts polling it. onUpdate receives every
// snapshot (or fetch error) until Close; it must not block.
func (s *Session) Open(ctx context.Context, chatID int, interval time.Duration, onUpdate func([]models.Message, error)) {
	s.Close()

	s.mu.Lock()
	s.chatID = chatID
	s.messages = nil
	s.input = ""
	s.replyTo = nil
	p := NewPoller(interval, func(ctx context.Context) ([]models.Message, error) {
		return s.api.GetMessages(ctx, chatID)
	}, func(msgs []models.Message, err error) {
		if err == nil {
			s.replace(chatID, msgs)
		}
		if onUpdate != nil {
			onUpdate(msgs, err)
		}
	})
	s.poller = p
	s.mu.Unlock()

	p.Start(ctx)
}

// Close stops polling. No update is delivered after it returns.
func (s *Session) Close() {
	s.mu.Lock()
	p := s.poller
	s.poller = nil
	s.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// Kick asks the poller for an immediate fetch. It is a no-op when no chat
// is open.
func (s *Session) Kick() {
	s.mu.Lock()
	p := s.poller
	s.mu.Unlock()
	if p != nil {
		p.Refresh()
	}
}

func (s *Session) ChatID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Messages returns a copy of the current snapshot.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

func (s *Session) ReplyTo() *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyTo
}

func (s *Session) SetReply(m *models.Message) {
	s.mu.Lock()
	s.replyTo = m
	s.mu.Unlock()
}

func (s *Session) replace(chatID int, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatID == chatID {
		s.messages = msgs
	}
}

// Refresh fetches the full message list and replaces the snapshot.
func (s *Session) Refresh(ctx context.Context) error {
	chatID := s.ChatID()
	if chatID == 0 {
		return ErrNoChat
	}
	msgs, err := s.api.GetMessages(ctx, chatID)
	if err != nil {
		return err
	}
	s.replace(chatID, msgs)
	return nil
}

// Send posts the composer text. Whitespace-only input is refused without a
// request. On success the input and the pending reply are cleared and the
// list is refreshed right away.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	chatID, content, reply := s.chatID, s.input, s.replyTo
	s.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if chatID == 0 {
		return ErrNoChat
	}

	req := models.SendMessageRequest{ChatID: chatID, Content: content, Type: models.MessageText}
	if reply != nil {
		id := reply.ID
		req.ReplyTo = &id
	}
	if _, err := s.api.SendMessage(ctx, req); err != nil {
		return err
	}

	s.mu.Lock()
	if s.chatID == chatID {
		s.input = ""
		s.replyTo = nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// React adds emoji to a message and refreshes; there is no local update.
func (s *Session) React(ctx context.Context, messageID int, emoji string) error {
	known := false
	for _, e := range models.ReactionEmojis {
		if e == emoji {
			known = true
		}
	}
	if !known {
		return ErrUnknownEmoji
	}
	if err := s.api.AddReaction(ctx, messageID, emoji); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// SendFile reads path whole and sends it as a photo.
func (s *Session) SendFile(ctx context.Context, path string) error {
	chatID := s.ChatID()
	if chatID == 0 {
		return ErrNoChat
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	fileType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(fileType, "image/") {
		fileType = "image/jpeg"
	}
	req := models.SendMessageRequest{
		ChatID:   chatID,
		Type:     models.MessagePhoto,
		FileData: base64.StdEncoding.EncodeToString(data),
		FileType: fileType,
	}
	if _, err := s.api.SendMessage(ctx, req); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *Session) Recording() bool {
	return s.recorder != nil && s.recorder.Recording()
}

func (s *Session) StartRecording() error {
	if s.recorder == nil {
		return ErrNoRecorder
	}
	if s.ChatID() == 0 {
		return ErrNoChat
	}
	return s.recorder.Start()
}

// StopRecording finishes the capture and sends it as a voice message with
// its measured duration in whole seconds.
func (s *Session) StopRecording(ctx context.Context) error {
	if s.recorder == nil {
		return ErrNoRecorder
	}
	data, elapsed, err := s.recorder.Stop()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmptyRecording
	}
	chatID := s.ChatID()
	if chatID == 0 {
		return ErrNoChat
	}

	seconds := int(elapsed.Round(time.Second) / time.Second)
	req := models.SendMessageRequest{
		ChatID:   chatID,
		Type:     models.MessageVoice,
		FileData: base64.StdEncoding.EncodeToString(data),
		FileType: "audio/wav",
		Duration: &seconds,
	}
	if _, err := s.api.SendMessage(ctx, req); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Clear deletes the whole history. It refuses unless confirmed.
func (s *Session) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	chatID := s.ChatID()
	if chatID == 0 {
		return ErrNoChat
	}
	if err := s.api.ClearChat(ctx, chatID); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
