package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/media"
	"github.com/cloudzz-dev/speakly/internal/server/metrics"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"go.uber.org/zap"
)

// ChatsHandler serves /chats.
type ChatsHandler struct {
	auth      *authenticator
	chats     ChatStore
	uploader  Uploader
	notifier  Notifier
	metrics   *metrics.Metrics
	bodyLimit int64
	maxUpload int64
	log       *zap.Logger
}

func (h *ChatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.userID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		switch r.URL.Query().Get("action") {
		case "list_chats":
			h.listChats(w, r, userID)
		case "get_messages":
			h.getMessages(w, r, userID)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	case http.MethodPost:
		action, body, err := readAction(r, h.bodyLimit)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		switch action {
		case "create_chat":
			h.createChat(w, r, userID, body)
		case "send_message":
			h.sendMessage(w, r, userID, body)
		case "add_reaction":
			h.addReaction(w, r, userID, body)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	case http.MethodDelete:
		switch r.URL.Query().Get("action") {
		case "clear_chat":
			h.clearChat(w, r, userID)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	default:
		writeError(w, h.log, errUnknownAction)
	}
}

func (h *ChatsHandler) requireMember(ctx context.Context, chatID, userID int) error {
	member, err := h.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return storage.ErrNotMember
	}
	return nil
}

// notify fans a chat_updated event out to every member of chatID.
func (h *ChatsHandler) notify(ctx context.Context, chatID int) {
	if h.notifier == nil {
		return
	}
	members, err := h.chats.ChatMembers(ctx, chatID)
	if err != nil {
		h.log.Warn("load chat members", zap.Int("chat_id", chatID), zap.Error(err))
		return
	}
	h.notifier.NotifyChat(members, chatID)
}

func (h *ChatsHandler) listChats(w http.ResponseWriter, r *http.Request, userID int) {
	chats, err := h.chats.GetUserChats(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatsResponse{Response: ok(), Chats: chats})
}

func (h *ChatsHandler) getMessages(w http.ResponseWriter, r *http.Request, userID int) {
	chatID, err := queryInt(r, "chat_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.requireMember(r.Context(), chatID, userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	msgs, err := h.chats.GetChatMessages(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessagesResponse{Response: ok(), Messages: msgs})
}

func (h *ChatsHandler) createChat(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.CreateChatRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Type == "" {
		req.Type = models.ChatPrivate
	}
	if !req.Type.Valid() {
		writeError(w, h.log, badRequest("Unknown chat type"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	chatID, err := h.chats.CreateChat(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify(r.Context(), chatID)
	writeJSON(w, http.StatusOK, models.CreateChatResponse{Response: ok(), ChatID: chatID})
}

func (h *ChatsHandler) sendMessage(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.SendMessageRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.ChatID <= 0 {
		writeError(w, h.log, badRequest("chat_id is required"))
		return
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if !req.Type.Valid() {
		writeError(w, h.log, badRequest("Unknown message type"))
		return
	}
	if strings.TrimSpace(req.Content) == "" && req.FileData == "" {
		writeError(w, h.log, badRequest("Message is empty"))
		return
	}
	if err := h.requireMember(r.Context(), req.ChatID, userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.ReplyTo != nil {
		chatID, err := h.chats.MessageChat(r.Context(), *req.ReplyTo)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && chatID != req.ChatID) {
			err = badRequest("reply_to must be a message in this chat")
		}
		if err != nil {
			writeError(w, h.log, err)
			return
		}
	}

	nm := storage.NewMessage{
		ChatID:   req.ChatID,
		SenderID: userID,
		Content:  req.Content,
		Type:     req.Type,
		Duration: req.Duration,
		ReplyTo:  req.ReplyTo,
	}
	if req.FileData != "" {
		data, err := media.Decode(req.FileData, h.maxUpload)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		url, err := h.uploader.Upload(r.Context(), data, req.FileType)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		nm.FileURL = &url
	}

	msg, err := h.chats.SaveMessage(r.Context(), nm)
	if err != nil {
		if nm.FileURL != nil {
			if derr := h.uploader.Delete(r.Context(), *nm.FileURL); derr != nil {
				h.log.Warn("orphaned upload", zap.String("url", *nm.FileURL), zap.Error(derr))
			}
		}
		writeError(w, h.log, err)
		return
	}
	if h.metrics != nil {
		h.metrics.MessageSent(string(msg.Type))
	}
	h.notify(r.Context(), req.ChatID)

	writeJSON(w, http.StatusOK, models.SendMessageResponse{
		Response:  ok(),
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (h *ChatsHandler) addReaction(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.AddReactionRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.MessageID <= 0 || req.Emoji == "" {
		writeError(w, h.log, badRequest("message_id and emoji are required"))
		return
	}

	chatID, err := h.chats.MessageChat(r.Context(), req.MessageID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.requireMember(r.Context(), chatID, userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.chats.AddReaction(r.Context(), req.MessageID, userID, req.Emoji); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify(r.Context(), chatID)
	writeJSON(w, http.StatusOK, ok())
}

func (h *ChatsHandler) clearChat(w http.ResponseWriter, r *http.Request, userID int) {
	chatID, err := queryInt(r, "chat_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.requireMember(r.Context(), chatID, userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.chats.ClearChat(r.Context(), chatID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("chat cleared", zap.Int("chat_id", chatID), zap.Int("user_id", userID), zap.Int64("deleted", n))
	h.notify(r.Context(), chatID)
	writeJSON(w, http.StatusOK, ok())
}
