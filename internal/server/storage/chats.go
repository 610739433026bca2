package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloudzz-dev/speakly/internal/models"
)

// Chat Methods

func (s *Store) CreateChat(ctx context.Context, creatorID int, req models.CreateChatRequest) (int, error) {
	var chatID int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"INSERT INTO chats (type, name, created_by) VALUES ($1, $2, $3) RETURNING id",
			req.Type, req.Name, creatorID,
		).Scan(&chatID)
		if err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, 'owner')",
			chatID, creatorID,
		)
		if err != nil {
			return fmt.Errorf("add owner: %w", err)
		}

		for _, memberID := range req.Members {
			if memberID == creatorID {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO chat_members (chat_id, user_id)
				SELECT $1, id FROM users WHERE id = $2
				ON CONFLICT DO NOTHING
			`, chatID, memberID)
			if err != nil {
				return fmt.Errorf("add member %d: %w", memberID, err)
			}
		}
		return nil
	})
	return chatID, err
}

// GetUserChats lists the chats userID belongs to, newest first.
func (s *Store) GetUserChats(ctx context.Context, userID int) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.type,
			CASE WHEN c.type = 'private' AND c.name = '' THEN COALESCE((
				SELECT COALESCE(NULLIF(u.display_name, ''), u.username)
				FROM chat_members cm2
				JOIN users u ON cm2.user_id = u.id
				WHERE cm2.chat_id = c.id AND cm2.user_id != $1
				LIMIT 1
			), '') ELSE c.name END AS name,
			c.avatar_url,
			c.created_at,
			(SELECT content FROM messages WHERE chat_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1) AS last_message,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.chat_id = c.id AND m.is_read = FALSE AND m.sender_id != $1) AS unread_count
		FROM chats c
		JOIN chat_members cm ON c.id = cm.chat_id
		WHERE cm.user_id = $1 AND cm.is_blocked = FALSE
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.Type, &c.Name, &c.AvatarURL, &c.CreatedAt, &c.LastMessage, &c.UnreadCount); err != nil {
			s.log.Sugar().Warnf("scan chat: %v", err)
			continue
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *Store) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	var member bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2 AND is_blocked = FALSE
		)
	`, chatID, userID).Scan(&member)
	return member, err
}

// ChatMembers returns the user ids of everyone in the chat.
func (s *Store) ChatMembers(ctx context.Context, chatID int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM chat_members WHERE chat_id = $1", chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MessageChat resolves the chat a message belongs to.
func (s *Store) MessageChat(ctx context.Context, messageID int) (int, error) {
	var chatID int
	err := s.db.QueryRowContext(ctx, "SELECT chat_id FROM messages WHERE id = $1", messageID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return chatID, err
}

// Message Methods

// GetChatMessages returns the whole history oldest first and marks the
// messages of other senders as read for userID.
func (s *Store) GetChatMessages(ctx context.Context, chatID, userID int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.chat_id, m.sender_id, u.username, COALESCE(NULLIF(u.display_name, ''), u.username), u.avatar_url,
		       m.content, m.message_type, m.file_url, m.duration, m.reply_to, m.is_read, m.is_edited, m.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	index := map[int]int{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderUsername, &m.SenderName, &m.SenderAvatar,
			&m.Content, &m.Type, &m.FileURL, &m.Duration, &m.ReplyTo, &m.IsRead, &m.IsEdited, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Reactions = []models.Reaction{}
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachReactions(ctx, chatID, msgs, index); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE WHERE chat_id = $1 AND sender_id != $2 AND is_read = FALSE",
		chatID, userID,
	); err != nil {
		s.log.Sugar().Warnf("mark chat %d read: %v", chatID, err)
	}
	return msgs, nil
}

func (s *Store) attachReactions(ctx context.Context, chatID int, msgs []models.Message, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.message_id, r.emoji, COUNT(*)
		FROM message_reactions r
		JOIN messages m ON m.id = r.message_id
		WHERE m.chat_id = $1
		GROUP BY r.message_id, r.emoji
		ORDER BY MIN(r.created_at)
	`, chatID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			messageID int
			r         models.Reaction
		)
		if err := rows.Scan(&messageID, &r.Emoji, &r.Count); err != nil {
			return err
		}
		if i, ok := index[messageID]; ok {
			msgs[i].Reactions = append(msgs[i].Reactions, r)
		}
	}
	return rows.Err()
}

// NewMessage is a message ready to be persisted; FileURL is already uploaded.
type NewMessage struct {
	ChatID   int
	SenderID int
	Content  string
	Type     models.MessageType
	FileURL  *string
	Duration *int
	ReplyTo  *int
}

func (s *Store) SaveMessage(ctx context.Context, nm NewMessage) (*models.Message, error) {
	msg := models.Message{
		ChatID:    nm.ChatID,
		SenderID:  nm.SenderID,
		Content:   nm.Content,
		Type:      nm.Type,
		FileURL:   nm.FileURL,
		Duration:  nm.Duration,
		ReplyTo:   nm.ReplyTo,
		Reactions: []models.Reaction{},
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, message_type, file_url, duration, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, nm.ChatID, nm.SenderID, nm.Content, nm.Type, nm.FileURL, nm.Duration, nm.ReplyTo).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Store) AddReaction(ctx context.Context, messageID, userID int, emoji string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`, messageID, userID, emoji)
	return err
}

// ClearChat deletes every message of the chat; reactions go with them.
func (s *Store) ClearChat(ctx context.Context, chatID int) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = $1", chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
