package storage

import (
	"context"

	"github.com/cloudzz-dev/speakly/internal/models"
)

// GetFriends returns accepted friendships in either direction. IsOnline is
// the stored flag; callers overlay live presence.
func (s *Store) GetFriends(ctx context.Context, userID int) ([]models.Friend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar_url, u.is_online AND NOT u.ghost_mode
		FROM friends f
		JOIN users u ON (f.friend_id = u.id AND f.user_id = $1) OR (f.user_id = u.id AND f.friend_id = $1)
		WHERE f.status = 'accepted'
		ORDER BY u.username
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.Username, &f.DisplayName, &f.AvatarURL, &f.IsOnline); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

func (s *Store) AddFriend(ctx context.Context, userID, friendID int) error {
	if userID == friendID {
		return ErrInvalidAmount
	}
	exists, err := s.UserExists(ctx, friendID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO friends (user_id, friend_id, status) VALUES ($1, $2, 'pending')
		ON CONFLICT DO NOTHING
	`, userID, friendID)
	return err
}

// AcceptFriend accepts a pending request sent by friendID.
func (s *Store) AcceptFriend(ctx context.Context, userID, friendID int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE friends SET status = 'accepted' WHERE user_id = $1 AND friend_id = $2",
		friendID, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
