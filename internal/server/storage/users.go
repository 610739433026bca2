package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/shopspring/decimal"
)

const savedChatName = "Saved Messages"

const userColumns = `id, phone, username, display_name, password_hash, avatar_url, banner_url, bio, status,
	status_emoji, is_online, ghost_mode, has_verification, balance, raccoon_coins, created_at, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Phone, &u.Username, &u.DisplayName, &u.PasswordHash, &u.AvatarURL, &u.BannerURL,
		&u.Bio, &u.Status, &u.StatusEmoji, &u.IsOnline, &u.GhostMode, &u.HasVerification, &u.Balance,
		&u.RaccoonCoins, &u.CreatedAt, &u.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the account together with its saved-messages chat.
func (s *Store) CreateUser(ctx context.Context, phone, username, displayName, passwordHash string) (*models.User, error) {
	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO users (phone, username, display_name, password_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING `+userColumns,
			phone, username, displayName, passwordHash,
		)
		u, err := scanUser(row)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert user: %w", err)
		}

		var chatID int
		err = tx.QueryRowContext(ctx,
			"INSERT INTO chats (type, name, created_by) VALUES ($1, $2, $3) RETURNING id",
			models.ChatSaved, savedChatName, u.ID,
		).Scan(&chatID)
		if err != nil {
			return fmt.Errorf("insert saved chat: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, 'owner')",
			chatID, u.ID,
		)
		if err != nil {
			return fmt.Errorf("add saved chat owner: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE phone = $1", phone))
}

func (s *Store) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (s *Store) UserExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

func (s *Store) SetOnline(ctx context.Context, id int, online bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET is_online = $1, last_seen = NOW() WHERE id = $2", online, id)
	return err
}

// SearchUsers matches username or display name, case-insensitive.
func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, display_name, avatar_url, has_verification
		FROM users
		WHERE username ILIKE $1 OR display_name ILIKE $1
		ORDER BY username
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.HasVerification); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

// UpdateProfile writes only the fields present in req.
func (s *Store) UpdateProfile(ctx context.Context, id int, req models.UpdateProfileRequest) error {
	var (
		fields []string
		values []any
	)
	add := func(column string, v any) {
		values = append(values, v)
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(values)))
	}

	if req.Username != nil {
		add("username", *req.Username)
	}
	if req.DisplayName != nil {
		add("display_name", *req.DisplayName)
	}
	// Blank optional fields are stored as NULL.
	optional := func(column string, v *string) {
		switch {
		case v == nil:
		case *v == "":
			add(column, nil)
		default:
			add(column, *v)
		}
	}
	optional("avatar_url", req.AvatarURL)
	optional("banner_url", req.BannerURL)
	optional("bio", req.Bio)
	optional("status", req.Status)
	optional("status_emoji", req.StatusEmoji)
	if req.GhostMode != nil {
		add("ghost_mode", *req.GhostMode)
	}
	if len(fields) == 0 {
		return nil
	}

	values = append(values, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(fields, ", "), len(values))
	res, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// BuyVerification debits the verification price from the primary balance.
func (s *Store) BuyVerification(ctx context.Context, userID int) error {
	price := decimal.NewFromInt(models.VerificationPrice)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			balance  decimal.Decimal
			verified bool
		)
		err := tx.QueryRowContext(ctx,
			"SELECT balance, has_verification FROM users WHERE id = $1 FOR UPDATE", userID,
		).Scan(&balance, &verified)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if verified {
			return ErrAlreadyVerified
		}
		if balance.LessThan(price) {
			return ErrInsufficientBalance
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET has_verification = TRUE, balance = balance - $1 WHERE id = $2",
			price, userID,
		)
		return err
	})
}

func lockBalance(ctx context.Context, tx *sql.Tx, userID int) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, "SELECT balance FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrUserNotFound
	}
	return balance, err
}
