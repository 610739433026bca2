package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/shopspring/decimal"
)

func (s *Store) GetGifts(ctx context.Context) ([]models.Gift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, emoji, price, category
		FROM shop_gifts
		WHERE is_active = TRUE
		ORDER BY category, price
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gifts := []models.Gift{}
	for rows.Next() {
		var g models.Gift
		if err := rows.Scan(&g.ID, &g.Name, &g.Emoji, &g.Price, &g.Category); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

func (s *Store) GetUserGifts(ctx context.Context, userID int) ([]models.OwnedGift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ug.id, sg.name, sg.emoji, sg.price, u.username, ug.quantity, ug.received_at
		FROM user_gifts ug
		JOIN shop_gifts sg ON ug.gift_id = sg.id
		LEFT JOIN users u ON ug.sender_id = u.id
		WHERE ug.user_id = $1
		ORDER BY ug.received_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gifts := []models.OwnedGift{}
	for rows.Next() {
		var g models.OwnedGift
		if err := rows.Scan(&g.ID, &g.Name, &g.Emoji, &g.Price, &g.Sender, &g.Quantity, &g.ReceivedAt); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

func (s *Store) GetBalance(ctx context.Context, userID int) (*models.Balance, error) {
	var b models.Balance
	err := s.db.QueryRowContext(ctx,
		"SELECT balance, raccoon_coins FROM users WHERE id = $1", userID,
	).Scan(&b.Balance, &b.RaccoonCoins)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BuyGift debits the gift price from the coin balance and records ownership.
// Nothing changes when the user cannot afford it.
func (s *Store) BuyGift(ctx context.Context, userID, giftID int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var price int
		err := tx.QueryRowContext(ctx,
			"SELECT price FROM shop_gifts WHERE id = $1 AND is_active = TRUE", giftID,
		).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var coins int
		err = tx.QueryRowContext(ctx,
			"SELECT raccoon_coins FROM users WHERE id = $1 FOR UPDATE", userID,
		).Scan(&coins)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if coins < price {
			return ErrInsufficientCoins
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET raccoon_coins = raccoon_coins - $1 WHERE id = $2", price, userID,
		); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO user_gifts (user_id, gift_id, sender_id) VALUES ($1, $2, $1)", userID, giftID,
		)
		return err
	})
}

// SendGift hands an owned gift over to another user.
func (s *Store) SendGift(ctx context.Context, userID, userGiftID, receiverID int) error {
	exists, err := s.UserExists(ctx, receiverID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_gifts SET user_id = $1, sender_id = $2, received_at = NOW()
		WHERE id = $3 AND user_id = $2
	`, receiverID, userID, userGiftID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BuyCoins converts amount of primary balance into coins plus the bonus and
// returns the number of coins received.
func (s *Store) BuyCoins(ctx context.Context, userID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	received := models.ReceivedCoins(amount)
	cost := decimal.NewFromInt(int64(amount))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if balance.LessThan(cost) {
			return ErrInsufficientBalance
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET balance = balance - $1, raccoon_coins = raccoon_coins + $2 WHERE id = $3",
			cost, received, userID,
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO transactions (from_user_id, amount, transaction_type) VALUES ($1, $2, 'coins')",
			userID, cost,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return received, nil
}

func (s *Store) SendMoney(ctx context.Context, fromID, toID int, amount decimal.Decimal) error {
	if !amount.IsPositive() || fromID == toID {
		return ErrInvalidAmount
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := lockBalance(ctx, tx, fromID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		res, err := tx.ExecContext(ctx, "UPDATE users SET balance = balance + $1 WHERE id = $2", amount, toID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET balance = balance - $1 WHERE id = $2", amount, fromID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (from_user_id, to_user_id, amount, transaction_type)
			VALUES ($1, $2, $3, 'money')
		`, fromID, toID, amount)
		return err
	})
}
