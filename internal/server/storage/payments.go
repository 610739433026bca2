package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID       string
	UserID   int
	Amount   decimal.Decimal
	Status   models.PaymentStatus
	Credited bool
}

func (s *Store) CreatePayment(ctx context.Context, id string, userID int, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO payments (id, user_id, amount, status) VALUES ($1, $2, $3, $4)",
		id, userID, amount, models.PaymentPending,
	)
	return err
}

func (s *Store) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, amount, status, credited FROM payments WHERE id = $1", id,
	).Scan(&p.ID, &p.UserID, &p.Amount, &p.Status, &p.Credited)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	_, err := s.db.ExecContext(ctx, "UPDATE payments SET status = $1 WHERE id = $2", status, id)
	return err
}

// CreditPayment adds a succeeded payment to the owner's balance exactly once.
func (s *Store) CreditPayment(ctx context.Context, id string, amount decimal.Decimal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			userID   int
			credited bool
		)
		err := tx.QueryRowContext(ctx,
			"SELECT user_id, credited FROM payments WHERE id = $1 FOR UPDATE", id,
		).Scan(&userID, &credited)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if credited {
			return ErrAlreadyCredited
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE payments SET status = $1, credited = TRUE WHERE id = $2", models.PaymentSucceeded, id,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET balance = balance + $1 WHERE id = $2", amount, userID,
		); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO transactions (to_user_id, amount, transaction_type) VALUES ($1, $2, 'topup')",
			userID, amount,
		)
		return err
	})
}
