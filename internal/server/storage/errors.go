package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicate           = errors.New("already exists")
	ErrNotMember           = errors.New("not a chat member")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientCoins   = errors.New("not enough raccoon coins")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAlreadyCredited     = errors.New("payment already credited")
	ErrAlreadyVerified     = errors.New("already verified")
)

// isUniqueViolation reports a unique constraint failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
