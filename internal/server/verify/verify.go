package verify

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CodeTTL     = 5 * time.Minute
	VerifiedTTL = 15 * time.Minute
	codeDigits  = 6
)

var (
	ErrInvalidCode      = errors.New("invalid or expired code")
	ErrPhoneNotVerified = errors.New("phone number is not verified")
)

// Sender delivers a verification text to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// Service issues one-time phone codes and remembers verified phones.
// Keys:
// - verify:code:<phone> -> pending code, expires after CodeTTL
// - verify:ok:<phone>   -> marker set by a successful check, expires after VerifiedTTL
type Service struct {
	rdb    redis.Cmdable
	sender Sender
	log    *zap.Logger
}

func NewService(rdb redis.Cmdable, sender Sender, log *zap.Logger) *Service {
	return &Service{rdb: rdb, sender: sender, log: log}
}

func codeKey(phone string) string     { return "verify:code:" + phone }
func verifiedKey(phone string) string { return "verify:ok:" + phone }

// GenerateCode returns a uniformly random zero-padded six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// SendCode stores a fresh code for phone, replacing any pending one, and
// hands it to the sender.
func (s *Service) SendCode(ctx context.Context, phone string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := s.rdb.Set(ctx, codeKey(phone), code, CodeTTL).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	if err := s.sender.Send(ctx, phone, fmt.Sprintf("Speakly code: %s", code)); err != nil {
		// The code stays valid; delivery is best effort.
		s.log.Warn("sms delivery failed", zap.String("phone", maskPhone(phone)), zap.Error(err))
	}
	return code, nil
}

// VerifyCode consumes a matching unexpired code and marks phone verified.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) error {
	stored, err := s.rdb.Get(ctx, codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrInvalidCode
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, codeKey(phone))
	pipe.Set(ctx, verifiedKey(phone), "1", VerifiedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *Service) IsVerified(ctx context.Context, phone string) (bool, error) {
	n, err := s.rdb.Exists(ctx, verifiedKey(phone)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Forget drops the verified marker once it has been used for registration.
func (s *Service) Forget(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, verifiedKey(phone)).Err()
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
