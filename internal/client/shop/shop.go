// Package shop holds the gift shop and wallet panels' state.
package shop

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

var ErrNoSelection = errors.New("no gift selected")

type ShopAPI interface {
	GetGifts(ctx context.Context) ([]models.Gift, error)
	MyGifts(ctx context.Context) ([]models.OwnedGift, error)
	GetBalance(ctx context.Context) (*models.Balance, error)
	BuyGift(ctx context.Context, giftID int) error
	SendGift(ctx context.Context, userGiftID, receiverID int) error
}

// Shop is the gift catalog, the user's inventory, the balance shown next to
// them and the purchase dialog. A failed action leaves all of it unchanged.
type Shop struct {
	api ShopAPI

	mu      sync.Mutex
	gifts   []models.Gift
	owned   []models.OwnedGift
	balance models.Balance
	pending *models.Gift
}

func New(api ShopAPI) *Shop {
	return &Shop{api: api}
}

// Load reads the catalog, the inventory and the balance. Nothing is replaced
// unless all three succeed.
func (s *Shop) Load(ctx context.Context) error {
	gifts, err := s.api.GetGifts(ctx)
	if err != nil {
		return err
	}
	owned, err := s.api.MyGifts(ctx)
	if err != nil {
		return err
	}
	bal, err := s.api.GetBalance(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gifts, s.owned, s.balance = gifts, owned, *bal
	s.mu.Unlock()
	return nil
}

func (s *Shop) Gifts() []models.Gift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Gift(nil), s.gifts...)
}

func (s *Shop) Owned() []models.OwnedGift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OwnedGift(nil), s.owned...)
}

func (s *Shop) Balance() models.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Select opens the purchase dialog for gift.
func (s *Shop) Select(gift models.Gift) {
	s.mu.Lock()
	s.pending = &gift
	s.mu.Unlock()
}

// Pending is the gift in the open purchase dialog, or nil.
func (s *Shop) Pending() *models.Gift {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	g := *s.pending
	return &g
}

func (s *Shop) Cancel() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Confirm buys the pending gift. The server decides whether the coin
// balance covers it. On success the dialog closes and the panel reloads.
func (s *Shop) Confirm(ctx context.Context) error {
	gift := s.Pending()
	if gift == nil {
		return ErrNoSelection
	}
	if err := s.api.BuyGift(ctx, gift.ID); err != nil {
		return err
	}
	s.Cancel()
	return s.Load(ctx)
}

// Send gives one owned gift to another user.
func (s *Shop) Send(ctx context.Context, userGiftID, receiverID int) error {
	if err := s.api.SendGift(ctx, userGiftID, receiverID); err != nil {
		return err
	}
	return s.Load(ctx)
}
