package shop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrBadAmount = errors.New("amount must be a positive number")
	ErrNoTopUp   = errors.New("no top-up in progress")
	ErrBadUserID = errors.New("recipient must be a user id")
)

type WalletAPI interface {
	GetBalance(ctx context.Context) (*models.Balance, error)
	BuyCoins(ctx context.Context, amount int) (int, error)
	SendMoney(ctx context.Context, req models.SendMoneyRequest) error
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error)
	CheckPayment(ctx context.Context, paymentID string) (*models.CheckPaymentResponse, error)
}

// Wallet is the balance panel: top-ups through the payment provider, coin
// purchases and transfers.
type Wallet struct {
	api       WalletAPI
	returnURL string

	mu      sync.Mutex
	balance models.Balance
	payment string
}

func NewWallet(api WalletAPI, returnURL string) *Wallet {
	return &Wallet{api: api, returnURL: returnURL}
}

func (w *Wallet) Load(ctx context.Context) error {
	bal, err := w.api.GetBalance(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.balance = *bal
	w.mu.Unlock()
	return nil
}

func (w *Wallet) Balance() models.Balance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// PendingPayment is the id of the last top-up not yet settled.
func (w *Wallet) PendingPayment() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrBadAmount
	}
	if d = d.Round(2); !d.IsPositive() {
		return decimal.Zero, ErrBadAmount
	}
	return d, nil
}

// TopUp starts a payment for amount and returns the page where the user
// confirms it.
func (w *Wallet) TopUp(ctx context.Context, amount string) (string, error) {
	d, err := parseAmount(amount)
	if err != nil {
		return "", err
	}
	resp, err := w.api.CreatePayment(ctx, models.CreatePaymentRequest{Amount: d, ReturnURL: w.returnURL})
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	w.payment = resp.PaymentID
	w.mu.Unlock()
	return resp.ConfirmationURL, nil
}

// CheckTopUp asks the server about the pending payment. Once it is no longer
// pending it is forgotten and the balance reloads.
func (w *Wallet) CheckTopUp(ctx context.Context) (models.PaymentStatus, error) {
	id := w.PendingPayment()
	if id == "" {
		return "", ErrNoTopUp
	}
	resp, err := w.api.CheckPayment(ctx, id)
	if err != nil {
		return "", err
	}
	if resp.Status == models.PaymentPending {
		return resp.Status, nil
	}
	w.mu.Lock()
	if w.payment == id {
		w.payment = ""
	}
	w.mu.Unlock()
	return resp.Status, w.Load(ctx)
}

// BuyCoins converts amount from the balance into coins and returns how many
// arrived, bonus included.
func (w *Wallet) BuyCoins(ctx context.Context, amount string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil || n <= 0 {
		return 0, ErrBadAmount
	}
	received, err := w.api.BuyCoins(ctx, n)
	if err != nil {
		return 0, err
	}
	return received, w.Load(ctx)
}

func (w *Wallet) SendMoney(ctx context.Context, receiver, amount string) error {
	id, err := strconv.Atoi(strings.TrimSpace(receiver))
	if err != nil || id <= 0 {
		return ErrBadUserID
	}
	d, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if err := w.api.SendMoney(ctx, models.SendMoneyRequest{ReceiverID: id, Amount: d}); err != nil {
		return fmt.Errorf("send money: %w", err)
	}
	return w.Load(ctx)
}
