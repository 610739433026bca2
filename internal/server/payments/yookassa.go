package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	currency    = "RUB"
	description = "Speakly balance top-up"
)

var ErrNotConfigured = errors.New("payments are not configured")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Payment is the part of a gateway payment the service cares about.
type Payment struct {
	ID              string
	Status          models.PaymentStatus
	Amount          decimal.Decimal
	ConfirmationURL string
	UserID          int
}

// Client is a thin YooKassa REST client.
type Client struct {
	shopID     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewClient(shopID, secretKey, baseURL string, log *zap.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yookassa",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx means the request was wrong, not that the gateway is down.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cb:         cb,
		log:        log,
	}
}

type amountJSON struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type paymentJSON struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       amountJSON        `json:"amount"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Metadata map[string]string `json:"metadata"`
}

func (p paymentJSON) toPayment() *Payment {
	out := &Payment{
		ID:              p.ID,
		Status:          models.PaymentStatus(p.Status),
		Amount:          p.Amount.Value,
		ConfirmationURL: p.Confirmation.ConfirmationURL,
	}
	if id, err := strconv.Atoi(p.Metadata["user_id"]); err == nil {
		out.UserID = id
	}
	return out
}

// Create opens a redirect payment that is captured automatically.
func (c *Client) Create(ctx context.Context, userID int, amount decimal.Decimal, returnURL string) (*Payment, error) {
	payload := map[string]any{
		"amount": map[string]string{
			"value":    amount.StringFixed(2),
			"currency": currency,
		},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"capture":     true,
		"description": description,
		"metadata": map[string]string{
			"user_id": strconv.Itoa(userID),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var out paymentJSON
	if err := c.do(ctx, http.MethodPost, "/payments", body, &out); err != nil {
		return nil, err
	}
	return out.toPayment(), nil
}

func (c *Client) Get(ctx context.Context, paymentID string) (*Payment, error) {
	var out paymentJSON
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &out); err != nil {
		return nil, err
	}
	return out.toPayment(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.shopID == "" || c.secretKey == "" {
		return ErrNotConfigured
	}
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.send(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", uuid.New().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
