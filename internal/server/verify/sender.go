package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// LogSender writes codes to the log instead of sending them. Used when no
// SMS key is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phone, text string) error {
	s.log.Info("sms (not sent)", zap.String("phone", maskPhone(phone)), zap.String("text", text))
	return nil
}

// SMSRuSender talks to the sms.ru HTTP API.
type SMSRuSender struct {
	apiKey   string
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewSMSRuSender(apiKey, endpoint string, log *zap.Logger) *SMSRuSender {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sms",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &SMSRuSender{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		cb:       cb,
		log:      log,
	}
}

type smsRuResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
}

func (s *SMSRuSender) Send(ctx context.Context, phone, text string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.send(ctx, phone, text)
	})
	return err
}

func (s *SMSRuSender) send(ctx context.Context, phone, text string) error {
	q := url.Values{}
	q.Set("api_id", s.apiKey)
	q.Set("to", phone)
	q.Set("msg", text)
	q.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms.ru status %d", resp.StatusCode)
	}
	var out smsRuResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "OK" {
		return fmt.Errorf("sms.ru rejected message: %d %s", out.StatusCode, out.StatusText)
	}
	s.log.Debug("sms sent", zap.String("phone", maskPhone(phone)))
	return nil
}
