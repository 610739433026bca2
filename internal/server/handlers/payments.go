package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/metrics"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var maxTopUp = decimal.NewFromInt(1_000_000)

// PaymentsHandler serves /payments (balance top-up through the gateway).
type PaymentsHandler struct {
	auth      *authenticator
	payments  PaymentStore
	gateway   Gateway
	metrics   *metrics.Metrics
	returnURL string
	log       *zap.Logger
}

func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.log, errUnknownAction)
		return
	}
	userID, err := h.auth.userID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	action, body, err := readAction(r, authBodyLimit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	switch action {
	case "create_payment":
		h.createPayment(w, r, userID, body)
	case "check_payment":
		h.checkPayment(w, r, userID, body)
	default:
		writeError(w, h.log, errUnknownAction)
	}
}

func (h *PaymentsHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Payment(outcome)
	}
}

func (h *PaymentsHandler) createPayment(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.CreatePaymentRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	req.Amount = req.Amount.Round(2)
	if !req.Amount.IsPositive() || req.Amount.GreaterThan(maxTopUp) {
		writeError(w, h.log, badRequest("Invalid amount"))
		return
	}
	returnURL := strings.TrimSpace(req.ReturnURL)
	if returnURL == "" {
		returnURL = h.returnURL
	}

	p, err := h.gateway.Create(r.Context(), userID, req.Amount, returnURL)
	if err != nil {
		h.count("create_failed")
		writeError(w, h.log, err)
		return
	}
	if err := h.payments.CreatePayment(r.Context(), p.ID, userID, req.Amount); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.count("created")
	h.log.Info("payment created", zap.Int("user_id", userID), zap.String("payment_id", p.ID))
	writeJSON(w, http.StatusOK, models.CreatePaymentResponse{
		Response:        ok(),
		PaymentID:       p.ID,
		ConfirmationURL: p.ConfirmationURL,
	})
}

// checkPayment refreshes the gateway status. A succeeded payment is added to
// the balance exactly once; later checks only report the status.
func (h *PaymentsHandler) checkPayment(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.CheckPaymentRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.PaymentID == "" {
		writeError(w, h.log, badRequest("payment_id is required"))
		return
	}

	local, err := h.payments.GetPayment(r.Context(), req.PaymentID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if local.UserID != userID {
		writeError(w, h.log, storage.ErrNotFound)
		return
	}

	p, err := h.gateway.Get(r.Context(), req.PaymentID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := models.CheckPaymentResponse{Response: ok(), Status: p.Status}
	switch p.Status {
	case models.PaymentSucceeded:
		err := h.payments.CreditPayment(r.Context(), p.ID, p.Amount)
		switch {
		case err == nil:
			h.count("credited")
			h.log.Info("payment credited", zap.Int("user_id", userID), zap.String("payment_id", p.ID))
		case errors.Is(err, storage.ErrAlreadyCredited):
		default:
			writeError(w, h.log, err)
			return
		}
		amount := p.Amount
		resp.Amount = &amount
	case models.PaymentCanceled:
		if err := h.payments.SetPaymentStatus(r.Context(), p.ID, p.Status); err != nil {
			h.log.Warn("store payment status", zap.Error(err))
		}
		h.count("canceled")
	}
	writeJSON(w, http.StatusOK, resp)
}
