package handlers

import (
	"net/http"

	"github.com/cloudzz-dev/speakly/internal/models"
	"go.uber.org/zap"
)

// ShopHandler serves /shop. The gift catalog is public.
type ShopHandler struct {
	auth *authenticator
	shop ShopStore
	log  *zap.Logger
}

func (h *ShopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Query().Get("action") == "get_gifts" {
		h.getGifts(w, r)
		return
	}

	userID, err := h.auth.userID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		switch r.URL.Query().Get("action") {
		case "my_gifts":
			h.myGifts(w, r, userID)
		case "get_balance":
			h.getBalance(w, r, userID)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	case http.MethodPost:
		action, body, err := readAction(r, authBodyLimit)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		switch action {
		case "buy_gift":
			h.buyGift(w, r, userID, body)
		case "send_gift":
			h.sendGift(w, r, userID, body)
		case "buy_raccoon_coins":
			h.buyCoins(w, r, userID, body)
		case "send_money":
			h.sendMoney(w, r, userID, body)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	default:
		writeError(w, h.log, errUnknownAction)
	}
}

func (h *ShopHandler) getGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.shop.GetGifts(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.GiftsResponse{Response: ok(), Gifts: gifts})
}

func (h *ShopHandler) myGifts(w http.ResponseWriter, r *http.Request, userID int) {
	gifts, err := h.shop.GetUserGifts(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OwnedGiftsResponse{Response: ok(), Gifts: gifts})
}

func (h *ShopHandler) getBalance(w http.ResponseWriter, r *http.Request, userID int) {
	b, err := h.shop.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Response: ok(), Balance: *b})
}

func (h *ShopHandler) buyGift(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.BuyGiftRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.GiftID <= 0 {
		writeError(w, h.log, badRequest("gift_id is required"))
		return
	}
	if err := h.shop.BuyGift(r.Context(), userID, req.GiftID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

func (h *ShopHandler) sendGift(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.SendGiftRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.UserGiftID <= 0 || req.ReceiverID <= 0 || req.ReceiverID == userID {
		writeError(w, h.log, badRequest("user_gift_id and another receiver_id are required"))
		return
	}
	if err := h.shop.SendGift(r.Context(), userID, req.UserGiftID, req.ReceiverID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

func (h *ShopHandler) buyCoins(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.BuyCoinsRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, h.log, badRequest("Amount must be positive"))
		return
	}
	received, err := h.shop.BuyCoins(r.Context(), userID, req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BuyCoinsResponse{Response: ok(), Received: received})
}

func (h *ShopHandler) sendMoney(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.SendMoneyRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	req.Amount = req.Amount.Round(2)
	if req.ReceiverID <= 0 || req.ReceiverID == userID || !req.Amount.IsPositive() {
		writeError(w, h.log, badRequest("A receiver and a positive amount are required"))
		return
	}
	if err := h.shop.SendMoney(r.Context(), userID, req.ReceiverID, req.Amount); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("money sent", zap.Int("from", userID), zap.Int("to", req.ReceiverID), zap.String("amount", req.Amount.String()))
	writeJSON(w, http.StatusOK, ok())
}
