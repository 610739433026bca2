package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/media"
	"github.com/cloudzz-dev/speakly/internal/server/payments"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/cloudzz-dev/speakly/internal/server/verify"
	"go.uber.org/zap"
)

var (
	errUnknownAction = errors.New("unknown action")
	errBadJSON       = errors.New("invalid JSON body")
	errUnauthorized  = errors.New("unauthorized")
)

// badRequest marks a validation failure whose message is shown as is.
type badRequest string

func (e badRequest) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok() models.Response { return models.Response{Success: true} }

// writeError maps err onto a status code and the failure envelope. Errors
// without a mapping are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, models.Response{Success: false, Error: msg})
}

func classify(err error) (int, string) {
	var br badRequest
	var apiErr *payments.APIError
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, string(br)
	case errors.Is(err, errUnknownAction):
		return http.StatusMethodNotAllowed, "Method not allowed"
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "Invalid JSON body"
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, storage.ErrNotMember):
		return http.StatusForbidden, "Not a member of this chat"
	case errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusBadRequest, "Phone or username already taken"
	case errors.Is(err, storage.ErrInsufficientBalance):
		return http.StatusBadRequest, "Insufficient balance"
	case errors.Is(err, storage.ErrInsufficientCoins):
		return http.StatusBadRequest, "Not enough raccoon coins"
	case errors.Is(err, storage.ErrAlreadyVerified):
		return http.StatusConflict, "Already verified"
	case errors.Is(err, storage.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, verify.ErrInvalidCode):
		return http.StatusBadRequest, "Invalid code"
	case errors.Is(err, verify.ErrPhoneNotVerified):
		return http.StatusBadRequest, "Phone number is not verified"
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusBadRequest, "Attachment is too large"
	case errors.Is(err, media.ErrInvalidData):
		return http.StatusBadRequest, "Attachment is not valid base64"
	case errors.Is(err, payments.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Payments are not available"
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		return http.StatusBadRequest, apiErr.Description
	}
	return http.StatusInternalServerError, "Internal server error"
}

// readAction reads a POST body and returns its action together with the raw
// bytes so the action-specific payload can be decoded from them.
func readAction(r *http.Request, limit int64) (string, []byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", nil, media.ErrTooLarge
	}
	var req models.ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, errBadJSON
	}
	return req.Action, body, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errBadJSON
	}
	return nil
}

// queryInt reads a required positive integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return 0, badRequest(name + " is required")
	}
	return v, nil
}
