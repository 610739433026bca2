package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/ratelimit"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/cloudzz-dev/speakly/internal/server/verify"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const authBodyLimit = 16 << 10

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// AuthHandler serves the public /auth group.
type AuthHandler struct {
	users         UserStore
	verifier      Verifier
	presence      Presence
	limiter       *ratelimit.RateLimiter
	exposeDevCode bool
	log           *zap.Logger
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.log, errUnknownAction)
		return
	}
	action, body, err := readAction(r, authBodyLimit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if !h.allow(ratelimit.GetClientIP(r)) {
		tooManyAttempts(w)
		return
	}

	switch action {
	case "send_code":
		h.sendCode(w, r, body)
	case "verify_code":
		h.verifyCode(w, r, body)
	case "register":
		h.register(w, r, body)
	case "login":
		h.login(w, r, body)
	default:
		writeError(w, h.log, errUnknownAction)
	}
}

// allow counts an attempt against key. Every action counts per client IP;
// send_code also counts per phone number.
func (h *AuthHandler) allow(key string) bool {
	return h.limiter == nil || h.limiter.CanAuth(key)
}

func tooManyAttempts(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, models.Response{Error: "Too many attempts. Please wait a minute."})
}

func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone)
}

func (h *AuthHandler) sendCode(w http.ResponseWriter, r *http.Request, body []byte) {
	var req models.SendCodeRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	phone := normalizePhone(req.Phone)
	if phone == "" {
		writeError(w, h.log, badRequest("Phone is required"))
		return
	}
	if !h.allow("phone:" + phone) {
		h.log.Warn("send_code limited", zap.String("ip", ratelimit.GetClientIP(r)))
		tooManyAttempts(w)
		return
	}

	code, err := h.verifier.SendCode(r.Context(), phone)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	resp := models.SendCodeResponse{Response: ok()}
	if h.exposeDevCode {
		resp.DevCode = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) verifyCode(w http.ResponseWriter, r *http.Request, body []byte) {
	var req models.VerifyCodeRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	phone := normalizePhone(req.Phone)
	code := strings.TrimSpace(req.Code)
	if phone == "" || code == "" {
		writeError(w, h.log, badRequest("Phone and code are required"))
		return
	}

	if err := h.verifier.VerifyCode(r.Context(), phone, code); err != nil {
		if errors.Is(err, verify.ErrInvalidCode) {
			writeJSON(w, http.StatusBadRequest, models.VerifyCodeResponse{
				Response: models.Response{Error: "Invalid code"},
			})
			return
		}
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VerifyCodeResponse{Response: ok(), Verified: true})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, body []byte) {
	var req models.RegisterRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	phone := normalizePhone(req.Phone)
	username := strings.TrimSpace(req.Username)
	switch {
	case phone == "":
		writeError(w, h.log, badRequest("Phone is required"))
		return
	case !usernamePattern.MatchString(username):
		writeError(w, h.log, badRequest("Username must be 3-32 letters, digits or underscores"))
		return
	case len(req.Password) < 6:
		writeError(w, h.log, badRequest("Password must be at least 6 characters"))
		return
	}

	verified, err := h.verifier.IsVerified(r.Context(), phone)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !verified {
		writeError(w, h.log, verify.ErrPhoneNotVerified)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user, err := h.users.CreateUser(r.Context(), phone, username, displayName, string(hash))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.verifier.Forget(r.Context(), phone); err != nil {
		h.log.Warn("forget verified phone", zap.Error(err))
	}
	h.markOnline(r, user)

	h.log.Info("user registered", zap.Int("user_id", user.ID))
	writeJSON(w, http.StatusOK, models.UserResponse{Response: ok(), User: user})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, body []byte) {
	var req models.LoginRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	phone := normalizePhone(req.Phone)
	if phone == "" || req.Password == "" {
		writeError(w, h.log, badRequest("Phone and password are required"))
		return
	}

	user, err := h.users.GetUserByPhone(r.Context(), phone)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			writeJSON(w, http.StatusUnauthorized, models.Response{Error: "Invalid credentials"})
			return
		}
		writeError(w, h.log, err)
		return
	}

	h.markOnline(r, user)
	writeJSON(w, http.StatusOK, models.UserResponse{Response: ok(), User: user})
}

func (h *AuthHandler) markOnline(r *http.Request, user *models.User) {
	user.IsOnline = true
	if err := h.users.SetOnline(r.Context(), user.ID, true); err != nil {
		h.log.Warn("set online", zap.Int("user_id", user.ID), zap.Error(err))
	}
	if h.presence != nil {
		if err := h.presence.Touch(r.Context(), user.ID); err != nil {
			h.log.Debug("presence touch failed", zap.Error(err))
		}
	}
}
