package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const searchLimit = 50

// ProfileHandler serves /profile.
type ProfileHandler struct {
	auth     *authenticator
	users    UserStore
	presence Presence
	log      *zap.Logger
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.userID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		switch r.URL.Query().Get("action") {
		case "get_profile":
			h.getProfile(w, r, userID)
		case "search_users":
			h.searchUsers(w, r)
		case "get_friends":
			h.getFriends(w, r, userID)
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
		case "update_profile":
			h.updateProfile(w, r, userID, body)
		case "add_friend":
			h.addFriend(w, r, userID, body)
		case "accept_friend":
			h.acceptFriend(w, r, userID, body)
		case "buy_verification":
			h.buyVerification(w, r, userID)
		default:
			writeError(w, h.log, errUnknownAction)
		}
	default:
		writeError(w, h.log, errUnknownAction)
	}
}

func (h *ProfileHandler) online(r *http.Request, id int) bool {
	if h.presence == nil {
		return false
	}
	online, err := h.presence.Online(r.Context(), id)
	if err != nil {
		h.log.Debug("presence lookup failed", zap.Int("user_id", id), zap.Error(err))
		return false
	}
	return online
}

// getProfile returns the caller's own record, or another user's public
// view when user_id is given.
func (h *ProfileHandler) getProfile(w http.ResponseWriter, r *http.Request, userID int) {
	target := userID
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			writeError(w, h.log, badRequest("Invalid user_id"))
			return
		}
		target = id
	}

	user, err := h.users.GetUserByID(r.Context(), target)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if target == userID {
		user.IsOnline = true
	} else {
		user.IsOnline = !user.GhostMode && h.online(r, target)
		user.Phone = ""
		user.Balance = decimal.Zero
		user.RaccoonCoins = 0
	}
	writeJSON(w, http.StatusOK, models.UserResponse{Response: ok(), User: user})
}

func (h *ProfileHandler) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusOK, models.UsersResponse{Response: ok(), Users: []models.User{}})
		return
	}
	users, err := h.users.SearchUsers(r.Context(), query, searchLimit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UsersResponse{Response: ok(), Users: users})
}

func (h *ProfileHandler) getFriends(w http.ResponseWriter, r *http.Request, userID int) {
	friends, err := h.users.GetFriends(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	// The stored flag already hides ghosts; live presence decides the rest.
	for i := range friends {
		friends[i].IsOnline = friends[i].IsOnline && h.online(r, friends[i].ID)
	}
	writeJSON(w, http.StatusOK, models.FriendsResponse{Response: ok(), Friends: friends})
}

func (h *ProfileHandler) updateProfile(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.UpdateProfileRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Username != nil {
		u := strings.TrimSpace(*req.Username)
		if !usernamePattern.MatchString(u) {
			writeError(w, h.log, badRequest("Username must be 3-32 letters, digits or underscores"))
			return
		}
		req.Username = &u
	}
	if req.Empty() {
		writeError(w, h.log, badRequest("Nothing to update"))
		return
	}
	if err := h.users.UpdateProfile(r.Context(), userID, req); err != nil {
		writeError(w, h.log, err)
		return
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	user.IsOnline = true
	writeJSON(w, http.StatusOK, models.UserResponse{Response: ok(), User: user})
}

func (h *ProfileHandler) addFriend(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.FriendRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.FriendID <= 0 || req.FriendID == userID {
		writeError(w, h.log, badRequest("Invalid friend_id"))
		return
	}
	if err := h.users.AddFriend(r.Context(), userID, req.FriendID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

func (h *ProfileHandler) acceptFriend(w http.ResponseWriter, r *http.Request, userID int, body []byte) {
	var req models.FriendRequest
	if err := decode(body, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.FriendID <= 0 {
		writeError(w, h.log, badRequest("Invalid friend_id"))
		return
	}
	if err := h.users.AcceptFriend(r.Context(), userID, req.FriendID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok())
}

func (h *ProfileHandler) buyVerification(w http.ResponseWriter, r *http.Request, userID int) {
	if err := h.users.BuyVerification(r.Context(), userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("verification purchased", zap.Int("user_id", userID))
	writeJSON(w, http.StatusOK, ok())
}
