package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/payments"
	"github.com/shopspring/decimal"
)

func TestSendCodeDevCode(t *testing.T) {
	tests := []struct {
		name   string
		expose bool
		want   string
	}{
		{"exposed", true, "123456"},
		{"hidden", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, tt.expose)
			rec := e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "send_code", "phone": "+7 900 123-45-67"})
			expectStatus(t, rec, http.StatusOK)

			var resp models.SendCodeResponse
			decodeBody(t, rec, &resp)
			if !resp.Success {
				t.Fatal("expected success")
			}
			if resp.DevCode != tt.want {
				t.Errorf("expected dev_code %q, got %q", tt.want, resp.DevCode)
			}
		})
	}
}

func TestRegistrationFlow(t *testing.T) {
	e := newTestEnv(t, true)
	phone := "+79001234567"
	register := map[string]string{
		"action": "register", "phone": phone, "username": "raccoon_fan", "password": "secret1",
	}

	// Registration before verification is refused.
	rec := e.do(t, http.MethodPost, "/auth", 0, register)
	expectStatus(t, rec, http.StatusBadRequest)

	e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "send_code", "phone": phone})

	rec = e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "verify_code", "phone": phone, "code": "000000"})
	expectStatus(t, rec, http.StatusBadRequest)
	var bad models.VerifyCodeResponse
	decodeBody(t, rec, &bad)
	if bad.Success || bad.Verified || bad.Error != "Invalid code" {
		t.Fatalf("unexpected invalid-code response: %+v", bad)
	}

	e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "send_code", "phone": phone})
	rec = e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "verify_code", "phone": phone, "code": "123456"})
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodPost, "/auth", 0, register)
	expectStatus(t, rec, http.StatusOK)
	var reg models.UserResponse
	decodeBody(t, rec, &reg)
	if reg.User == nil || reg.User.Username != "raccoon_fan" || reg.User.DisplayName != "raccoon_fan" {
		t.Fatalf("unexpected registered user: %+v", reg.User)
	}

	// The verification is consumed by registration.
	if ok, _ := e.verifier.IsVerified(context.Background(), phone); ok {
		t.Error("verified marker should be cleared after registration")
	}

	rec = e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "login", "phone": phone, "password": "wrong!"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = e.do(t, http.MethodPost, "/auth", 0, map[string]string{"action": "login", "phone": phone, "password": "secret1"})
	expectStatus(t, rec, http.StatusOK)
	var login models.UserResponse
	decodeBody(t, rec, &login)
	if login.User == nil || login.User.ID != reg.User.ID || !login.User.IsOnline {
		t.Fatalf("unexpected login user: %+v", login.User)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"action": "register", "phone": "+7900", "username": "ab", "password": "secret1"}},
		{"bad username", map[string]string{"action": "register", "phone": "+7900", "username": "has space", "password": "secret1"}},
		{"short password", map[string]string{"action": "register", "phone": "+7900", "username": "valid_name", "password": "123"}},
		{"missing phone", map[string]string{"action": "register", "username": "valid_name", "password": "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, false)
			expectStatus(t, e.do(t, http.MethodPost, "/auth", 0, tt.body), http.StatusBadRequest)
		})
	}
}

func TestRequestFailures(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")

	tests := []struct {
		name   string
		method string
		target string
		userID int
		body   any
		want   int
	}{
		{"missing user header", http.MethodGet, "/chats?action=list_chats", 0, nil, http.StatusUnauthorized},
		{"unknown user", http.MethodGet, "/chats?action=list_chats", 999, nil, http.StatusUnauthorized},
		{"unknown get action", http.MethodGet, "/chats?action=nope", 1, nil, http.StatusMethodNotAllowed},
		{"unknown post action", http.MethodPost, "/profile", 1, map[string]string{"action": "nope"}, http.StatusMethodNotAllowed},
		{"wrong method", http.MethodPut, "/shop?action=get_balance", 1, nil, http.StatusMethodNotAllowed},
		{"auth via get", http.MethodGet, "/auth?action=login", 0, nil, http.StatusMethodNotAllowed},
		{"missing chat id", http.MethodGet, "/chats?action=get_messages", 1, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.target, tt.userID, tt.body)
			expectStatus(t, rec, tt.want)
			var resp models.Response
			decodeBody(t, rec, &resp)
			if resp.Success || resp.Error == "" {
				t.Errorf("expected failure envelope, got %s", rec.Body.String())
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodOptions, "/chats", 0, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow-origin *, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-User-Id" {
		t.Errorf("unexpected allow-headers %q", got)
	}
}

func TestSendMessage(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.addUser(2, "+7002", "bob")
	e.store.addUser(3, "+7003", "eve")
	e.store.members[42] = []int{1, 2}

	rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "send_message", "chat_id": 42, "content": "   "})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, http.MethodPost, "/chats", 3, map[string]any{"action": "send_message", "chat_id": 42, "content": "hi"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "send_message", "chat_id": 42, "content": "hello"})
	expectStatus(t, rec, http.StatusOK)
	var resp models.SendMessageResponse
	decodeBody(t, rec, &resp)
	if resp.MessageID == 0 || resp.CreatedAt == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	msgs := e.store.messages[42]
	if len(msgs) != 1 || msgs[0].Type != models.MessageText || msgs[0].SenderID != 1 {
		t.Fatalf("unexpected stored messages: %+v", msgs)
	}

	if len(e.notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(e.notifier.calls))
	}
	call := e.notifier.calls[0]
	if call.chatID != 42 || len(call.userIDs) != 2 {
		t.Errorf("unexpected notification: %+v", call)
	}
}

func TestSendPhotoUploads(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.members[7] = []int{1}

	data := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not really a jpeg"))
	rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{
		"action": "send_message", "chat_id": 7, "message_type": "photo", "file_data": data, "file_type": "image/jpeg",
	})
	expectStatus(t, rec, http.StatusOK)

	msgs := e.store.messages[7]
	if len(msgs) != 1 || msgs[0].FileURL == nil || msgs[0].Type != models.MessagePhoto {
		t.Fatalf("expected a photo message with a file url, got %+v", msgs)
	}
}

func TestSendMessageReplyScope(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.members[7] = []int{1}
	e.store.members[8] = []int{1}
	e.store.messages[8] = []models.Message{{ID: 500, ChatID: 8, SenderID: 1, Content: "elsewhere"}}
	e.store.messages[7] = []models.Message{{ID: 501, ChatID: 7, SenderID: 1, Content: "here"}}

	photo := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	tests := []struct {
		name    string
		replyTo int
		want    int
	}{
		{"missing message", 9999, http.StatusBadRequest},
		{"message of another chat", 500, http.StatusBadRequest},
		{"message of this chat", 501, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.uploader.uploads
			rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{
				"action": "send_message", "chat_id": 7, "message_type": "photo",
				"file_data": photo, "file_type": "image/jpeg", "reply_to": tt.replyTo,
			})
			expectStatus(t, rec, tt.want)
			uploaded := e.uploader.uploads - before
			if tt.want != http.StatusOK && uploaded != 0 {
				t.Errorf("rejected reply still uploaded %d files", uploaded)
			}
		})
	}
}

func TestSendMessageCleansUpOnSaveFailure(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.members[7] = []int{1}
	e.store.saveErr = errors.New("db down")

	rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{
		"action": "send_message", "chat_id": 7, "message_type": "voice",
		"file_data": base64.StdEncoding.EncodeToString([]byte("ogg")), "file_type": "audio/ogg",
	})
	expectStatus(t, rec, http.StatusInternalServerError)
	if e.uploader.uploads != 1 || len(e.uploader.deleted) != 1 {
		t.Fatalf("uploads=%d deleted=%v, want the upload removed again", e.uploader.uploads, e.uploader.deleted)
	}
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.addUser(2, "+7002", "bob")
	e.store.members[5] = []int{1}

	expectStatus(t, e.do(t, http.MethodGet, "/chats?action=get_messages&chat_id=5", 2, nil), http.StatusForbidden)

	rec := e.do(t, http.MethodGet, "/chats?action=get_messages&chat_id=5", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp models.MessagesResponse
	decodeBody(t, rec, &resp)
	if resp.Messages == nil {
		t.Error("messages must be an empty array, not null")
	}
}

func TestClearChat(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.members[9] = []int{1}
	for _, text := range []string{"one", "two"} {
		rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "send_message", "chat_id": 9, "content": text})
		expectStatus(t, rec, http.StatusOK)
	}

	expectStatus(t, e.do(t, http.MethodDelete, "/chats?action=clear_chat&chat_id=9", 1, nil), http.StatusOK)
	if n := len(e.store.messages[9]); n != 0 {
		t.Errorf("expected chat to be empty, got %d messages", n)
	}
}

func TestAddReaction(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.members[3] = []int{1}
	rec := e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "send_message", "chat_id": 3, "content": "hi"})
	var sent models.SendMessageResponse
	decodeBody(t, rec, &sent)

	rec = e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "add_reaction", "message_id": sent.MessageID, "emoji": "👍"})
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodPost, "/chats", 1, map[string]any{"action": "add_reaction", "message_id": 12345, "emoji": "👍"})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestGetProfileHidesPrivateFields(t *testing.T) {
	e := newTestEnv(t, false)
	alice := e.store.addUser(1, "+7001", "alice")
	alice.Balance = decimal.NewFromInt(50)
	bob := e.store.addUser(2, "+7002", "bob")
	bob.Balance = decimal.NewFromInt(900)
	bob.GhostMode = true
	e.presence.online[2] = true

	rec := e.do(t, http.MethodGet, "/profile?action=get_profile", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var own models.UserResponse
	decodeBody(t, rec, &own)
	if own.User.Phone != "+7001" || !own.User.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("own profile should include phone and balance: %+v", own.User)
	}

	rec = e.do(t, http.MethodGet, "/profile?action=get_profile&user_id=2", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var other models.UserResponse
	decodeBody(t, rec, &other)
	if other.User.Phone != "" || !other.User.Balance.IsZero() {
		t.Errorf("other profile leaked private fields: %+v", other.User)
	}
	if other.User.IsOnline {
		t.Error("ghost mode user must appear offline")
	}

	expectStatus(t, e.do(t, http.MethodGet, "/profile?action=get_profile&user_id=77", 1, nil), http.StatusNotFound)
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")

	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "update_profile"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "update_profile", "username": "x"}), http.StatusBadRequest)

	rec := e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "update_profile", "display_name": "Alice A."})
	expectStatus(t, rec, http.StatusOK)
	var resp models.UserResponse
	decodeBody(t, rec, &resp)
	if resp.User.DisplayName != "Alice A." {
		t.Errorf("expected display name to change, got %q", resp.User.DisplayName)
	}
}

func TestFriends(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.addUser(2, "+7002", "bob")

	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "add_friend", "friend_id": 1}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "add_friend", "friend_id": 55}), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "add_friend", "friend_id": 2}), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "accept_friend", "friend_id": 2}), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/profile", 2, map[string]any{"action": "accept_friend", "friend_id": 1}), http.StatusOK)

	rec := e.do(t, http.MethodGet, "/profile?action=get_friends", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp models.FriendsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Friends) != 1 || resp.Friends[0].ID != 2 {
		t.Fatalf("unexpected friends: %+v", resp.Friends)
	}
}

func TestSearchUsers(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")
	e.store.addUser(2, "+7002", "bobby")

	rec := e.do(t, http.MethodGet, "/profile?action=search_users&query=BOB", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp models.UsersResponse
	decodeBody(t, rec, &resp)
	if len(resp.Users) != 1 || resp.Users[0].Username != "bobby" || resp.Users[0].Phone != "" {
		t.Fatalf("unexpected search result: %+v", resp.Users)
	}
}

func TestBuyVerificationInsufficientBalance(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")

	rec := e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "buy_verification"})
	expectStatus(t, rec, http.StatusBadRequest)
	var resp models.Response
	decodeBody(t, rec, &resp)
	if resp.Error != "Insufficient balance" {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestBuyVerificationTwice(t *testing.T) {
	e := newTestEnv(t, false)
	u := e.store.addUser(1, "+7001", "alice")
	u.Balance = decimal.NewFromInt(2 * models.VerificationPrice)

	rec := e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "buy_verification"})
	expectStatus(t, rec, http.StatusOK)
	rec = e.do(t, http.MethodPost, "/profile", 1, map[string]any{"action": "buy_verification"})
	expectStatus(t, rec, http.StatusConflict)

	if want := decimal.NewFromInt(models.VerificationPrice); !u.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s after one purchase", u.Balance, want)
	}
}

func TestShop(t *testing.T) {
	e := newTestEnv(t, false)
	alice := e.store.addUser(1, "+7001", "alice")
	alice.RaccoonCoins = 50
	alice.Balance = decimal.NewFromInt(500)

	// The catalog is public.
	rec := e.do(t, http.MethodGet, "/shop?action=get_gifts", 0, nil)
	expectStatus(t, rec, http.StatusOK)
	var gifts models.GiftsResponse
	decodeBody(t, rec, &gifts)
	if len(gifts.Gifts) != 1 {
		t.Fatalf("expected one gift, got %d", len(gifts.Gifts))
	}

	rec = e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "buy_gift", "gift_id": 1})
	expectStatus(t, rec, http.StatusBadRequest)
	var failed models.Response
	decodeBody(t, rec, &failed)
	if failed.Error != "Not enough raccoon coins" {
		t.Errorf("unexpected error %q", failed.Error)
	}
	if alice.RaccoonCoins != 50 {
		t.Errorf("failed purchase changed coins to %d", alice.RaccoonCoins)
	}

	rec = e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "buy_raccoon_coins", "amount": 100})
	expectStatus(t, rec, http.StatusOK)
	var bought models.BuyCoinsResponse
	decodeBody(t, rec, &bought)
	if bought.Received != 110 {
		t.Errorf("expected 110 coins with bonus, got %d", bought.Received)
	}

	rec = e.do(t, http.MethodGet, "/shop?action=get_balance", 1, nil)
	expectStatus(t, rec, http.StatusOK)
	var bal models.BalanceResponse
	decodeBody(t, rec, &bal)
	if bal.RaccoonCoins != 160 || !bal.Balance.Balance.Equal(decimal.NewFromInt(400)) {
		t.Errorf("unexpected balance: %+v", bal.Balance)
	}

	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "buy_gift", "gift_id": 1}), http.StatusOK)
	rec = e.do(t, http.MethodGet, "/shop?action=my_gifts", 1, nil)
	var owned models.OwnedGiftsResponse
	decodeBody(t, rec, &owned)
	if len(owned.Gifts) != 1 || owned.Gifts[0].Name != "Raccoon" {
		t.Errorf("unexpected owned gifts: %+v", owned.Gifts)
	}

	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "buy_raccoon_coins", "amount": 0}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "buy_raccoon_coins", "amount": 10000}), http.StatusBadRequest)
}

func TestSendMoney(t *testing.T) {
	e := newTestEnv(t, false)
	alice := e.store.addUser(1, "+7001", "alice")
	alice.Balance = decimal.NewFromInt(100)
	bob := e.store.addUser(2, "+7002", "bob")

	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "send_money", "receiver_id": 1, "amount": 10}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "send_money", "receiver_id": 2, "amount": 500}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "send_money", "receiver_id": 2, "amount": 0.001}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/shop", 1, map[string]any{"action": "send_money", "receiver_id": 2, "amount": 30.5}), http.StatusOK)

	if !bob.Balance.Equal(decimal.RequireFromString("30.5")) || !alice.Balance.Equal(decimal.RequireFromString("69.5")) {
		t.Errorf("unexpected balances alice=%s bob=%s", alice.Balance, bob.Balance)
	}
}

func TestPaymentCreditedOnce(t *testing.T) {
	e := newTestEnv(t, false)
	alice := e.store.addUser(1, "+7001", "alice")
	e.store.addUser(2, "+7002", "bob")

	rec := e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "create_payment", "amount": 250})
	expectStatus(t, rec, http.StatusOK)
	var created models.CreatePaymentResponse
	decodeBody(t, rec, &created)
	if created.PaymentID == "" || created.ConfirmationURL == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	check := map[string]any{"action": "check_payment", "payment_id": created.PaymentID}

	rec = e.do(t, http.MethodPost, "/payments", 1, check)
	expectStatus(t, rec, http.StatusOK)
	var pending models.CheckPaymentResponse
	decodeBody(t, rec, &pending)
	if pending.Status != models.PaymentPending || pending.Amount != nil {
		t.Errorf("unexpected pending response: %+v", pending)
	}

	// Someone else's payment looks like it does not exist.
	expectStatus(t, e.do(t, http.MethodPost, "/payments", 2, check), http.StatusNotFound)

	e.gateway.settle(created.PaymentID, models.PaymentSucceeded)
	for i := 0; i < 2; i++ {
		rec = e.do(t, http.MethodPost, "/payments", 1, check)
		expectStatus(t, rec, http.StatusOK)
		var done models.CheckPaymentResponse
		decodeBody(t, rec, &done)
		if done.Status != models.PaymentSucceeded || done.Amount == nil || !done.Amount.Equal(decimal.NewFromInt(250)) {
			t.Fatalf("check %d: unexpected response %+v", i, done)
		}
	}
	if !alice.Balance.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected balance 250 after two checks, got %s", alice.Balance)
	}
}

func TestPaymentValidation(t *testing.T) {
	e := newTestEnv(t, false)
	e.store.addUser(1, "+7001", "alice")

	expectStatus(t, e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "create_payment", "amount": -5}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "create_payment", "amount": 0.004}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "check_payment"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "check_payment", "payment_id": "missing"}), http.StatusNotFound)

	e.gateway.err = payments.ErrNotConfigured
	expectStatus(t, e.do(t, http.MethodPost, "/payments", 1, map[string]any{"action": "create_payment", "amount": 100}), http.StatusServiceUnavailable)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodGet, "/health", 0, nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "OK" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
