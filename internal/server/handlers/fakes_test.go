package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/payments"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/cloudzz-dev/speakly/internal/server/verify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeStore keeps everything in maps guarded by one mutex.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int]*models.User
	members  map[int][]int
	messages map[int][]models.Message
	gifts    []models.Gift
	owned    map[int][]models.OwnedGift
	payments map[string]*storage.Payment
	friends  map[[2]int]bool
	nextID   int
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[int]*models.User{},
		members:  map[int][]int{},
		messages: map[int][]models.Message{},
		gifts:    []models.Gift{{ID: 1, Name: "Raccoon", Emoji: "🦝", Price: 100, Category: "animals"}},
		owned:    map[int][]models.OwnedGift{},
		payments: map[string]*storage.Payment{},
		friends:  map[[2]int]bool{},
		nextID:   100,
	}
}

func (f *fakeStore) addUser(id int, phone, username string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, Phone: phone, Username: username, DisplayName: username, CreatedAt: time.Now()}
	f.users[id] = u
	return u
}

func (f *fakeStore) CreateUser(_ context.Context, phone, username, displayName, passwordHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone || u.Username == username {
			return nil, storage.ErrDuplicate
		}
	}
	f.nextID++
	u := &models.User{
		ID: f.nextID, Phone: phone, Username: username, DisplayName: displayName,
		PasswordHash: passwordHash, CreatedAt: time.Now(),
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UserExists(_ context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeStore) SetOnline(_ context.Context, id int, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.IsOnline = online
	}
	return nil
}

func (f *fakeStore) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) && len(out) < limit {
			out = append(out, models.User{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName})
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id int, req models.UpdateProfileRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	if req.DisplayName != nil {
		u.DisplayName = *req.DisplayName
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.GhostMode != nil {
		u.GhostMode = *req.GhostMode
	}
	return nil
}

func (f *fakeStore) BuyVerification(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	price := decimal.NewFromInt(models.VerificationPrice)
	if u.HasVerification {
		return storage.ErrAlreadyVerified
	}
	if u.Balance.LessThan(price) {
		return storage.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(price)
	u.HasVerification = true
	return nil
}

func (f *fakeStore) GetFriends(_ context.Context, userID int) ([]models.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Friend{}
	for pair, accepted := range f.friends {
		if !accepted {
			continue
		}
		other := pair[1]
		if pair[1] == userID {
			other = pair[0]
		} else if pair[0] != userID {
			continue
		}
		u := f.users[other]
		out = append(out, models.Friend{
			ID: u.ID, Username: u.Username, DisplayName: u.DisplayName,
			IsOnline: u.IsOnline && !u.GhostMode,
		})
	}
	return out, nil
}

func (f *fakeStore) AddFriend(_ context.Context, userID, friendID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[friendID]; !ok {
		return storage.ErrUserNotFound
	}
	key := [2]int{userID, friendID}
	if _, ok := f.friends[key]; !ok {
		f.friends[key] = false
	}
	return nil
}

func (f *fakeStore) AcceptFriend(_ context.Context, userID, friendID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int{friendID, userID}
	if _, ok := f.friends[key]; !ok {
		return storage.ErrNotFound
	}
	f.friends[key] = true
	return nil
}

func (f *fakeStore) CreateChat(_ context.Context, creatorID int, req models.CreateChatRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.members[f.nextID] = append([]int{creatorID}, req.Members...)
	return f.nextID, nil
}

func (f *fakeStore) GetUserChats(_ context.Context, userID int) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Chat{}
	for id, members := range f.members {
		for _, m := range members {
			if m == userID {
				out = append(out, models.Chat{ID: id, Type: models.ChatPrivate})
			}
		}
	}
	return out, nil
}

func (f *fakeStore) IsMember(_ context.Context, chatID, userID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[chatID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ChatMembers(_ context.Context, chatID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.members[chatID]...), nil
}

func (f *fakeStore) MessageChat(_ context.Context, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for chatID, msgs := range f.messages {
		for _, m := range msgs {
			if m.ID == messageID {
				return chatID, nil
			}
		}
	}
	return 0, storage.ErrNotFound
}

func (f *fakeStore) GetChatMessages(_ context.Context, chatID, _ int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message{}, f.messages[chatID]...), nil
}

func (f *fakeStore) SaveMessage(_ context.Context, nm storage.NewMessage) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.nextID++
	m := models.Message{
		ID: f.nextID, ChatID: nm.ChatID, SenderID: nm.SenderID, Content: nm.Content,
		Type: nm.Type, FileURL: nm.FileURL, Duration: nm.Duration, CreatedAt: time.Now(),
	}
	f.messages[nm.ChatID] = append(f.messages[nm.ChatID], m)
	return &m, nil
}

func (f *fakeStore) AddReaction(_ context.Context, messageID, _ int, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for chatID, msgs := range f.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				f.messages[chatID][i].Reactions = append(msgs[i].Reactions, models.Reaction{Emoji: emoji, Count: 1})
			}
		}
	}
	return nil
}

func (f *fakeStore) ClearChat(_ context.Context, chatID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.messages[chatID]))
	delete(f.messages, chatID)
	return n, nil
}

func (f *fakeStore) GetGifts(context.Context) ([]models.Gift, error) {
	return f.gifts, nil
}

func (f *fakeStore) GetUserGifts(_ context.Context, userID int) ([]models.OwnedGift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OwnedGift{}, f.owned[userID]...), nil
}

func (f *fakeStore) GetBalance(_ context.Context, userID int) (*models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &models.Balance{Balance: u.Balance, RaccoonCoins: u.RaccoonCoins}, nil
}

func (f *fakeStore) BuyGift(_ context.Context, userID, giftID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.gifts {
		if g.ID != giftID {
			continue
		}
		u := f.users[userID]
		if u.RaccoonCoins < g.Price {
			return storage.ErrInsufficientCoins
		}
		u.RaccoonCoins -= g.Price
		f.owned[userID] = append(f.owned[userID], models.OwnedGift{ID: len(f.owned[userID]) + 1, Name: g.Name, Emoji: g.Emoji, Price: g.Price, Quantity: 1})
		return nil
	}
	return storage.ErrNotFound
}

func (f *fakeStore) SendGift(context.Context, int, int, int) error { return nil }

func (f *fakeStore) BuyCoins(_ context.Context, userID, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	cost := decimal.NewFromInt(int64(amount))
	if u.Balance.LessThan(cost) {
		return 0, storage.ErrInsufficientBalance
	}
	received := models.ReceivedCoins(amount)
	u.Balance = u.Balance.Sub(cost)
	u.RaccoonCoins += received
	return received, nil
}

func (f *fakeStore) SendMoney(_ context.Context, fromID, toID int, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, to := f.users[fromID], f.users[toID]
	if to == nil {
		return storage.ErrUserNotFound
	}
	if from.Balance.LessThan(amount) {
		return storage.ErrInsufficientBalance
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, id string, userID int, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id] = &storage.Payment{ID: id, UserID: userID, Amount: amount, Status: models.PaymentPending}
	return nil
}

func (f *fakeStore) GetPayment(_ context.Context, id string) (*storage.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) SetPaymentStatus(_ context.Context, id string, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[id]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakeStore) CreditPayment(_ context.Context, id string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return storage.ErrNotFound
	}
	if p.Credited {
		return storage.ErrAlreadyCredited
	}
	p.Credited = true
	p.Status = models.PaymentSucceeded
	u := f.users[p.UserID]
	u.Balance = u.Balance.Add(amount)
	return nil
}

type fakeVerifier struct {
	mu       sync.Mutex
	codes    map[string]string
	verified map[string]bool
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{codes: map[string]string{}, verified: map[string]bool{}}
}

func (v *fakeVerifier) SendCode(_ context.Context, phone string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes[phone] = "123456"
	return "123456", nil
}

func (v *fakeVerifier) VerifyCode(_ context.Context, phone, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.codes[phone] == "" || v.codes[phone] != code {
		return verify.ErrInvalidCode
	}
	delete(v.codes, phone)
	v.verified[phone] = true
	return nil
}

func (v *fakeVerifier) IsVerified(_ context.Context, phone string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verified[phone], nil
}

func (v *fakeVerifier) Forget(_ context.Context, phone string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.verified, phone)
	return nil
}

type fakePresence struct {
	mu     sync.Mutex
	online map[int]bool
}

func (p *fakePresence) Touch(_ context.Context, userID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) Online(_ context.Context, userID int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}

type fakeUploader struct {
	uploads int
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, fileType string) (string, error) {
	u.uploads++
	return "https://files.example/uploads/" + strconv.Itoa(u.uploads) + "." + fileType, nil
}

func (u *fakeUploader) Delete(_ context.Context, url string) error {
	u.deleted = append(u.deleted, url)
	return nil
}

type notification struct {
	userIDs []int
	chatID  int
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *fakeNotifier) NotifyChat(userIDs []int, chatID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{userIDs: userIDs, chatID: chatID})
}

type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]*payments.Payment
	err      error
}

func (g *fakeGateway) Create(_ context.Context, userID int, amount decimal.Decimal, returnURL string) (*payments.Payment, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &payments.Payment{
		ID: "pay-" + strconv.Itoa(len(g.payments)+1), Status: models.PaymentPending, Amount: amount,
		ConfirmationURL: "https://pay.example/confirm?return=" + returnURL, UserID: userID,
	}
	g.payments[p.ID] = p
	return p, nil
}

func (g *fakeGateway) Get(_ context.Context, id string) (*payments.Payment, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, &payments.APIError{StatusCode: http.StatusNotFound, Code: "not_found", Description: "Payment not found"}
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) settle(id string, status models.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id].Status = status
}

type testEnv struct {
	store    *fakeStore
	verifier *fakeVerifier
	presence *fakePresence
	notifier *fakeNotifier
	gateway  *fakeGateway
	uploader *fakeUploader
	router   http.Handler
}

func newTestEnv(t *testing.T, exposeDevCode bool, opts ...func(*Deps)) *testEnv {
	t.Helper()
	e := &testEnv{
		store:    newFakeStore(),
		verifier: newFakeVerifier(),
		presence: &fakePresence{online: map[int]bool{}},
		notifier: &fakeNotifier{},
		gateway:  &fakeGateway{payments: map[string]*payments.Payment{}},
		uploader: &fakeUploader{},
	}
	d := Deps{
		Store:            e.store,
		Verifier:         e.verifier,
		Presence:         e.presence,
		Uploader:         e.uploader,
		Notifier:         e.notifier,
		Gateway:          e.gateway,
		Log:              zap.NewNop(),
		AllowedOrigin:    "*",
		ExposeDevCode:    exposeDevCode,
		MaxUploadBytes:   1 << 20,
		PaymentReturnURL: "https://speakly.test/return",
	}
	for _, opt := range opts {
		opt(&d)
	}
	e.router = NewRouter(d)
	return e
}

// do sends a request through the router. userID 0 leaves the identity
// header off.
func (e *testEnv) do(t *testing.T, method, target string, userID int, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set(models.UserIDHeader, strconv.Itoa(userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
