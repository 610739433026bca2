package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/metrics"
	"github.com/cloudzz-dev/speakly/internal/server/payments"
	"github.com/cloudzz-dev/speakly/internal/server/ratelimit"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/cloudzz-dev/speakly/internal/server/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type UserStore interface {
	CreateUser(ctx context.Context, phone, username, displayName, passwordHash string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UserExists(ctx context.Context, id int) (bool, error)
	SetOnline(ctx context.Context, id int, online bool) error
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int, req models.UpdateProfileRequest) error
	BuyVerification(ctx context.Context, userID int) error
	GetFriends(ctx context.Context, userID int) ([]models.Friend, error)
	AddFriend(ctx context.Context, userID, friendID int) error
	AcceptFriend(ctx context.Context, userID, friendID int) error
}

type ChatStore interface {
	CreateChat(ctx context.Context, creatorID int, req models.CreateChatRequest) (int, error)
	GetUserChats(ctx context.Context, userID int) ([]models.Chat, error)
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
	ChatMembers(ctx context.Context, chatID int) ([]int, error)
	MessageChat(ctx context.Context, messageID int) (int, error)
	GetChatMessages(ctx context.Context, chatID, userID int) ([]models.Message, error)
	SaveMessage(ctx context.Context, nm storage.NewMessage) (*models.Message, error)
	AddReaction(ctx context.Context, messageID, userID int, emoji string) error
	ClearChat(ctx context.Context, chatID int) (int64, error)
}

type ShopStore interface {
	GetGifts(ctx context.Context) ([]models.Gift, error)
	GetUserGifts(ctx context.Context, userID int) ([]models.OwnedGift, error)
	GetBalance(ctx context.Context, userID int) (*models.Balance, error)
	BuyGift(ctx context.Context, userID, giftID int) error
	SendGift(ctx context.Context, userID, userGiftID, receiverID int) error
	BuyCoins(ctx context.Context, userID, amount int) (int, error)
	SendMoney(ctx context.Context, fromID, toID int, amount decimal.Decimal) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, id string, userID int, amount decimal.Decimal) error
	GetPayment(ctx context.Context, id string) (*storage.Payment, error)
	SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	CreditPayment(ctx context.Context, id string, amount decimal.Decimal) error
}

// Store is everything the endpoint groups need from persistence.
type Store interface {
	UserStore
	ChatStore
	ShopStore
	PaymentStore
}

type Verifier interface {
	SendCode(ctx context.Context, phone string) (string, error)
	VerifyCode(ctx context.Context, phone, code string) error
	IsVerified(ctx context.Context, phone string) (bool, error)
	Forget(ctx context.Context, phone string) error
}

type Presence interface {
	Touch(ctx context.Context, userID int) error
	Online(ctx context.Context, userID int) (bool, error)
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, fileType string) (string, error)
	Delete(ctx context.Context, url string) error
}

type Notifier interface {
	NotifyChat(userIDs []int, chatID int)
}

type Gateway interface {
	Create(ctx context.Context, userID int, amount decimal.Decimal, returnURL string) (*payments.Payment, error)
	Get(ctx context.Context, paymentID string) (*payments.Payment, error)
}

type Deps struct {
	Store    Store
	Verifier Verifier
	Presence Presence
	Uploader Uploader
	Notifier Notifier
	Gateway  Gateway
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	Hub         *ws.Hub
	ConnLimiter *ratelimit.RateLimiter
	IPLimiter   *ratelimit.IPLimiter

	AllowedOrigin    string
	ExposeDevCode    bool
	MaxUploadBytes   int64
	PaymentReturnURL string
}

// NewRouter wires the endpoint groups, websocket stream and operational
// endpoints behind the shared middleware chain.
func NewRouter(d Deps) *mux.Router {
	a := &authenticator{users: d.Store, presence: d.Presence, log: d.Log}
	bodyLimit := d.MaxUploadBytes*4/3 + 64<<10

	r := mux.NewRouter()
	r.Use(recoverer(d.Log), requestLogger(d.Log, d.Metrics), cors(d.AllowedOrigin))

	limited := rateLimit(d.IPLimiter)
	r.Handle("/auth", limited(&AuthHandler{
		users: d.Store, verifier: d.Verifier, presence: d.Presence, limiter: d.ConnLimiter,
		exposeDevCode: d.ExposeDevCode, log: d.Log,
	}))
	r.Handle("/chats", limited(&ChatsHandler{
		auth: a, chats: d.Store, uploader: d.Uploader, notifier: d.Notifier, metrics: d.Metrics,
		bodyLimit: bodyLimit, maxUpload: d.MaxUploadBytes, log: d.Log,
	}))
	r.Handle("/profile", limited(&ProfileHandler{auth: a, users: d.Store, presence: d.Presence, log: d.Log}))
	r.Handle("/shop", limited(&ShopHandler{auth: a, shop: d.Store, log: d.Log}))
	r.Handle("/payments", limited(&PaymentsHandler{
		auth: a, payments: d.Store, gateway: d.Gateway, metrics: d.Metrics,
		returnURL: d.PaymentReturnURL, log: d.Log,
	}))

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		HandleWebSocket(d, w, req)
	})
	r.HandleFunc("/health", HealthCheck)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	return r
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func newUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return originAllowed(allowedOrigin, r.Header.Get("Origin")) },
	}
}

// originAllowed applies the CORS origin to websocket upgrades. Requests
// without an Origin header come from native clients and pass.
func originAllowed(allowed, origin string) bool {
	if allowed == "" || allowed == "*" || origin == "" {
		return true
	}
	return strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/"))
}

func HandleWebSocket(d Deps, w http.ResponseWriter, r *http.Request) {
	clientIP := ratelimit.GetClientIP(r)

	// Rate limit: check connection count per IP
	if !d.ConnLimiter.CanConnect(clientIP) {
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		d.Log.Warn("rate limited connection", zap.String("ip", clientIP))
		return
	}

	conn, err := newUpgrader(d.AllowedOrigin).Upgrade(w, r, nil)
	if err != nil {
		d.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	d.ConnLimiter.AddConnection(clientIP)
	if d.Metrics != nil {
		d.Metrics.WSConnected()
	}

	client := &ws.Client{
		Hub:     d.Hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Limiter: d.ConnLimiter,
		Users:   d.Store,
		Log:     d.Log,
		IP:      clientIP,
	}

	// Writer goroutine
	go func() {
		defer func() {
			d.ConnLimiter.RemoveConnection(clientIP)
			if d.Metrics != nil {
				d.Metrics.WSDisconnected()
			}
		}()
		client.WritePump()
	}()

	// Reader goroutine
	go client.ReadPump()
}
