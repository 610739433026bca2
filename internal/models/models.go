package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Balances travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	UserIDHeader = "X-User-Id"

	PollInterval = 3 * time.Second

	// VerificationPrice is charged from the primary balance.
	VerificationPrice = 5000

	// CoinBonusPercent is added on top of every raccoon coin purchase.
	CoinBonusPercent = 10
)

type User struct {
	ID              int             `json:"id"`
	Phone           string          `json:"phone,omitempty"`
	Username        string          `json:"username"`
	DisplayName     string          `json:"display_name"`
	AvatarURL       *string         `json:"avatar_url,omitempty"`
	BannerURL       *string         `json:"banner_url,omitempty"`
	Bio             *string         `json:"bio,omitempty"`
	Status          *string         `json:"status,omitempty"`
	StatusEmoji     *string         `json:"status_emoji,omitempty"`
	HasVerification bool            `json:"has_verification"`
	GhostMode       bool            `json:"ghost_mode"`
	IsOnline        bool            `json:"is_online"`
	Balance         decimal.Decimal `json:"balance"`
	RaccoonCoins    int             `json:"raccoon_coins"`
	PasswordHash    string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	LastSeen        *time.Time      `json:"last_seen,omitempty"`
}

// Name is what the UI shows for a user.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
	ChatChannel ChatType = "channel"
	ChatSaved   ChatType = "saved"
)

func (t ChatType) Valid() bool {
	switch t {
	case ChatPrivate, ChatGroup, ChatChannel, ChatSaved:
		return true
	}
	return false
}

type Chat struct {
	ID          int       `json:"id"`
	Type        ChatType  `json:"type"`
	Name        string    `json:"name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	LastMessage *string   `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessagePhoto MessageType = "photo"
	MessageVoice MessageType = "voice"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessagePhoto, MessageVoice:
		return true
	}
	return false
}

type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// ReactionEmojis is the fixed set offered under every message.
var ReactionEmojis = []string{"❤️", "👍"}

type Message struct {
	ID             int         `json:"id"`
	ChatID         int         `json:"chat_id"`
	SenderID       int         `json:"sender_id"`
	SenderUsername string      `json:"sender_username,omitempty"`
	SenderName     string      `json:"sender_name,omitempty"`
	SenderAvatar   *string     `json:"sender_avatar,omitempty"`
	Content        string      `json:"content"`
	Type           MessageType `json:"message_type"`
	FileURL        *string     `json:"file_url,omitempty"`
	Duration       *int        `json:"duration,omitempty"`
	ReplyTo        *int        `json:"reply_to,omitempty"`
	Reactions      []Reaction  `json:"reactions"`
	IsRead         bool        `json:"is_read"`
	IsEdited       bool        `json:"is_edited"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Gift struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Emoji    string `json:"emoji"`
	Price    int    `json:"price"`
	Category string `json:"category"`
}

type OwnedGift struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Emoji      string    `json:"emoji"`
	Price      int       `json:"price"`
	Sender     *string   `json:"sender,omitempty"`
	Quantity   int       `json:"quantity"`
	ReceivedAt time.Time `json:"received_at"`
}

type Friend struct {
	ID          int     `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	IsOnline    bool    `json:"is_online"`
}

type Balance struct {
	Balance      decimal.Decimal `json:"balance"`
	RaccoonCoins int             `json:"raccoon_coins"`
}

type Track struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Duration   int    `json:"duration"`
	PreviewURL string `json:"preview_url"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// CoinBonus is the integer bonus granted for buying amount coins.
func CoinBonus(amount int) int {
	return amount * CoinBonusPercent / 100
}

// ReceivedCoins is what lands in the coin balance for a purchase of amount.
func ReceivedCoins(amount int) int {
	return amount + CoinBonus(amount)
}
