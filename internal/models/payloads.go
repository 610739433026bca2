package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Response is the envelope shared by every endpoint group.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ActionRequest is decoded first to route a POST body.
type ActionRequest struct {
	Action string `json:"action"`
}

// Auth

type SendCodeRequest struct {
	Phone string `json:"phone"`
}

type SendCodeResponse struct {
	Response
	DevCode string `json:"dev_code,omitempty"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type VerifyCodeResponse struct {
	Response
	Verified bool `json:"verified"`
}

type RegisterRequest struct {
	Phone       string `json:"phone"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type UserResponse struct {
	Response
	User *User `json:"user,omitempty"`
}

// Chats

type CreateChatRequest struct {
	Type    ChatType `json:"type"`
	Name    string   `json:"name"`
	Members []int    `json:"members"`
}

type CreateChatResponse struct {
	Response
	ChatID int `json:"chat_id"`
}

type SendMessageRequest struct {
	ChatID   int         `json:"chat_id"`
	Content  string      `json:"content"`
	Type     MessageType `json:"message_type"`
	ReplyTo  *int        `json:"reply_to,omitempty"`
	FileData string      `json:"file_data,omitempty"`
	FileType string      `json:"file_type,omitempty"`
	Duration *int        `json:"duration,omitempty"`
}

type SendMessageResponse struct {
	Response
	MessageID int    `json:"message_id"`
	CreatedAt string `json:"created_at"`
}

type AddReactionRequest struct {
	MessageID int    `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type ChatsResponse struct {
	Response
	Chats []Chat `json:"chats"`
}

type MessagesResponse struct {
	Response
	Messages []Message `json:"messages"`
}

// Profile

// UpdateProfileRequest only touches the fields that are present.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Username    *string `json:"username,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Status      *string `json:"status,omitempty"`
	StatusEmoji *string `json:"status_emoji,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	BannerURL   *string `json:"banner_url,omitempty"`
	GhostMode   *bool   `json:"ghost_mode,omitempty"`
}

func (r UpdateProfileRequest) Empty() bool {
	return r.DisplayName == nil && r.Username == nil && r.Bio == nil && r.Status == nil &&
		r.StatusEmoji == nil && r.AvatarURL == nil && r.BannerURL == nil && r.GhostMode == nil
}

type FriendRequest struct {
	FriendID int `json:"friend_id"`
}

type UsersResponse struct {
	Response
	Users []User `json:"users"`
}

type FriendsResponse struct {
	Response
	Friends []Friend `json:"friends"`
}

// Shop

type GiftsResponse struct {
	Response
	Gifts []Gift `json:"gifts"`
}

type OwnedGiftsResponse struct {
	Response
	Gifts []OwnedGift `json:"gifts"`
}

type BalanceResponse struct {
	Response
	Balance
}

type BuyGiftRequest struct {
	GiftID int `json:"gift_id"`
}

type SendGiftRequest struct {
	UserGiftID int `json:"user_gift_id"`
	ReceiverID int `json:"receiver_id"`
}

type BuyCoinsRequest struct {
	Amount int `json:"amount"`
}

type BuyCoinsResponse struct {
	Response
	Received int `json:"received"`
}

type SendMoneyRequest struct {
	ReceiverID int             `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Payments

type CreatePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	ReturnURL string          `json:"return_url"`
}

type CreatePaymentResponse struct {
	Response
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

type CheckPaymentRequest struct {
	PaymentID string `json:"payment_id"`
}

type CheckPaymentResponse struct {
	Response
	Status PaymentStatus    `json:"status"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Events pushed over /ws.

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WSAuthPayload struct {
	UserID int `json:"user_id"`
}

type ChatUpdatedEvent struct {
	Type   string `json:"type"`
	ChatID int    `json:"chat_id"`
}

const EventChatUpdated = "chat_updated"
