// Package api is the typed HTTP client for the Speakly endpoint groups.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

const (
	groupAuth     = "/auth"
	groupChats    = "/chats"
	groupProfile  = "/profile"
	groupShop     = "/shop"
	groupPayments = "/payments"
)

// Error is a success:false answer from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Client talks to one Speakly server. The current user id is attached to
// every request as the identity header once set.
type Client struct {
	baseURL string
	http    *http.Client

	mu     sync.RWMutex
	userID int
}

// New builds a client for baseURL. A nil hc means http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) SetUser(id int) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Client) UserID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) get(ctx context.Context, group, action string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)
	return c.do(ctx, http.MethodGet, group+"?"+params.Encode(), nil, out)
}

func (c *Client) delete(ctx context.Context, group, action string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)
	return c.do(ctx, http.MethodDelete, group+"?"+params.Encode(), nil, out)
}

// post sends body with the action merged into the same JSON object.
func (c *Client) post(ctx context.Context, group, action string, body any, out any) error {
	fields := map[string]json.RawMessage{}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", action, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("encode %s: %w", action, err)
		}
	}
	fields["action"], _ = json.Marshal(action)

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}
	return c.do(ctx, http.MethodPost, group, data, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := c.UserID(); id > 0 {
		req.Header.Set(models.UserIDHeader, strconv.Itoa(id))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env models.Response
	if err := json.Unmarshal(data, &env); err != nil {
		return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if !env.Success || resp.StatusCode >= 400 {
		return &Error{Status: resp.StatusCode, Message: env.Error}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Auth

// SendCode requests a verification code. The code itself comes back only
// when the server runs with dev codes exposed.
func (c *Client) SendCode(ctx context.Context, phone string) (string, error) {
	var resp models.SendCodeResponse
	if err := c.post(ctx, groupAuth, "send_code", models.SendCodeRequest{Phone: phone}, &resp); err != nil {
		return "", err
	}
	return resp.DevCode, nil
}

func (c *Client) VerifyCode(ctx context.Context, phone, code string) error {
	var resp models.VerifyCodeResponse
	if err := c.post(ctx, groupAuth, "verify_code", models.VerifyCodeRequest{Phone: phone, Code: code}, &resp); err != nil {
		return err
	}
	if !resp.Verified {
		return &Error{Status: http.StatusOK, Message: "Invalid code"}
	}
	return nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var resp models.UserResponse
	if err := c.post(ctx, groupAuth, "register", req, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, phone, password string) (*models.User, error) {
	var resp models.UserResponse
	if err := c.post(ctx, groupAuth, "login", models.LoginRequest{Phone: phone, Password: password}, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Chats

func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var resp models.ChatsResponse
	if err := c.get(ctx, groupChats, "list_chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

func (c *Client) GetMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	var resp models.MessagesResponse
	params := url.Values{"chat_id": {strconv.Itoa(chatID)}}
	if err := c.get(ctx, groupChats, "get_messages", params, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) CreateChat(ctx context.Context, req models.CreateChatRequest) (int, error) {
	var resp models.CreateChatResponse
	if err := c.post(ctx, groupChats, "create_chat", req, &resp); err != nil {
		return 0, err
	}
	return resp.ChatID, nil
}

func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	var resp models.SendMessageResponse
	if err := c.post(ctx, groupChats, "send_message", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddReaction(ctx context.Context, messageID int, emoji string) error {
	return c.post(ctx, groupChats, "add_reaction", models.AddReactionRequest{MessageID: messageID, Emoji: emoji}, nil)
}

func (c *Client) ClearChat(ctx context.Context, chatID int) error {
	return c.delete(ctx, groupChats, "clear_chat", url.Values{"chat_id": {strconv.Itoa(chatID)}}, nil)
}

// Profile

// GetProfile loads userID's profile, or the caller's own when userID is 0.
func (c *Client) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	params := url.Values{}
	if userID > 0 {
		params.Set("user_id", strconv.Itoa(userID))
	}
	var resp models.UserResponse
	if err := c.get(ctx, groupProfile, "get_profile", params, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var resp models.UsersResponse
	if err := c.get(ctx, groupProfile, "search_users", url.Values{"query": {query}}, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) GetFriends(ctx context.Context) ([]models.Friend, error) {
	var resp models.FriendsResponse
	if err := c.get(ctx, groupProfile, "get_friends", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Friends, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	var resp models.UserResponse
	if err := c.post(ctx, groupProfile, "update_profile", req, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) AddFriend(ctx context.Context, friendID int) error {
	return c.post(ctx, groupProfile, "add_friend", models.FriendRequest{FriendID: friendID}, nil)
}

func (c *Client) AcceptFriend(ctx context.Context, friendID int) error {
	return c.post(ctx, groupProfile, "accept_friend", models.FriendRequest{FriendID: friendID}, nil)
}

func (c *Client) BuyVerification(ctx context.Context) error {
	return c.post(ctx, groupProfile, "buy_verification", nil, nil)
}

// Shop

func (c *Client) GetGifts(ctx context.Context) ([]models.Gift, error) {
	var resp models.GiftsResponse
	if err := c.get(ctx, groupShop, "get_gifts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gifts, nil
}

func (c *Client) MyGifts(ctx context.Context) ([]models.OwnedGift, error) {
	var resp models.OwnedGiftsResponse
	if err := c.get(ctx, groupShop, "my_gifts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gifts, nil
}

func (c *Client) GetBalance(ctx context.Context) (*models.Balance, error) {
	var resp models.BalanceResponse
	if err := c.get(ctx, groupShop, "get_balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Balance, nil
}

func (c *Client) BuyGift(ctx context.Context, giftID int) error {
	return c.post(ctx, groupShop, "buy_gift", models.BuyGiftRequest{GiftID: giftID}, nil)
}

func (c *Client) SendGift(ctx context.Context, userGiftID, receiverID int) error {
	return c.post(ctx, groupShop, "send_gift", models.SendGiftRequest{UserGiftID: userGiftID, ReceiverID: receiverID}, nil)
}

// BuyCoins spends amount of balance and returns the coins received,
// bonus included.
func (c *Client) BuyCoins(ctx context.Context, amount int) (int, error) {
	var resp models.BuyCoinsResponse
	if err := c.post(ctx, groupShop, "buy_raccoon_coins", models.BuyCoinsRequest{Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Received, nil
}

func (c *Client) SendMoney(ctx context.Context, req models.SendMoneyRequest) error {
	return c.post(ctx, groupShop, "send_money", req, nil)
}

// Payments

func (c *Client) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	var resp models.CreatePaymentResponse
	if err := c.post(ctx, groupPayments, "create_payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckPayment(ctx context.Context, paymentID string) (*models.CheckPaymentResponse, error) {
	var resp models.CheckPaymentResponse
	if err := c.post(ctx, groupPayments, "check_payment", models.CheckPaymentRequest{PaymentID: paymentID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
