package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudzz-dev/speakly/internal/models"
)

func TestPostMergesActionAndSendsIdentity(t *testing.T) {
	var got map[string]any
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		header = r.Header.Get(models.UserIDHeader)
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"success":true,"message_id":7,"created_at":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	c.SetUser(12)
	resp, err := c.SendMessage(context.Background(), models.SendMessageRequest{ChatID: 42, Content: "hello", Type: models.MessageText})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.MessageID != 7 {
		t.Errorf("expected message id 7, got %d", resp.MessageID)
	}
	if header != "12" {
		t.Errorf("expected identity header 12, got %q", header)
	}
	if got["action"] != "send_message" || got["content"] != "hello" || got["chat_id"] != float64(42) {
		t.Errorf("unexpected body %v", got)
	}
	if _, ok := got["reply_to"]; ok {
		t.Error("reply_to should be omitted when unset")
	}
}

func TestGetUsesQueryAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "get_messages" || q.Get("chat_id") != "42" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success":true,"messages":[{"id":1,"chat_id":42,"content":"hi","message_type":"text"}]}`))
	}))
	defer srv.Close()

	msgs, err := New(srv.URL, nil).GetMessages(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("unexpected messages %+v", msgs)
	}
}

func TestFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Not enough raccoon coins"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).BuyGift(context.Background(), 1)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Not enough raccoon coins" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListChats(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 *Error, got %v", err)
	}
}

func TestVerifyCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Invalid code","verified":false}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).VerifyCode(context.Background(), "+7900", "000000")
	if err == nil || err.Error() != "Invalid code" {
		t.Fatalf("expected Invalid code, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).GetGifts(context.Background())
	var apiErr *Error
	if err == nil || errors.As(err, &apiErr) {
		t.Fatalf("expected a transport error, got %v", err)
	}
}
