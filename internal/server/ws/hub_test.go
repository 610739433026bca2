package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(zap.NewNop())
	go h.Run(ctx)
	return h
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case b, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func waitConnected(t *testing.T, h *Hub, userID, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.Connected(userID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("Connected(%d) = %d, want %d", userID, h.Connected(userID), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyChatFansOutToMembers(t *testing.T) {
	h := startHub(t)
	alice := &Client{UserID: 1, Send: make(chan []byte, 4)}
	bob := &Client{UserID: 2, Send: make(chan []byte, 4)}
	eve := &Client{UserID: 3, Send: make(chan []byte, 4)}
	for _, c := range []*Client{alice, bob, eve} {
		if !h.join(c) {
			t.Fatal("join failed")
		}
	}

	h.NotifyChat([]int{1, 2}, 42)

	for _, c := range []*Client{alice, bob} {
		var ev models.ChatUpdatedEvent
		if err := json.Unmarshal(recv(t, c), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != models.EventChatUpdated || ev.ChatID != 42 {
			t.Errorf("user %d got %+v", c.UserID, ev)
		}
	}

	select {
	case b := <-eve.Send:
		t.Errorf("non-member received %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := &Client{UserID: 5, Send: make(chan []byte, 1)}
	h.join(c)
	waitConnected(t, h, 5, 1)

	h.leave(c)
	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	waitConnected(t, h, 5, 0)

	// A second leave for the same client must not panic.
	h.leave(c)
}

func TestLeaveAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(zap.NewNop())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		h.leave(&Client{UserID: 9, Send: make(chan []byte)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("leave blocked on a stopped hub")
	}
}
