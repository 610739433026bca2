package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("chats", "send_message", 200, 15*time.Millisecond)
	m.MessageSent("voice")
	m.WSConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`speakly_http_requests_total{action="send_message",group="chats",status="200"} 1`,
		`speakly_messages_sent_total{type="voice"} 1`,
		`speakly_ws_connections 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	New()
	New()
}
