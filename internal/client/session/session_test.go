package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudzz-dev/speakly/internal/models"
)

func TestEncryptDecrypt(t *testing.T) {
	originalData := "This is a secret message"

	encrypted, err := encrypt([]byte(originalData))
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	if encrypted == "" {
		t.Fatal("Encrypted string is empty")
	}

	decrypted, err := decrypt(encrypted)
	if err != nil {
		t.Fatalf("Failed to decrypt: %v", err)
	}

	if string(decrypted) != originalData {
		t.Errorf("Expected %q, got %q", originalData, string(decrypted))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "http://localhost:3567")

	var seen []*models.User
	s.Subscribe(func(u *models.User) { seen = append(seen, u) })

	if err := s.Set(&models.User{ID: 7, Username: "raccoon", Phone: "+79001234567"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "session.json"))
	if err != nil {
		t.Fatalf("read session file: %v", err)
	}
	if strings.Contains(string(raw), "raccoon") {
		t.Error("session file should not contain plaintext user data")
	}

	restored := NewStore(dir, "http://localhost:3567")
	u, err := restored.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if u == nil || u.ID != 7 || u.Username != "raccoon" {
		t.Fatalf("unexpected restored user %+v", u)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Current() != nil {
		t.Error("expected no user after Clear")
	}
	if _, err := os.Stat(filepath.Join(dir, "session.json")); !os.IsNotExist(err) {
		t.Errorf("expected session file removed, got %v", err)
	}

	if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
		t.Errorf("expected set then clear notifications, got %v", seen)
	}
}

func TestCurrentIsACopy(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	if err := s.Set(&models.User{ID: 1, Username: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	u := s.Current()
	u.Username = "changed"
	if s.Current().Username != "a" {
		t.Error("mutating the returned user must not change the store")
	}
}

func TestLoadIgnoresOtherServer(t *testing.T) {
	dir := t.TempDir()
	if err := NewStore(dir, "http://a").Set(&models.User{ID: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	u, err := NewStore(dir, "http://b").Load()
	if err != nil || u != nil {
		t.Fatalf("expected no user for another server, got %+v, %v", u, err)
	}
}

func TestLoadMigratesPlaintext(t *testing.T) {
	dir := t.TempDir()
	data, _ := json.Marshal(Session{ServerURL: "http://a", User: models.User{ID: 5, Username: "old"}})
	if err := os.WriteFile(filepath.Join(dir, "session.json"), data, 0600); err != nil {
		t.Fatal(err)
	}

	u, err := NewStore(dir, "http://a").Load()
	if err != nil || u == nil || u.ID != 5 {
		t.Fatalf("expected legacy session to load, got %+v, %v", u, err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "session.json"))
	if strings.Contains(string(raw), "old") {
		t.Error("legacy session should be re-saved encrypted")
	}
}

func TestLoadMissing(t *testing.T) {
	u, err := NewStore(t.TempDir(), "").Load()
	if err != nil || u != nil {
		t.Fatalf("expected nothing, got %+v, %v", u, err)
	}
}
