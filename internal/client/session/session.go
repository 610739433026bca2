package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

const fileName = "session.json"

// Session is what gets persisted: the server the user logged into and
// their last known record.
type Session struct {
	ServerURL string      `json:"server_url"`
	User      models.User `json:"user"`
}

func GetConfigDir(profileName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "speakly", profileName)
}

func getEncryptionKey() []byte {
	paths := []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}
	var id string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err == nil {
			id = strings.TrimSpace(string(data))
			break
		}
	}

	if id == "" {
		hostname, _ := os.Hostname()
		id = hostname
	}

	hash := sha256.Sum256([]byte("speakly:" + id))
	return hash[:]
}

func encrypt(data []byte) (string, error) {
	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Store owns the logged-in user. It is the only writer of the session file;
// everything else reads through Current or observes through Subscribe.
type Store struct {
	dir       string
	serverURL string

	mu   sync.RWMutex
	user *models.User
	subs []func(*models.User)
}

// NewStore keeps the session file in dir for the given server.
func NewStore(dir, serverURL string) *Store {
	return &Store{dir: dir, serverURL: serverURL}
}

func (s *Store) path() string { return filepath.Join(s.dir, fileName) }

// Load reads the persisted session once at startup. A missing, unreadable or
// foreign-server session yields no user and no error.
func (s *Store) Load() (*models.User, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	plain, err := decrypt(string(data))
	if err != nil {
		// Plaintext sessions from older builds are re-saved encrypted.
		if jerr := json.Unmarshal(data, &sess); jerr != nil {
			return nil, nil
		}
		if sess.User.ID > 0 {
			_ = s.write(sess)
		}
	} else if err := json.Unmarshal(plain, &sess); err != nil {
		return nil, nil
	}

	if sess.User.ID <= 0 || (s.serverURL != "" && sess.ServerURL != s.serverURL) {
		return nil, nil
	}

	s.mu.Lock()
	u := sess.User
	s.user = &u
	s.mu.Unlock()
	return s.Current(), nil
}

// Set replaces the user wholesale, persists it and notifies observers.
func (s *Store) Set(u *models.User) error {
	if u == nil {
		return s.Clear()
	}
	cp := *u
	if err := s.write(Session{ServerURL: s.serverURL, User: cp}); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = &cp
	subs := append([]func(*models.User){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(s.Current())
	}
	return nil
}

// Clear forgets the user on logout.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.user = nil
	subs := append([]func(*models.User){}, s.subs...)
	s.mu.Unlock()

	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	for _, fn := range subs {
		fn(nil)
	}
	return err
}

// Current returns a copy of the user, or nil when logged out.
func (s *Store) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// Subscribe registers fn to be called with every new user value (nil on
// logout).
func (s *Store) Subscribe(fn func(*models.User)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) write(sess Session) error {
	if s.dir == "" {
		return fmt.Errorf("could not get config directory")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	encrypted, err := encrypt(data)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path(), []byte(encrypted), 0600)
}
