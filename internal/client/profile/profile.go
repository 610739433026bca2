// Package profile backs the profile, settings and friends panels.
package profile

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

var (
	ErrNothingChanged  = errors.New("nothing to update")
	ErrBadFriendID     = errors.New("friend must be a user id")
	ErrAlreadyVerified = errors.New("already verified")
)

type API interface {
	GetProfile(ctx context.Context, userID int) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error)
	BuyVerification(ctx context.Context) error
	GetFriends(ctx context.Context) ([]models.Friend, error)
	AddFriend(ctx context.Context, friendID int) error
	AcceptFriend(ctx context.Context, friendID int) error
}

// SessionStore receives every fresh copy of the logged-in user.
type SessionStore interface {
	Set(u *models.User) error
}

// Profile keeps the logged-in user's record and friends list. Every
// successful mutation reloads the record and hands it to the session store.
type Profile struct {
	api     API
	session SessionStore

	mu      sync.Mutex
	user    *models.User
	friends []models.Friend
}

func New(api API, session SessionStore) *Profile {
	return &Profile{api: api, session: session}
}

func (p *Profile) User() *models.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

func (p *Profile) Friends() []models.Friend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Friend(nil), p.friends...)
}

func (p *Profile) store(u *models.User) error {
	p.mu.Lock()
	p.user = u
	p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	return p.session.Set(u)
}

// Load refreshes the user's own record.
func (p *Profile) Load(ctx context.Context) error {
	u, err := p.api.GetProfile(ctx, 0)
	if err != nil {
		return err
	}
	return p.store(u)
}

// Edit is the profile form. Only fields that differ from the current
// record are sent. A blank name or username is left as it is, a blank
// optional field clears it.
type Edit struct {
	DisplayName string
	Username    string
	Bio         string
	Status      string
	StatusEmoji string
	AvatarURL   string
	BannerURL   string
}

func changed(field string, current *string) *string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	if current != nil && *current == field {
		return nil
	}
	return &field
}

// cleared is changed for optional fields, where blank means remove.
func cleared(field string, current *string) *string {
	if strings.TrimSpace(field) == "" {
		if current == nil || *current == "" {
			return nil
		}
		return ptr("")
	}
	return changed(field, current)
}

func ptr(s string) *string { return &s }

func (p *Profile) Update(ctx context.Context, e Edit) error {
	cur := p.User()
	if cur == nil {
		cur = &models.User{}
	}
	req := models.UpdateProfileRequest{
		DisplayName: changed(e.DisplayName, ptr(cur.DisplayName)),
		Username:    changed(e.Username, ptr(cur.Username)),
		Bio:         cleared(e.Bio, cur.Bio),
		Status:      cleared(e.Status, cur.Status),
		StatusEmoji: cleared(e.StatusEmoji, cur.StatusEmoji),
		AvatarURL:   cleared(e.AvatarURL, cur.AvatarURL),
		BannerURL:   cleared(e.BannerURL, cur.BannerURL),
	}
	if req.Empty() {
		return ErrNothingChanged
	}
	u, err := p.api.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	return p.store(u)
}

// ToggleGhost flips ghost mode. While it is on others see the user offline.
func (p *Profile) ToggleGhost(ctx context.Context) (bool, error) {
	cur := p.User()
	ghost := cur == nil || !cur.GhostMode
	u, err := p.api.UpdateProfile(ctx, models.UpdateProfileRequest{GhostMode: &ghost})
	if err != nil {
		return false, err
	}
	return u.GhostMode, p.store(u)
}

func (p *Profile) BuyVerification(ctx context.Context) error {
	if u := p.User(); u != nil && u.HasVerification {
		return ErrAlreadyVerified
	}
	if err := p.api.BuyVerification(ctx); err != nil {
		return err
	}
	return p.Load(ctx)
}

func (p *Profile) LoadFriends(ctx context.Context) error {
	friends, err := p.api.GetFriends(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.friends = friends
	p.mu.Unlock()
	return nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, ErrBadFriendID
	}
	return id, nil
}

// AddFriend sends a friend request to the user id typed in the form.
func (p *Profile) AddFriend(ctx context.Context, id string) error {
	friendID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := p.api.AddFriend(ctx, friendID); err != nil {
		return err
	}
	return p.LoadFriends(ctx)
}

// AcceptFriend accepts a pending request from the given user id.
func (p *Profile) AcceptFriend(ctx context.Context, id string) error {
	friendID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := p.api.AcceptFriend(ctx, friendID); err != nil {
		return err
	}
	return p.LoadFriends(ctx)
}
