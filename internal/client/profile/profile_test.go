package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudzz-dev/speakly/internal/models"
)

type fakeAPI struct {
	user     models.User
	updates  []models.UpdateProfileRequest
	friends  []models.Friend
	added    []int
	fail     error
	verified int
}

func (f *fakeAPI) GetProfile(context.Context, int) (*models.User, error) {
	u := f.user
	return &u, nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.updates = append(f.updates, req)
	if req.DisplayName != nil {
		f.user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		f.user.Bio = req.Bio
	}
	if req.GhostMode != nil {
		f.user.GhostMode = *req.GhostMode
	}
	u := f.user
	return &u, nil
}

func (f *fakeAPI) BuyVerification(context.Context) error {
	if f.fail != nil {
		return f.fail
	}
	f.verified++
	f.user.HasVerification = true
	return nil
}

func (f *fakeAPI) GetFriends(context.Context) ([]models.Friend, error) { return f.friends, nil }

func (f *fakeAPI) AddFriend(_ context.Context, id int) error {
	f.added = append(f.added, id)
	f.friends = append(f.friends, models.Friend{ID: id})
	return nil
}

func (f *fakeAPI) AcceptFriend(context.Context, int) error { return nil }

type fakeSession struct{ users []*models.User }

func (s *fakeSession) Set(u *models.User) error {
	s.users = append(s.users, u)
	return nil
}

func TestUpdateSendsOnlyChanges(t *testing.T) {
	f := &fakeAPI{user: models.User{ID: 1, Username: "rocky", DisplayName: "Rocky"}}
	sess := &fakeSession{}
	p := New(f, sess)
	ctx := context.Background()
	if err := p.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := p.Update(ctx, Edit{DisplayName: "Rocky", Username: " rocky "}); !errors.Is(err, ErrNothingChanged) {
		t.Fatalf("expected ErrNothingChanged, got %v", err)
	}
	if err := p.Update(ctx, Edit{DisplayName: "Rocky R.", Bio: "raccoon"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	req := f.updates[0]
	if req.Username != nil || req.DisplayName == nil || *req.DisplayName != "Rocky R." || req.Bio == nil {
		t.Errorf("unexpected update request %+v", req)
	}
	if p.User().DisplayName != "Rocky R." {
		t.Errorf("profile not refreshed: %+v", p.User())
	}
	if len(sess.users) != 2 || sess.users[1].DisplayName != "Rocky R." {
		t.Errorf("session store not updated: %d writes", len(sess.users))
	}
}

func TestUpdateClearsOptionalFields(t *testing.T) {
	bio, status := "raccoon", "busy"
	f := &fakeAPI{user: models.User{ID: 1, Username: "rocky", DisplayName: "Rocky", Bio: &bio, Status: &status}}
	p := New(f, nil)
	ctx := context.Background()
	p.Load(ctx)

	if err := p.Update(ctx, Edit{Username: "", DisplayName: " ", Bio: "", Status: "busy"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	req := f.updates[0]
	if req.Bio == nil || *req.Bio != "" {
		t.Errorf("bio should be sent blank to clear it, got %v", req.Bio)
	}
	if req.Username != nil || req.DisplayName != nil || req.Status != nil || req.AvatarURL != nil {
		t.Errorf("unexpected fields in %+v", req)
	}
}

func TestFailedUpdateKeepsRecord(t *testing.T) {
	f := &fakeAPI{user: models.User{ID: 1, DisplayName: "Rocky"}}
	p := New(f, nil)
	ctx := context.Background()
	p.Load(ctx)

	f.fail = errors.New("Username already taken")
	if err := p.Update(ctx, Edit{Username: "taken"}); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := p.ToggleGhost(ctx); err == nil {
		t.Fatal("expected failure")
	}
	if u := p.User(); u.DisplayName != "Rocky" || u.GhostMode {
		t.Errorf("record changed after failure: %+v", u)
	}
}

func TestToggleGhost(t *testing.T) {
	f := &fakeAPI{user: models.User{ID: 1}}
	p := New(f, nil)
	ctx := context.Background()
	p.Load(ctx)

	on, err := p.ToggleGhost(ctx)
	if err != nil || !on {
		t.Fatalf("expected ghost on, got %v %v", on, err)
	}
	on, err = p.ToggleGhost(ctx)
	if err != nil || on {
		t.Fatalf("expected ghost off, got %v %v", on, err)
	}
}

func TestBuyVerification(t *testing.T) {
	f := &fakeAPI{user: models.User{ID: 1}}
	p := New(f, nil)
	ctx := context.Background()
	p.Load(ctx)

	if err := p.BuyVerification(ctx); err != nil {
		t.Fatalf("BuyVerification: %v", err)
	}
	if !p.User().HasVerification {
		t.Error("expected verified user after reload")
	}
	if err := p.BuyVerification(ctx); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if f.verified != 1 {
		t.Errorf("expected one purchase, got %d", f.verified)
	}
}

func TestAddFriend(t *testing.T) {
	f := &fakeAPI{}
	p := New(f, nil)
	ctx := context.Background()

	for _, bad := range []string{"", "abc", "0", "-4"} {
		if err := p.AddFriend(ctx, bad); !errors.Is(err, ErrBadFriendID) {
			t.Errorf("AddFriend(%q) = %v, want ErrBadFriendID", bad, err)
		}
	}
	if err := p.AddFriend(ctx, " 7 "); err != nil {
		t.Fatalf("AddFriend: %v", err)
	}
	if len(f.added) != 1 || f.added[0] != 7 || len(p.Friends()) != 1 {
		t.Errorf("unexpected state added=%v friends=%v", f.added, p.Friends())
	}
}

func TestAcceptFriendValidation(t *testing.T) {
	f := &fakeAPI{}
	p := New(f, nil)
	if err := p.AcceptFriend(context.Background(), "x"); !errors.Is(err, ErrBadFriendID) {
		t.Fatalf("expected ErrBadFriendID, got %v", err)
	}
	if err := p.AcceptFriend(context.Background(), "3"); err != nil {
		t.Fatalf("AcceptFriend: %v", err)
	}
}
