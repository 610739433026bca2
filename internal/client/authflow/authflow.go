// Package authflow drives phone verification, registration and login.
package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudzz-dev/speakly/internal/models"
)

type Step int

const (
	StepPhone Step = iota
	StepCode
	StepRegister
	StepLogin
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepPhone:
		return "phone"
	case StepCode:
		return "code"
	case StepRegister:
		return "register"
	case StepLogin:
		return "login"
	case StepDone:
		return "done"
	}
	return "unknown"
}

var (
	ErrEmptyPhone    = errors.New("enter a phone number")
	ErrEmptyCode     = errors.New("enter the code")
	ErrEmptyPassword = errors.New("enter a password")
	ErrEmptyUsername = errors.New("enter a username")
	ErrWrongStep     = errors.New("not available at this step")
)

// Backend is the part of the API client the flow needs.
type Backend interface {
	SendCode(ctx context.Context, phone string) (string, error)
	VerifyCode(ctx context.Context, phone, code string) error
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, phone, password string) (*models.User, error)
}

// Flow is the auth state machine. A failed call never changes the step.
type Flow struct {
	api Backend

	mu      sync.Mutex
	step    Step
	phone   string
	devCode string
	user    *models.User
}

func New(api Backend) *Flow {
	return &Flow{api: api}
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Phone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone
}

// DevCode is the code echoed by a development server, if any.
func (f *Flow) DevCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devCode
}

// User is set once the flow reaches StepDone.
func (f *Flow) User() *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

// UseLogin switches to the password login path.
func (f *Flow) UseLogin() {
	f.mu.Lock()
	f.step = StepLogin
	f.mu.Unlock()
}

// Reset returns to the phone step.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.step = StepPhone
	f.devCode = ""
	f.user = nil
	f.mu.Unlock()
}

func (f *Flow) expect(s Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != s {
		return ErrWrongStep
	}
	return nil
}

func (f *Flow) SubmitPhone(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrEmptyPhone
	}
	if err := f.expect(StepPhone); err != nil {
		return err
	}
	code, err := f.api.SendCode(ctx, phone)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.phone = phone
	f.devCode = code
	f.step = StepCode
	f.mu.Unlock()
	return nil
}

func (f *Flow) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	if err := f.expect(StepCode); err != nil {
		return err
	}
	if err := f.api.VerifyCode(ctx, f.Phone(), code); err != nil {
		return err
	}

	f.mu.Lock()
	f.step = StepRegister
	f.mu.Unlock()
	return nil
}

func (f *Flow) Register(ctx context.Context, displayName, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, ErrEmptyUsername
	case password == "":
		return nil, ErrEmptyPassword
	}
	if err := f.expect(StepRegister); err != nil {
		return nil, err
	}
	user, err := f.api.Register(ctx, models.RegisterRequest{
		Phone:       f.Phone(),
		Username:    username,
		DisplayName: strings.TrimSpace(displayName),
		Password:    password,
	})
	if err != nil {
		return nil, err
	}
	f.finish(user)
	return user, nil
}

func (f *Flow) Login(ctx context.Context, phone, password string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	switch {
	case phone == "":
		return nil, ErrEmptyPhone
	case password == "":
		return nil, ErrEmptyPassword
	}
	if err := f.expect(StepLogin); err != nil {
		return nil, err
	}
	user, err := f.api.Login(ctx, phone, password)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.phone = phone
	f.mu.Unlock()
	f.finish(user)
	return user, nil
}

func (f *Flow) finish(u *models.User) {
	f.mu.Lock()
	f.user = u
	f.step = StepDone
	f.mu.Unlock()
}
