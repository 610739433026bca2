// Package ui is the terminal front end: the auth screen while logged out and
// the tabbed shell while logged in.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/cloudzz-dev/speakly/internal/client/api"
	"github.com/cloudzz-dev/speakly/internal/client/authflow"
	"github.com/cloudzz-dev/speakly/internal/client/chat"
	"github.com/cloudzz-dev/speakly/internal/client/debug"
	"github.com/cloudzz-dev/speakly/internal/client/events"
	"github.com/cloudzz-dev/speakly/internal/client/music"
	"github.com/cloudzz-dev/speakly/internal/client/profile"
	"github.com/cloudzz-dev/speakly/internal/client/shop"
	"github.com/cloudzz-dev/speakly/internal/models"
)

// Backend is everything the panels call on the server.
type Backend interface {
	authflow.Backend
	chat.MessageAPI
	chat.ListAPI
	shop.ShopAPI
	shop.WalletAPI
	profile.API
	SetUser(id int)
}

type SessionStore interface {
	Current() *models.User
	Set(u *models.User) error
	Clear() error
	Subscribe(fn func(*models.User))
}

type TrackSearcher interface {
	Search(ctx context.Context, term string) ([]models.Track, error)
}

type Options struct {
	Backend      Backend
	Sessions     SessionStore
	Recorder     chat.Recorder
	Catalog      TrackSearcher
	Player       *music.Player
	ServerURL    string
	Profile      string
	PollInterval time.Duration
	ReturnURL    string
	Events       bool
	OpenURL      func(url string) error
}

type tab int

const (
	tabChats tab = iota
	tabFriends
	tabShop
	tabWallet
	tabMusic
	tabProfile
	tabSettings
	tabCount
)

var tabNames = [tabCount]string{"Chats", "Friends", "Shop", "Wallet", "Music", "Profile", "Settings"}

const toastTTL = 4 * time.Second

type toast struct {
	text  string
	err   bool
	until time.Time
}

// bridge lets background goroutines reach the running program. It is shared
// by every copy of the model.
type bridge struct {
	mu         sync.Mutex
	send       func(tea.Msg)
	stopEvents context.CancelFunc
}

func (b *bridge) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		go send(msg)
	}
}

// --- Messages ---

type sessionMsg struct{ user *models.User }

type actionMsg struct {
	ok  string
	err error
}

type toastExpireMsg struct{}

type chatEventMsg struct{ chatID int }

// --- Model ---

type Model struct {
	opts   Options
	ctx    context.Context
	bridge *bridge
	now    func() time.Time

	user   *models.User
	inMain bool
	width  int
	height int
	tab    tab
	toasts []toast

	confirm *confirmDialog

	auth     authView
	chats    chatsView
	friends  friendsView
	shop     shopView
	wallet   walletView
	music    musicView
	profile  profileView
	settings settingsView
}

type confirmDialog struct {
	text  string
	onYes func() tea.Cmd
}

func New(ctx context.Context, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = models.PollInterval
	}
	if opts.Player == nil {
		opts.Player = music.NewPlayer(nil)
	}
	prof := profile.New(opts.Backend, opts.Sessions)
	return Model{
		opts:     opts,
		ctx:      ctx,
		bridge:   &bridge{},
		now:      time.Now,
		auth:     newAuthView(authflow.New(opts.Backend)),
		chats:    newChatsView(chat.NewList(opts.Backend), chat.NewSession(opts.Backend, opts.Recorder)),
		friends:  newFriendsView(prof),
		shop:     newShopView(shop.New(opts.Backend)),
		wallet:   newWalletView(shop.NewWallet(opts.Backend, opts.ReturnURL)),
		music:    newMusicView(opts.Catalog, opts.Player),
		profile:  newProfileView(prof),
		settings: settingsView{},
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	m.bridge.mu.Lock()
	m.bridge.send = p.Send
	m.bridge.mu.Unlock()
	opts.Sessions.Subscribe(func(u *models.User) {
		m.bridge.post(sessionMsg{user: u})
	})

	_, err := p.Run()
	m.shutdown()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) shutdown() {
	m.chats.session.Close()
	m.opts.Player.Stop()
	m.stopEvents()
}

func (m Model) Init() tea.Cmd {
	if u := m.opts.Sessions.Current(); u != nil {
		return func() tea.Msg { return sessionMsg{user: u} }
	}
	return m.auth.init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chats.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case toastExpireMsg:
		m.expireToasts()
		return m, nil

	case actionMsg:
		return m, m.report(msg.ok, msg.err)

	case sessionMsg:
		return m, m.applySession(msg.user)

	case authMsg:
		m.auth.busy = false
		if msg.err != nil {
			return m, m.report("", msg.err)
		}
		if msg.user != nil {
			return m, m.applySession(msg.user)
		}
		return m, nil
	}

	if !m.inMain {
		cmd := m.updateAuth(msg)
		return m, cmd
	}
	cmd := m.updateMain(msg)
	return m, cmd
}

// report turns the outcome of an action into a notification.
func (m *Model) report(ok string, err error) tea.Cmd {
	if err != nil {
		debug.Log("action failed: %v", err)
		return m.notify(errorText(err), true)
	}
	if ok != "" {
		return m.notify(ok, false)
	}
	return nil
}

func errorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	msg := err.Error()
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return msg
}

func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.toasts = append(m.toasts, toast{text: text, err: isErr, until: m.now().Add(toastTTL)})
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpireMsg{} })
}

func (m *Model) expireToasts() {
	now := m.now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if t.until.After(now) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// run executes fn off the UI goroutine and reports its outcome.
func (m *Model) run(ok string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{ok: ok, err: fn(ctx)}
	}
}

func (m *Model) applySession(u *models.User) tea.Cmd {
	if u == nil {
		if !m.inMain {
			return nil
		}
		m.leaveMain()
		return m.auth.init()
	}
	m.user = u
	if m.inMain {
		return nil
	}
	return m.enterMain(u)
}

func (m *Model) enterMain(u *models.User) tea.Cmd {
	m.inMain = true
	m.tab = tabChats
	m.opts.Backend.SetUser(u.ID)
	debug.Logger().Info("logged in", zap.Int("user_id", u.ID))
	m.startEvents(u.ID)

	return tea.Batch(
		m.chats.load(m),
		m.friends.load(m),
		m.shop.load(m),
		m.wallet.load(m),
		m.profile.load(m),
	)
}

func (m *Model) leaveMain() {
	m.chats.close()
	m.opts.Player.Stop()
	m.stopEvents()
	m.opts.Backend.SetUser(0)
	m.auth.reset()
	m.user = nil
	m.inMain = false
	m.confirm = nil
}

func (m *Model) startEvents(userID int) {
	if !m.opts.Events || m.opts.ServerURL == "" {
		return
	}
	b := m.bridge
	sub, err := events.NewSubscriber(m.opts.ServerURL, userID, func(chatID int) {
		b.post(chatEventMsg{chatID: chatID})
	}, debug.Logger())
	if err != nil {
		debug.Log("events disabled: %v", err)
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	b.mu.Lock()
	if b.stopEvents != nil {
		b.stopEvents()
	}
	b.stopEvents = cancel
	b.mu.Unlock()
	go func() {
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			debug.Log("event stream stopped: %v", err)
		}
	}()
}

func (m Model) stopEvents() {
	m.bridge.mu.Lock()
	defer m.bridge.mu.Unlock()
	if m.bridge.stopEvents != nil {
		m.bridge.stopEvents()
		m.bridge.stopEvents = nil
	}
}

func (m *Model) ask(text string, onYes func() tea.Cmd) {
	m.confirm = &confirmDialog{text: text, onYes: onYes}
}

func (m *Model) updateMain(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		if m.confirm != nil {
			switch key.String() {
			case "y", "Y", "enter":
				d := m.confirm
				m.confirm = nil
				return d.onYes()
			case "n", "N", "esc":
				m.confirm = nil
			}
			return nil
		}
		switch key.String() {
		case "tab":
			m.switchTab((m.tab + 1) % tabCount)
			return nil
		case "shift+tab":
			m.switchTab((m.tab + tabCount - 1) % tabCount)
			return nil
		}
	}

	if ev, ok := msg.(chatEventMsg); ok {
		return m.chats.onEvent(m, ev.chatID)
	}

	switch m.tab {
	case tabChats:
		return m.chats.update(m, msg)
	case tabFriends:
		return m.friends.update(m, msg)
	case tabShop:
		return m.shop.update(m, msg)
	case tabWallet:
		return m.wallet.update(m, msg)
	case tabMusic:
		return m.music.update(m, msg)
	case tabProfile:
		return m.profile.update(m, msg)
	case tabSettings:
		return m.settings.update(m, msg)
	}
	return nil
}

func (m *Model) switchTab(t tab) {
	m.tab = t
	m.chats.focus(t == tabChats)
	m.friends.focus(t == tabFriends)
	m.wallet.focus(t == tabWallet)
	m.music.focus(t == tabMusic)
	if t == tabProfile {
		m.profile.fill(m.user)
	}
	m.profile.focus(t == tabProfile)
}

// --- View ---

func (m Model) View() string {
	var body string
	if !m.inMain {
		body = m.auth.view(m)
	} else {
		body = m.mainView()
	}
	if len(m.toasts) > 0 {
		body += "\n" + m.toastView()
	}
	return body
}

func (m Model) mainView() string {
	var s strings.Builder

	tabs := make([]string, 0, tabCount)
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	header := titleStyle.Render("SPEAKLY")
	if m.user != nil {
		header += mutedStyle.Render(fmt.Sprintf(" %s (@%s)", m.user.Name(), m.user.Username))
	}
	s.WriteString(header + "\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n\n")

	if m.confirm != nil {
		s.WriteString(dialogStyle.Render(m.confirm.text + "\n\n" + helpStyle.Render("y to confirm • n to cancel")))
		return s.String()
	}

	switch m.tab {
	case tabChats:
		s.WriteString(m.chats.view(m))
	case tabFriends:
		s.WriteString(m.friends.view())
	case tabShop:
		s.WriteString(m.shop.view())
	case tabWallet:
		s.WriteString(m.wallet.view())
	case tabMusic:
		s.WriteString(m.music.view())
	case tabProfile:
		s.WriteString(m.profile.view(m.user))
	case tabSettings:
		s.WriteString(m.settings.view(m))
	}
	s.WriteString("\n" + helpStyle.Render("Tab/Shift+Tab switch panels • Ctrl+C quit"))
	return s.String()
}

func (m Model) toastView() string {
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		if t.err {
			lines = append(lines, errorStyle.Render("✗ "+t.text))
		} else {
			lines = append(lines, okStyle.Render("✓ "+t.text))
		}
	}
	return strings.Join(lines, "\n")
}
