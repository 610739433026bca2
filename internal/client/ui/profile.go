package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/profile"
	"github.com/cloudzz-dev/speakly/internal/models"
)

const (
	profDisplayName = iota
	profUsername
	profBio
	profStatus
	profStatusEmoji
	profAvatar
	profBanner
	profFields
)

var profLabels = [profFields]string{"Display name", "Username", "Bio", "Status", "Status emoji", "Avatar URL", "Banner URL"}

type profileView struct {
	profile *profile.Profile
	inputs  [profFields]textinput.Model
	active  int
}

func newProfileView(p *profile.Profile) profileView {
	v := profileView{profile: p}
	for i := range v.inputs {
		in := textinput.New()
		in.Placeholder = profLabels[i]
		in.CharLimit = 200
		in.Width = 40
		v.inputs[i] = in
	}
	v.inputs[profUsername].CharLimit = 32
	v.inputs[profStatusEmoji].CharLimit = 8
	return v
}

func (v *profileView) load(m *Model) tea.Cmd {
	return m.run("", v.profile.Load)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// fill copies the record into the form.
func (v *profileView) fill(u *models.User) {
	if u == nil {
		return
	}
	values := [profFields]string{
		u.DisplayName, u.Username, deref(u.Bio), deref(u.Status),
		deref(u.StatusEmoji), deref(u.AvatarURL), deref(u.BannerURL),
	}
	for i, val := range values {
		v.inputs[i].SetValue(val)
	}
}

func (v *profileView) focus(on bool) {
	for i := range v.inputs {
		v.inputs[i].Blur()
	}
	if on {
		v.inputs[v.active].Focus()
	}
}

func (v *profileView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case actionMsg:
		return m.report(msg.ok, msg.err)
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			v.active = (v.active + profFields - 1) % profFields
			v.focus(true)
			return nil
		case "down":
			v.active = (v.active + 1) % profFields
			v.focus(true)
			return nil
		case "ctrl+z":
			v.fill(m.user)
			return nil
		case "ctrl+b":
			p := v.profile
			m.ask(fmt.Sprintf("Buy the verification badge for %d ₽?", models.VerificationPrice), func() tea.Cmd {
				return m.run("You are verified now", p.BuyVerification)
			})
			return nil
		case "enter":
			e := profile.Edit{
				DisplayName: v.inputs[profDisplayName].Value(),
				Username:    v.inputs[profUsername].Value(),
				Bio:         v.inputs[profBio].Value(),
				Status:      v.inputs[profStatus].Value(),
				StatusEmoji: v.inputs[profStatusEmoji].Value(),
				AvatarURL:   v.inputs[profAvatar].Value(),
				BannerURL:   v.inputs[profBanner].Value(),
			}
			p := v.profile
			return m.run("Profile saved", func(ctx context.Context) error {
				return p.Update(ctx, e)
			})
		}
	}
	var cmd tea.Cmd
	v.inputs[v.active], cmd = v.inputs[v.active].Update(msg)
	return cmd
}

func (v profileView) view(u *models.User) string {
	var s strings.Builder
	if u == nil {
		return mutedStyle.Render("  Loading profile...")
	}

	name := u.Name()
	if u.HasVerification {
		name += " ✔"
	}
	card := selectedStyle.Render(name) + mutedStyle.Render("  @"+u.Username+fmt.Sprintf("  #%d", u.ID))
	if u.Status != nil || u.StatusEmoji != nil {
		card += "\n" + strings.TrimSpace(deref(u.StatusEmoji)+" "+deref(u.Status))
	}
	if u.Bio != nil {
		card += "\n" + mutedStyle.Render(*u.Bio)
	}
	card += "\n" + mutedStyle.Render("Phone: "+u.Phone)
	s.WriteString(titleStyle.Render("👤 Profile") + "\n")
	s.WriteString(boxStyle.Render(card) + "\n\n")

	for i := range v.inputs {
		label := fmt.Sprintf("  %-13s ", profLabels[i]+":")
		s.WriteString(label + v.inputs[i].View() + "\n")
	}
	help := "  ↑/↓ choose • Enter to save • Ctrl+Z reset form"
	if !u.HasVerification {
		help += " • Ctrl+B buy verification"
	}
	s.WriteString("\n" + helpStyle.Render(help))
	return s.String()
}

type settingsView struct{}

func (settingsView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case actionMsg:
		return m.report(msg.ok, msg.err)
	case tea.KeyMsg:
		switch msg.String() {
		case "g":
			p, ctx := m.profile.profile, m.ctx
			return func() tea.Msg {
				on, err := p.ToggleGhost(ctx)
				text := "Ghost mode off"
				if on {
					text = "Ghost mode on: you appear offline"
				}
				return actionMsg{ok: text, err: err}
			}
		case "l":
			sessions := m.opts.Sessions
			m.ask("Log out of Speakly?", func() tea.Cmd {
				return func() tea.Msg {
					if err := sessions.Clear(); err != nil {
						return actionMsg{err: err}
					}
					return sessionMsg{user: nil}
				}
			})
		}
	}
	return nil
}

func (settingsView) view(m Model) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("⚙ Settings") + "\n\n")

	ghost := "off"
	if m.user != nil && m.user.GhostMode {
		ghost = "on"
	}
	rows := [][2]string{
		{"Ghost mode", ghost},
		{"Server", m.opts.ServerURL},
		{"Profile", m.opts.Profile},
		{"Refresh every", m.opts.PollInterval.String()},
	}
	events := "off"
	if m.opts.Events {
		events = "on"
	}
	rows = append(rows, [2]string{"Live updates", events})
	for _, r := range rows {
		s.WriteString(fmt.Sprintf("  %-14s %s\n", r[0]+":", selectedStyle.Render(r[1])))
	}
	s.WriteString("\n" + helpStyle.Render("  g toggle ghost mode • l log out"))
	return s.String()
}
