package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/authflow"
	"github.com/cloudzz-dev/speakly/internal/models"
)

const (
	fieldPhone = iota
	fieldCode
	fieldDisplayName
	fieldUsername
	fieldPassword
	fieldCount
)

type authMsg struct {
	user *models.User
	err  error
}

type authView struct {
	flow   *authflow.Flow
	inputs [fieldCount]textinput.Model
	focus  int
	busy   bool
}

func newAuthView(flow *authflow.Flow) authView {
	placeholders := [fieldCount]string{"+7 900 000 00 00", "6-digit code", "Display name", "Username", "Password"}
	limits := [fieldCount]int{20, 6, 64, 32, 64}

	var a authView
	a.flow = flow
	for i := range a.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = limits[i]
		in.Width = 30
		a.inputs[i] = in
	}
	a.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	return a
}

// fields lists the inputs shown at the current step.
func (a *authView) fields() []int {
	switch a.flow.Step() {
	case authflow.StepCode:
		return []int{fieldCode}
	case authflow.StepRegister:
		return []int{fieldDisplayName, fieldUsername, fieldPassword}
	case authflow.StepLogin:
		return []int{fieldPhone, fieldPassword}
	}
	return []int{fieldPhone}
}

func (a *authView) init() tea.Cmd {
	a.setFocus(0)
	return textinput.Blink
}

func (a *authView) reset() {
	a.flow.Reset()
	for i := range a.inputs {
		a.inputs[i].SetValue("")
	}
	a.busy = false
	a.setFocus(0)
}

func (a *authView) setFocus(i int) {
	fields := a.fields()
	if i < 0 || i >= len(fields) {
		i = 0
	}
	a.focus = i
	for j := range a.inputs {
		a.inputs[j].Blur()
	}
	a.inputs[fields[i]].Focus()
}

func (a *authView) value(field int) string {
	return strings.TrimSpace(a.inputs[field].Value())
}

func (m *Model) updateAuth(msg tea.Msg) tea.Cmd {
	a := &m.auth
	if done, ok := msg.(authStepMsg); ok {
		a.busy = false
		a.setFocus(0)
		return m.report(done.ok, done.err)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		a.inputs[a.fields()[a.focus]], cmd = a.inputs[a.fields()[a.focus]].Update(msg)
		return cmd
	}

	switch key.String() {
	case "tab", "down":
		a.setFocus((a.focus + 1) % len(a.fields()))
		return nil
	case "shift+tab", "up":
		n := len(a.fields())
		a.setFocus((a.focus + n - 1) % n)
		return nil
	case "ctrl+l":
		if a.flow.Step() == authflow.StepLogin {
			a.flow.Reset()
		} else {
			a.flow.UseLogin()
		}
		a.setFocus(0)
		return nil
	case "esc":
		a.flow.Reset()
		a.setFocus(0)
		return nil
	case "enter":
		if a.busy {
			return nil
		}
		fields := a.fields()
		if a.focus < len(fields)-1 {
			a.setFocus(a.focus + 1)
			return nil
		}
		a.busy = true
		return m.submitAuth()
	}

	var cmd tea.Cmd
	field := a.fields()[a.focus]
	a.inputs[field], cmd = a.inputs[field].Update(msg)
	return cmd
}

// authStepMsg finishes a step that does not log the user in yet.
type authStepMsg struct {
	ok  string
	err error
}

func (m *Model) submitAuth() tea.Cmd {
	a := &m.auth
	flow, sessions, ctx := a.flow, m.opts.Sessions, m.ctx

	finish := func(u *models.User, err error) tea.Msg {
		if err != nil {
			return authStepMsg{err: err}
		}
		if err := sessions.Set(u); err != nil {
			return authMsg{err: err}
		}
		return authMsg{user: u}
	}

	switch flow.Step() {
	case authflow.StepPhone:
		phone := a.value(fieldPhone)
		return func() tea.Msg {
			if err := flow.SubmitPhone(ctx, phone); err != nil {
				return authStepMsg{err: err}
			}
			return authStepMsg{ok: "Code sent"}
		}
	case authflow.StepCode:
		code := a.value(fieldCode)
		return func() tea.Msg {
			if err := flow.SubmitCode(ctx, code); err != nil {
				return authStepMsg{err: err}
			}
			return authStepMsg{ok: "Phone confirmed"}
		}
	case authflow.StepRegister:
		name, username, password := a.value(fieldDisplayName), a.value(fieldUsername), a.inputs[fieldPassword].Value()
		return func() tea.Msg {
			return finish(flow.Register(ctx, name, username, password))
		}
	case authflow.StepLogin:
		phone, password := a.value(fieldPhone), a.inputs[fieldPassword].Value()
		return func() tea.Msg {
			return finish(flow.Login(ctx, phone, password))
		}
	}
	return func() tea.Msg { return authStepMsg{err: authflow.ErrWrongStep} }
}

var fieldLabels = [fieldCount]string{"Phone", "Code", "Display name", "Username", "Password"}

func (a authView) view(m Model) string {
	var s strings.Builder

	s.WriteString("\n")
	s.WriteString(titleStyle.Render("╔═══════════════════════════════╗\n║           SPEAKLY             ║\n╚═══════════════════════════════╝"))
	s.WriteString("\n\n")

	step := a.flow.Step()
	if step == authflow.StepLogin {
		s.WriteString(mutedStyle.Render("  Sign up   "))
		s.WriteString(selectedStyle.Render("→ Log in\n"))
	} else {
		s.WriteString(selectedStyle.Render("  → Sign up"))
		s.WriteString(mutedStyle.Render("   Log in\n"))
	}
	s.WriteString(helpStyle.Render("  (Ctrl+L to switch)\n\n"))

	if step == authflow.StepCode {
		s.WriteString(mutedStyle.Render("  Code sent to "+a.flow.Phone()) + "\n")
		if dev := a.flow.DevCode(); dev != "" {
			s.WriteString(mutedStyle.Render("  Dev code: "+dev) + "\n")
		}
		s.WriteString("\n")
	}

	for _, f := range a.fields() {
		s.WriteString("  " + fieldLabels[f] + ":\n")
		s.WriteString("  " + a.inputs[f].View() + "\n\n")
	}

	if a.busy {
		s.WriteString(mutedStyle.Render("  Please wait...\n\n"))
	}
	s.WriteString(helpStyle.Render("  Tab to switch fields • Enter to submit • Esc to start over • Ctrl+C to quit\n"))
	if m.opts.ServerURL != "" {
		s.WriteString(mutedStyle.Render("\n  Server: " + m.opts.ServerURL))
	}
	return s.String()
}
