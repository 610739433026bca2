package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/profile"
)

type friendsView struct {
	profile   *profile.Profile
	input     textinput.Model
	accepting bool
	selected  int
}

func newFriendsView(p *profile.Profile) friendsView {
	in := textinput.New()
	in.Placeholder = "User id"
	in.CharLimit = 12
	in.Width = 20
	return friendsView{profile: p, input: in}
}

func (f *friendsView) load(m *Model) tea.Cmd {
	return m.run("", f.profile.LoadFriends)
}

func (f *friendsView) focus(on bool) {
	if on {
		f.input.Focus()
	} else {
		f.input.Blur()
	}
}

func (f *friendsView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case actionMsg:
		return m.report(msg.ok, msg.err)
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if f.selected > 0 {
				f.selected--
			}
			return nil
		case "down":
			if f.selected < len(f.profile.Friends())-1 {
				f.selected++
			}
			return nil
		case "ctrl+a":
			f.accepting = !f.accepting
			return nil
		case "ctrl+r":
			return f.load(m)
		case "enter":
			id := f.input.Value()
			f.input.SetValue("")
			p := f.profile
			if f.accepting {
				return m.run("Friend request accepted", func(ctx context.Context) error {
					return p.AcceptFriend(ctx, id)
				})
			}
			return m.run("Friend request sent", func(ctx context.Context) error {
				return p.AddFriend(ctx, id)
			})
		}
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f friendsView) view() string {
	var s strings.Builder
	friends := f.profile.Friends()

	s.WriteString(titleStyle.Render(fmt.Sprintf("Friends (%d)", len(friends))) + "\n\n")
	if len(friends) == 0 {
		s.WriteString(mutedStyle.Render("  No friends yet.\n"))
	}
	for i, fr := range friends {
		dot := mutedStyle.Render("○")
		if fr.IsOnline {
			dot = okStyle.Render("●")
		}
		name := fr.DisplayName
		if name == "" {
			name = fr.Username
		}
		line := fmt.Sprintf("%s %s @%s %s", dot, name, fr.Username, mutedStyle.Render(fmt.Sprintf("#%d", fr.ID)))
		if i == f.selected {
			s.WriteString(selectedStyle.Render("→ ") + line + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}

	label := "Add friend"
	if f.accepting {
		label = "Accept request from"
	}
	s.WriteString("\n  " + label + ": " + f.input.View() + "\n\n")
	s.WriteString(helpStyle.Render("  Enter to submit • Ctrl+A add/accept • Ctrl+R reload"))
	return s.String()
}
