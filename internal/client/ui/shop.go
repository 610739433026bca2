package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/shop"
)

type shopView struct {
	shop     *shop.Shop
	selected int
	owned    bool
	sending  bool
	receiver textinput.Model
}

func newShopView(s *shop.Shop) shopView {
	in := textinput.New()
	in.Placeholder = "Receiver user id"
	in.CharLimit = 12
	in.Width = 20
	return shopView{shop: s, receiver: in}
}

func (v *shopView) load(m *Model) tea.Cmd {
	return m.run("", v.shop.Load)
}

func (v *shopView) items() int {
	if v.owned {
		return len(v.shop.Owned())
	}
	return len(v.shop.Gifts())
}

func (v *shopView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case actionMsg:
		return m.report(msg.ok, msg.err)
	case tea.KeyMsg:
		if v.sending {
			return v.sendKey(m, msg)
		}
		if v.shop.Pending() != nil {
			switch msg.String() {
			case "y", "enter":
				s := v.shop
				return m.run("Gift purchased", s.Confirm)
			case "n", "esc":
				v.shop.Cancel()
			}
			return nil
		}
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < v.items()-1 {
				v.selected++
			}
		case "g":
			v.owned = !v.owned
			v.selected = 0
		case "r":
			return v.load(m)
		case "enter":
			if v.owned {
				if v.selected < len(v.shop.Owned()) {
					v.sending = true
					v.receiver.SetValue("")
					v.receiver.Focus()
				}
				return nil
			}
			gifts := v.shop.Gifts()
			if v.selected < len(gifts) {
				v.shop.Select(gifts[v.selected])
			}
		}
	}
	return nil
}

func (v *shopView) sendKey(m *Model, key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		v.sending = false
		v.receiver.Blur()
		return nil
	case "enter":
		owned := v.shop.Owned()
		v.sending = false
		v.receiver.Blur()
		if v.selected >= len(owned) {
			return nil
		}
		giftID := owned[v.selected].ID
		receiver, err := parseUserID(v.receiver.Value())
		if err != nil {
			return m.report("", err)
		}
		s := v.shop
		return m.run("Gift sent", func(ctx context.Context) error {
			return s.Send(ctx, giftID, receiver)
		})
	}
	var cmd tea.Cmd
	v.receiver, cmd = v.receiver.Update(key)
	return cmd
}

func (v shopView) view() string {
	var s strings.Builder
	bal := v.shop.Balance()
	s.WriteString(titleStyle.Render("🎁 Gift shop") + mutedStyle.Render(fmt.Sprintf("  🦝 %d coins", bal.RaccoonCoins)) + "\n\n")

	if p := v.shop.Pending(); p != nil {
		body := fmt.Sprintf("Buy %s %s for %d coins?\n\nYou have %d coins.", p.Emoji, p.Name, p.Price, bal.RaccoonCoins)
		s.WriteString(dialogStyle.Render(body+"\n\n"+helpStyle.Render("y to buy • n to cancel")) + "\n")
		return s.String()
	}

	if v.owned {
		owned := v.shop.Owned()
		s.WriteString(selectedStyle.Render("  My gifts") + mutedStyle.Render("   Catalog") + "\n\n")
		if len(owned) == 0 {
			s.WriteString(mutedStyle.Render("  You have no gifts yet.\n"))
		}
		for i, g := range owned {
			line := fmt.Sprintf("%s %s x%d", g.Emoji, g.Name, g.Quantity)
			if g.Sender != nil {
				line += mutedStyle.Render(" from " + *g.Sender)
			}
			s.WriteString(listLine(i == v.selected, "", line))
		}
		if v.sending {
			s.WriteString("\n  Send to: " + v.receiver.View() + "\n")
		}
		s.WriteString("\n" + helpStyle.Render("  ↑/↓ navigate • Enter to send • g catalog • r reload"))
		return s.String()
	}

	gifts := v.shop.Gifts()
	s.WriteString(mutedStyle.Render("  My gifts") + selectedStyle.Render("   Catalog") + "\n\n")
	category := ""
	for i, g := range gifts {
		if g.Category != category {
			category = g.Category
			s.WriteString(mutedStyle.Render("  "+strings.ToUpper(category)) + "\n")
		}
		line := fmt.Sprintf("%s %s  %s", g.Emoji, g.Name, mutedStyle.Render(fmt.Sprintf("%d 🦝", g.Price)))
		s.WriteString(listLine(i == v.selected, "", line))
	}
	s.WriteString("\n" + helpStyle.Render("  ↑/↓ navigate • Enter to buy • g my gifts • r reload"))
	return s.String()
}
