package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/shop"
	"github.com/cloudzz-dev/speakly/internal/models"
)

var errBadUserID = errors.New("enter a user id")

func parseUserID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, errBadUserID
	}
	return id, nil
}

const (
	walletTopUp = iota
	walletCoins
	walletReceiver
	walletAmount
	walletFields
)

type topUpMsg struct {
	url string
	err error
}

type walletView struct {
	wallet *shop.Wallet
	inputs [walletFields]textinput.Model
	active int
}

func newWalletView(w *shop.Wallet) walletView {
	placeholders := [walletFields]string{"Amount, ₽", "Coins to buy", "Receiver user id", "Amount, ₽"}
	v := walletView{wallet: w}
	for i := range v.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 12
		in.Width = 20
		v.inputs[i] = in
	}
	return v
}

func (v *walletView) load(m *Model) tea.Cmd {
	return m.run("", v.wallet.Load)
}

func (v *walletView) focus(on bool) {
	for i := range v.inputs {
		v.inputs[i].Blur()
	}
	if on {
		v.inputs[v.active].Focus()
	}
}

func (v *walletView) setFocus(i int) {
	v.active = (i + walletFields) % walletFields
	v.focus(true)
}

func (v *walletView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case actionMsg:
		return m.report(msg.ok, msg.err)

	case topUpMsg:
		if msg.err != nil {
			return m.report("", msg.err)
		}
		if m.opts.OpenURL != nil {
			if err := m.opts.OpenURL(msg.url); err != nil {
				return m.notify("Open this page to pay: "+msg.url, false)
			}
		}
		return m.notify("Complete the payment in your browser, then press Ctrl+K", false)

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			v.setFocus(v.active - 1)
			return nil
		case "down":
			v.setFocus(v.active + 1)
			return nil
		case "ctrl+r":
			return v.load(m)
		case "ctrl+k":
			w, ctx := v.wallet, m.ctx
			return func() tea.Msg {
				status, err := w.CheckTopUp(ctx)
				return actionMsg{ok: paymentStatusText(status), err: err}
			}
		case "enter":
			return v.submit(m)
		}
	}
	var cmd tea.Cmd
	v.inputs[v.active], cmd = v.inputs[v.active].Update(msg)
	return cmd
}

func paymentStatusText(s models.PaymentStatus) string {
	switch s {
	case models.PaymentSucceeded:
		return "Payment received, balance updated"
	case models.PaymentCanceled:
		return "Payment was canceled"
	case models.PaymentPending:
		return "Payment is still pending"
	}
	return ""
}

func (v *walletView) submit(m *Model) tea.Cmd {
	w, ctx := v.wallet, m.ctx
	switch v.active {
	case walletTopUp:
		amount := v.inputs[walletTopUp].Value()
		v.inputs[walletTopUp].SetValue("")
		return func() tea.Msg {
			url, err := w.TopUp(ctx, amount)
			return topUpMsg{url: url, err: err}
		}
	case walletCoins:
		amount := v.inputs[walletCoins].Value()
		v.inputs[walletCoins].SetValue("")
		return func() tea.Msg {
			received, err := w.BuyCoins(ctx, amount)
			return actionMsg{ok: fmt.Sprintf("Received %d raccoon coins", received), err: err}
		}
	default:
		receiver, amount := v.inputs[walletReceiver].Value(), v.inputs[walletAmount].Value()
		if v.active == walletReceiver {
			v.setFocus(walletAmount)
			return nil
		}
		v.inputs[walletAmount].SetValue("")
		return m.run("Money sent", func(ctx context.Context) error {
			return w.SendMoney(ctx, receiver, amount)
		})
	}
}

func (v walletView) view() string {
	var s strings.Builder
	bal := v.wallet.Balance()

	card := fmt.Sprintf("Balance: %s ₽\nRaccoon coins: %d 🦝", bal.Balance.StringFixed(2), bal.RaccoonCoins)
	if id := v.wallet.PendingPayment(); id != "" {
		card += "\n" + mutedStyle.Render("Pending top-up "+id)
	}
	s.WriteString(titleStyle.Render("💳 Wallet") + "\n")
	s.WriteString(boxStyle.Render(card) + "\n\n")

	s.WriteString("  Top up:        " + v.inputs[walletTopUp].View() + "\n")
	s.WriteString("  Buy coins:     " + v.inputs[walletCoins].View() +
		mutedStyle.Render(fmt.Sprintf("  +%d%% bonus", models.CoinBonusPercent)) + "\n")
	s.WriteString("  Send money to: " + v.inputs[walletReceiver].View() + "\n")
	s.WriteString("  Amount:        " + v.inputs[walletAmount].View() + "\n\n")
	s.WriteString(helpStyle.Render("  ↑/↓ choose • Enter to submit • Ctrl+K check payment • Ctrl+R reload"))
	return s.String()
}
