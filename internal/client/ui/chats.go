package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloudzz-dev/speakly/internal/client/chat"
	"github.com/cloudzz-dev/speakly/internal/client/debug"
	"github.com/cloudzz-dev/speakly/internal/client/music"
	"github.com/cloudzz-dev/speakly/internal/models"
)

type chatOpenedMsg struct {
	chatID int
	title  string
	err    error
}

type messagesMsg struct {
	chatID int
	err    error
}

// sentMsg ends a composer send; success empties the composer.
type sentMsg struct {
	chatID int
	err    error
}

// chatActionMsg ends an action that leaves the composer alone.
type chatActionMsg struct {
	chatID int
	ok     string
	err    error
}

type chatsView struct {
	list     *chat.List
	session  *chat.Session
	search   textinput.Model
	composer textinput.Model
	viewport viewport.Model

	selected int
	open     bool
	title    string
	cursor   int
	attach   bool

	creating bool
	newName  textinput.Model
	newType  models.ChatType
}

func newChatsView(list *chat.List, session *chat.Session) chatsView {
	search := textinput.New()
	search.Placeholder = "Search users..."
	search.CharLimit = 64
	search.Width = 40
	search.Focus()

	composer := textinput.New()
	composer.Placeholder = "Type a message..."
	composer.CharLimit = 4000
	composer.Width = 60

	newName := textinput.New()
	newName.Placeholder = "Chat name"
	newName.CharLimit = 64
	newName.Width = 40

	return chatsView{
		list:     list,
		session:  session,
		search:   search,
		composer: composer,
		viewport: viewport.New(80, 20),
		cursor:   -1,
		newName:  newName,
		newType:  models.ChatGroup,
	}
}

func (c *chatsView) load(m *Model) tea.Cmd {
	list := c.list
	return m.run("", list.Load)
}

func (c *chatsView) resize(w, h int) {
	c.viewport.Width = max(w-4, 20)
	c.viewport.Height = max(h-12, 5)
	c.composer.Width = max(w-8, 20)
}

func (c *chatsView) focus(on bool) {
	if !on {
		c.search.Blur()
		c.composer.Blur()
		return
	}
	if c.open {
		c.composer.Focus()
	} else {
		c.search.Focus()
	}
}

func (c *chatsView) close() {
	c.session.Close()
	c.open = false
	c.attach = false
	c.creating = false
	c.cursor = -1
	c.composer.SetValue("")
	c.composer.Blur()
	c.search.Focus()
}

func (c *chatsView) openChat(m *Model, chatID int, title string) {
	c.open = true
	c.title = title
	c.cursor = -1
	c.attach = false
	c.composer.SetValue("")
	c.composer.Placeholder = "Type a message..."
	c.search.Blur()
	c.composer.Focus()
	c.viewport.SetContent(mutedStyle.Render("Loading..."))

	b := m.bridge
	c.session.Open(m.ctx, chatID, m.opts.PollInterval, func(_ []models.Message, err error) {
		b.post(messagesMsg{chatID: chatID, err: err})
	})
	debug.Log("opened chat %d", chatID)
}

// onEvent reacts to a pushed chat change: the open chat polls right away and
// the list reloads for fresh previews.
func (c *chatsView) onEvent(m *Model, chatID int) tea.Cmd {
	if c.open && c.session.ChatID() == chatID {
		c.session.Kick()
	}
	return c.load(m)
}

func (c *chatsView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chatOpenedMsg:
		if msg.err != nil {
			return m.report("", msg.err)
		}
		c.openChat(m, msg.chatID, msg.title)
		return nil

	case messagesMsg:
		if msg.err != nil {
			debug.Log("poll chat %d: %v", msg.chatID, msg.err)
			return nil
		}
		if c.open && c.session.ChatID() == msg.chatID {
			c.syncViewport(m)
		}
		return nil

	case sentMsg:
		if msg.err != nil {
			return m.report("", msg.err)
		}
		if c.open && c.session.ChatID() == msg.chatID {
			c.composer.SetValue("")
			c.attach = false
			c.composer.Placeholder = "Type a message..."
			c.syncViewport(m)
		}
		return nil

	case chatActionMsg:
		if c.open && c.session.ChatID() == msg.chatID {
			c.syncViewport(m)
		}
		return m.report(msg.ok, msg.err)

	case actionMsg:
		return m.report(msg.ok, msg.err)

	case tea.KeyMsg:
		if c.open {
			return c.chatKey(m, msg)
		}
		return c.listKey(m, msg)
	}

	if c.open {
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (c *chatsView) entries() int {
	if c.list.Searching() {
		return len(c.list.Results())
	}
	return len(c.list.Chats())
}

func (c *chatsView) listKey(m *Model, key tea.KeyMsg) tea.Cmd {
	if c.creating {
		return c.createKey(m, key)
	}
	switch key.String() {
	case "ctrl+g":
		c.creating = true
		c.newType = models.ChatGroup
		c.newName.SetValue("")
		c.search.Blur()
		c.newName.Focus()
		return nil
	case "up":
		if c.selected > 0 {
			c.selected--
		}
		return nil
	case "down":
		if c.selected < c.entries()-1 {
			c.selected++
		}
		return nil
	case "ctrl+r":
		return c.load(m)
	case "esc":
		c.search.SetValue("")
		c.selected = 0
		list, ctx := c.list, m.ctx
		return func() tea.Msg { return actionMsg{err: list.Search(ctx, "")} }
	case "enter":
		return c.activate(m)
	}

	before := c.search.Value()
	var cmd tea.Cmd
	c.search, cmd = c.search.Update(key)
	if q := c.search.Value(); q != before {
		c.selected = 0
		list, ctx := c.list, m.ctx
		return tea.Batch(cmd, func() tea.Msg { return actionMsg{err: list.Search(ctx, q)} })
	}
	return cmd
}

// createKey drives the new group/channel prompt.
func (c *chatsView) createKey(m *Model, key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		c.stopCreating()
		return nil
	case "ctrl+t":
		if c.newType == models.ChatGroup {
			c.newType = models.ChatChannel
		} else {
			c.newType = models.ChatGroup
		}
		return nil
	case "enter":
		list, ctx := c.list, m.ctx
		typ, name := c.newType, strings.TrimSpace(c.newName.Value())
		if name == "" {
			return m.report("", chat.ErrChatName)
		}
		c.stopCreating()
		return func() tea.Msg {
			id, err := list.Create(ctx, typ, name, nil)
			return chatOpenedMsg{chatID: id, title: name, err: err}
		}
	}
	var cmd tea.Cmd
	c.newName, cmd = c.newName.Update(key)
	return cmd
}

func (c *chatsView) stopCreating() {
	c.creating = false
	c.newName.Blur()
	c.search.Focus()
}

func (c *chatsView) activate(m *Model) tea.Cmd {
	if c.list.Searching() {
		results := c.list.Results()
		if c.selected >= len(results) {
			return nil
		}
		user := results[c.selected]
		list, ctx := c.list, m.ctx
		c.search.SetValue("")
		c.selected = 0
		return func() tea.Msg {
			id, err := list.StartChat(ctx, user)
			return chatOpenedMsg{chatID: id, title: user.Name(), err: err}
		}
	}
	chats := c.list.Chats()
	if c.selected >= len(chats) {
		return nil
	}
	ch := chats[c.selected]
	c.openChat(m, ch.ID, chatTitle(ch))
	return nil
}

func chatTitle(ch models.Chat) string {
	if ch.Name != "" {
		return ch.Name
	}
	return fmt.Sprintf("Chat #%d", ch.ID)
}

func (c *chatsView) selectedMessage() *models.Message {
	msgs := c.session.Messages()
	if c.cursor < 0 || c.cursor >= len(msgs) {
		return nil
	}
	msg := msgs[c.cursor]
	return &msg
}

func (c *chatsView) chatKey(m *Model, key tea.KeyMsg) tea.Cmd {
	session, ctx := c.session, m.ctx
	chatID := session.ChatID()

	switch key.String() {
	case "esc":
		switch {
		case session.ReplyTo() != nil:
			session.SetReply(nil)
		case c.attach:
			c.attach = false
			c.composer.SetValue("")
			c.composer.Placeholder = "Type a message..."
		case c.cursor >= 0:
			c.cursor = -1
			c.syncViewport(m)
		default:
			c.close()
			return c.load(m)
		}
		return nil

	case "enter":
		if c.attach {
			path := strings.TrimSpace(c.composer.Value())
			return func() tea.Msg {
				return sentMsg{chatID: chatID, err: session.SendFile(ctx, path)}
			}
		}
		session.SetInput(c.composer.Value())
		return func() tea.Msg {
			return sentMsg{chatID: chatID, err: session.Send(ctx)}
		}

	case "ctrl+p":
		n := len(session.Messages())
		switch {
		case n == 0:
		case c.cursor < 0:
			c.cursor = n - 1
		case c.cursor > 0:
			c.cursor--
		}
		c.syncViewport(m)
		return nil

	case "ctrl+n":
		if c.cursor >= 0 && c.cursor < len(session.Messages())-1 {
			c.cursor++
		} else {
			c.cursor = -1
		}
		c.syncViewport(m)
		return nil

	case "ctrl+r":
		if msg := c.selectedMessage(); msg != nil {
			session.SetReply(msg)
		}
		return nil

	case "ctrl+l", "ctrl+t":
		msg := c.selectedMessage()
		if msg == nil {
			return m.notify("Select a message with Ctrl+P first", true)
		}
		emoji := models.ReactionEmojis[0]
		if key.String() == "ctrl+t" {
			emoji = models.ReactionEmojis[1]
		}
		id := msg.ID
		return func() tea.Msg {
			return chatActionMsg{chatID: chatID, err: session.React(ctx, id, emoji)}
		}

	case "ctrl+o":
		c.attach = !c.attach
		c.composer.SetValue("")
		if c.attach {
			c.composer.Placeholder = "Path to an image..."
		} else {
			c.composer.Placeholder = "Type a message..."
		}
		return nil

	case "ctrl+v":
		if session.Recording() {
			return func() tea.Msg {
				return chatActionMsg{chatID: chatID, ok: "Voice message sent", err: session.StopRecording(ctx)}
			}
		}
		if err := session.StartRecording(); err != nil {
			return m.report("", err)
		}
		return m.notify("Recording... Ctrl+V to send", false)

	case "ctrl+x":
		m.ask(fmt.Sprintf("Delete the whole history of %q?", c.title), func() tea.Cmd {
			return func() tea.Msg {
				return chatActionMsg{chatID: chatID, ok: "History cleared", err: session.Clear(ctx, true)}
			}
		})
		return nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(key)
		return cmd
	}

	var cmd tea.Cmd
	c.composer, cmd = c.composer.Update(key)
	if !c.attach {
		session.SetInput(c.composer.Value())
	}
	return cmd
}

func (c *chatsView) syncViewport(m *Model) {
	me := 0
	if m.user != nil {
		me = m.user.ID
	}
	msgs := c.session.Messages()
	byID := make(map[int]models.Message, len(msgs))
	for _, msg := range msgs {
		byID[msg.ID] = msg
	}

	var content strings.Builder
	if len(msgs) == 0 {
		content.WriteString(mutedStyle.Render("No messages yet. Say hi!"))
	}
	for i, msg := range msgs {
		content.WriteString(renderMessage(msg, me, byID, i == c.cursor))
		content.WriteString("\n")
	}
	c.viewport.SetContent(content.String())
	if c.cursor < 0 {
		c.viewport.GotoBottom()
	}
}

func renderMessage(msg models.Message, me int, byID map[int]models.Message, selected bool) string {
	style := otherMessageStyle
	if msg.SenderID == me {
		style = ownMessageStyle
	}
	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderUsername
	}

	var body string
	switch msg.Type {
	case models.MessagePhoto:
		body = "🖼  photo"
		if msg.FileURL != nil {
			body += " " + mutedStyle.Render(*msg.FileURL)
		}
	case models.MessageVoice:
		secs := 0
		if msg.Duration != nil {
			secs = *msg.Duration
		}
		body = "🎤 voice " + music.FormatDuration(secs)
		if msg.FileURL != nil {
			body += " " + mutedStyle.Render(*msg.FileURL)
		}
	default:
		body = msg.Content
	}

	var s strings.Builder
	if msg.ReplyTo != nil {
		quoted := "message"
		if orig, ok := byID[*msg.ReplyTo]; ok {
			quoted = truncate(orig.Content, 40)
		}
		s.WriteString(mutedStyle.Render("  ↪ "+quoted) + "\n")
	}
	prefix := "  "
	if selected {
		prefix = selectedStyle.Render("→ ")
	}
	s.WriteString(fmt.Sprintf("%s%s %s: %s",
		prefix,
		mutedStyle.Render(msg.CreatedAt.Local().Format("15:04")),
		style.Render(sender),
		body,
	))
	if msg.IsEdited {
		s.WriteString(mutedStyle.Render(" (edited)"))
	}
	if len(msg.Reactions) > 0 {
		parts := make([]string, 0, len(msg.Reactions))
		for _, r := range msg.Reactions {
			parts = append(parts, fmt.Sprintf("%s %d", r.Emoji, r.Count))
		}
		s.WriteString("  " + mutedStyle.Render(strings.Join(parts, "  ")))
	}
	return s.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (c chatsView) view(m Model) string {
	if c.open {
		return c.chatView(m)
	}
	return c.listView()
}

func (c chatsView) listView() string {
	var s strings.Builder
	if c.creating {
		kind := "Group"
		if c.newType == models.ChatChannel {
			kind = "Channel"
		}
		body := titleStyle.Render("New chat") + "\n\n" +
			"Type: " + selectedStyle.Render(kind) + "\n" +
			"Name: " + c.newName.View() + "\n\n" +
			helpStyle.Render("Ctrl+T group/channel • Enter to create • Esc to cancel")
		s.WriteString(dialogStyle.Render(body))
		return s.String()
	}
	s.WriteString("  " + c.search.View() + "\n\n")

	if c.list.Searching() {
		results := c.list.Results()
		if len(results) == 0 {
			s.WriteString(mutedStyle.Render("  No users found.\n"))
		}
		for i, u := range results {
			line := fmt.Sprintf("%s @%s", u.Name(), u.Username)
			s.WriteString(listLine(i == c.selected, "👤", line))
		}
		s.WriteString("\n" + helpStyle.Render("  ↑/↓ navigate • Enter to start a chat • Esc to clear search"))
		return s.String()
	}

	chats := c.list.Chats()
	if len(chats) == 0 {
		s.WriteString(mutedStyle.Render("  No chats yet.\n"))
		s.WriteString(mutedStyle.Render("  Type a name above to find someone.\n"))
	}
	for i, ch := range chats {
		line := chatTitle(ch)
		if ch.UnreadCount > 0 {
			line += selectedStyle.Render(fmt.Sprintf(" (%d)", ch.UnreadCount))
		}
		if ch.LastMessage != nil {
			line += mutedStyle.Render("  " + truncate(*ch.LastMessage, 40))
		}
		s.WriteString(listLine(i == c.selected, chatIcon(ch.Type), line))
	}
	s.WriteString("\n" + helpStyle.Render("  ↑/↓ navigate • Enter to open • Ctrl+G new group/channel • Ctrl+R to reload"))
	return s.String()
}

func chatIcon(t models.ChatType) string {
	switch t {
	case models.ChatGroup:
		return "👥"
	case models.ChatChannel:
		return "📢"
	case models.ChatSaved:
		return "🔖"
	}
	return "💬"
}

func listLine(selected bool, icon, text string) string {
	if selected {
		return selectedStyle.Render("→ "+icon+" ") + text + "\n"
	}
	return "  " + icon + " " + text + "\n"
}

func (c chatsView) chatView(m Model) string {
	var s strings.Builder
	width := max(m.width-2, 20)

	s.WriteString(titleStyle.Render("💬 "+c.title) + "\n")
	s.WriteString(strings.Repeat("─", width) + "\n")
	s.WriteString(c.viewport.View() + "\n")
	s.WriteString(strings.Repeat("─", width) + "\n")

	if reply := c.session.ReplyTo(); reply != nil {
		s.WriteString(mutedStyle.Render("↪ Replying to: "+truncate(reply.Content, 50)+" (Esc to cancel)") + "\n")
	}
	if c.session.Recording() {
		s.WriteString(errorStyle.Render("● Recording") + "\n")
	}
	label := ""
	if c.attach {
		label = lipgloss.NewStyle().Foreground(warnColor).Render("📎 ")
	}
	s.WriteString(label + c.composer.View() + "\n")
	s.WriteString(helpStyle.Render("Enter send • Ctrl+P/N select • Ctrl+R reply • Ctrl+L ❤️  • Ctrl+T 👍 • Ctrl+O photo • Ctrl+V voice • Ctrl+X clear • Esc back"))
	return s.String()
}
