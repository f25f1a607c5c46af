package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beaconcast/beacon/internal/protocol"
)

const (
	chatInputHeight = 3
	chatHeaderLines = 2
	maxChatLines    = 500
)

// ChatSource feeds a ChatModel with relay events.
type ChatSource struct {
	Messages     <-chan protocol.ChatBroadcast
	Viewers      <-chan protocol.ViewerEvent
	Ended        <-chan string
	Disconnected <-chan struct{}
}

type chatReceivedMsg protocol.ChatBroadcast

type viewerCountMsg int

type streamEndedMsg string

type disconnectedMsg struct{}

type chatLine struct {
	at     string
	from   string
	text   string
	self   bool
	notice bool
}

// ChatModel is the Bubble Tea model behind `beacon chat`.
type ChatModel struct {
	viewport viewport.Model
	input    textinput.Model
	ready    bool

	title    string
	roomID   string
	selfID   string
	username string
	viewers  int

	lines  []chatLine
	send   func(message string) error
	source ChatSource

	endReason string
}

// NewChatModel creates a chat model. send posts a line to the room; the
// relay echoes it back through source.Messages.
func NewChatModel(joined protocol.StreamJoined, selfID, username string, send func(string) error, source ChatSource) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Say something..."
	ti.Prompt = "> "
	ti.CharLimit = 500
	ti.Focus()

	if username == "" {
		username = protocol.DefaultUsername
	}

	return &ChatModel{
		viewport: viewport.New(80, 20),
		input:    ti,
		title:    joined.StreamInfo.Title,
		roomID:   joined.RoomID,
		selfID:   selfID,
		username: username,
		viewers:  joined.ViewerCount,
		send:     send,
		source:   source,
	}
}

// EndReason reports why the stream ended, or "" if the user quit.
func (m *ChatModel) EndReason() string {
	return m.endReason
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitFor(m.source.Messages, func(b protocol.ChatBroadcast) tea.Msg { return chatReceivedMsg(b) }),
		waitFor(m.source.Viewers, func(v protocol.ViewerEvent) tea.Msg { return viewerCountMsg(v.ViewerCount) }),
		waitFor(m.source.Ended, func(r string) tea.Msg { return streamEndedMsg(r) }),
		waitFor(m.source.Disconnected, func(struct{}) tea.Msg { return disconnectedMsg{} }),
	)
}

// waitFor turns one receive on ch into a message. A nil channel yields no
// command.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			var zero T
			return wrap(zero)
		}
		return wrap(v)
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-chatInputHeight-chatHeaderLines)
		m.input.Width = max(10, msg.Width-len(m.input.Prompt)-1)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			m.submit()
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case chatReceivedMsg:
		b := protocol.ChatBroadcast(msg)
		m.appendLine(chatLine{
			at:   Clock(b.Timestamp),
			from: b.Username,
			text: b.Message,
			self: b.UserID == m.selfID,
		})
		cmds = append(cmds, waitFor(m.source.Messages, func(b protocol.ChatBroadcast) tea.Msg { return chatReceivedMsg(b) }))

	case viewerCountMsg:
		m.viewers = int(msg)
		cmds = append(cmds, waitFor(m.source.Viewers, func(v protocol.ViewerEvent) tea.Msg { return viewerCountMsg(v.ViewerCount) }))

	case streamEndedMsg:
		m.endReason = string(msg)
		if m.endReason == "" {
			m.endReason = "Stream ended"
		}
		return m, tea.Quit

	case disconnectedMsg:
		if m.endReason == "" {
			m.endReason = "Disconnected from relay"
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.SetValue("")

	if err := m.send(text); err != nil {
		m.appendLine(chatLine{notice: true, text: fmt.Sprintf("not sent: %v", err)})
	}
}

func (m *ChatModel) appendLine(l chatLine) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxChatLines {
		m.lines = m.lines[len(m.lines)-maxChatLines:]
	}
	m.refresh()
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.renderLines())
	m.viewport.GotoBottom()
}

func (m *ChatModel) renderLines() string {
	if len(m.lines) == 0 {
		return ChatNoticeStyle.Render("No messages yet.")
	}

	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if l.notice {
			b.WriteString(ChatNoticeStyle.Render(l.text))
			continue
		}
		name := ChatNameStyle
		if l.self {
			name = ChatSelfStyle
		}
		fmt.Fprintf(&b, "%s %s %s", ChatTimeStyle.Render(l.at), name.Render(l.from+":"), l.text)
	}
	return b.String()
}

func (m *ChatModel) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		StatusStyle.Render(IconChat+" "+m.title),
		MutedStyle.Render(fmt.Sprintf("  %s  %s %d watching  as %s", m.roomID, IconViewer, m.viewers, m.username)),
	)
	if !m.ready {
		return header + "\n\n" + m.renderLines() + "\n\n" + m.input.View()
	}
	return header + "\n\n" + m.viewport.View() + "\n\n" + m.input.View()
}

// Clock renders an ISO-8601 timestamp as local HH:MM.
func Clock(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "--:--"
	}
	return t.Local().Format("15:04")
}
