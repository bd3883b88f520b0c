package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const helpText = "enter sends · /mute · /resume · /clear · /quit"

// Controller is the part of the assistant the chat window drives.
type Controller interface {
	State() assistant.State
	Muted() bool
	MuteBackgroundListening() bool
	Resume() bool
	SubmitTypedCommand(ctx context.Context, text string) assistant.Reply
	ClearHistory() error
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
	roleError
)

type line struct {
	role role
	text string
}

type eventMsg struct{ event events.Event }

type replyMsg struct{ reply assistant.Reply }

type Model struct {
	controller Controller
	name       string

	input    textinput.Model
	viewport viewport.Model
	styles   styles

	lines   []line
	state   string
	muted   bool
	waiting bool
	width   int
	height  int
}

func NewModel(controller Controller, name string) Model {
	input := textinput.New()
	input.Placeholder = "Type a command or say the wake phrase..."
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Focus()

	return Model{
		controller: controller,
		name:       name,
		input:      input,
		viewport:   viewport.New(80, 20),
		styles:     defaultStyles(),
		state:      controller.State().String(),
		muted:      controller.Muted(),
		width:      80,
		height:     24,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyMsg:
		m.waiting = false
		m.addReply(msg.reply)
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		return m.runSlashCommand(text)
	}
	if m.waiting {
		m.add(roleSystem, "still working on the last command")
		return m, nil
	}

	m.add(roleUser, text)
	m.waiting = true
	controller := m.controller
	return m, func() tea.Msg {
		return replyMsg{reply: controller.SubmitTypedCommand(context.Background(), text)}
	}
}

func (m Model) runSlashCommand(text string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.Fields(text)[0]) {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/mute":
		if m.controller.MuteBackgroundListening() {
			m.add(roleSystem, "background listening muted")
		} else {
			m.add(roleSystem, "background listening is already muted")
		}
	case "/resume":
		if m.controller.Resume() {
			m.add(roleSystem, "background listening resumed")
		} else {
			m.add(roleSystem, "background listening is not muted")
		}
	case "/clear":
		if err := m.controller.ClearHistory(); err != nil {
			m.add(roleError, "failed to clear history: "+err.Error())
		} else {
			m.lines = nil
			m.add(roleSystem, "conversation cleared")
		}
	case "/help":
		m.add(roleSystem, helpText)
	default:
		m.add(roleError, "unknown command "+text)
	}
	m.muted = m.controller.Muted()
	return m, nil
}

func (m *Model) addReply(reply assistant.Reply) {
	if reply.Text != "" {
		m.add(roleAssistant, reply.Text)
	}
	if reply.Err != nil {
		m.add(roleError, reply.Err.Error())
	}
}

func (m *Model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case events.StateChanged:
		m.state = e.To
		m.muted = m.controller.Muted()
	case events.CommandProcessed:
		// Typed commands are shown when their reply arrives.
		if e.Source != assistant.SourceVoice {
			return
		}
		m.add(roleUser, "🎤 "+e.Text)
		if e.Reply != "" {
			m.add(roleAssistant, e.Reply)
		}
		if e.Error != "" {
			m.add(roleError, e.Error)
		}
	}
	m.refresh()
}

func (m *Model) add(r role, text string) {
	m.lines = append(m.lines, line{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	width := max(m.width-2, 20)

	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		var prefix string
		var style lipgloss.Style
		switch l.role {
		case roleUser:
			prefix, style = "you: ", m.styles.user
		case roleAssistant:
			prefix, style = strings.ToLower(m.name)+": ", m.styles.assistant
		case roleError:
			prefix, style = "error: ", m.styles.err
		default:
			prefix, style = "· ", m.styles.system
		}
		wrapped := wordwrap.String(l.text, max(width-len(prefix), 10))
		b.WriteString(style.Render(prefix))
		b.WriteString(strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", len(prefix))))
	}
	return b.String()
}

func (m Model) View() string {
	status := m.styles.status.Render(m.state)
	if m.muted {
		status = m.styles.muted.Render(m.state + " (muted)")
	}
	if m.waiting {
		status += m.styles.help.Render(" · thinking...")
	}

	header := m.styles.title.Render(m.name) + "  " + status
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		m.styles.help.Render(helpText),
	)
}
