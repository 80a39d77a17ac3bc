package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/lexcodex/leadline/engine"
	"github.com/lexcodex/leadline/framework"
)

var (
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	askStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// turnEmitter buffers a turn's output for the UI thread.
type turnEmitter struct {
	messages []string
	pending  *framework.PendingToolRequest
}

func (e *turnEmitter) BotResponse(sessionID, message string) {
	e.messages = append(e.messages, message)
}

func (e *turnEmitter) UserInputRequired(sessionID string, req framework.PendingToolRequest) {
	e.pending = &req
}

type turnDoneMsg struct {
	messages []string
	pending  *framework.PendingToolRequest
	err      error
}

type chatModel struct {
	assistant *engine.Assistant
	state     *framework.ConversationState
	pending   *framework.PendingToolRequest

	port   viewport.Model
	input  textinput.Model
	spin   spinner.Model
	lines  []string
	busy   bool
	ready  bool
	width  int
	height int
}

func newChatModel(assistant *engine.Assistant) *chatModel {
	input := textinput.New()
	input.Placeholder = "Say something (ctrl+c to quit)"
	input.Focus()
	input.CharLimit = 512

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	sessionID := uuid.NewString()
	return &chatModel{
		assistant: assistant,
		state:     framework.NewConversationState(sessionID),
		input:     input,
		spin:      spin,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.greetCmd())
}

func (m *chatModel) greetCmd() tea.Cmd {
	m.busy = true
	return func() tea.Msg {
		emitter := &turnEmitter{}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		m.assistant.Greet(ctx, m.state, emitter)
		return turnDoneMsg{messages: emitter.messages, pending: emitter.pending}
	}
}

func (m *chatModel) turnCmd(text string) tea.Cmd {
	pending := m.pending
	m.pending = nil
	m.busy = true
	return func() tea.Msg {
		emitter := &turnEmitter{}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		var err error
		if pending != nil {
			err = m.assistant.Resume(ctx, m.state, pending.ToolName, pending.CallID, text, emitter)
		} else {
			err = m.assistant.HandleUserMessage(ctx, m.state, text, emitter)
		}
		return turnDoneMsg{messages: emitter.messages, pending: emitter.pending, err: err}
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		portHeight := msg.Height - 5
		if portHeight < 3 {
			portHeight = 3
		}
		if !m.ready {
			m.port = viewport.New(msg.Width-4, portHeight)
			m.ready = true
		} else {
			m.port.Width = msg.Width - 4
			m.port.Height = portHeight
		}
		m.refreshPort()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.appendLine(userStyle.Render("you: ") + text)
			return m, m.turnCmd(text)
		}

	case turnDoneMsg:
		m.busy = false
		for _, line := range msg.messages {
			m.appendLine(botStyle.Render("claire: ") + line)
		}
		if msg.pending != nil {
			m.pending = msg.pending
			m.appendLine(askStyle.Render("claire asks: ") + msg.pending.Prompt)
		}
		if msg.err != nil {
			m.appendLine(faintStyle.Render(fmt.Sprintf("(turn error: %v)", msg.err)))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var inputCmd, portCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.port, portCmd = m.port.Update(msg)
	return m, tea.Batch(inputCmd, portCmd)
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshPort()
}

func (m *chatModel) refreshPort() {
	if !m.ready {
		return
	}
	m.port.SetContent(strings.Join(m.lines, "\n"))
	m.port.GotoBottom()
}

func (m *chatModel) View() string {
	if !m.ready {
		return "starting..."
	}
	status := ""
	if m.busy {
		status = m.spin.View() + faintStyle.Render(" thinking...")
	} else if m.pending != nil {
		status = askStyle.Render("yes/no answer expected")
	}
	return borderStyle.Render(m.port.View()) + "\n" + m.input.View() + "\n" + status
}

func runChatUI(assistant *engine.Assistant) error {
	program := tea.NewProgram(newChatModel(assistant), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
