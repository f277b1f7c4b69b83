package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avelinom/scout/agent"
	"github.com/avelinom/scout/config"
	"github.com/avelinom/scout/history"
	"github.com/avelinom/scout/tools"
)

// ChatModel is the interactive chat surface over the session manager
type ChatModel struct {
	manager *agent.Manager
	store   *history.Store
	cfg     *config.Manager
	toolset ToolSet
	model   string

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	messages     []chatMessage
	isProcessing bool
	width        int
	height       int
	ready        bool
}

// ToolSet is the slice of the registry the chat surface needs
type ToolSet interface {
	Descriptors() []tools.Descriptor
	SetEnabled(name string, enabled bool) error
}

type chatMessage struct {
	role      string
	content   string
	timestamp time.Time
}

// NewChat creates the chat TUI
func NewChat(manager *agent.Manager, store *history.Store, cfg *config.Manager, toolset ToolSet, model string) *ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask a question... (/help for commands)"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false) // Enter sends message

	s := spinner.New(spinner.WithSpinner(spinner.Line))
	s.Style = spinnerStyle

	return &ChatModel{
		manager:  manager,
		store:    store,
		cfg:      cfg,
		toolset:  toolset,
		model:    model,
		textarea: ta,
		spinner:  s,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
	)
}

type turnMsg struct {
	result agent.TurnResult
	err    error
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-7)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 7
		}

		m.textarea.SetWidth(msg.Width - 4)
		m.textarea.SetHeight(3)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isProcessing {
				value := strings.TrimSpace(m.textarea.Value())
				if value != "" {
					m.textarea.Reset()
					if cmd, quit := m.handleInput(value); quit {
						return m, tea.Quit
					} else if cmd != nil {
						cmds = append(cmds, cmd)
					}
				}
			}
			return m, tea.Batch(cmds...)

		case tea.KeyCtrlC:
			if m.textarea.Value() != "" {
				m.textarea.Reset()
			} else {
				return m, tea.Quit
			}
		}

	case turnMsg:
		m.isProcessing = false
		if msg.err != nil {
			m.addMessage("error", msg.err.Error())
		} else {
			m.addMessage("assistant", msg.result.Reply)
			for _, rec := range msg.result.ToolCalls {
				m.addMessage("system", fmt.Sprintf("%s: %s", rec.ToolName, rec.Status))
			}
		}
		m.updateView()

	case spinner.TickMsg:
		if m.isProcessing {
			s, cmd := m.spinner.Update(msg)
			m.spinner = s
			cmds = append(cmds, cmd)
		}
	}

	if !m.isProcessing {
		ta, cmd := m.textarea.Update(msg)
		m.textarea = ta
		cmds = append(cmds, cmd)
	}

	vp, cmd := m.viewport.Update(msg)
	m.viewport = vp
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m ChatModel) View() string {
	if !m.ready {
		return "\nInitializing..."
	}

	var b strings.Builder

	session := m.manager.SessionID()
	if session == "" {
		session = "<new>"
	}
	header := headerStyle.Render(fmt.Sprintf("Scout | Model: %s | Session: %s", m.model, session))
	b.WriteString(header + "\n")
	b.WriteString(systemStyle.Render("Commands: /help /tools /enable /disable /code /sessions /load /new /exit") + "\n")
	b.WriteString(strings.Repeat("─", m.width) + "\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.isProcessing {
		b.WriteString(fmt.Sprintf("%s Working...\n", m.spinner.View()))
	} else {
		b.WriteString(m.textarea.View())
	}

	return b.String()
}

// handleInput dispatches commands and regular queries. The second
// return value is true when the input asks to quit.
func (m *ChatModel) handleInput(input string) (tea.Cmd, bool) {
	if strings.HasPrefix(input, "/") {
		fields := strings.Fields(input)
		switch fields[0] {
		case "/help":
			m.addMessage("system", helpText)
			m.updateView()
			return nil, false
		case "/tools":
			m.addMessage("system", m.toolListing())
			m.updateView()
			return nil, false
		case "/enable", "/disable":
			m.toggleTool(fields)
			m.updateView()
			return nil, false
		case "/code":
			rest := strings.TrimSpace(strings.TrimPrefix(input, "/code"))
			if rest == "" {
				m.addMessage("system", "Usage: /code <computation request>")
				m.updateView()
				return nil, false
			}
			m.addMessage("user", rest)
			m.updateView()
			return m.submit(agent.Query{Text: rest, RunCode: true}), false
		case "/sessions":
			m.addMessage("system", m.sessionListing())
			m.updateView()
			return nil, false
		case "/load":
			if len(fields) < 2 {
				m.addMessage("system", "Usage: /load <session-id>")
			} else if err := m.manager.LoadSession(fields[1]); err != nil {
				m.addMessage("error", fmt.Sprintf("failed to load session: %v", err))
			} else {
				m.restoreTranscript()
				m.addMessage("system", fmt.Sprintf("Resumed session %s", fields[1]))
			}
			m.updateView()
			return nil, false
		case "/new":
			id := m.manager.StartSession()
			m.messages = nil
			m.addMessage("system", fmt.Sprintf("Started session %s", id))
			m.updateView()
			return nil, false
		case "/clear":
			m.messages = nil
			m.viewport.SetContent("")
			return nil, false
		case "/exit", "/quit":
			return nil, true
		default:
			m.addMessage("system", fmt.Sprintf("Unknown command %s", fields[0]))
			m.updateView()
			return nil, false
		}
	}

	m.addMessage("user", input)
	m.updateView()
	return m.submit(agent.Query{Text: input}), false
}

func (m *ChatModel) submit(q agent.Query) tea.Cmd {
	m.isProcessing = true
	manager := m.manager
	return func() tea.Msg {
		result, err := manager.Handle(context.Background(), q)
		return turnMsg{result: result, err: err}
	}
}

func (m *ChatModel) toggleTool(fields []string) {
	if len(fields) < 2 {
		m.addMessage("system", fmt.Sprintf("Usage: %s <tool-name>", fields[0]))
		return
	}
	name := fields[1]
	enabled := fields[0] == "/enable"

	if err := m.toolset.SetEnabled(name, enabled); err != nil {
		m.addMessage("error", err.Error())
		return
	}
	if m.cfg != nil {
		if err := m.cfg.SetToolEnabled(name, enabled); err != nil {
			m.addMessage("error", fmt.Sprintf("toggle not persisted: %v", err))
		}
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	m.addMessage("system", fmt.Sprintf("%s %s", name, state))
}

func (m *ChatModel) toolListing() string {
	var sb strings.Builder
	sb.WriteString("Tools:\n")
	for _, d := range m.toolset.Descriptors() {
		marker := toolOnStyle.Render("on ")
		if !d.Enabled {
			marker = toolOffStyle.Render("off")
		}
		fmt.Fprintf(&sb, "  [%s] %s (priority %d)\n", marker, d.Name, d.DisplayPriority)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *ChatModel) sessionListing() string {
	if m.store == nil {
		return "No session store configured."
	}
	infos, err := m.store.ListAll()
	if err != nil {
		return fmt.Sprintf("Failed to list sessions: %v", err)
	}
	if len(infos) == 0 {
		return "No saved sessions."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	for i, info := range infos {
		if i >= 10 {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(infos)-i)
			break
		}
		fmt.Fprintf(&sb, "  %s  %s (%d messages)\n", info.ID, info.Title, info.Messages)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// restoreTranscript rebuilds the visible transcript from the loaded
// conversation
func (m *ChatModel) restoreTranscript() {
	m.messages = nil
	conv := m.manager.Conversation()
	if conv == nil {
		return
	}
	for _, msg := range conv.Messages {
		m.addMessage(string(msg.Role), msg.Content)
	}
}

func (m *ChatModel) addMessage(role, content string) {
	m.messages = append(m.messages, chatMessage{
		role:      role,
		content:   content,
		timestamp: time.Now(),
	})
}

func (m *ChatModel) updateView() {
	var content strings.Builder

	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			content.WriteString("\n" + userStyle.Render("> "+msg.content) + "\n")
		case "assistant":
			content.WriteString("\n" + msg.content + "\n")
		case "error":
			content.WriteString("\n" + errorStyle.Render(msg.content) + "\n")
		default:
			content.WriteString("\n" + systemStyle.Render("["+msg.content+"]") + "\n")
		}
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

const helpText = `Available commands:
/help              - Show this help message
/tools             - List tools and their state
/enable <tool>     - Enable a tool
/disable <tool>    - Disable a tool
/code <request>    - Run a computation with the code tool
/sessions          - List saved sessions
/load <session-id> - Resume a saved session
/new               - Start a fresh session
/clear             - Clear the visible transcript
/exit              - Exit`
