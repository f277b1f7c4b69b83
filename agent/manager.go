package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avelinom/scout/conversation"
	"github.com/avelinom/scout/history"
	"github.com/avelinom/scout/llm"
	"github.com/avelinom/scout/tools/registry"
)

// Manager drives one session through a turn: route the query to tools,
// invoke them, compose a reply from the evidence, persist. Failures are
// contained per phase; a turn always ends with an assistant message and
// a persistence attempt.
type Manager struct {
	mu       sync.Mutex
	conv     *conversation.Conversation
	registry *registry.Registry
	store    *history.Store
	client   llm.Client
	invoker  *Invoker
	config   Config
	logger   *slog.Logger
	state    State
	step     int
}

// Option configures a Manager
type Option func(*Manager)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager. The store may be nil, in which
// case sessions are kept in memory only.
func NewManager(client llm.Client, reg *registry.Registry, store *history.Store, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		store:    store,
		client:   client,
		config:   DefaultConfig(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.invoker = NewInvoker(m.config.InvokeTimeout, m.logger)
	return m
}

// StartSession begins a fresh session, discarding the current one
func (m *Manager) StartSession() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := history.NewSessionID()
	m.conv = conversation.New(id)
	m.state = StateIdle
	m.step = 0
	return id
}

// LoadSession replaces the current session with a persisted one
func (m *Manager) LoadSession(sessionID string) error {
	if m.store == nil {
		return fmt.Errorf("no session store configured")
	}

	conv, err := m.store.Load(sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conv = conv
	m.state = StateIdle
	m.step = len(conv.Messages)
	return nil
}

// SessionID returns the current session id, or empty if none started
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return ""
	}
	return m.conv.SessionID
}

// State returns the phase of the most recent turn
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Conversation returns the live conversation. Callers must not mutate it.
func (m *Manager) Conversation() *conversation.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv
}

// Handle runs one full turn for the query
func (m *Manager) Handle(ctx context.Context, q Query) (TurnResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return TurnResult{}, fmt.Errorf("query text is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conv == nil {
		m.conv = conversation.New(history.NewSessionID())
	}

	start := time.Now()
	m.step++

	// Routing
	m.state = StateRouting
	m.conv.AppendMessage(conversation.RoleUser, q.Text)

	enabled := m.registry.EnabledTools()
	names := make([]string, 0, len(enabled))
	for _, d := range enabled {
		names = append(names, d.Name)
	}
	m.conv.AppendLog(conversation.ExecutionStart{
		Timestamp:      start,
		Query:          q.Text,
		AvailableTools: names,
	})

	if len(enabled) == 0 {
		m.conv.AppendMessage(conversation.RoleAssistant, noToolsReply)
		m.finishTurn(q, start, nil)
		m.state = StateFailed
		return TurnResult{Reply: noToolsReply, State: m.state}, nil
	}

	routed := Route(q, enabled)

	// Invoking
	m.state = StateInvoking
	records := make([]conversation.ToolCallRecord, 0, len(routed))
	for _, d := range routed {
		tool, err := m.registry.Resolve(d.Name)
		if err != nil {
			m.logger.Error("routed tool missing from registry", "tool", d.Name, "error", err)
			continue
		}
		record := m.invoker.Invoke(ctx, tool, q.Text)
		m.conv.AppendToolCall(record)
		records = append(records, record)
	}
	m.conv.AppendLog(conversation.AgentExecution{
		Timestamp:     time.Now(),
		InputMessages: len(m.conv.Messages),
		ResultType:    "tool_evidence",
	})

	// Composing
	m.state = StateComposing
	reply, composeErr := m.compose(ctx, q, records)
	if composeErr != nil {
		reply = fmt.Sprintf("Error executing agent query: %v", composeErr)
		m.conv.AppendLog(conversation.ErrorEntry{
			Timestamp: time.Now(),
			Step:      m.step,
			Message:   composeErr.Error(),
		})
	}
	m.conv.AppendMessage(conversation.RoleAssistant, reply)

	m.finishTurn(q, start, records)
	if composeErr != nil {
		m.state = StateFailed
	}

	return TurnResult{Reply: reply, State: m.state, ToolCalls: records}, nil
}

// compose asks the LLM for the final reply, feeding it the successful
// tool outputs in routing order
func (m *Manager) compose(ctx context.Context, q Query, records []conversation.ToolCallRecord) (string, error) {
	if m.client == nil {
		return "", fmt.Errorf("no LLM client configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ComposeTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("Question: " + q.Text + "\n\n")
	evidence := 0
	for _, rec := range records {
		// the composer gets the full output, not the bounded preview
		// that goes into the session log
		text := rec.FullResponse()
		if rec.Status != conversation.StatusCompleted || text == "" {
			continue
		}
		evidence++
		fmt.Fprintf(&sb, "Evidence from %s:\n%s\n\n", rec.ToolName, text)
	}
	if evidence == 0 {
		sb.WriteString("No tool produced usable evidence. Say so and suggest rephrasing the question.\n")
	}

	resp, err := m.client.Chat(ctx, &llm.ChatRequest{
		Model: m.config.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: m.config.SystemPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		Temperature: m.config.Temperature,
		MaxTokens:   m.config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llm error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("llm returned an empty reply")
	}
	return reply, nil
}

// finishTurn records the turn summary logs and persists the session.
// Persistence failures are logged, never raised: the reply has already
// been produced and must reach the user.
func (m *Manager) finishTurn(q Query, start time.Time, records []conversation.ToolCallRecord) {
	end := time.Now()

	flow := make([]conversation.MessageFlowEntry, 0, len(m.conv.Messages))
	for i, msg := range m.conv.Messages {
		flow = append(flow, conversation.MessageFlowEntry{
			Index:         i,
			Type:          string(msg.Role),
			ContentLength: len(msg.Content),
		})
	}
	m.conv.AppendLog(conversation.ExecutionOverview{
		Timestamp:     end,
		Step:          m.step,
		TotalMessages: len(m.conv.Messages),
		MessageFlow:   flow,
	})

	used := make([]string, 0, len(records))
	for _, rec := range records {
		used = append(used, rec.ToolName)
	}
	m.conv.AppendLog(conversation.QueryTiming{
		Timestamp:       end,
		Query:           q.Text,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		ToolsUsed:       used,
	})

	m.state = StatePersisted
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.conv); err != nil {
		m.logger.Error("failed to persist session",
			"session_id", m.conv.SessionID,
			"error", err)
		m.state = StateFailed
	}
}
