// Package agent wraps the Genkit generation loop for session-scoped chat.
//
// The agent is a thin pass-through to Genkit: it loads recent history from
// the session store, runs one generation with the registered tools, relays
// streamed chunks to the caller, and appends the completed exchange back to
// the store. Generation is pinned to temperature zero for reproducible
// output. Upstream failures surface as a single wrapped error; the agent
// never retries.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/scoutchat/scout/internal/session"
)

// Name is the unique identifier for the chat agent.
const Name = "chat"

// fallbackResponseMessage is returned when the model produces an empty
// response with no tool requests.
const fallbackResponseMessage = "I couldn't generate a response. Please try rephrasing your question."

// defaultSystemPrompt steers the assistant when no prompt is configured.
const defaultSystemPrompt = "You are Scout, a helpful research assistant. " +
	"Use the available tools for calculations, time lookups, weather, web search and reading pages " +
	"instead of guessing. Answer concisely in plain text. Do not add special symbols or emojis."

// Sentinel errors for agent operations.
var (
	// ErrEmptyMessage indicates the user message was empty after trimming.
	ErrEmptyMessage = errors.New("empty message")

	// ErrInvalidSession indicates the session ID was rejected by the store.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates the model backend failed. The agent does
	// not retry; callers decide how to surface the failure.
	ErrExecutionFailed = errors.New("execution failed")
)

// StreamCallback is called for each chunk of a streaming response.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Response is the completed result of one chat turn.
type Response struct {
	Text      string // Final assistant text
	SessionID string // Resolved session ID (generated when the request omitted one)
}

// Config contains all required parameters for the chat agent.
type Config struct {
	Genkit *genkit.Genkit
	Store  *session.Store
	Logger *slog.Logger
	Tools  []ai.Tool // Pre-registered tools from tools.RegisterXxx()

	ModelName     string // Provider-qualified model name (e.g. "googleai/gemini-2.5-flash")
	SystemPrompt  string // Empty uses the default prompt
	MaxTurns      int    // Maximum agentic loop turns
	HistoryWindow int    // Stored messages replayed per turn (0 = all)
}

// validate checks that all required dependencies are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Store == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent runs session-scoped chat turns against the configured model.
//
// All configuration is captured immutably at construction, so a single
// Agent is safe for concurrent use across requests.
type Agent struct {
	g             *genkit.Genkit
	store         *session.Store
	logger        *slog.Logger
	modelName     string
	systemPrompt  string
	maxTurns      int
	historyWindow int

	toolRefs  []ai.ToolRef // Cached at construction (ai.Tool implements ai.ToolRef)
	toolNames string       // Cached as comma-separated for logging
}

// New creates an Agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		g:             cfg.Genkit,
		store:         cfg.Store,
		logger:        cfg.Logger,
		modelName:     cfg.ModelName,
		systemPrompt:  systemPrompt,
		maxTurns:      maxTurns,
		historyWindow: cfg.HistoryWindow,
		toolRefs:      toolRefs,
		toolNames:     strings.Join(names, ", "),
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName,
		"tools", len(a.toolRefs),
		"maxTurns", a.maxTurns,
	)
	return a, nil
}

// Execute runs one chat turn without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID, message string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, message, nil)
}

// ExecuteStream runs one chat turn with optional streaming output.
// If callback is non-nil, it is called for each response chunk as it is
// generated. The completed response is always returned after generation.
//
// On success the user message and final assistant text are appended to the
// session as one exchange. On upstream failure nothing is appended and the
// error wraps ErrExecutionFailed; there is no retry.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID, message string, callback StreamCallback) (*Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	id, history, err := a.store.CreateOrGet(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	a.logger.Debug("executing chat turn",
		"session_id", id,
		"history", len(history),
		"streaming", callback != nil,
	)

	messages := a.buildMessages(history, message)

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(a.systemPrompt),
		ai.WithMessages(messages...),
		ai.WithMaxTurns(a.maxTurns),
		// Temperature pinned to zero: identical inputs should produce
		// stable outputs across runs.
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		}),
	}
	if len(a.toolRefs) > 0 {
		opts = append(opts, ai.WithTools(a.toolRefs...))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" && len(resp.ToolRequests()) == 0 {
		a.logger.Warn("model returned empty response with no tool requests", "session_id", id)
		text = fallbackResponseMessage
	}

	if err := a.store.AppendExchange(id, message, text); err != nil {
		// Session deleted mid-turn. The reply still goes to the client.
		a.logger.Warn("appending exchange to session", "session_id", id, "error", err)
	}

	return &Response{Text: text, SessionID: id}, nil
}

// buildMessages converts the windowed store history plus the new user
// message into the Genkit message slice for this turn.
func (a *Agent) buildMessages(history []session.Message, message string) []*ai.Message {
	if a.historyWindow > 0 && len(history) > a.historyWindow {
		history = history[len(history)-a.historyWindow:]
	}

	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return append(messages, ai.NewUserMessage(ai.NewTextPart(message)))
}
