package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/graphflow/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Config is the enumerated generation options record passed with each
// request. Zero values defer to the provider adapter's defaults.
type Config struct {
	Model       string   `json:"model,omitempty"`       // Provider-specific model identity
	Temperature *float64 `json:"temperature,omitempty"` // Sampling temperature
	MaxTokens   *int64   `json:"max_tokens,omitempty"`  // Completion token cap
}

// Request captures the normalized model input produced by the agent step.
type Request struct {
	Instructions string           `json:"instructions,omitempty"` // System instructions for the model
	History      []core.Message   `json:"history"`                // Full ordered conversation history
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Config       Config           `json:"config"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial
// responses carry incremental text deltas in Message.Content; the final
// response carries the complete assistant message including all tool calls.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Generate
// returns a response channel and an error channel; exactly one of a final
// (non-partial) response or an error terminates every call, and both channels
// are closed afterwards.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// scripted is one queued MockModel output: a message, an error, or text
// fragments followed by an error (to exercise uncommitted partial output).
type scripted struct {
	msg core.Message
	err error
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Outputs are served in order: the scripted queue first, then prompt-keyed
// canned responses, then a generic echo. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []scripted
	always    *core.Message
	responses map[string]string
	calls     int
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends assistant messages consumed in FIFO order by Generate.
func (m *MockModel) Script(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.script = append(m.script, scripted{msg: msg})
	}
}

// ScriptError appends a failure consumed in FIFO order by Generate.
func (m *MockModel) ScriptError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
}

// ScriptFragmentsThenError appends an output that streams the given text as
// fragments and then fails without producing a final message.
func (m *MockModel) ScriptFragmentsThenError(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{msg: core.NewAssistantMessage(text), err: err})
}

// Always makes the model return msg on every call once the script is
// exhausted. Used to simulate an agent that perpetually requests tools.
func (m *MockModel) Always(msg core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.always = &msg
}

// Calls returns how many Generate calls the model has served.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// next pops the scripted output for one Generate call.
func (m *MockModel) next(req Request) scripted {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if len(m.script) > 0 {
		out := m.script[0]
		m.script = m.script[1:]
		return out
	}

	if m.always != nil {
		return scripted{msg: m.always.Clone()}
	}

	var inputText string
	if len(req.History) > 0 {
		inputText = req.History[len(req.History)-1].Content
	}

	full := m.responses[inputText]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}
	return scripted{msg: core.NewAssistantMessage(full)}
}

// Generate implements Model; emits optional streaming char chunks then either
// the final response or the scripted error.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	out := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if out.err != nil && out.msg.Content == "" {
			errCh <- out.err
			return
		}

		if req.Stream {
			for _, r := range out.msg.Content {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Message: core.Message{Role: core.RoleAssistant, Content: string(r)},
				}:
				}
			}
		}

		if out.err != nil {
			errCh <- out.err
			return
		}

		finish := "stop"
		if out.msg.HasToolCalls() {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Message:      out.msg,
			FinishReason: finish,
		}:
		}
	}()

	return respCh, errCh
}

// Info implements the Model interface.
func (m *MockModel) Info() Info { return m.info }
