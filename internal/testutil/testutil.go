// Package testutil contains helper builders used across tests to construct
// realistic conversation histories without repeating the message plumbing
// inline. Not intended for production usage.
package testutil

import (
	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/internal/util"
)

// Call builds a tool call request with a fresh unique id.
func Call(name string, args map[string]any) core.ToolCallRequest {
	return core.ToolCallRequest{ID: util.NewID(), Name: name, Args: args}
}

// History accumulates a conversation in committed order:
//
//	call := testutil.Call("calculator", map[string]any{"first_num": 2.0})
//	msgs := testutil.NewHistory().
//		User("what is 2+2?").
//		AssistantCalls("", call).
//		ToolResult(call, `{"result":4}`).
//		Assistant("2 plus 2 is 4.").
//		Build()
type History struct {
	msgs []core.Message
}

// NewHistory returns an empty conversation builder.
func NewHistory() *History { return &History{} }

// User appends a user message.
func (h *History) User(text string) *History {
	h.msgs = append(h.msgs, core.NewUserMessage(text))
	return h
}

// Assistant appends a plain assistant message.
func (h *History) Assistant(text string) *History {
	h.msgs = append(h.msgs, core.NewAssistantMessage(text))
	return h
}

// AssistantCalls appends an assistant message carrying tool calls.
func (h *History) AssistantCalls(text string, calls ...core.ToolCallRequest) *History {
	h.msgs = append(h.msgs, core.NewAssistantMessage(text, calls...))
	return h
}

// ToolResult appends a successful tool result answering the given call.
func (h *History) ToolResult(call core.ToolCallRequest, content string) *History {
	h.msgs = append(h.msgs, core.NewToolResultMessage(call.ID, call.Name, content))
	return h
}

// ToolError appends an in-band failed tool result answering the given call.
func (h *History) ToolError(call core.ToolCallRequest, content string) *History {
	h.msgs = append(h.msgs, core.NewToolErrorMessage(call.ID, call.Name, content))
	return h
}

// Build returns the accumulated messages.
func (h *History) Build() []core.Message { return h.msgs }
