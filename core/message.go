package core

import "fmt"

// Role identifies the author of a Message within a thread's history.
type Role string

const (
	// RoleUser marks a message submitted by the caller on behalf of the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the model capability. It may
	// carry zero or more ToolCallRequests.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool-result message answering a single ToolCallRequest
	// emitted by the immediately preceding assistant message.
	RoleTool Role = "tool"
)

// Valid reports whether r is one of the known conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCallRequest describes a tool invocation requested by an assistant
// message. IDs are unique within the owning message; the Name is resolved
// against the tool registry at execution time.
type ToolCallRequest struct {
	ID   string         `json:"id"`             // Stable id referenced by the answering tool result
	Name string         `json:"name"`           // Registered tool name
	Args map[string]any `json:"args,omitempty"` // Structured argument payload
}

// Clone returns a deep copy of the request (top-level argument map copied).
func (t ToolCallRequest) Clone() ToolCallRequest {
	c := ToolCallRequest{ID: t.ID, Name: t.Name}
	if t.Args != nil {
		c.Args = make(map[string]any, len(t.Args))
		for k, v := range t.Args {
			c.Args[k] = v
		}
	}
	return c
}

// Message is a single record in a thread's conversation history. The Role
// discriminates which fields are meaningful:
//
//   - user: Content only
//   - assistant: Content (possibly empty while tool calls are pending) plus
//     an ordered list of ToolCalls
//   - tool: Content holding the serialized result, ToolCallID/ToolName
//     referencing the originating request, IsError flagging in-band failures
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
	IsError    bool              `json:"is_error,omitempty"`
}

// NewUserMessage creates a user message with the given text.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message. Content may be empty when
// the message only carries tool calls.
func NewAssistantMessage(content string, calls ...ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage creates a successful tool-result message answering the
// request identified by callID.
func NewToolResultMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName}
}

// NewToolErrorMessage creates a tool-result message reporting an in-band
// failure (unknown tool, invalid arguments, execution error). The failure is
// conversation content the model can react to, not a loop abort.
func NewToolErrorMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName, IsError: true}
}

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Clone returns a deep copy of the message safe for independent mutation.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCallRequest, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = tc.Clone()
		}
	}
	return c
}

// CloneMessages returns a deep copy of a message sequence.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// ValidateHistory checks the structural invariants of a message sequence:
//
//   - every role is known
//   - assistant messages carry content or at least one tool call, and tool
//     call ids are non-empty and unique within the message
//   - every tool-result message references a ToolCallRequest emitted by the
//     immediately preceding assistant message, and answers it at most once
//
// Histories may legitimately end with unanswered tool calls (an invocation
// that failed or was cancelled after the assistant step committed); orphaned
// or duplicated tool results are corruption. The returned error carries
// KindCorruptState.
func ValidateHistory(msgs []Message) error {
	pending := map[string]bool{}

	for i, m := range msgs {
		if !m.Role.Valid() {
			return NewError(KindCorruptState, "message[%d]: unknown role %q", i, m.Role)
		}

		switch m.Role {
		case RoleUser:
			if m.Content == "" {
				return NewError(KindCorruptState, "message[%d]: user message has empty content", i)
			}
			pending = map[string]bool{}

		case RoleAssistant:
			if m.Content == "" && len(m.ToolCalls) == 0 {
				return NewError(KindCorruptState, "message[%d]: assistant message has no content and no tool calls", i)
			}
			pending = map[string]bool{}
			for j, tc := range m.ToolCalls {
				if tc.ID == "" {
					return NewError(KindCorruptState, "message[%d].tool_calls[%d]: missing id", i, j)
				}
				if tc.Name == "" {
					return NewError(KindCorruptState, "message[%d].tool_calls[%d]: missing name", i, j)
				}
				if pending[tc.ID] {
					return NewError(KindCorruptState, "message[%d].tool_calls[%d]: duplicate id %q", i, j, tc.ID)
				}
				pending[tc.ID] = true
			}

		case RoleTool:
			if m.ToolCallID == "" {
				return NewError(KindCorruptState, "message[%d]: tool result missing tool_call_id", i)
			}
			if m.ToolName == "" {
				return NewError(KindCorruptState, "message[%d]: tool result missing tool_name", i)
			}
			if !pending[m.ToolCallID] {
				return NewError(KindCorruptState, "message[%d]: tool result references unknown call id %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
		}
	}

	return nil
}

// String returns a short human-readable representation for logs and tests.
func (m Message) String() string {
	switch m.Role {
	case RoleTool:
		return fmt.Sprintf("[tool:%s call=%s err=%t] %s", m.ToolName, m.ToolCallID, m.IsError, m.Content)
	case RoleAssistant:
		if m.HasToolCalls() {
			return fmt.Sprintf("[assistant calls=%d] %s", len(m.ToolCalls), m.Content)
		}
		return fmt.Sprintf("[assistant] %s", m.Content)
	default:
		return fmt.Sprintf("[%s] %s", m.Role, m.Content)
	}
}
