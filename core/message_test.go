package core

import "testing"

func TestMessage_Constructors(t *testing.T) {
	u := NewUserMessage("hi")
	if u.Role != RoleUser || u.Content != "hi" {
		t.Fatalf("NewUserMessage malformed: %+v", u)
	}

	call := ToolCallRequest{ID: "call-1", Name: "calculator", Args: map[string]any{"first_num": 2.0}}
	a := NewAssistantMessage("", call)
	if a.Role != RoleAssistant || !a.HasToolCalls() || a.ToolCalls[0].Name != "calculator" {
		t.Fatalf("NewAssistantMessage malformed: %+v", a)
	}

	r := NewToolResultMessage("call-1", "calculator", `{"result":4}`)
	if r.Role != RoleTool || r.ToolCallID != "call-1" || r.ToolName != "calculator" || r.IsError {
		t.Fatalf("NewToolResultMessage malformed: %+v", r)
	}

	e := NewToolErrorMessage("call-2", "foo", "tool not found")
	if !e.IsError || e.ToolCallID != "call-2" {
		t.Fatalf("NewToolErrorMessage malformed: %+v", e)
	}
}

func TestMessage_CloneIsolation(t *testing.T) {
	m := NewAssistantMessage("working", ToolCallRequest{ID: "c1", Name: "calc", Args: map[string]any{"a": 1}})

	clone := m.Clone()
	clone.ToolCalls[0].Args["a"] = 99
	clone.ToolCalls[0].Name = "changed"

	if m.ToolCalls[0].Args["a"] != 1 || m.ToolCalls[0].Name != "calc" {
		t.Errorf("clone mutation leaked into original: %+v", m.ToolCalls[0])
	}

	history := []Message{NewUserMessage("a"), m}
	copied := CloneMessages(history)
	copied[0].Content = "mutated"
	if history[0].Content != "a" {
		t.Error("CloneMessages should deep copy entries")
	}
}

func TestValidateHistory(t *testing.T) {
	call := func(id string) ToolCallRequest { return ToolCallRequest{ID: id, Name: "calculator"} }

	tests := []struct {
		name    string
		msgs    []Message
		wantErr bool
	}{
		{
			name: "well formed tool round trip",
			msgs: []Message{
				NewUserMessage("2+2?"),
				NewAssistantMessage("", call("c1")),
				NewToolResultMessage("c1", "calculator", "4"),
				NewAssistantMessage("4"),
			},
		},
		{
			name: "unanswered trailing calls are legal",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", call("c1"), call("c2")),
			},
		},
		{
			name:    "unknown role",
			msgs:    []Message{{Role: "system", Content: "x"}},
			wantErr: true,
		},
		{
			name:    "empty user message",
			msgs:    []Message{NewUserMessage("")},
			wantErr: true,
		},
		{
			name:    "assistant without content or calls",
			msgs:    []Message{NewUserMessage("q"), NewAssistantMessage("")},
			wantErr: true,
		},
		{
			name: "tool result without preceding assistant",
			msgs: []Message{
				NewUserMessage("q"),
				NewToolResultMessage("c1", "calculator", "4"),
			},
			wantErr: true,
		},
		{
			name: "tool result references wrong call id",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", call("c1")),
				NewToolResultMessage("other", "calculator", "4"),
			},
			wantErr: true,
		},
		{
			name: "duplicate tool result for one call",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", call("c1")),
				NewToolResultMessage("c1", "calculator", "4"),
				NewToolResultMessage("c1", "calculator", "4"),
			},
			wantErr: true,
		},
		{
			name: "user message resets pending calls",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", call("c1")),
				NewUserMessage("never mind"),
				NewToolResultMessage("c1", "calculator", "4"),
			},
			wantErr: true,
		},
		{
			name: "duplicate call ids within one message",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", call("c1"), call("c1")),
			},
			wantErr: true,
		},
		{
			name: "call missing name",
			msgs: []Message{
				NewUserMessage("q"),
				NewAssistantMessage("", ToolCallRequest{ID: "c1"}),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHistory(tt.msgs)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !IsKind(err, KindCorruptState) {
					t.Errorf("expected corrupt_state kind, got %v", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCheckpoint_CloneAndEmpty(t *testing.T) {
	if !(Checkpoint{}).Empty() {
		t.Error("zero checkpoint should be the empty-state sentinel")
	}

	cp := Checkpoint{
		ThreadID: "t1",
		Seq:      2,
		Messages: []Message{NewUserMessage("hi"), NewAssistantMessage("hello")},
	}
	if cp.Empty() {
		t.Error("checkpoint with Seq > 0 should not be empty")
	}

	clone := cp.Clone()
	clone.Messages[0].Content = "mutated"
	if cp.Messages[0].Content != "hi" {
		t.Error("checkpoint clone should deep copy messages")
	}
}
