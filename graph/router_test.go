package graph

import (
	"testing"

	"github.com/hupe1980/graphflow/core"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		msg  core.Message
		want Decision
	}{
		{
			name: "plain answer terminates",
			msg:  core.NewAssistantMessage("All done."),
			want: DecisionTerminate,
		},
		{
			name: "single tool call continues",
			msg:  core.NewAssistantMessage("", core.ToolCallRequest{ID: "c1", Name: "calculator"}),
			want: DecisionContinueToTools,
		},
		{
			name: "multiple tool calls continue",
			msg: core.NewAssistantMessage("checking...",
				core.ToolCallRequest{ID: "c1", Name: "calculator"},
				core.ToolCallRequest{ID: "c2", Name: "web_search"},
			),
			want: DecisionContinueToTools,
		},
		{
			name: "content alongside calls does not terminate",
			msg:  core.NewAssistantMessage("Let me check that for you.", core.ToolCallRequest{ID: "c1", Name: "web_search"}),
			want: DecisionContinueToTools,
		},
		{
			name: "empty calls slice terminates",
			msg:  core.Message{Role: core.RoleAssistant, Content: "done", ToolCalls: []core.ToolCallRequest{}},
			want: DecisionTerminate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.msg); got != tt.want {
				t.Fatalf("Route() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoute_IsPure(t *testing.T) {
	msg := core.NewAssistantMessage("", core.ToolCallRequest{ID: "c1", Name: "calculator"})

	first := Route(msg)

	for i := 0; i < 10; i++ {
		if got := Route(msg); got != first {
			t.Fatalf("Route() changed verdict on identical input: %q then %q", first, got)
		}
	}

	if msg.ToolCalls[0].ID != "c1" {
		t.Fatal("Route() mutated its input")
	}
}
