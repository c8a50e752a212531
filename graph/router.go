package graph

import "github.com/hupe1980/graphflow/core"

// Decision is the router's verdict on an assistant message.
type Decision string

const (
	// DecisionContinueToTools routes the run into a tool step.
	DecisionContinueToTools Decision = "continue_to_tools"

	// DecisionTerminate ends the run with the assistant message as the final
	// answer.
	DecisionTerminate Decision = "terminate"
)

// Route decides where the run goes after an agent step. It is a pure function
// of the assistant message: one or more tool calls continue into a tool step,
// anything else terminates. Message content does not influence the decision.
func Route(msg core.Message) Decision {
	if msg.HasToolCalls() {
		return DecisionContinueToTools
	}

	return DecisionTerminate
}
