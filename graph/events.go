package graph

import (
	"time"

	"github.com/hupe1980/graphflow/core"
)

// EventType discriminates the notifications emitted while a submission runs.
type EventType string

const (
	// EventTextFragment carries an incremental piece of assistant text. A
	// fragment is display-only: it becomes durable once the full assistant
	// message is checkpointed. Fragments already emitted are not retracted
	// when the producing model call later fails.
	EventTextFragment EventType = "text_fragment"

	// EventToolCallStarted signals that a requested tool invocation began.
	EventToolCallStarted EventType = "tool_call_started"

	// EventToolCallFinished signals that a tool invocation produced its
	// result message (successful or in-band error).
	EventToolCallFinished EventType = "tool_call_finished"

	// EventCompleted signals that the run reached its final assistant
	// message and the last checkpoint was committed.
	EventCompleted EventType = "completed"
)

// Event is a single streaming notification. Only the fields relevant to its
// Type are populated.
type Event struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"thread_id"`

	// Text holds the delta for EventTextFragment.
	Text string `json:"text,omitempty"`

	// Call identifies the tool invocation for the tool lifecycle events.
	Call *core.ToolCallRequest `json:"call,omitempty"`

	// Result is the tool-result message for EventToolCallFinished.
	Result *core.Message `json:"result,omitempty"`

	// Final is the terminal assistant message for EventCompleted.
	Final *core.Message `json:"final,omitempty"`

	// Checkpoint is the committed state for EventCompleted.
	Checkpoint *core.Checkpoint `json:"checkpoint,omitempty"`

	Time time.Time `json:"time"`
}

// EmitFunc receives events as they occur. A nil EmitFunc disables streaming;
// all emission sites tolerate it.
type EmitFunc func(Event)

func (fn EmitFunc) emit(ev Event) {
	if fn != nil {
		ev.Time = time.Now().UTC()
		fn(ev)
	}
}

func fragmentEvent(threadID, text string) Event {
	return Event{Type: EventTextFragment, ThreadID: threadID, Text: text}
}

func toolStartedEvent(threadID string, call core.ToolCallRequest) Event {
	c := call.Clone()
	return Event{Type: EventToolCallStarted, ThreadID: threadID, Call: &c}
}

func toolFinishedEvent(threadID string, call core.ToolCallRequest, result core.Message) Event {
	c := call.Clone()
	r := result.Clone()
	return Event{Type: EventToolCallFinished, ThreadID: threadID, Call: &c, Result: &r}
}

func completedEvent(threadID string, final core.Message, cp core.Checkpoint) Event {
	f := final.Clone()
	c := cp.Clone()
	return Event{Type: EventCompleted, ThreadID: threadID, Final: &f, Checkpoint: &c}
}
