// Package graph implements the conversation state machine at the heart of
// GraphFlow.
//
// A submission moves a thread through a small graph: an agent step asks the
// model for the next assistant message, a pure router inspects that message,
// and either the run completes or a tool step executes the requested calls
// and feeds their results back into the next agent step. Every completed step
// is committed to the core.Store as a checkpoint before the next one starts,
// so a crash or cancellation never loses more than the step in flight.
//
// The Executor owns the loop and its iteration cap; AgentStep and ToolStep
// encapsulate the two kinds of work and can be exercised independently in
// tests.
package graph
