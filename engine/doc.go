// Package engine exposes the high-level submission API of GraphFlow.
//
// The Engine binds a model, a tool registry and a checkpoint store into a
// single conversational surface. Each Submit or SubmitStream call executes
// one user turn: the user message is committed as its own checkpoint, then
// the executor alternates agent and tool steps until the model answers in
// plain text or a limit is reached.
//
//	┌─────────────────────────────────────────────────┐
//	│                     Client                      │
//	├─────────────────────────────────────────────────┤
//	│     Engine: Submit, SubmitStream, GetHistory    │
//	├─────────────────────────────────────────────────┤
//	│  graph.Executor: the agent and tool step loop   │
//	├─────────────────────────────────────────────────┤
//	│    model.Model    tool.Registry    core.Store   │
//	└─────────────────────────────────────────────────┘
//
// # Blocking and Streaming
//
// Submit blocks until the turn completes and returns the final history.
// SubmitStream returns immediately with an event channel delivering text
// fragments and tool lifecycle events in real time, plus a buffered error
// channel for the terminal error. Both paths persist identical checkpoints;
// streaming changes delivery, never durability.
//
// # Concurrency
//
// Submissions to different threads run fully in parallel. Submissions to the
// same thread are serialized by the store's optimistic append: exactly one
// claims the next checkpoint and the rest fail with
// core.KindConcurrentModification for the caller to retry.
//
// # Failure Semantics
//
// A failed turn never rewrites committed history. Whatever checkpoints the
// turn managed to commit before failing (the user message, completed agent
// or tool steps) remain readable, and the thread accepts new submissions
// from that committed state.
package engine
