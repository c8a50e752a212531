// Package core provides the foundational domain types and interfaces used by
// GraphFlow. It defines the core abstractions for:
//
//   - Messages (role-discriminated conversation records carrying tool calls
//     and tool results)
//   - Checkpoints (immutable, sequence-numbered snapshots of a thread's
//     message history)
//   - The Store interface for durable per-thread checkpoint persistence
//   - The structured error taxonomy shared by all engine layers
//
// The package intentionally keeps implementation concerns (persistence
// backends, graph execution, model providers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
