// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside GraphFlow.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool call representation (ToolDefinition, core.ToolCallRequest)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the graph executor remains decoupled from vendor SDKs. In
// streaming mode providers emit ordered partial responses carrying text
// deltas; the final response always carries the complete assistant message
// including the full set of tool calls (calls are never split across
// fragments).
package model
