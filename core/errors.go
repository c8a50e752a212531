package core

import (
	"errors"
	"fmt"
)

// Kind categorizes engine failures so callers can decide between retrying,
// surfacing to the user, or abandoning a thread.
type Kind string

const (
	// KindModel indicates the model capability call failed (timeout, quota,
	// malformed response). Retryable by the caller; the engine does not
	// auto-retry.
	KindModel Kind = "model_error"

	// KindUnknownTool indicates a requested tool name is not registered. It
	// is recorded into conversation history as a tool result and never
	// aborts the loop.
	KindUnknownTool Kind = "unknown_tool"

	// KindToolInvocation indicates a registered tool failed (validation,
	// execution, timeout). Like KindUnknownTool it is recoverable in-band.
	KindToolInvocation Kind = "tool_invocation_error"

	// KindConcurrentModification indicates checkpoint store contention: a
	// concurrent append won against the same base sequence number. The
	// caller should retry the whole submission.
	KindConcurrentModification Kind = "concurrent_modification"

	// KindCorruptState indicates a checkpoint invariant violation. Fatal for
	// the thread; requires operator intervention and is never silently
	// repaired.
	KindCorruptState Kind = "corrupt_state"

	// KindLoopLimit indicates the iteration safety cap fired. Reported to
	// the caller with the partial history intact.
	KindLoopLimit Kind = "loop_limit_exceeded"

	// KindStore indicates the storage backing medium failed (I/O error).
	// Fatal for the in-flight call; previously committed checkpoints remain
	// untouched.
	KindStore Kind = "store_error"
)

// Error is the structured failure type shared by all engine layers. It
// carries a Kind for programmatic handling plus a human-readable message, and
// optionally wraps an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind wrapping an underlying cause.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind carried by err, or the empty string when err is not
// (and does not wrap) an engine Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
