// Package tool implements the function calling subsystem that lets the graph
// executor invoke structured capabilities (APIs, computations) with schema
// validated arguments, consistent error handling and rich metadata for LLM
// guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/graphflow/internal/util"
)

// Tool defines the interface for extending the engine with external capabilities.
//
// Tools are registered with a Registry and resolved by name when the model
// requests a call. From the executor's perspective a tool is a function from
// an argument payload to a result payload; failures are reported back into
// the conversation as tool results, never surfaced as run failures.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use, since one assistant turn may trigger
//     several invocations in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Invoke executes the tool with structured, already-decoded arguments.
	// The context carries cancellation and the per-invocation deadline.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError for downstream categorization.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
