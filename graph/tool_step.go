package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/logging"
	"github.com/hupe1980/graphflow/tool"
)

// ToolStep executes the tool calls requested by one assistant message. Calls
// run concurrently under a worker bound, and results are returned in request
// order regardless of completion order.
//
// A tool failure never fails the step: unknown tools, invalid arguments,
// execution errors, timeouts and panics all become in-band tool-result
// messages the model can read on the next agent step. Only context
// cancellation aborts the step.
type ToolStep struct {
	registry   *tool.Registry
	maxWorkers int
	timeout    time.Duration
	logger     logging.Logger
}

// NewToolStep wires a tool step. maxWorkers bounds concurrent invocations
// (values below one fall back to one); a zero timeout disables the
// per-invocation deadline.
func NewToolStep(registry *tool.Registry, maxWorkers int, timeout time.Duration, logger logging.Logger) *ToolStep {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolStep{
		registry:   registry,
		maxWorkers: maxWorkers,
		timeout:    timeout,
		logger:     logger,
	}
}

// Run executes calls and returns exactly one result message per call, indexed
// by request position. The returned error is non-nil only when ctx was
// cancelled before all invocations finished.
func (s *ToolStep) Run(ctx context.Context, threadID string, calls []core.ToolCallRequest, emit EmitFunc) ([]core.Message, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]core.Message, len(calls))

	// Fast path: a single call runs inline without goroutine overhead.
	if len(calls) == 1 {
		results[0] = s.invoke(ctx, threadID, calls[0], emit)
		return results, ctx.Err()
	}

	sem := make(chan struct{}, s.maxWorkers)

	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)

		go func(idx int, call core.ToolCallRequest) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = s.invoke(ctx, threadID, call, emit)
		}(i, call)
	}

	wg.Wait()

	return results, ctx.Err()
}

// invoke runs a single tool call and always produces a result message.
func (s *ToolStep) invoke(ctx context.Context, threadID string, call core.ToolCallRequest, emit EmitFunc) (result core.Message) {
	emit.emit(toolStartedEvent(threadID, call))

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool.step.panic", "thread_id", threadID, "tool", call.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))

			result = s.failure(call, fmt.Sprintf("tool '%s' panicked: %v", call.Name, r))
		}

		s.logger.Info("tool.step.executed",
			"thread_id", threadID,
			"tool", call.Name,
			"call_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"is_error", result.IsError,
		)

		emit.emit(toolFinishedEvent(threadID, call, result))
	}()

	impl, ok := s.resolve(call.Name)
	if !ok {
		return s.failure(call, unknownToolText(call.Name, s.names()))
	}

	callCtx := ctx

	if s.timeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := impl.Invoke(callCtx, call.Args)
	if err != nil {
		return s.failure(call, err.Error())
	}

	encoded, err := encodeResult(out)
	if err != nil {
		return s.failure(call, fmt.Sprintf("tool '%s' returned an unserializable result: %v", call.Name, err))
	}

	return core.NewToolResultMessage(call.ID, call.Name, encoded)
}

func (s *ToolStep) resolve(name string) (tool.Tool, bool) {
	if s.registry == nil {
		return nil, false
	}

	return s.registry.Resolve(name)
}

func (s *ToolStep) names() []string {
	if s.registry == nil {
		return nil
	}

	return s.registry.Names()
}

// failure wraps a step-level failure as an in-band error result.
func (s *ToolStep) failure(call core.ToolCallRequest, msg string) core.Message {
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		payload = []byte(`{"error":"tool failure"}`)
	}

	return core.NewToolErrorMessage(call.ID, call.Name, string(payload))
}

// unknownToolText phrases the failure so the model can self-correct by
// picking a registered tool on its next turn.
func unknownToolText(name string, available []string) string {
	if len(available) == 0 {
		return fmt.Sprintf("%s is not a valid tool: no tools are registered.", name)
	}

	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(available, ", "))
}

// encodeResult serializes a tool result for conversation content. Strings
// pass through untouched; everything else is JSON encoded.
func encodeResult(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}
