package graph

import (
	"context"
	"time"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/logging"
	"github.com/hupe1980/graphflow/model"
)

// AgentStep performs one model round-trip: it sends the thread history to the
// model, relays streamed text fragments, and returns the completed assistant
// message.
type AgentStep struct {
	model        model.Model
	instructions string
	config       model.Config
	stream       bool
	timeout      time.Duration
	logger       logging.Logger
}

// NewAgentStep wires an agent step. A zero timeout disables the per-step
// deadline; a nil logger falls back to the no-op logger.
func NewAgentStep(mdl model.Model, instructions string, cfg model.Config, stream bool, timeout time.Duration, logger logging.Logger) *AgentStep {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &AgentStep{
		model:        mdl,
		instructions: instructions,
		config:       cfg,
		stream:       stream,
		timeout:      timeout,
		logger:       logger,
	}
}

// Run executes the model call. Partial responses stream out as text fragment
// events; the returned message is the final response carrying the complete
// set of tool calls, if any.
//
// Failures (transport, provider, timeout, missing final response) return a
// core.KindModel error and no message. Fragments already emitted stay
// emitted; committing or discarding the step is the caller's concern.
func (s *AgentStep) Run(ctx context.Context, threadID string, history []core.Message, tools []model.ToolDefinition, emit EmitFunc) (core.Message, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := model.Request{
		Instructions: s.instructions,
		History:      history,
		Tools:        tools,
		Config:       s.config,
		Stream:       s.stream,
	}

	start := time.Now()

	s.logger.Debug("agent.step.start", "thread_id", threadID, "history_len", len(history), "tools", len(tools))

	respCh, errCh := s.model.Generate(ctx, req)

	var final *core.Message

	for resp := range respCh {
		if resp.Partial {
			if resp.Message.Content != "" {
				emit.emit(fragmentEvent(threadID, resp.Message.Content))
			}

			continue
		}

		msg := resp.Message
		final = &msg
	}

	if err, ok := <-errCh; ok && err != nil {
		s.logger.Error("agent.step.failed", "thread_id", threadID, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())

		if core.KindOf(err) != "" {
			return core.Message{}, err
		}

		return core.Message{}, core.WrapError(core.KindModel, err, "model generation failed")
	}

	if err := ctx.Err(); err != nil {
		return core.Message{}, core.WrapError(core.KindModel, err, "model generation interrupted")
	}

	if final == nil {
		return core.Message{}, core.NewError(core.KindModel, "model produced no final response")
	}

	final.Role = core.RoleAssistant

	// A final response with neither content nor tool calls cannot be routed
	// or persisted; treat it as a failed model call.
	if final.Content == "" && !final.HasToolCalls() {
		return core.Message{}, core.NewError(core.KindModel, "model returned an empty final response")
	}

	s.logger.Debug("agent.step.complete",
		"thread_id", threadID,
		"duration_ms", time.Since(start).Milliseconds(),
		"tool_calls", len(final.ToolCalls),
	)

	return *final, nil
}
