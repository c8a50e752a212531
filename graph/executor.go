package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/logging"
	"github.com/hupe1980/graphflow/model"
	"github.com/hupe1980/graphflow/tool"
)

// Phase is the executor's position in the conversation state machine.
type Phase string

const (
	// PhaseAwaitingAgent means the next unit of work is a model call.
	PhaseAwaitingAgent Phase = "awaiting_agent"

	// PhaseAwaitingTools means the last assistant message requested tool
	// calls that have not completed yet.
	PhaseAwaitingTools Phase = "awaiting_tools"

	// PhaseDone means the run terminated with a final assistant message.
	PhaseDone Phase = "done"

	// PhaseFailed means the run aborted; checkpoints committed before the
	// failure remain readable.
	PhaseFailed Phase = "failed"
)

// Options tune a single Executor.
type Options struct {
	// MaxIterations caps agent steps per submission. Exceeding it fails the
	// run with core.KindLoopLimit.
	MaxIterations int

	// MaxToolWorkers bounds concurrent tool invocations within one tool step.
	MaxToolWorkers int

	// AgentTimeout is the per-model-call deadline. Zero disables it.
	AgentTimeout time.Duration

	// ToolTimeout is the per-tool-invocation deadline. Zero disables it.
	ToolTimeout time.Duration

	// Instructions is the system prompt sent with every model request.
	Instructions string

	// ModelConfig carries sampling options for every model request.
	ModelConfig model.Config

	// Stream requests incremental text fragments from the model.
	Stream bool

	// Logger receives structured execution logs.
	Logger logging.Logger
}

// DefaultMaxIterations caps runaway tool loops per submission.
const DefaultMaxIterations = 25

// DefaultMaxToolWorkers bounds parallel tool execution within a step.
const DefaultMaxToolWorkers = 4

// Executor drives one thread through agent steps, routing decisions and tool
// steps, committing a checkpoint after every completed step. It holds no
// per-run mutable state and may be shared across goroutines; per-thread
// serialization comes from the store's optimistic append.
type Executor struct {
	store    core.Store
	registry *tool.Registry
	agent    *AgentStep
	tools    *ToolStep
	opts     Options
	logger   logging.Logger
}

// Result reports where a run ended.
type Result struct {
	// Checkpoint is the last committed state.
	Checkpoint core.Checkpoint

	// Final is the terminal assistant message. Only set when Phase is
	// PhaseDone.
	Final core.Message

	// Iterations counts completed agent steps.
	Iterations int

	// Phase is the terminal phase: PhaseDone on success, PhaseFailed
	// otherwise.
	Phase Phase
}

// NewExecutor wires an executor from its dependencies. The registry may be
// nil for tool-less deployments; the model then has nothing to call and every
// run terminates on its first assistant message.
func NewExecutor(store core.Store, mdl model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxIterations:  DefaultMaxIterations,
		MaxToolWorkers: DefaultMaxToolWorkers,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultMaxIterations
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{
		store:    store,
		registry: registry,
		agent:    NewAgentStep(mdl, opts.Instructions, opts.ModelConfig, opts.Stream, opts.AgentTimeout, opts.Logger),
		tools:    NewToolStep(registry, opts.MaxToolWorkers, opts.ToolTimeout, opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Run executes one user submission against the thread.
//
// The user message is committed as its own checkpoint before the first agent
// step, so concurrent submissions to the same thread resolve their conflict
// before any model spend: exactly one claims the next sequence number, the
// rest fail with core.KindConcurrentModification.
//
// Each later append commits one completed step. On any failure the committed
// prefix stays intact and readable; only the step in flight is discarded.
func (e *Executor) Run(ctx context.Context, threadID, userText string, emit EmitFunc) (Result, error) {
	res := Result{Phase: PhaseFailed}

	if threadID == "" {
		return res, fmt.Errorf("thread id must not be empty")
	}

	if userText == "" {
		return res, fmt.Errorf("user input must not be empty")
	}

	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return res, err
	}

	// Refuse to run on a history that violates conversation ordering,
	// whatever store produced it.
	if err := core.ValidateHistory(cp.Messages); err != nil {
		return res, fmt.Errorf("thread %q: %w", threadID, err)
	}

	cp, err = e.append(ctx, cp, core.NewUserMessage(userText))
	if err != nil {
		return res, err
	}

	res.Checkpoint = cp

	e.logger.Info("run.start", "thread_id", threadID, "seq", cp.Seq, "history_len", len(cp.Messages))

	var defs []model.ToolDefinition
	if e.registry != nil {
		defs = e.registry.Definitions()
	}

	var assistant core.Message

	phase := PhaseAwaitingAgent

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		switch phase {
		case PhaseAwaitingAgent:
			if res.Iterations >= e.opts.MaxIterations {
				e.logger.Warn("run.loop_limit", "thread_id", threadID, "iterations", res.Iterations)

				return res, core.NewError(core.KindLoopLimit, "exceeded %d iterations", e.opts.MaxIterations)
			}

			assistant, err = e.agent.Run(ctx, threadID, cp.Messages, defs, emit)
			if err != nil {
				return res, err
			}

			cp, err = e.append(ctx, cp, assistant)
			if err != nil {
				return res, err
			}

			res.Checkpoint = cp
			res.Iterations++

			if Route(assistant) == DecisionTerminate {
				phase = PhaseDone
			} else {
				phase = PhaseAwaitingTools
			}

		case PhaseAwaitingTools:
			toolMsgs, err := e.tools.Run(ctx, threadID, assistant.ToolCalls, emit)
			if err != nil {
				return res, err
			}

			cp, err = e.append(ctx, cp, toolMsgs...)
			if err != nil {
				return res, err
			}

			res.Checkpoint = cp
			phase = PhaseAwaitingAgent

		case PhaseDone:
			res.Phase = PhaseDone
			res.Final = assistant

			emit.emit(completedEvent(threadID, assistant, cp))

			e.logger.Info("run.complete", "thread_id", threadID, "seq", cp.Seq, "iterations", res.Iterations)

			return res, nil

		default:
			return res, fmt.Errorf("executor entered unknown phase %q", phase)
		}
	}
}

// append commits msgs as the thread's next checkpoint.
func (e *Executor) append(ctx context.Context, cp core.Checkpoint, msgs ...core.Message) (core.Checkpoint, error) {
	next, err := e.store.Append(ctx, cp.ThreadID, cp.Seq, msgs)
	if err != nil {
		return core.Checkpoint{}, err
	}

	return next, nil
}
