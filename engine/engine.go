package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/graphflow/checkpoint"
	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/graph"
	"github.com/hupe1980/graphflow/logging"
	"github.com/hupe1980/graphflow/model"
	"github.com/hupe1980/graphflow/tool"
)

// DefaultEventBufferSize is the channel buffer used by SubmitStream when no
// override is configured. It trades a little memory for keeping execution
// ahead of slow event consumers.
const DefaultEventBufferSize = 100

// Options configures an Engine instance using the functional options pattern.
//
// Every field has a working default: an in-memory store, a no-op logger and
// the executor's standard iteration and worker limits. Production deployments
// typically provide a durable store and a real logger.
//
// Example:
//
//	eng := engine.New(mdl, registry, func(o *engine.Options) {
//	    o.Store = sqliteStore
//	    o.Logger = logger
//	    o.Instructions = "You are a helpful assistant."
//	})
type Options struct {
	// Store persists per-thread conversation checkpoints. Defaults to the
	// in-memory implementation.
	Store core.Store

	// Logger receives structured logs from the engine and its steps.
	// Defaults to a no-op logger.
	Logger logging.Logger

	// MaxIterations caps the number of agent rounds a single submission may
	// take before failing with core.KindLoopLimit.
	MaxIterations int

	// MaxToolWorkers bounds how many tool calls from one assistant message
	// execute in parallel.
	MaxToolWorkers int

	// AgentTimeout bounds a single model round trip. Zero means no limit.
	AgentTimeout time.Duration

	// ToolTimeout bounds a single tool invocation. Zero means no limit.
	ToolTimeout time.Duration

	// EventBufferSize sets the event channel capacity for SubmitStream.
	EventBufferSize int

	// Instructions is the system prompt included in every model request.
	Instructions string

	// ModelConfig carries sampling parameters for model requests.
	ModelConfig model.Config
}

// Engine binds a model, a tool registry and a checkpoint store into one
// conversational execution surface. It exposes a blocking API (Submit) and a
// streaming API (SubmitStream) over the same execution loop, plus read-only
// accessors for thread discovery and history.
//
// Per-thread serialization lives in the store's optimistic append: of two
// concurrent submissions to one thread exactly one wins and the other
// observes core.KindConcurrentModification. Submissions to different threads
// run fully in parallel; the Engine keeps no cross-thread mutable state.
type Engine struct {
	store    core.Store
	registry *tool.Registry
	logger   logging.Logger

	// blocking and streaming share every dependency and differ only in
	// whether model requests ask for incremental output.
	blocking  *graph.Executor
	streaming *graph.Executor

	eventBufferSize int
}

// New creates an Engine for the given model and tool registry. The registry
// may be nil for conversations without tools.
//
// The Engine does not take ownership of the model or registry. It does own
// the configured Store in the sense that Close closes it; callers that share
// a store across engines should not call Close.
func New(mdl model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Store:           checkpoint.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
		MaxIterations:   graph.DefaultMaxIterations,
		MaxToolWorkers:  graph.DefaultMaxToolWorkers,
		EventBufferSize: DefaultEventBufferSize,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = checkpoint.NewInMemoryStore()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.EventBufferSize < 1 {
		opts.EventBufferSize = DefaultEventBufferSize
	}

	build := func(stream bool) *graph.Executor {
		return graph.NewExecutor(opts.Store, mdl, registry, func(o *graph.Options) {
			o.MaxIterations = opts.MaxIterations
			o.MaxToolWorkers = opts.MaxToolWorkers
			o.AgentTimeout = opts.AgentTimeout
			o.ToolTimeout = opts.ToolTimeout
			o.Instructions = opts.Instructions
			o.ModelConfig = opts.ModelConfig
			o.Logger = opts.Logger
			o.Stream = stream
		})
	}

	return &Engine{
		store:           opts.Store,
		registry:        registry,
		logger:          opts.Logger,
		blocking:        build(false),
		streaming:       build(true),
		eventBufferSize: opts.EventBufferSize,
	}
}

// Submit runs one user submission to completion and returns the thread's
// full message history as of the final checkpoint.
//
// On failure the returned error carries its taxonomy kind (core.KindOf).
// Checkpoints committed before the failure stay readable via GetHistory;
// only the uncommitted work of the failing step is lost.
func (e *Engine) Submit(ctx context.Context, threadID, text string) ([]core.Message, error) {
	res, err := e.blocking.Run(ctx, threadID, text, nil)
	if err != nil {
		return nil, err
	}

	return res.Checkpoint.Messages, nil
}

// SubmitStream runs one user submission asynchronously and streams execution
// events as they happen.
//
// The events channel delivers assistant text fragments, tool call lifecycle
// events and a final completed event, then closes. The error channel has
// capacity one and delivers the terminal error, if any, before both channels
// close. Cancelling ctx abandons the submission; checkpoints committed up to
// that point stay.
//
//	events, errs, err := eng.SubmitStream(ctx, "thread-1", "What is 2+2?")
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handle(ev)
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
func (e *Engine) SubmitStream(ctx context.Context, threadID, text string) (<-chan graph.Event, <-chan error, error) {
	if threadID == "" {
		return nil, nil, fmt.Errorf("thread id must not be empty")
	}

	if text == "" {
		return nil, nil, fmt.Errorf("user input must not be empty")
	}

	eventsCh := make(chan graph.Event, e.eventBufferSize)
	errorsCh := make(chan error, 1)

	emit := func(ev graph.Event) {
		select {
		case eventsCh <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()

		if _, err := e.streaming.Run(ctx, threadID, text, emit); err != nil {
			errorsCh <- err
		}
	}()

	return eventsCh, errorsCh, nil
}

// ListThreads returns the ids of every thread with at least one committed
// checkpoint.
func (e *Engine) ListThreads(ctx context.Context) ([]string, error) {
	return e.store.ListThreads(ctx)
}

// GetHistory returns the committed message history of a thread. Unknown
// threads yield an empty history; threads come into existence on their first
// submission.
func (e *Engine) GetHistory(ctx context.Context, threadID string) ([]core.Message, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return cp.Messages, nil
}

// Close releases the underlying store. The Engine must not be used after
// Close returns.
func (e *Engine) Close() error {
	return e.store.Close()
}
