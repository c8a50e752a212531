// Package graphflow provides a high-level façade over the engine and its
// services (model adapters, tool registry, checkpoint stores and logging)
// for building tool-calling conversation loops. Most applications interact
// with this package by:
//  1. Creating a GraphFlow via New() with a model adapter, or via
//     NewFromConfig() with a loaded configuration
//  2. Registering the tools the model may call
//  3. Submitting user input per thread, either blocking (Submit) or
//     streaming (SubmitStream)
//
// The façade delegates execution to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable store and a
// structured logger.
package graphflow

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/graphflow/checkpoint"
	"github.com/hupe1980/graphflow/checkpoint/sqlite"
	"github.com/hupe1980/graphflow/config"
	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/engine"
	"github.com/hupe1980/graphflow/graph"
	"github.com/hupe1980/graphflow/logging"
	"github.com/hupe1980/graphflow/model"
	"github.com/hupe1980/graphflow/model/anthropic"
	"github.com/hupe1980/graphflow/model/openai"
	"github.com/hupe1980/graphflow/tool"
)

// Options configures the GraphFlow instance.
type Options struct {
	// Store persists per-thread checkpoints. Defaults to an in-memory store.
	Store core.Store

	// Logger receives structured engine logs. Defaults to the no-op logger.
	Logger logging.Logger

	// MaxIterations caps agent steps per submission.
	MaxIterations int

	// MaxToolWorkers bounds concurrent tool executions within one tool step.
	MaxToolWorkers int

	// AgentTimeout and ToolTimeout bound individual steps. Zero means no limit.
	AgentTimeout time.Duration
	ToolTimeout  time.Duration

	// EventBufferSize sets the streaming event channel capacity.
	EventBufferSize int

	// Instructions is sent as the system prompt with every model request.
	Instructions string

	// ModelConfig overrides model parameters per request.
	ModelConfig model.Config
}

// GraphFlow is the high-level façade aggregating the engine, its model and
// the tool registry.
type GraphFlow struct {
	engine   *engine.Engine
	registry *tool.Registry
}

// New creates a GraphFlow instance around the given model with optional
// overrides. Unset services are initialized with in-memory implementations.
func New(mdl model.Model, optFns ...func(o *Options)) *GraphFlow {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	// Registration of zero tools cannot fail.
	registry, _ := tool.NewRegistry()

	eng := engine.New(mdl, registry, func(o *engine.Options) {
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.MaxIterations = opts.MaxIterations
		o.MaxToolWorkers = opts.MaxToolWorkers
		o.AgentTimeout = opts.AgentTimeout
		o.ToolTimeout = opts.ToolTimeout
		o.EventBufferSize = opts.EventBufferSize
		o.Instructions = opts.Instructions
		o.ModelConfig = opts.ModelConfig
	})

	return &GraphFlow{engine: eng, registry: registry}
}

// NewFromConfig creates a GraphFlow instance from a loaded configuration,
// constructing the model adapter, checkpoint store and logger it names. The
// context bounds store setup such as schema migration.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*GraphFlow, error) {
	mdl, err := modelFromConfig(cfg.Model)
	if err != nil {
		return nil, err
	}

	store, err := storeFromConfig(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	lcfg := logging.DefaultLoggerConfig()
	lcfg.Level = logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Format != "" {
		lcfg.Format = cfg.Logging.Format
	}

	return New(mdl, func(o *Options) {
		o.Store = store
		o.Logger = logging.NewLogger(lcfg)
		o.MaxIterations = cfg.Engine.MaxIterations
		o.MaxToolWorkers = cfg.Engine.MaxToolWorkers
		o.AgentTimeout = cfg.Engine.AgentTimeout()
		o.ToolTimeout = cfg.Engine.ToolTimeout()
		o.Instructions = cfg.Engine.Instructions
	}), nil
}

func modelFromConfig(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}

			if mc.Temperature != nil {
				o.Temperature = *mc.Temperature
			}

			if mc.MaxTokens != nil {
				o.MaxCompletionTokens = *mc.MaxTokens
			}

			o.APIKey = mc.APIKey()
			o.BaseURL = mc.BaseURL
		}), nil

	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}

			if mc.Temperature != nil {
				o.Temperature = *mc.Temperature
			}

			if mc.MaxTokens != nil {
				o.MaxTokens = *mc.MaxTokens
			}

			o.APIKey = mc.APIKey()
			o.BaseURL = mc.BaseURL
		}), nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

func storeFromConfig(ctx context.Context, sc config.StoreConfig) (core.Store, error) {
	switch sc.Driver {
	case "memory":
		return checkpoint.NewInMemoryStore(), nil

	case "sqlite":
		store, err := sqlite.New(sc.Path)
		if err != nil {
			return nil, err
		}

		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}

		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// RegisterTool adds a tool to the registry. Tool names must be unique.
func (g *GraphFlow) RegisterTool(t tool.Tool) error {
	return g.registry.Register(t)
}

// Tools returns the names of the registered tools in sorted order.
func (g *GraphFlow) Tools() []string {
	return g.registry.Names()
}

// Submit runs one conversation turn to completion and returns the full
// thread history including the new turn.
func (g *GraphFlow) Submit(ctx context.Context, threadID, input string) ([]core.Message, error) {
	return g.engine.Submit(ctx, threadID, input)
}

// SubmitStream runs one conversation turn, emitting events as the turn
// progresses. See engine.Engine.SubmitStream for the channel contract.
func (g *GraphFlow) SubmitStream(ctx context.Context, threadID, input string) (<-chan graph.Event, <-chan error, error) {
	return g.engine.SubmitStream(ctx, threadID, input)
}

// GetHistory returns the committed history of a thread. Unknown threads
// yield an empty history.
func (g *GraphFlow) GetHistory(ctx context.Context, threadID string) ([]core.Message, error) {
	return g.engine.GetHistory(ctx, threadID)
}

// ListThreads returns the ids of all threads in the store in sorted order.
func (g *GraphFlow) ListThreads(ctx context.Context) ([]string, error) {
	return g.engine.ListThreads(ctx)
}

// Close releases the engine's resources, including the checkpoint store.
func (g *GraphFlow) Close() error {
	return g.engine.Close()
}
