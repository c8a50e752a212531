// Package anthropic implements model.Model on the Anthropic Messages API,
// including streaming and tool use. Tool results are delivered back to the
// API as user-role tool_result blocks, which is the shape the API requires.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/model"
)

// Options configures the Anthropic model adapter. Request-level model.Config
// values override these per call.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64

	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string

	// BaseURL points the client at an API-compatible endpoint.
	BaseURL string
}

// Model wraps the Anthropic Messages API behind the model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates an Anthropic model using the official client. Credentials
// come from Options or the standard environment variables.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption

	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements unified streaming and non-streaming generation against
// the Messages API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}

		m.generateBlocking(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildParams assembles the request parameters, letting request-level config
// override the adapter defaults. Instructions ride the dedicated system
// field rather than the message list.
func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	modelID := m.opts.Model
	if req.Config.Model != "" {
		modelID = anthropic.Model(req.Config.Model)
	}

	temperature := m.opts.Temperature
	if req.Config.Temperature != nil {
		temperature = *req.Config.Temperature
	}

	maxTokens := m.opts.MaxTokens
	if req.Config.MaxTokens != nil {
		maxTokens = *req.Config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    buildMessages(req.History),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// buildMessages converts the flat history into Messages API turns. Tool
// results are buffered and flushed as a user message, since the API accepts
// tool_result blocks only in the user role and rejects consecutive turns
// with the same role.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		results  []anthropic.ContentBlockParamUnion
	)

	flushResults := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range history {
		switch msg.Role {
		case core.RoleUser:
			// Pending tool results join the user turn to keep roles alternating.
			blocks := results
			results = nil

			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}

			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}

		case core.RoleAssistant:
			flushResults()

			var blocks []anthropic.ContentBlockParamUnion

			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}

			for _, call := range msg.ToolCalls {
				input := call.Args
				if input == nil {
					input = map[string]any{}
				}

				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}

			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}

		case core.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		}
	}

	flushResults()

	return messages
}

// buildTools converts tool definitions to the Messages API tool format.
func buildTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))

	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := def.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				schema.Properties = properties
			}

			schema.Required = requiredNames(params["required"])
		}

		tool := anthropic.ToolUnionParamOfTool(schema, def.Function.Name)
		if def.Function.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(def.Function.Description)
		}

		tools[i] = tool
	}

	return tools
}

// requiredNames normalizes the schema's required list, which arrives as
// []string from Go-built schemas and []any from decoded JSON.
func requiredNames(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		names := make([]string, 0, len(list))

		for _, item := range list {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}

		return names
	default:
		return nil
	}
}

// generateStreaming forwards text deltas as partial responses while the SDK
// accumulates the full message, then emits the final message with complete
// tool calls.
func (m *Model) generateStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	var message anthropic.Message

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			errCh <- core.WrapError(core.KindModel, err, "anthropic stream accumulation failed")
			return
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" {
					out <- model.Response{
						ID:      message.ID,
						Partial: true,
						Message: core.Message{Role: core.RoleAssistant, Content: delta.Text},
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- core.WrapError(core.KindModel, err, "anthropic streaming error")
		return
	}

	final, err := messageFromBlocks(message.Content)
	if err != nil {
		errCh <- err
		return
	}

	out <- model.Response{
		ID:           message.ID,
		Partial:      false,
		Message:      final,
		FinishReason: finishReasonOf(message.StopReason),
		Usage:        usageOf(message.Usage),
	}
}

// generateBlocking performs a normal completion and emits one final response.
func (m *Model) generateBlocking(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- core.WrapError(core.KindModel, err, "anthropic api error")
		return
	}

	final, err := messageFromBlocks(resp.Content)
	if err != nil {
		errCh <- err
		return
	}

	out <- model.Response{
		ID:           resp.ID,
		Partial:      false,
		Message:      final,
		FinishReason: finishReasonOf(resp.StopReason),
		Usage:        usageOf(resp.Usage),
	}
}

// messageFromBlocks flattens response content blocks into a single assistant
// message with structured tool calls.
func messageFromBlocks(blocks []anthropic.ContentBlockUnion) (core.Message, error) {
	msg := core.Message{Role: core.RoleAssistant}

	var text strings.Builder

	for _, block := range blocks {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)

		case "tool_use":
			tu := block.AsToolUse()

			args := map[string]any{}
			if tu.Input != nil {
				raw, err := json.Marshal(tu.Input)
				if err != nil {
					return core.Message{}, core.WrapError(core.KindModel, err, "read input of call %q", tu.ID)
				}

				if err := json.Unmarshal(raw, &args); err != nil {
					return core.Message{}, core.WrapError(core.KindModel, err, "decode input of call %q", tu.ID)
				}
			}

			msg.ToolCalls = append(msg.ToolCalls, core.ToolCallRequest{ID: tu.ID, Name: tu.Name, Args: args})
		}
	}

	msg.Content = text.String()

	return msg, nil
}

func finishReasonOf(reason anthropic.StopReason) string {
	if reason == "" {
		return "stop"
	}

	return string(reason)
}

func usageOf(u anthropic.Usage) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
