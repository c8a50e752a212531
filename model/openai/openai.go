// Package openai implements model.Model on the OpenAI Chat Completions API,
// including streaming and function/tool calling. It converts GraphFlow's
// flat conversation history into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/model"
)

// aggCall collects partial tool call streaming deltas (id, name, argument
// bytes) until the finish chunk allows assembling complete calls.
type aggCall struct{ id, name, args string }

// Options configures the OpenAI model adapter. Request-level model.Config
// values override these per call.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string

	// BaseURL points the client at an OpenAI-compatible endpoint.
	BaseURL string
}

// Model wraps the OpenAI Chat Completions API behind the model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates an OpenAI model using the official client. Credentials
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

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements unified streaming and non-streaming generation against
// the Chat Completions API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages, err := buildMessages(req)
		if err != nil {
			errCh <- core.WrapError(core.KindModel, err, "openai request build failed")
			return
		}

		params := m.buildParams(req, messages)

		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}

		m.generateBlocking(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildMessages converts the flat history into chat messages. Instructions
// become the leading system message; tool results keep their call ids so the
// API can match them to the assistant's calls.
func buildMessages(req model.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, msg := range req.History {
		switch msg.Role {
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))

		case core.RoleAssistant:
			if !msg.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{Role: "assistant"}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}

			for _, call := range msg.ToolCalls {
				args, err := encodeArgs(call.Args)
				if err != nil {
					return nil, fmt.Errorf("encode arguments of call %q: %w", call.ID, err)
				}

				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}

			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return messages, nil
}

func encodeArgs(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// buildParams assembles the request parameters, letting request-level config
// override the adapter defaults.
func (m *Model) buildParams(req model.Request, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	modelID := m.opts.Model
	if req.Config.Model != "" {
		modelID = req.Config.Model
	}

	temperature := m.opts.Temperature
	if req.Config.Temperature != nil {
		temperature = *req.Config.Temperature
	}

	maxTokens := m.opts.MaxCompletionTokens
	if req.Config.MaxTokens != nil {
		maxTokens = *req.Config.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               modelID,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))

	for i, def := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		}
	}

	params.Tools = tools

	return params
}

// generateStreaming forwards text deltas as partial responses and assembles
// the final message, with complete tool calls, at the finish chunk. Tool call
// argument deltas are aggregated silently; callers only ever observe whole
// calls.
func (m *Model) generateStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var (
		text     strings.Builder
		agg      = map[int64]*aggCall{}
		finished bool
	)

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)

				out <- model.Response{
					ID:      chunk.ID,
					Partial: true,
					Message: core.Message{Role: core.RoleAssistant, Content: choice.Delta.Content},
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := agg[tc.Index]
				if !ok {
					ac = &aggCall{}
					agg[tc.Index] = ac
				}

				if tc.ID != "" {
					ac.id = tc.ID
				}

				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}

				ac.args += tc.Function.Arguments
			}

			if choice.FinishReason != "" && !finished {
				finished = true

				final, err := assembleFinal(chunk.ID, text.String(), agg, choice.FinishReason)
				if err != nil {
					errCh <- err
					return
				}

				out <- final
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- core.WrapError(core.KindModel, err, "openai streaming error")
	}
}

// assembleFinal rebuilds the complete assistant message from accumulated
// deltas, in the model's call order.
func assembleFinal(id, text string, agg map[int64]*aggCall, finishReason string) (model.Response, error) {
	msg := core.Message{Role: core.RoleAssistant, Content: text}

	indexes := make([]int64, 0, len(agg))
	for idx := range agg {
		indexes = append(indexes, idx)
	}

	slices.Sort(indexes)

	for _, idx := range indexes {
		ac := agg[idx]

		args := map[string]any{}
		if ac.args != "" {
			if err := json.Unmarshal([]byte(ac.args), &args); err != nil {
				return model.Response{}, core.WrapError(core.KindModel, err, "decode arguments of call %q", ac.id)
			}
		}

		msg.ToolCalls = append(msg.ToolCalls, core.ToolCallRequest{ID: ac.id, Name: ac.name, Args: args})
	}

	return model.Response{ID: id, Partial: false, Message: msg, FinishReason: finishReason}, nil
}

// generateBlocking performs a normal completion and emits one final response.
func (m *Model) generateBlocking(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- core.WrapError(core.KindModel, err, "openai api error")
		return
	}

	if len(resp.Choices) == 0 {
		errCh <- core.NewError(core.KindModel, "openai returned no choices")
		return
	}

	choice := resp.Choices[0]

	msg := core.Message{Role: core.RoleAssistant, Content: choice.Message.Content}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				errCh <- core.WrapError(core.KindModel, err, "decode arguments of call %q", tc.ID)
				return
			}
		}

		msg.ToolCalls = append(msg.ToolCalls, core.ToolCallRequest{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}

	out <- model.Response{
		ID:           resp.ID,
		Partial:      false,
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
