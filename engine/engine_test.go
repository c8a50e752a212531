package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/checkpoint"
	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/graph"
	"github.com/hupe1980/graphflow/internal/testutil"
	"github.com/hupe1980/graphflow/model"
	"github.com/hupe1980/graphflow/tool"
)

// captureModel records the last request it served and answers immediately.
type captureModel struct {
	mu   sync.Mutex
	last model.Request
}

func (m *captureModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	respCh <- model.Response{Message: core.NewAssistantMessage("ok."), FinishReason: "stop"}
	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *captureModel) Info() model.Info {
	return model.Info{Name: "capture", Provider: "mock", SupportsTools: true}
}

func (m *captureModel) lastRequest() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// closeRecorder flags whether the engine released its store.
type closeRecorder struct {
	core.Store
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.Store.Close()
}

func newCalcRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	reg, err := tool.NewRegistry(tool.NewCalculator())
	require.NoError(t, err)

	return reg
}

func TestEngine_SubmitReturnsFinalHistory(t *testing.T) {
	mock := model.NewMockModel("scripted", "mock")
	mock.Script(core.NewAssistantMessage("Hello! How can I help?"))

	eng := New(mock, nil)

	history, err := eng.Submit(context.Background(), "th-1", "hi there")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "hi there", history[0].Content)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
	assert.Equal(t, "Hello! How can I help?", history[1].Content)

	stored, err := eng.GetHistory(context.Background(), "th-1")
	require.NoError(t, err)
	assert.Equal(t, history, stored)
}

func TestEngine_HistoryPrefixAcrossSubmissions(t *testing.T) {
	ctx := context.Background()

	mock := model.NewMockModel("scripted", "mock")
	mock.Script(
		core.NewAssistantMessage("Answer one."),
		core.NewAssistantMessage("Answer two."),
	)

	eng := New(mock, nil)

	first, err := eng.Submit(ctx, "th-1", "question one")
	require.NoError(t, err)

	second, err := eng.Submit(ctx, "th-1", "question two")
	require.NoError(t, err)

	// The earlier history is a strict prefix of the later one.
	require.Greater(t, len(second), len(first))
	assert.Equal(t, first, second[:len(first)])
}

func TestEngine_IndependentThreads(t *testing.T) {
	ctx := context.Background()

	mock := model.NewMockModel("canned", "mock")
	mock.AddResponse("ping", "pong")
	mock.AddResponse("marco", "polo")

	eng := New(mock, nil)

	first, err := eng.Submit(ctx, "th-1", "ping")
	require.NoError(t, err)

	second, err := eng.Submit(ctx, "th-2", "marco")
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, "pong", first[1].Content)

	require.Len(t, second, 2)
	assert.Equal(t, "polo", second[1].Content)
}

func TestEngine_SubmitModelError(t *testing.T) {
	mock := model.NewMockModel("failing", "mock")
	mock.ScriptError(errors.New("rate limited"))

	eng := New(mock, nil)

	_, err := eng.Submit(context.Background(), "th-1", "hello?")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindModel))

	// The user message committed before the failure stays readable.
	history, histErr := eng.GetHistory(context.Background(), "th-1")
	require.NoError(t, histErr)
	require.Len(t, history, 1)
	assert.Equal(t, core.RoleUser, history[0].Role)
}

func TestEngine_SubmitStreamEventFlow(t *testing.T) {
	call := core.ToolCallRequest{
		ID:   "call-1",
		Name: "calculator",
		Args: map[string]any{"first_num": 2.0, "second_num": 2.0, "operation": "add"},
	}

	mock := model.NewMockModel("scripted", "mock")
	mock.Script(
		core.NewAssistantMessage("Let me add that.", call),
		core.NewAssistantMessage("2 plus 2 is 4."),
	)

	eng := New(mock, newCalcRegistry(t))

	events, errs, err := eng.SubmitStream(context.Background(), "th-1", "what is 2+2?")
	require.NoError(t, err)

	var (
		types     []graph.EventType
		fragments strings.Builder
		completed *graph.Event
	)

	for ev := range events {
		types = append(types, ev.Type)

		switch ev.Type {
		case graph.EventTextFragment:
			fragments.WriteString(ev.Text)
		case graph.EventCompleted:
			completed = &ev
		}
	}

	require.NoError(t, <-errs)

	require.NotEmpty(t, types)
	assert.Equal(t, graph.EventCompleted, types[len(types)-1])

	// Fragments from both agent rounds arrive in order.
	assert.Equal(t, "Let me add that.2 plus 2 is 4.", fragments.String())

	require.NotNil(t, completed)
	require.NotNil(t, completed.Final)
	assert.Equal(t, "2 plus 2 is 4.", completed.Final.Content)
	require.NotNil(t, completed.Checkpoint)
	assert.Equal(t, uint64(4), completed.Checkpoint.Seq)

	history, err := eng.GetHistory(context.Background(), "th-1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	require.NoError(t, core.ValidateHistory(history))
}

func TestEngine_SubmitStreamTerminalError(t *testing.T) {
	mock := model.NewMockModel("failing", "mock")
	mock.ScriptError(errors.New("provider down"))

	eng := New(mock, nil)

	events, errs, err := eng.SubmitStream(context.Background(), "th-1", "hello?")
	require.NoError(t, err)

	for range events {
	}

	err = <-errs
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindModel))

	history, histErr := eng.GetHistory(context.Background(), "th-1")
	require.NoError(t, histErr)
	require.Len(t, history, 1)
}

func TestEngine_SubmitStreamInputValidation(t *testing.T) {
	eng := New(model.NewMockModel("scripted", "mock"), nil)

	events, errs, err := eng.SubmitStream(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Nil(t, errs)

	events, errs, err = eng.SubmitStream(context.Background(), "th-1", "")
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Nil(t, errs)
}

func TestEngine_RequestWiring(t *testing.T) {
	capture := &captureModel{}

	eng := New(capture, newCalcRegistry(t), func(o *Options) {
		o.Instructions = "You are terse."
	})

	_, err := eng.Submit(context.Background(), "th-1", "hello")
	require.NoError(t, err)

	req := capture.lastRequest()
	assert.Equal(t, "You are terse.", req.Instructions)
	assert.False(t, req.Stream)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "calculator", req.Tools[0].Function.Name)
	require.NotEmpty(t, req.History)
	assert.Equal(t, "hello", req.History[len(req.History)-1].Content)

	events, errs, err := eng.SubmitStream(context.Background(), "th-2", "hello again")
	require.NoError(t, err)

	for range events {
	}
	require.NoError(t, <-errs)

	req = capture.lastRequest()
	assert.True(t, req.Stream)
	assert.Equal(t, "You are terse.", req.Instructions)
}

func TestEngine_GetHistoryUnknownThread(t *testing.T) {
	eng := New(model.NewMockModel("scripted", "mock"), nil)

	history, err := eng.GetHistory(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_ListThreads(t *testing.T) {
	ctx := context.Background()

	mock := model.NewMockModel("scripted", "mock")
	mock.Always(core.NewAssistantMessage("Done."))

	eng := New(mock, nil)

	_, err := eng.Submit(ctx, "th-b", "first")
	require.NoError(t, err)

	_, err = eng.Submit(ctx, "th-a", "second")
	require.NoError(t, err)

	ids, err := eng.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"th-a", "th-b"}, ids)
}

func TestEngine_SharedStoreOption(t *testing.T) {
	store := checkpoint.NewInMemoryStore()

	mock := model.NewMockModel("scripted", "mock")
	mock.Always(core.NewAssistantMessage("Noted."))

	eng := New(mock, nil, func(o *Options) {
		o.Store = store
	})

	_, err := eng.Submit(context.Background(), "th-1", "remember this")
	require.NoError(t, err)

	cp, err := store.Load(context.Background(), "th-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cp.Seq)
	require.Len(t, cp.Messages, 2)
}

func TestEngine_CloseClosesStore(t *testing.T) {
	rec := &closeRecorder{Store: checkpoint.NewInMemoryStore()}

	eng := New(model.NewMockModel("scripted", "mock"), nil, func(o *Options) {
		o.Store = rec
	})

	require.NoError(t, eng.Close())
	assert.True(t, rec.closed)
}

func TestEngine_ResumesSeededThread(t *testing.T) {
	store := checkpoint.NewInMemoryStore()
	ctx := context.Background()

	// A previous process committed a full calculator round trip.
	call := testutil.Call("calculator", map[string]any{"first_num": 2.0, "second_num": 2.0, "operation": "add"})
	seeded := testutil.NewHistory().
		User("what is 2+2?").
		AssistantCalls("", call).
		ToolResult(call, `{"result":4}`).
		Assistant("2 plus 2 is 4.").
		Build()

	_, err := store.Append(ctx, "th-resume", 0, seeded)
	require.NoError(t, err)

	mdl := &captureModel{}

	eng := New(mdl, newCalcRegistry(t), func(o *Options) {
		o.Store = store
	})

	history, err := eng.Submit(ctx, "th-resume", "and 4+4?")
	require.NoError(t, err)
	require.Len(t, history, 6)

	// The model sees the reloaded history plus the new user message.
	req := mdl.lastRequest()
	require.Len(t, req.History, 5)
	assert.Equal(t, "what is 2+2?", req.History[0].Content)
	assert.Equal(t, call.ID, req.History[1].ToolCalls[0].ID)
	assert.Equal(t, "and 4+4?", req.History[4].Content)
}
