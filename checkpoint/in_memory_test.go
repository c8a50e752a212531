package checkpoint

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphflow/core"
	"github.com/hupe1980/graphflow/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.Store = (*InMemoryStore)(nil)

func TestInMemoryStore_LoadUnknownThread(t *testing.T) {
	store := NewInMemoryStore()

	cp, err := store.Load(context.Background(), "th-missing")
	require.NoError(t, err)
	assert.True(t, cp.Empty())
	assert.Equal(t, "th-missing", cp.ThreadID)
	assert.Empty(t, cp.Messages)
}

func TestInMemoryStore_AppendAdvancesSeq(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	cp, err := store.Append(ctx, "th-1", 0, []core.Message{core.NewUserMessage("hello")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp.Seq)
	require.Len(t, cp.Messages, 1)

	cp, err = store.Append(ctx, "th-1", 1, []core.Message{core.NewAssistantMessage("hi there")})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cp.Seq)
	require.Len(t, cp.Messages, 2)
	assert.Equal(t, "hello", cp.Messages[0].Content)
	assert.Equal(t, "hi there", cp.Messages[1].Content)

	loaded, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, cp.Seq, loaded.Seq)
	assert.Equal(t, cp.Messages, loaded.Messages)
}

func TestInMemoryStore_StaleBaseSeqRejected(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "th-1", 0, []core.Message{core.NewUserMessage("first")})
	require.NoError(t, err)

	// A writer that still believes the thread is at seq 0 must not clobber seq 1.
	_, err = store.Append(ctx, "th-1", 0, []core.Message{core.NewUserMessage("second")})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConcurrentModification))

	cp, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp.Seq)
	require.Len(t, cp.Messages, 1)
	assert.Equal(t, "first", cp.Messages[0].Content)
}

func TestInMemoryStore_EmptyAppendRejected(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Append(context.Background(), "th-1", 0, nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindStore))
}

func TestInMemoryStore_ConcurrentAppendsSingleWinner(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	const writers = 8

	var wg sync.WaitGroup

	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			_, errs[idx] = store.Append(ctx, "th-race", 0, []core.Message{core.NewUserMessage("racer")})
		}(i)
	}

	wg.Wait()

	winners := 0

	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, core.IsKind(err, core.KindConcurrentModification))
		}
	}

	assert.Equal(t, 1, winners)

	cp, err := store.Load(ctx, "th-race")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cp.Seq)
}

func TestInMemoryStore_ReturnedCheckpointIsIsolated(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	cp, err := store.Append(ctx, "th-1", 0, []core.Message{core.NewUserMessage("original")})
	require.NoError(t, err)

	// Mutating the returned snapshot must not leak into stored state.
	cp.Messages[0].Content = "mutated"

	reloaded, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "original", reloaded.Messages[0].Content)
}

func TestInMemoryStore_FullTurnHistoryRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	call := testutil.Call("calculator", map[string]any{"first_num": 2.0, "second_num": 2.0, "operation": "add"})
	msgs := testutil.NewHistory().
		User("what is 2+2?").
		AssistantCalls("", call).
		ToolResult(call, `{"result":4}`).
		Assistant("2 plus 2 is 4.").
		Build()

	_, err := store.Append(ctx, "th-1", 0, msgs)
	require.NoError(t, err)

	cp, err := store.Load(ctx, "th-1")
	require.NoError(t, err)
	require.Len(t, cp.Messages, 4)

	assistant := cp.Messages[1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, call.ID, assistant.ToolCalls[0].ID)
	assert.Equal(t, "add", assistant.ToolCalls[0].Args["operation"])

	result := cp.Messages[2]
	assert.Equal(t, call.ID, result.ToolCallID)
	assert.Equal(t, "calculator", result.ToolName)
	assert.False(t, result.IsError)
}

func TestInMemoryStore_ListThreads(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	ids, err := store.ListThreads(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"th-b", "th-a", "th-c"} {
		_, err := store.Append(ctx, id, 0, []core.Message{core.NewUserMessage("hi")})
		require.NoError(t, err)
	}

	ids, err = store.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"th-a", "th-b", "th-c"}, ids)
}
