package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/graphflow/core"
)

// InMemoryStore is a volatile core.Store implementation keeping thread
// checkpoints in a process local map. It is safe for concurrent access and
// best suited for tests or ephemeral demo runs. Each returned checkpoint is
// cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]core.Checkpoint
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]core.Checkpoint)}
}

// Load returns the latest checkpoint (clone) for the thread. Unknown threads
// yield an empty checkpoint with sequence zero, never an error.
func (s *InMemoryStore) Load(_ context.Context, threadID string) (core.Checkpoint, error) {
	if threadID == "" {
		return core.Checkpoint{}, core.NewError(core.KindStore, "thread id must not be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if cp, ok := s.threads[threadID]; ok {
		return cp.Clone(), nil
	}

	return core.Checkpoint{ThreadID: threadID}, nil
}

// Append extends the thread's history with msgs, producing the next
// checkpoint. baseSeq must equal the sequence the caller last observed; a
// mismatch means another writer advanced the thread and the append fails with
// core.KindConcurrentModification, leaving stored state untouched.
func (s *InMemoryStore) Append(_ context.Context, threadID string, baseSeq uint64, msgs []core.Message) (core.Checkpoint, error) {
	if threadID == "" {
		return core.Checkpoint{}, core.NewError(core.KindStore, "thread id must not be empty")
	}

	if len(msgs) == 0 {
		return core.Checkpoint{}, core.NewError(core.KindStore, "append requires at least one message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.threads[threadID] // zero value carries Seq 0 for new threads

	if cur.Seq != baseSeq {
		return core.Checkpoint{}, core.NewError(core.KindConcurrentModification,
			"thread %q: base seq %d does not match current seq %d", threadID, baseSeq, cur.Seq)
	}

	next := core.Checkpoint{
		ThreadID:  threadID,
		Seq:       cur.Seq + 1,
		Messages:  append(core.CloneMessages(cur.Messages), core.CloneMessages(msgs)...),
		CreatedAt: time.Now().UTC(),
	}

	s.threads[threadID] = next

	return next.Clone(), nil
}

// ListThreads returns the ids of all threads with at least one checkpoint,
// sorted for deterministic output.
func (s *InMemoryStore) ListThreads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

// Close releases nothing for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
