package core

import (
	"context"
	"time"
)

// Checkpoint is an immutable, sequence-numbered snapshot of a thread's
// message history. For a given thread, checkpoints are totally ordered by
// Seq; each successor extends its predecessor's message sequence without
// rewriting committed history.
//
// Checkpoints are created by the executor after every completed step and read
// at the start of every invocation to resume state. They are never mutated
// after creation.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	Seq       uint64    `json:"seq"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether the checkpoint is the empty-state sentinel returned
// for a thread with no committed history yet.
func (c Checkpoint) Empty() bool { return c.Seq == 0 }

// Clone returns a deep copy of the checkpoint safe for independent mutation.
func (c Checkpoint) Clone() Checkpoint {
	return Checkpoint{
		ThreadID:  c.ThreadID,
		Seq:       c.Seq,
		Messages:  CloneMessages(c.Messages),
		CreatedAt: c.CreatedAt,
	}
}

// Store persists per-thread checkpoints. Implementations must serialize
// Append calls for the same thread id: of two concurrent appends against the
// same base sequence number, exactly one wins and the other observes a
// KindConcurrentModification error for the caller to retry. Operations on
// different thread ids proceed fully in parallel.
type Store interface {
	// Load returns the latest checkpoint for the thread, or the empty-state
	// sentinel (zero Seq, no messages) when the thread has no history yet.
	// A record that fails ValidateHistory is surfaced as KindCorruptState,
	// never silently coerced into empty state.
	Load(ctx context.Context, threadID string) (Checkpoint, error)

	// Append atomically extends the thread's history with msgs, succeeding
	// only when the thread's latest sequence number equals baseSeq. The new
	// checkpoint's message sequence is exactly the committed sequence with
	// msgs appended and its Seq is baseSeq+1. Committed messages are never
	// lost or rewritten.
	Append(ctx context.Context, threadID string, baseSeq uint64, msgs []Message) (Checkpoint, error)

	// ListThreads returns the ids of all threads with at least one committed
	// checkpoint.
	ListThreads(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
