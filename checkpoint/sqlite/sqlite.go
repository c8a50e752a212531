// Package sqlite provides a SQLite-backed core.Store adapter for durable
// thread checkpoints that survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/graphflow/core"
)

// Store implements core.Store using SQLite. A single writer connection keeps
// append transactions serialized; the busy timeout lets concurrent processes
// queue briefly instead of failing outright.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and returns a Store.
// The special path ":memory:" yields a private in-process database. Callers
// must run Migrate before first use.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, core.NewError(core.KindStore, "database path must not be empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, core.WrapError(core.KindStore, err, "create database directory")
		}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, core.WrapError(core.KindStore, err, "open sqlite database")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.configurePragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}

	for _, q := range pragmas {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return core.WrapError(core.KindStore, err, "set pragma %q", q)
		}
	}

	return nil
}

// Migrate creates the checkpoint table if it does not exist. Safe to call on
// every startup.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id  TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			messages   TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, seq)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return core.WrapError(core.KindStore, err, "migrate")
		}
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load returns the latest checkpoint for the thread. Unknown threads yield an
// empty checkpoint with sequence zero. Rows that fail to decode or that
// violate conversation ordering are reported as core.KindCorruptState and are
// never silently repaired.
func (s *Store) Load(ctx context.Context, threadID string) (core.Checkpoint, error) {
	if threadID == "" {
		return core.Checkpoint{}, core.NewError(core.KindStore, "thread id must not be empty")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT seq, messages, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	)

	var (
		seq       uint64
		payload   []byte
		createdAt time.Time
	)

	if err := row.Scan(&seq, &payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Checkpoint{ThreadID: threadID}, nil
		}

		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "load thread %q", threadID)
	}

	var msgs []core.Message
	if err := json.Unmarshal(payload, &msgs); err != nil {
		return core.Checkpoint{}, core.WrapError(core.KindCorruptState, err,
			"thread %q seq %d: undecodable message payload", threadID, seq)
	}

	if err := core.ValidateHistory(msgs); err != nil {
		return core.Checkpoint{}, fmt.Errorf("thread %q seq %d: %w", threadID, seq, err)
	}

	return core.Checkpoint{
		ThreadID:  threadID,
		Seq:       seq,
		Messages:  msgs,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// Append extends the thread's history with msgs inside a single transaction.
// baseSeq must equal the latest stored sequence; a mismatch (including a
// primary key collision from a racing writer) fails with
// core.KindConcurrentModification and leaves stored state untouched.
func (s *Store) Append(ctx context.Context, threadID string, baseSeq uint64, msgs []core.Message) (core.Checkpoint, error) {
	if threadID == "" {
		return core.Checkpoint{}, core.NewError(core.KindStore, "thread id must not be empty")
	}

	if len(msgs) == 0 {
		return core.Checkpoint{}, core.NewError(core.KindStore, "append requires at least one message")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "begin append tx")
	}
	defer func() { _ = tx.Rollback() }()

	var curSeq uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&curSeq); err != nil {
		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "read current seq for thread %q", threadID)
	}

	if curSeq != baseSeq {
		return core.Checkpoint{}, core.NewError(core.KindConcurrentModification,
			"thread %q: base seq %d does not match current seq %d", threadID, baseSeq, curSeq)
	}

	history := make([]core.Message, 0, len(msgs))

	if curSeq > 0 {
		var payload []byte
		if err := tx.QueryRowContext(ctx,
			`SELECT messages FROM checkpoints WHERE thread_id = ? AND seq = ?`, threadID, curSeq,
		).Scan(&payload); err != nil {
			return core.Checkpoint{}, core.WrapError(core.KindStore, err, "read checkpoint %q/%d", threadID, curSeq)
		}

		if err := json.Unmarshal(payload, &history); err != nil {
			return core.Checkpoint{}, core.WrapError(core.KindCorruptState, err,
				"thread %q seq %d: undecodable message payload", threadID, curSeq)
		}
	}

	history = append(history, core.CloneMessages(msgs)...)

	encoded, err := json.Marshal(history)
	if err != nil {
		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "encode checkpoint for thread %q", threadID)
	}

	next := core.Checkpoint{
		ThreadID:  threadID,
		Seq:       curSeq + 1,
		Messages:  history,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, seq, messages, created_at) VALUES (?, ?, ?, ?)`,
		next.ThreadID, next.Seq, encoded, next.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return core.Checkpoint{}, core.WrapError(core.KindConcurrentModification, err,
				"thread %q: seq %d already written", threadID, next.Seq)
		}

		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "insert checkpoint %q/%d", threadID, next.Seq)
	}

	if err := tx.Commit(); err != nil {
		return core.Checkpoint{}, core.WrapError(core.KindStore, err, "commit checkpoint %q/%d", threadID, next.Seq)
	}

	return next.Clone(), nil
}

// ListThreads returns the ids of all threads with at least one checkpoint,
// sorted for deterministic output.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, core.WrapError(core.KindStore, err, "list threads")
	}
	defer func() { _ = rows.Close() }()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.WrapError(core.KindStore, err, "scan thread id")
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStore, err, "list threads")
	}

	return ids, nil
}

// isUniqueViolation checks the error text instead of sqlite3 error codes so
// callers never need the driver package on their import path.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
