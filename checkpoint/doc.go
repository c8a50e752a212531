// Package checkpoint provides core.Store implementations for durable thread
// state.
//
// Two backends ship with the engine: InMemoryStore for tests and ephemeral
// runs, and the sqlite subpackage for single-node durability across process
// restarts. Both enforce the same optimistic concurrency contract: an append
// carries the sequence number the caller last observed, and a mismatch fails
// with core.KindConcurrentModification instead of overwriting newer state.
package checkpoint
