package tlog

import (
	"iter"

	"github.com/pedromsilvapt/data-transactional-log/entry"
)

// Engine is the storage contract the transactional log is built on. The
// segment and segmented packages provide file-backed implementations and
// storage/pebble a key-value backed one; any conforming backend works.
//
// Mutating operations must be mutually exclusive per engine instance, and
// the backing store must persist appends in call order, with Commit, Abort
// and Reset acting as durable barriers for everything written before them.
type Engine interface {
	// Reset appends the logical-truncation sentinel with a durable barrier.
	Reset() error
	// WriteMany appends one data entry per block, unsynced and non-atomic.
	WriteMany(txID uint64, blocks [][]byte) error
	// Commit appends a commit entry with a durable barrier.
	Commit(txID uint64, seq uint64) error
	// Abort appends an abort entry with a durable barrier.
	Abort(txID uint64) error
	// All returns a lazy, restartable scan of every entry from the start.
	All() iter.Seq2[entry.Entry, error]
	// Close releases any handles held by the engine.
	Close() error
}
