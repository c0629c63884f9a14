// Package pebble implements the transactional log storage contract on top
// of a pebble database. Entries are stored under monotonically increasing
// 8-byte big-endian keys with the same textual encoding the file engines
// use, so a log remains inspectable with standard pebble tooling.
//
// The durable-barrier contract maps onto pebble write options: data entries
// are committed with pebble.NoSync, while commit, abort and reset entries
// use pebble.Sync. Pebble's write-ahead log persists batches in commit
// order, so a synced write implies durability of every unsynced write
// before it.
package pebble

import (
	"encoding/binary"
	"fmt"
	"iter"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/pedromsilvapt/data-transactional-log/entry"
)

// Options configures a pebble-backed engine.
type Options struct {
	// Path is the database directory.
	Path string
	// CacheSize is the pebble block cache size in bytes; 0 uses the default.
	CacheSize int64
	// MaxOpenFiles bounds pebble's file handle usage; 0 uses the default.
	MaxOpenFiles int
	// FS overrides the filesystem, primarily for tests (vfs.NewMem()).
	FS vfs.FS
}

// Engine stores log entries in a pebble database. It conforms to the
// storage contract consumed by the transactional log controller.
type Engine struct {
	db *pebble.DB

	// mu serializes mutating operations and guards the key counter.
	mu   sync.Mutex
	next uint64
}

// Open opens (or creates) the database and positions the key counter after
// the last stored entry.
func Open(opts Options) (*Engine, error) {
	pebbleOpts := &pebble.Options{
		MaxOpenFiles: opts.MaxOpenFiles,
	}
	if opts.CacheSize > 0 {
		pebbleOpts.Cache = pebble.NewCache(opts.CacheSize)
	}
	if opts.FS != nil {
		pebbleOpts.FS = opts.FS
	}

	db, err := pebble.Open(opts.Path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	e := &Engine{db: db}
	if err := e.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed key counter: %w", err)
	}
	return e, nil
}

func (e *Engine) seed() error {
	it, err := e.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer it.Close()

	if it.Last() && it.Valid() && len(it.Key()) == 8 {
		e.next = binary.BigEndian.Uint64(it.Key()) + 1
	}
	return it.Error()
}

// WriteMany appends one data entry per block in a single unsynced batch.
func (e *Engine) WriteMany(txID uint64, blocks [][]byte) error {
	entries := make([]entry.Entry, 0, len(blocks))
	for _, block := range blocks {
		entries = append(entries, entry.Data(txID, block))
	}
	return e.append(entries, pebble.NoSync)
}

// Commit appends a commit entry with a durable barrier.
func (e *Engine) Commit(txID, seq uint64) error {
	return e.append([]entry.Entry{entry.Commit(txID, seq)}, pebble.Sync)
}

// Abort appends an abort entry with a durable barrier.
func (e *Engine) Abort(txID uint64) error {
	return e.append([]entry.Entry{entry.Abort(txID)}, pebble.Sync)
}

// Reset appends the logical-truncation sentinel with a durable barrier.
func (e *Engine) Reset() error {
	return e.append([]entry.Entry{entry.Reset()}, pebble.Sync)
}

func (e *Engine) append(entries []entry.Entry, opt *pebble.WriteOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.db.NewBatch()
	defer batch.Close()

	for _, ent := range entries {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, e.next)
		e.next++

		if err := batch.Set(key, []byte(entry.Encode(ent)), nil); err != nil {
			return fmt.Errorf("failed to stage %s entry: %w", ent.Kind, err)
		}
	}

	if err := batch.Commit(opt); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// All returns a lazy, restartable scan of every entry in key order. Values
// that fail to decode are skipped, matching the file engines' crash
// tolerance.
func (e *Engine) All() iter.Seq2[entry.Entry, error] {
	return func(yield func(entry.Entry, error) bool) {
		it, err := e.db.NewIter(nil)
		if err != nil {
			yield(entry.Entry{}, fmt.Errorf("failed to iterate entries: %w", err))
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			ent, ok := entry.Decode(string(it.Value()))
			if !ok {
				continue
			}
			if !yield(ent, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(entry.Entry{}, fmt.Errorf("failed to iterate entries: %w", err))
		}
	}
}

// Exists reports whether the engine holds any entries.
func (e *Engine) Exists() bool {
	it, err := e.db.NewIter(nil)
	if err != nil {
		return false
	}
	defer it.Close()
	return it.First()
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.db.Close()
}
