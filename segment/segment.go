package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"sync"

	"github.com/pedromsilvapt/data-transactional-log/entry"
	"github.com/pedromsilvapt/data-transactional-log/replay"
)

// Options configures a single-segment log.
type Options struct {
	// KeepInMemory records the first full scan of the file and replays it
	// to later readers instead of re-reading the disk. The recording is
	// dropped by Close.
	KeepInMemory bool
}

// Log is an append-only file of log entries. All mutating operations are
// mutually exclusive; reads run concurrently with writes but carry no
// read-your-writes guarantee.
type Log struct {
	path string
	keep bool

	// mu serializes all mutating operations so appended lines are never
	// interleaved or torn by concurrent callers.
	mu   sync.Mutex
	file *os.File

	cacheMu sync.Mutex
	cache   *replay.Buffer[entry.Entry, error]
}

// New creates a log backed by the file at path. The file is not touched
// until the first write.
func New(path string, opts Options) *Log {
	return &Log{path: path, keep: opts.KeepInMemory}
}

// Path returns the location of the backing file.
func (l *Log) Path() string {
	return l.path
}

// WriteMany appends one data entry per block, in order. The batch is not
// atomic: a crash partway through durably persists a prefix of the blocks,
// which is safe because a transaction without a commit entry is never
// reconstructed on replay.
func (l *Log) WriteMany(txID uint64, blocks [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}

	for _, block := range blocks {
		if _, err := entry.Write(f, entry.Data(txID, block)); err != nil {
			return fmt.Errorf("failed to write data entry for transaction %d: %w", txID, err)
		}
	}

	return nil
}

// Commit appends a commit entry and forces a durable barrier.
func (l *Log) Commit(txID, seq uint64) error {
	return l.appendSynced(entry.Commit(txID, seq))
}

// Abort appends an abort entry and forces a durable barrier.
func (l *Log) Abort(txID uint64) error {
	return l.appendSynced(entry.Abort(txID))
}

// Reset appends the reset sentinel and forces a durable barrier. The bytes
// before it remain on disk; readers treat it as a logical truncation.
func (l *Log) Reset() error {
	return l.appendSynced(entry.Reset())
}

func (l *Log) appendSynced(e entry.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}

	if _, err := entry.Write(f, e); err != nil {
		return fmt.Errorf("failed to write %s entry: %w", e.Kind, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", l.path, err)
	}

	return nil
}

// open lazily creates the append handle. Must be called with mu held.
func (l *Log) open() (*os.File, error) {
	if l.file != nil {
		return l.file, nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.path, err)
	}
	l.file = f

	return f, nil
}

// All returns a lazy, restartable sequence of every entry in the file,
// decoded in order. Undecodable lines are skipped. With KeepInMemory the
// underlying file is physically scanned at most once per segment lifetime.
func (l *Log) All() iter.Seq2[entry.Entry, error] {
	if !l.keep {
		return l.scan()
	}

	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	if l.cache == nil {
		l.cache = replay.New(l.scan())
	}
	return l.cache.All()
}

// scan returns a sequence that opens the file anew each time it is
// iterated. A missing file reads as an empty log.
func (l *Log) scan() iter.Seq2[entry.Entry, error] {
	return func(yield func(entry.Entry, error) bool) {
		f, err := os.Open(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(entry.Entry{}, fmt.Errorf("failed to open file %s: %w", l.path, err))
			return
		}
		defer f.Close()

		for e, err := range entry.Seq(f) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// Count reports the number of decodable entries currently stored.
func (l *Log) Count() (int, error) {
	var n int
	for _, err := range l.All() {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Exists reports whether a writer handle is open or the backing file is
// present on disk.
func (l *Log) Exists() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return true
	}
	_, err := os.Stat(l.path)
	return err == nil
}

// Close releases the writer handle and drops the in-memory recording.
// It is idempotent; the log may be written to again afterwards, reopening
// the file lazily.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cacheMu.Lock()
	if l.cache != nil {
		l.cache.Stop()
		l.cache = nil
	}
	l.cacheMu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", l.path, err)
	}
	return nil
}
