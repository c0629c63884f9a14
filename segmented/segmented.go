package segmented

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/pedromsilvapt/data-transactional-log/entry"
	"github.com/pedromsilvapt/data-transactional-log/segment"
)

// Ext is the extension shared by all segment files.
const Ext = ".log"

var ErrInvalidEntriesPerFile = errors.New("segmented: entries per file must be greater than 0")

// Options configures a segmented log.
type Options struct {
	// EntriesPerFile is the rotation threshold of the per-segment counter.
	EntriesPerFile int
	// KeepInMemory is forwarded to every segment; each one records its
	// first full scan and replays it to later readers.
	KeepInMemory bool
}

// Log rotates writes across an ordered sequence of single-segment logs and
// composes reads over all of them.
type Log struct {
	dir  string
	name string
	opts Options

	mu       sync.Mutex
	segments map[int]*segment.Log
	indexes  *btree.BTreeG[int]
	index    int
	count    int
}

// New creates a segmented log under dir with the given logical name. The
// directory is scanned for existing segments: appending continues on the
// highest index found unless that segment already holds at least
// EntriesPerFile entries, in which case writing starts on a fresh segment.
func New(dir, name string, opts Options) (*Log, error) {
	if opts.EntriesPerFile <= 0 {
		return nil, ErrInvalidEntriesPerFile
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	l := &Log{
		dir:      dir,
		name:     name,
		opts:     opts,
		segments: make(map[int]*segment.Log),
		indexes: btree.NewG[int](2, func(a, b int) bool {
			return a < b
		}),
	}

	if err := l.scanExisting(); err != nil {
		return nil, err
	}

	return l, nil
}

// scanExisting discovers segment files left by a previous run and positions
// the active index and counter after them.
func (l *Log) scanExisting() error {
	files, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", l.dir, err)
	}

	prefix := l.name + "-"
	maxIndex := -1
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Ext) {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), Ext))
		if err != nil || index < 0 {
			continue
		}
		l.indexes.ReplaceOrInsert(index)
		if index > maxIndex {
			maxIndex = index
		}
	}

	if maxIndex < 0 {
		return nil
	}

	count, err := l.segmentAt(maxIndex).Count()
	if err != nil {
		return fmt.Errorf("failed to count entries of segment %d: %w", maxIndex, err)
	}

	if count >= l.opts.EntriesPerFile {
		l.index = maxIndex + 1
		l.count = 0
	} else {
		l.index = maxIndex
		l.count = count
	}

	return nil
}

// segmentAt returns the engine for the given index, creating it on first
// use. Must be called with mu held (or before the log is shared).
func (l *Log) segmentAt(index int) *segment.Log {
	seg, ok := l.segments[index]
	if !ok {
		seg = segment.New(l.filePath(index), segment.Options{KeepInMemory: l.opts.KeepInMemory})
		l.segments[index] = seg
		l.indexes.ReplaceOrInsert(index)
	}
	return seg
}

func (l *Log) filePath(index int) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%d%s", l.name, index, Ext))
}

// WriteMany appends one data entry per block. A batch larger than the
// remaining capacity of the active segment is split: as many blocks as fit
// are written, the log rotates, and the remainder continues in the next
// segment until the whole batch is placed.
func (l *Log) WriteMany(txID uint64, blocks [][]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(blocks) > 0 {
		room := l.opts.EntriesPerFile - l.count
		active := l.segmentAt(l.index)

		if len(blocks) <= room {
			if err := active.WriteMany(txID, blocks); err != nil {
				return err
			}
			// A batch that fits counts as a single entry; split batches
			// below count one per block placed.
			l.count++
			blocks = nil
		} else {
			if err := active.WriteMany(txID, blocks[:room]); err != nil {
				return err
			}
			l.count += room
			blocks = blocks[room:]
		}

		if err := l.rotateIfFull(); err != nil {
			return err
		}
	}

	return nil
}

// Commit appends a commit entry to the active segment with a durable
// barrier, rotating afterwards if the segment is full.
func (l *Log) Commit(txID, seq uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.segmentAt(l.index).Commit(txID, seq); err != nil {
		return err
	}
	return l.rotateIfFull()
}

// Abort appends an abort entry to the active segment with a durable
// barrier, rotating afterwards if the segment is full.
func (l *Log) Abort(txID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.segmentAt(l.index).Abort(txID); err != nil {
		return err
	}
	return l.rotateIfFull()
}

// Reset forwards the reset sentinel to the active segment with a durable
// barrier, rotating afterwards if the segment is full.
func (l *Log) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.segmentAt(l.index).Reset(); err != nil {
		return err
	}
	return l.rotateIfFull()
}

// rotateIfFull closes the active segment and moves to the next index when
// the counter reaches the threshold. Must be called with mu held.
func (l *Log) rotateIfFull() error {
	if l.count < l.opts.EntriesPerFile {
		return nil
	}

	if seg, ok := l.segments[l.index]; ok {
		if err := seg.Close(); err != nil {
			return err
		}
	}

	l.index++
	l.count = 0
	return nil
}

// All returns a lazy sequence over every segment in ascending index order,
// concatenating each segment's entries. Segments are scanned one at a time;
// each per-segment scan releases its file handle when it finishes.
func (l *Log) All() iter.Seq2[entry.Entry, error] {
	return func(yield func(entry.Entry, error) bool) {
		for _, seg := range l.orderedSegments() {
			for e, err := range seg.All() {
				if !yield(e, err) {
					return
				}
			}
		}
	}
}

func (l *Log) orderedSegments() []*segment.Log {
	l.mu.Lock()
	defer l.mu.Unlock()

	segments := make([]*segment.Log, 0, l.indexes.Len())
	l.indexes.Ascend(func(index int) bool {
		segments = append(segments, l.segmentAt(index))
		return true
	})
	return segments
}

// Exists reports whether any segment file is present.
func (l *Log) Exists() bool {
	for _, seg := range l.orderedSegments() {
		if seg.Exists() {
			return true
		}
	}
	return false
}

// Close closes every segment handle and resets index and counter tracking
// to their initial values. No files are deleted.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, seg := range l.segments {
		if err := seg.Close(); err != nil {
			return err
		}
	}

	l.segments = make(map[int]*segment.Log)
	l.indexes.Clear(false)
	l.index = 0
	l.count = 0
	return nil
}
