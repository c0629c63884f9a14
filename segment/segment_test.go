package segment_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedromsilvapt/data-transactional-log/entry"
	"github.com/pedromsilvapt/data-transactional-log/segment"
)

func newLog(t *testing.T, opts segment.Options) *segment.Log {
	t.Helper()
	l := segment.New(filepath.Join(t.TempDir(), "test.log"), opts)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readAll(t *testing.T, l *segment.Log) []entry.Entry {
	t.Helper()
	var entries []entry.Entry
	for e, err := range l.All() {
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return entries
}

func TestLog_WriteAndRead(t *testing.T) {
	l := newLog(t, segment.Options{})

	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a"), []byte("b")}))
	require.NoError(t, l.Commit(1, 1))
	require.NoError(t, l.WriteMany(2, [][]byte{[]byte("c")}))
	require.NoError(t, l.Abort(2))
	require.NoError(t, l.Reset())

	entries := readAll(t, l)
	require.Len(t, entries, 5)
	assert.Equal(t, entry.Data(1, []byte("a")), entries[0])
	assert.Equal(t, entry.Data(1, []byte("b")), entries[1])
	assert.Equal(t, entry.Commit(1, 1), entries[2])
	assert.Equal(t, entry.Data(2, []byte("c")), entries[3])
	assert.Equal(t, entry.Abort(2), entries[4])
}

func TestLog_ReadMissingFile(t *testing.T) {
	l := newLog(t, segment.Options{})
	assert.Empty(t, readAll(t, l))
	assert.False(t, l.Exists())
}

func TestLog_Exists(t *testing.T) {
	l := newLog(t, segment.Options{})
	assert.False(t, l.Exists())

	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a")}))
	assert.True(t, l.Exists())

	// Still true after closing the writer handle: the file is on disk.
	require.NoError(t, l.Close())
	assert.True(t, l.Exists())
}

func TestLog_CloseIdempotent(t *testing.T) {
	l := newLog(t, segment.Options{})
	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a")}))

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	// Writing again lazily reopens the file.
	require.NoError(t, l.WriteMany(2, [][]byte{[]byte("b")}))
	assert.Len(t, readAll(t, l), 2)
}

func TestLog_Count(t *testing.T) {
	l := newLog(t, segment.Options{})
	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a"), []byte("b"), []byte("c")}))
	require.NoError(t, l.Commit(1, 1))

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestLog_TornTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.log")
	l := segment.New(path, segment.Options{})
	defer l.Close()

	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a")}))
	require.NoError(t, l.Commit(1, 1))
	require.NoError(t, l.Close())

	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`data 2 "tor`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries := readAll(t, l)
	require.Len(t, entries, 2)
	assert.Equal(t, entry.KindCommit, entries[1].Kind)
}

func TestLog_KeepInMemory(t *testing.T) {
	l := newLog(t, segment.Options{KeepInMemory: true})

	require.NoError(t, l.WriteMany(1, [][]byte{[]byte("a")}))
	require.NoError(t, l.Commit(1, 1))
	require.Len(t, readAll(t, l), 2)

	// Writes after a completed scan are invisible to the recording.
	require.NoError(t, l.WriteMany(2, [][]byte{[]byte("b")}))
	require.Len(t, readAll(t, l), 2)

	// Close drops the recording; a fresh scan sees everything.
	require.NoError(t, l.Close())
	require.Len(t, readAll(t, l), 3)
}

func TestLog_ConcurrentWritersNeverTearLines(t *testing.T) {
	l := newLog(t, segment.Options{})

	const writers = 10
	const blocksPerWriter = 20

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			blocks := make([][]byte, 0, blocksPerWriter)
			for j := 0; j < blocksPerWriter; j++ {
				blocks = append(blocks, []byte{byte(i), byte(j)})
			}
			assert.NoError(t, l.WriteMany(uint64(i+1), blocks))
		}(i)
	}
	wg.Wait()

	// Every line must decode: serialized appends never interleave.
	entries := readAll(t, l)
	assert.Len(t, entries, writers*blocksPerWriter)
	for _, e := range entries {
		assert.Equal(t, entry.KindData, e.Kind)
	}
}
