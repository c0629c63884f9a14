package replay_test

import (
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedromsilvapt/data-transactional-log/replay"
)

// countingSource yields n pairs and counts how many times it is iterated.
type countingSource struct {
	n      int
	starts int
}

func (s *countingSource) seq() iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		s.starts++
		for i := 0; i < s.n; i++ {
			if !yield(i, nil) {
				return
			}
		}
	}
}

func collect(seq iter.Seq2[int, error]) []int {
	var out []int
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestBuffer_ReplaysWithoutRerunningSource(t *testing.T) {
	src := &countingSource{n: 3}
	buf := replay.New(src.seq())

	assert.Equal(t, []int{0, 1, 2}, collect(buf.All()))
	assert.Equal(t, []int{0, 1, 2}, collect(buf.All()))
	assert.Equal(t, 1, src.starts, "source should be iterated at most once")
}

func TestBuffer_LazyUntilFirstRead(t *testing.T) {
	src := &countingSource{n: 3}
	buf := replay.New(src.seq())

	assert.Equal(t, 0, src.starts)
	assert.Equal(t, 0, buf.Len())

	collect(buf.All())
	assert.Equal(t, 1, src.starts)
	assert.Equal(t, 3, buf.Len())
}

func TestBuffer_PartialThenFullRead(t *testing.T) {
	src := &countingSource{n: 5}
	buf := replay.New(src.seq())

	var first []int
	for v := range buf.All() {
		first = append(first, v)
		if len(first) == 2 {
			break
		}
	}
	require.Equal(t, []int{0, 1}, first)
	assert.Equal(t, 2, buf.Len())

	// A later reader picks up the recorded prefix and drives the rest.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, collect(buf.All()))
	assert.Equal(t, 1, src.starts)
}

func TestBuffer_StopKeepsRecordedPrefix(t *testing.T) {
	src := &countingSource{n: 5}
	buf := replay.New(src.seq())

	for v := range buf.All() {
		if v == 1 {
			break
		}
	}
	buf.Stop()

	assert.Equal(t, []int{0, 1}, collect(buf.All()))
}

func TestBuffer_StopBeforeReadIsEmpty(t *testing.T) {
	src := &countingSource{n: 5}
	buf := replay.New(src.seq())

	buf.Stop()
	buf.Stop() // idempotent

	assert.Empty(t, collect(buf.All()))
	assert.Equal(t, 0, src.starts)
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	src := &countingSource{n: 100}
	buf := replay.New(src.seq())

	const readers = 8
	var wg sync.WaitGroup
	wg.Add(readers)

	results := make([][]int, readers)
	for i := 0; i < readers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = collect(buf.All())
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Len(t, got, 100)
		for i, v := range got {
			assert.Equal(t, i, v)
		}
	}
	assert.Equal(t, 1, src.starts)
}
