package replay

import (
	"iter"
	"sync"
)

// Buffer records the pairs produced by a source sequence and replays them
// to any number of consumers. The source is iterated at most once.
type Buffer[K, V any] struct {
	mu    sync.Mutex
	next  func() (K, V, bool)
	stop  func()
	pairs []pair[K, V]
	done  bool
}

type pair[K, V any] struct {
	k K
	v V
}

// New creates a buffer over src. The source is not touched until the first
// consumer asks for an item.
func New[K, V any](src iter.Seq2[K, V]) *Buffer[K, V] {
	next, stop := iter.Pull2(src)
	return &Buffer[K, V]{next: next, stop: stop}
}

// All returns an iterator that replays every recorded pair and then keeps
// pulling from the source until it is exhausted. Each call starts from the
// beginning of the recording.
func (b *Buffer[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := 0; ; i++ {
			k, v, ok := b.at(i)
			if !ok {
				return
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// at returns the i-th pair, pulling from the source as needed.
func (b *Buffer[K, V]) at(i int) (K, V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.pairs) <= i && !b.done {
		k, v, ok := b.next()
		if !ok {
			b.done = true
			b.stop()
			break
		}
		b.pairs = append(b.pairs, pair[K, V]{k: k, v: v})
	}

	if i < len(b.pairs) {
		p := b.pairs[i]
		return p.k, p.v, true
	}

	var k K
	var v V
	return k, v, false
}

// Len reports how many pairs have been recorded so far.
func (b *Buffer[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pairs)
}

// Stop releases the underlying source. Pairs recorded before Stop remain
// replayable; nothing further is pulled.
func (b *Buffer[K, V]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true
	b.stop()
}
