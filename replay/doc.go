// Package replay implements a recording buffer for iterator sequences. It
// wraps an iter.Seq2 source and memoizes every pair the source produces, so
// any number of later consumers can replay the sequence without the source
// being run again.
//
// The source is pulled lazily: items are only consumed when a reader asks
// for a position past what has been recorded so far, and the source is
// iterated at most once over the lifetime of the buffer.
//
// Basic usage:
//
//	buf := replay.New(expensiveScan())
//
//	// First reader drives the underlying scan.
//	for v, err := range buf.All() {
//	    // ...
//	}
//
//	// Later readers replay the recorded items for free.
//	for v, err := range buf.All() {
//	    // ...
//	}
//
//	// Release the source once the buffer is no longer needed.
//	buf.Stop()
//
// Readers may overlap; access to the underlying source is serialized
// internally. After Stop, readers still observe every pair recorded before
// the source was released.
package replay
