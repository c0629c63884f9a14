// Package tlog implements an embeddable append-only transactional log.
// Callers group writes into transactions that are atomically committed or
// aborted; replaying the log reconstructs exactly the committed
// transactions, in commit order, across process restarts.
//
// The log is stored as newline-delimited textual entries (see the entry
// package) on top of a pluggable storage engine: a single append-only file
// by default, a size-rotated sequence of files (segmented package), or a
// pebble database (storage/pebble package).
//
// Basic usage:
//
//	log := tlog.New("orders.log")
//	defer log.Close()
//
//	tx, err := log.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := tx.Write([]byte("order created")); err != nil {
//	    return err
//	}
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
//	for block, err := range log.Read(0) {
//	    if err != nil {
//	        return err
//	    }
//	    // Process block.
//	}
package tlog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/pedromsilvapt/data-transactional-log/entry"
	"github.com/pedromsilvapt/data-transactional-log/segment"
)

// Log is the transactional log controller. It owns a storage engine,
// allocates transaction ids and commit sequence numbers, and reconstructs
// committed transactions from the raw entry stream.
type Log struct {
	engine Engine
	logger *slog.Logger

	recovered  chan struct{}
	recoverErr error

	mu         sync.Mutex
	txCounter  uint64
	seqCounter uint64
	lastRead   *Tx
	lastReadID uint64
}

// New creates a transactional log over a single-segment engine backed by
// the file at path, unless WithEngine supplies a different backend.
//
// Construction immediately starts an asynchronous recovery scan of the
// existing log; operations that allocate transaction ids wait for it to
// finish, so no id or commit sequence ever collides with history.
func New(path string, opts ...Option) *Log {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = segment.New(path, segment.Options{KeepInMemory: o.keepInMemory})
	}

	l := &Log{
		engine:    o.engine,
		logger:    o.logger,
		recovered: make(chan struct{}),
	}
	go l.recover()

	return l
}

// recover replays the whole log once, seeding the transaction and commit
// counters past anything used before a restart.
func (l *Log) recover() {
	defer close(l.recovered)

	var maxTxID, maxSeq uint64
	for e, err := range l.engine.All() {
		if err != nil {
			l.recoverErr = fmt.Errorf("tlog: recovery scan failed: %w", err)
			return
		}
		switch e.Kind {
		case entry.KindData, entry.KindAbort:
			maxTxID = max(maxTxID, e.TxID)
		case entry.KindCommit:
			maxSeq = max(maxSeq, e.Seq)
		}
	}

	l.mu.Lock()
	l.txCounter = maxTxID
	l.seqCounter = maxSeq
	l.mu.Unlock()

	l.logger.Debug("recovery scan complete",
		"last_transaction_id", maxTxID,
		"last_commit_seq", maxSeq)
}

// awaitRecovery blocks until the recovery scan finishes or ctx is done.
func (l *Log) awaitRecovery(ctx context.Context) error {
	select {
	case <-l.recovered:
		return l.recoverErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Begin opens a new transaction with an id strictly greater than any used
// before, including across restarts. The caller is responsible for
// terminating it with Commit or Abort.
func (l *Log) Begin(ctx context.Context) (*Tx, error) {
	if err := l.awaitRecovery(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.txCounter++
	id := l.txCounter
	l.mu.Unlock()

	return &Tx{id: id, state: StateOpen, log: l}, nil
}

// nextCommitSeq allocates the next commit sequence number. Sequences are
// assigned only at commit time and are independent of transaction id order.
func (l *Log) nextCommitSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seqCounter++
	return l.seqCounter
}

// Write commits a single block as its own transaction.
func (l *Log) Write(ctx context.Context, block []byte) (*Tx, error) {
	return l.WriteTransaction(ctx, slices.Values([][]byte{block}))
}

// WriteTransaction opens a transaction, writes the blocks one at a time,
// and commits. If any step fails the transaction is aborted and the
// original error is returned, so no transaction is ever left dangling
// through this path.
func (l *Log) WriteTransaction(ctx context.Context, blocks iter.Seq[[]byte]) (*Tx, error) {
	tx, err := l.Begin(ctx)
	if err != nil {
		return nil, err
	}

	for block := range blocks {
		if err := tx.Write(block); err != nil {
			return nil, l.abortOn(tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, l.abortOn(tx, err)
	}
	return tx, nil
}

// abortOn aborts the transaction and returns the original error. The abort
// is best effort: the failure the caller needs to see is err.
func (l *Log) abortOn(tx *Tx, err error) error {
	if abortErr := tx.Abort(); abortErr != nil {
		l.logger.Warn("failed to abort transaction after error",
			"transaction_id", tx.ID(),
			"error", abortErr)
	}
	return err
}

// Transactions starts a fresh, restartable scan of the whole log and
// reconstructs committed transactions in commit order. Each reconstructed
// transaction carries its commit sequence number as identifier and exactly
// the blocks written before its commit, in write order.
//
// Aborted transactions are never surfaced, uncommitted ones are treated as
// if aborted, and a reset entry hides everything recorded before it. Only
// transactions with a sequence number strictly greater than afterSeq are
// yielded; pass 0 for everything.
//
// As a side effect the last yielded transaction is recorded on the log (see
// LastTransactionRead); that bookkeeping is only meaningful while a single
// read is consumed at a time.
func (l *Log) Transactions(afterSeq uint64) iter.Seq2[*Tx, error] {
	return func(yield func(*Tx, error) bool) {
		open := make(map[uint64][][]byte)
		committed := make(map[uint64][][]byte)

		for e, err := range l.engine.All() {
			if err != nil {
				yield(nil, err)
				return
			}

			switch e.Kind {
			case entry.KindData:
				open[e.TxID] = append(open[e.TxID], e.Block)
			case entry.KindAbort:
				delete(open, e.TxID)
			case entry.KindCommit:
				blocks := open[e.TxID]
				delete(open, e.TxID)
				committed[e.TxID] = blocks

				if e.Seq <= afterSeq {
					continue
				}
				tx := &Tx{id: e.Seq, blocks: blocks, state: StateCommitted}
				l.recordLastRead(tx)
				if !yield(tx, nil) {
					return
				}
			case entry.KindReset:
				clear(open)
				clear(committed)
			}
		}
	}
}

// Read flattens Transactions into a lazy sequence of raw blocks, preserving
// commit order and, within each transaction, write order.
func (l *Log) Read(afterSeq uint64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for tx, err := range l.Transactions(afterSeq) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, block := range tx.blocks {
				if !yield(block, nil) {
					return
				}
			}
		}
	}
}

func (l *Log) recordLastRead(tx *Tx) {
	l.mu.Lock()
	l.lastRead = tx
	l.lastReadID = tx.id
	l.mu.Unlock()
}

// LastTransactionRead returns the most recently reconstructed transaction.
// Process-local cache, only valid while a single read is consumed at a time.
func (l *Log) LastTransactionRead() *Tx {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRead
}

// LastTransactionIDRead returns the identifier of the most recently
// reconstructed transaction, which is its commit sequence number.
func (l *Log) LastTransactionIDRead() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastReadID
}

// Reset appends the logical-truncation sentinel: scans that pass through it
// will not surface transactions recorded earlier. Counters are unaffected,
// so ids and sequences stay monotonic across resets.
func (l *Log) Reset() error {
	return l.engine.Reset()
}

// Close waits for the recovery scan to settle and releases the engine.
func (l *Log) Close() error {
	<-l.recovered
	return l.engine.Close()
}
