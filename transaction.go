package tlog

import (
	"errors"
	"fmt"
)

// ErrInvalidWrite is returned when an operation is invoked on a transaction
// that is no longer open. The transaction remains inspectable; it just
// accepts no further writes.
var ErrInvalidWrite = errors.New("tlog: transaction is not open")

// State is the lifecycle state of a transaction.
type State uint8

const (
	StateOpen State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Tx is a handle to a single transaction. It buffers written blocks in
// memory and delegates durable writes to the storage engine of the log that
// created it. Once committed or aborted it becomes inert.
//
// A Tx is not safe for concurrent use; issue operations one at a time.
type Tx struct {
	id     uint64
	blocks [][]byte
	state  State
	log    *Log
}

// ID returns the transaction identifier. For transactions reconstructed by
// replay this is the commit sequence number, not the original id.
func (t *Tx) ID() uint64 {
	return t.id
}

// State returns the current lifecycle state.
func (t *Tx) State() State {
	return t.state
}

// Blocks returns the blocks written so far, in write order. The returned
// slice is shared; treat it as read-only.
func (t *Tx) Blocks() [][]byte {
	return t.blocks
}

// Write appends a single block to the transaction.
func (t *Tx) Write(block []byte) error {
	return t.WriteMany([][]byte{block})
}

// WriteMany appends blocks to the transaction in one engine call. The
// blocks become durable only once Commit succeeds.
func (t *Tx) WriteMany(blocks [][]byte) error {
	if t.state != StateOpen {
		return fmt.Errorf("write to %s transaction %d: %w", t.state, t.id, ErrInvalidWrite)
	}

	if err := t.log.engine.WriteMany(t.id, blocks); err != nil {
		return fmt.Errorf("failed to write blocks for transaction %d: %w", t.id, err)
	}

	t.blocks = append(t.blocks, blocks...)
	return nil
}

// Commit durably marks the transaction committed, assigning it the next
// commit sequence number. Every block written before the commit is durable
// once Commit returns.
func (t *Tx) Commit() error {
	if t.state != StateOpen {
		return fmt.Errorf("commit %s transaction %d: %w", t.state, t.id, ErrInvalidWrite)
	}

	seq := t.log.nextCommitSeq()
	if err := t.log.engine.Commit(t.id, seq); err != nil {
		return fmt.Errorf("failed to commit transaction %d: %w", t.id, err)
	}

	t.state = StateCommitted
	t.log = nil
	return nil
}

// Abort durably marks the transaction discarded. Replay will never surface
// it, regardless of how many blocks were written before.
func (t *Tx) Abort() error {
	if t.state != StateOpen {
		return fmt.Errorf("abort %s transaction %d: %w", t.state, t.id, ErrInvalidWrite)
	}

	if err := t.log.engine.Abort(t.id); err != nil {
		return fmt.Errorf("failed to abort transaction %d: %w", t.id, err)
	}

	t.state = StateAborted
	t.log = nil
	return nil
}
