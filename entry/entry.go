package entry

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

// MaxLineSize is the largest encoded entry Seq will scan. Lines beyond this
// size abort the scan with bufio.ErrTooLong.
const MaxLineSize = 16 * 1024 * 1024

// Kind identifies one of the four entry variants.
type Kind uint8

const (
	KindData Kind = iota + 1
	KindCommit
	KindAbort
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindCommit:
		return "commit"
	case KindAbort:
		return "abort"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Entry is a single record of the transactional log. Which fields are
// meaningful depends on Kind: TxID is set for data, commit and abort
// entries, Seq only for commits, Block only for data entries.
type Entry struct {
	Kind  Kind
	TxID  uint64
	Seq   uint64
	Block []byte
}

// Data returns an entry recording one block written by a transaction.
func Data(txID uint64, block []byte) Entry {
	return Entry{Kind: KindData, TxID: txID, Block: block}
}

// Commit returns an entry marking a transaction committed at the given
// commit sequence number.
func Commit(txID, seq uint64) Entry {
	return Entry{Kind: KindCommit, TxID: txID, Seq: seq}
}

// Abort returns an entry marking a transaction permanently discarded.
func Abort(txID uint64) Entry {
	return Entry{Kind: KindAbort, TxID: txID}
}

// Reset returns the sentinel entry that logically truncates all entries
// before it.
func Reset() Entry {
	return Entry{Kind: KindReset}
}

// Encode serializes an entry to a single line of text without the trailing
// newline. Encoding an entry with an unknown kind returns the empty string.
func Encode(e Entry) string {
	switch e.Kind {
	case KindData:
		return "data " + strconv.FormatUint(e.TxID, 10) + " " + strconv.Quote(string(e.Block))
	case KindCommit:
		return "commit " + strconv.FormatUint(e.TxID, 10) + " " + strconv.FormatUint(e.Seq, 10)
	case KindAbort:
		return "abort " + strconv.FormatUint(e.TxID, 10)
	case KindReset:
		return "reset"
	default:
		return ""
	}
}

// Write appends the encoded entry and a newline to w.
func Write(w io.Writer, e Entry) (int, error) {
	line := Encode(e)
	if line == "" {
		return 0, fmt.Errorf("entry: cannot encode unknown kind %d", e.Kind)
	}
	return io.WriteString(w, line+"\n")
}

// Decode parses a single line into an entry. It reports ok=false for any
// line that does not parse cleanly, including torn trailing lines left by a
// crash mid-append.
func Decode(line string) (Entry, bool) {
	op, rest, _ := strings.Cut(line, " ")
	switch op {
	case "reset":
		if rest != "" {
			return Entry{}, false
		}
		return Reset(), true
	case "abort":
		txID, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return Entry{}, false
		}
		return Abort(txID), true
	case "commit":
		idField, seqField, found := strings.Cut(rest, " ")
		if !found {
			return Entry{}, false
		}
		txID, err := strconv.ParseUint(idField, 10, 64)
		if err != nil {
			return Entry{}, false
		}
		seq, err := strconv.ParseUint(seqField, 10, 64)
		if err != nil {
			return Entry{}, false
		}
		return Commit(txID, seq), true
	case "data":
		idField, quoted, found := strings.Cut(rest, " ")
		if !found {
			return Entry{}, false
		}
		txID, err := strconv.ParseUint(idField, 10, 64)
		if err != nil {
			return Entry{}, false
		}
		block, err := strconv.Unquote(quoted)
		if err != nil {
			return Entry{}, false
		}
		return Data(txID, []byte(block)), true
	default:
		return Entry{}, false
	}
}

// Seq creates an iterator over the entries read from r, one line at a time.
// Lines that fail to decode are skipped. A read error ends the sequence
// with a final non-nil error.
func Seq(r io.Reader) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for sc.Scan() {
			e, ok := Decode(sc.Text())
			if !ok {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

// ReadEntries reads all decodable entries from r into a slice.
func ReadEntries(r io.Reader) ([]Entry, error) {
	entries := make([]Entry, 0, 1)
	for e, err := range Seq(r) {
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
