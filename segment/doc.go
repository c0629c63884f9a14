// Package segment implements the single-file storage engine of the
// transactional log: an append-only file of textual entries with a
// serialized writer and lazy, restartable readers.
//
// Durability follows the write-ahead contract of the log: plain data
// entries are buffered appends, while commit, abort and reset entries force
// a synchronous flush before returning. Because the operating system
// persists appended bytes in call order, a synced commit implies the
// durability of every data entry written before it.
//
// Reads never block writes. A reader observes the file as it was when its
// scan started; with Options.KeepInMemory the first full scan is recorded
// and replayed to later readers without touching the disk again until the
// segment is closed.
//
// Basic usage:
//
//	log := segment.New("orders.log", segment.Options{})
//	defer log.Close()
//
//	if err := log.WriteMany(1, [][]byte{[]byte("a"), []byte("b")}); err != nil {
//	    return err
//	}
//	if err := log.Commit(1, 1); err != nil {
//	    return err
//	}
//
//	for e, err := range log.All() {
//	    if err != nil {
//	        return err
//	    }
//	    // Process entry.
//	}
package segment
