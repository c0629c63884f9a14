// Package segmented implements a storage engine that rotates the
// transactional log across a sequence of segment files under one logical
// name. Segment files are named <name>-<index>.log with the index starting
// at 0 and incrementing on every rotation.
//
// A per-segment counter decides when to rotate. The counter tracks write
// batches, not raw lines: a WriteMany batch that fits entirely in the
// active segment counts as one entry, while a batch split across segments
// counts one per block placed in each segment. Commit, abort and reset
// entries never increment the counter but still trigger the rotation check.
//
// Reads concatenate all segments in ascending index order. Only one segment
// file handle is open at a time while a scan advances, so reading a long
// log keeps file handle usage bounded.
//
// Basic usage:
//
//	log, err := segmented.New(dir, "orders", segmented.Options{
//	    EntriesPerFile: 1000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	if err := log.WriteMany(1, blocks); err != nil {
//	    return err
//	}
//	if err := log.Commit(1, 1); err != nil {
//	    return err
//	}
package segmented
