// Package entry implements the textual record format used by the
// transactional log. Every record is exactly one line of text, making log
// files human-inspectable with nothing more than a pager.
//
// There are four entry kinds:
//
//	data <txid> <quoted block>    one written block of an open transaction
//	commit <txid> <seq>           marks a transaction committed at sequence seq
//	abort <txid>                  marks a transaction discarded
//	reset                         logically truncates everything before it
//
// Block payloads are escaped with strconv.Quote, so arbitrary bytes
// (including newlines) round-trip through a single line.
//
// Decoding is deliberately forgiving: a line that fails to parse yields no
// entry instead of an error. A crash in the middle of an append leaves a
// torn trailing line, and dropping it silently is what lets replay recover
// everything written before it.
//
// Basic usage:
//
//	var buf bytes.Buffer
//	_, err := entry.Write(&buf, entry.Data(1, []byte("hello")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for e, err := range entry.Seq(&buf) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(e.Kind, e.TxID)
//	}
package entry
