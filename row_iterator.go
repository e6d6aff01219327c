package pgsync

// RowIterator is a finite, single-pass sequence of rows returned by
// QueryRaw. Per the spec's deliberate simplification, rows are collected
// eagerly in memory before the iterator is returned — Next simply drains
// that buffer, so a single call cannot stream a result set larger than
// memory, but the iterator never needs to own the socket.
type RowIterator struct {
	rows []*Row
	pos  int
	err  error
}

func newRowIterator(rows []*Row, err error) *RowIterator {
	return &RowIterator{rows: rows, err: err}
}

// Next advances to the next row, returning ok=false once exhausted.
func (it *RowIterator) Next() (*Row, bool) {
	if it.pos >= len(it.rows) {
		return nil, false
	}
	r := it.rows[it.pos]
	it.pos++
	return r, true
}

// Err returns any error encountered producing the buffered rows.
func (it *RowIterator) Err() error { return it.err }
