package pgsync

import (
	"context"
	"fmt"
	"time"

	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/internal/wire"
)

// BatchExecute runs sql through the simple-query sub-protocol, which
// allows the server to execute a semicolon-separated script of multiple
// statements in one round trip. The resync invariant applies across the
// whole script: one error aborts the remaining statements and the
// connection is left ready for the next call.
func (c *Connection) BatchExecute(ctx context.Context, sql string) error {
	defer c.observe("batch_execute", time.Now())
	if err := c.enterReady(); err != nil {
		return err
	}
	defer func() {
		if c.phase == phaseInQuery {
			c.phase = phaseReady
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := c.runSimple(sql)
	return err
}

// runSimple sends a simple-query message and drains the response through
// ReadyForQuery, tolerating any interleaving of RowDescription/DataRow/
// CommandComplete/EmptyQueryResponse — the shape a multi-statement script
// produces. It is also used by Transaction's BEGIN/COMMIT/ROLLBACK.
func (c *Connection) runSimple(sql string) (int64, error) {
	c.wire.WriteQuery(sql)
	if err := c.wire.Flush(); err != nil {
		c.phase = phaseBroken
		return 0, err
	}

	var rowsAffected int64
	var queryErr error
	for {
		msg, err := c.wire.ReadBackend()
		if err != nil {
			c.phase = phaseBroken
			return 0, err
		}
		switch m := msg.(type) {
		case wire.RowDescription, wire.DataRow:
			// Result rows from a SELECT in the script; BatchExecute only
			// reports affected-row counts, so these are discarded.
		case wire.CommandComplete:
			rowsAffected = parseCommandTag(m.Tag)
		case wire.EmptyQueryResponse:
			rowsAffected = 0
		case wire.ReadyForQuery:
			return rowsAffected, queryErr
		case wire.ErrorResponse:
			if queryErr == nil {
				queryErr = dbErrorFromWire(m)
			}
		case wire.NoticeResponse:
		default:
			c.phase = phaseBroken
			return 0, &pgerr.ProtocolError{Reason: fmt.Sprintf("unexpected message during simple query: %T", msg)}
		}
	}
}
