package pgsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/internal/wire"
	"github.com/nullbound/pgsync/pgtype"
)

// Execute runs sql as a parameterized statement via the extended-query
// sub-protocol and returns the number of rows it affected. No result rows
// are buffered.
func (c *Connection) Execute(ctx context.Context, sql string, params ...any) (int64, error) {
	defer c.observe("execute", time.Now())
	_, rowsAffected, err := c.runExtended(ctx, sql, params, false)
	return rowsAffected, err
}

// Query runs sql via the extended-query sub-protocol and buffers every
// returned row.
func (c *Connection) Query(ctx context.Context, sql string, params ...any) ([]*Row, error) {
	defer c.observe("query", time.Now())
	rows, _, err := c.runExtended(ctx, sql, params, true)
	return rows, err
}

// QueryOne runs sql and requires exactly one result row, returning
// ErrNoRows or ErrTooManyRows otherwise. The connection remains usable in
// either case.
func (c *Connection) QueryOne(ctx context.Context, sql string, params ...any) (*Row, error) {
	defer c.observe("query_one", time.Now())
	rows, err := c.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, pgerr.ErrNoRows
	case 1:
		return rows[0], nil
	default:
		return nil, pgerr.ErrTooManyRows
	}
}

// QueryRaw runs sql and returns an iterator over the result rows (already
// fully buffered — see RowIterator).
func (c *Connection) QueryRaw(ctx context.Context, sql string, params ...any) (*RowIterator, error) {
	defer c.observe("query_raw", time.Now())
	rows, _, err := c.runExtended(ctx, sql, params, true)
	if err != nil {
		return nil, err
	}
	return newRowIterator(rows, nil), nil
}

// runExtended drives the Parse/Describe/Bind/Execute/Sync cycle shared by
// every extended-query call, using an unnamed statement and unnamed
// portal — no prepared-statement caching. wantRows controls whether
// DataRows are buffered (Execute doesn't need them).
func (c *Connection) runExtended(ctx context.Context, sql string, params []any, wantRows bool) ([]*Row, int64, error) {
	if err := c.enterReady(); err != nil {
		return nil, 0, err
	}
	defer func() {
		if c.phase == phaseInQuery {
			c.phase = phaseReady
		}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}

	c.wire.WriteParse(sql, make([]uint32, len(params)))
	c.wire.WriteDescribe(wire.DescribeStatement)
	c.wire.WriteSync()
	if err := c.wire.Flush(); err != nil {
		c.phase = phaseBroken
		return nil, 0, err
	}

	paramOIDs, cols, err := c.collectDescribe()
	if err != nil {
		return nil, 0, err
	}
	if len(paramOIDs) != len(params) {
		panic(fmt.Sprintf("pgsync: query declares %d parameters, %d were supplied", len(paramOIDs), len(params)))
	}

	bound, formats, err := encodeParams(paramOIDs, params)
	if err != nil {
		return nil, 0, err
	}

	c.wire.WriteBind(formats, bound, []int16{1})
	c.wire.WriteExecute(0)
	c.wire.WriteSync()
	if err := c.wire.Flush(); err != nil {
		c.phase = phaseBroken
		return nil, 0, err
	}

	return c.collectExecute(cols, wantRows)
}

// collectDescribe reads ParseComplete/ParameterDescription/
// RowDescription-or-NoData through ReadyForQuery.
func (c *Connection) collectDescribe() (paramOIDs []uint32, cols []ColumnMetadata, err error) {
	for {
		msg, rErr := c.wire.ReadBackend()
		if rErr != nil {
			c.phase = phaseBroken
			return nil, nil, rErr
		}
		switch m := msg.(type) {
		case wire.ParseComplete:
		case wire.ParameterDescription:
			it := m.Parameters()
			for {
				oid, ok := it.Next()
				if !ok {
					break
				}
				paramOIDs = append(paramOIDs, oid)
			}
		case wire.RowDescription:
			it := m.Fields()
			for {
				f, ok := it.Next()
				if !ok {
					break
				}
				cols = append(cols, ColumnMetadata{Name: f.Name, OID: f.TypeOID})
			}
		case wire.NoData:
		case wire.ReadyForQuery:
			return paramOIDs, cols, nil
		case wire.ErrorResponse:
			dbErr := dbErrorFromWire(m)
			if drainErr := c.drainToReady(); drainErr != nil {
				return nil, nil, drainErr
			}
			return nil, nil, dbErr
		default:
			c.phase = phaseBroken
			return nil, nil, &pgerr.ProtocolError{Reason: fmt.Sprintf("unexpected message during describe: %T", msg)}
		}
	}
}

// collectExecute reads BindComplete/DataRow/CommandComplete/
// EmptyQueryResponse through ReadyForQuery.
func (c *Connection) collectExecute(cols []ColumnMetadata, wantRows bool) ([]*Row, int64, error) {
	var rows []*Row
	var rowsAffected int64
	for {
		msg, err := c.wire.ReadBackend()
		if err != nil {
			c.phase = phaseBroken
			return nil, 0, err
		}
		switch m := msg.(type) {
		case wire.BindComplete:
		case wire.DataRow:
			if wantRows {
				rows = append(rows, decodeDataRow(cols, m))
			}
		case wire.CommandComplete:
			rowsAffected = parseCommandTag(m.Tag)
		case wire.EmptyQueryResponse:
			rowsAffected = 0
		case wire.ReadyForQuery:
			return rows, rowsAffected, nil
		case wire.ErrorResponse:
			dbErr := dbErrorFromWire(m)
			if drainErr := c.drainToReady(); drainErr != nil {
				return nil, 0, drainErr
			}
			return nil, 0, dbErr
		default:
			c.phase = phaseBroken
			return nil, 0, &pgerr.ProtocolError{Reason: fmt.Sprintf("unexpected message during execute: %T", msg)}
		}
	}
}

// drainToReady consumes messages up to the next ReadyForQuery — the
// resync invariant that makes error handling safe to resume queries on
// the same connection.
func (c *Connection) drainToReady() error {
	n := 0
	for {
		msg, err := c.wire.ReadBackend()
		if err != nil {
			c.phase = phaseBroken
			return err
		}
		if _, ok := msg.(wire.ReadyForQuery); ok {
			if c.cfg.logger != nil {
				c.cfg.logger.Debug("resync after error", "messages_discarded", n)
			}
			return nil
		}
		n++
	}
}

func decodeDataRow(cols []ColumnMetadata, m wire.DataRow) *Row {
	values := make([]pgtype.Value, 0, len(cols))
	it := m.Ranges()
	buf := m.Buffer()
	i := 0
	for {
		rng, ok := it.Next()
		if !ok {
			break
		}
		oid := pgtype.OIDText
		if i < len(cols) {
			oid = cols[i].OID
		}
		if rng.Null {
			values = append(values, pgtype.Value{OID: oid, Null: true})
		} else {
			raw := append([]byte(nil), buf[rng.Start:rng.End]...)
			values = append(values, pgtype.Value{OID: oid, Raw: raw})
		}
		i++
	}
	return newRow(cols, values)
}

// parseCommandTag extracts the trailing integer from a CommandComplete tag
// (e.g. "INSERT 0 3" -> 3, "SELECT 2" -> 2); 0 if the last token doesn't
// parse as an integer.
func parseCommandTag(tag string) int64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// encodeParams tries binary format first for every parameter, since that's
// what this client's built-in codecs and any Encodable value prefer. A
// value its target OID can't place in binary falls back to that OID's text
// encoder, if one is registered; only when both fail does a value surface
// SerializationError.
func encodeParams(oids []uint32, params []any) ([]wire.BoundParam, []int16, error) {
	bound := make([]wire.BoundParam, len(params))
	formats := make([]int16, len(params))
	for i, p := range params {
		if p == nil {
			bound[i] = wire.BoundParam{IsNull: true}
			formats[i] = 1
			continue
		}
		if raw, ok := pgtype.Encode(oids[i], p); ok {
			bound[i] = wire.BoundParam{Bytes: raw}
			formats[i] = 1
			continue
		}
		raw, ok := pgtype.EncodeText(oids[i], p)
		if !ok {
			return nil, nil, &pgerr.SerializationError{OID: oids[i], Reason: fmt.Sprintf("cannot encode %T as OID %d in binary or text", p, oids[i])}
		}
		bound[i] = wire.BoundParam{Bytes: raw}
		formats[i] = 0
	}
	return bound, formats, nil
}
