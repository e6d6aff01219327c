package pgsync

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nullbound/pgsync/internal/wiretest"
	"github.com/nullbound/pgsync/pgtype"
)

func newTestConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	client, server := wiretest.Pipe(t)
	return &Connection{wire: client, phase: phaseReady, params: map[string]string{}}, server
}

// drainFrontend reads and discards n frontend messages, returning their
// tags in order (the tests assert only on message count/shape, not raw
// bytes, since frontend.go's encoders are exercised elsewhere).
func drainFrontend(server net.Conn, n int) ([]byte, error) {
	tags := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		tag, _, err := wiretest.ReadMessage(server)
		if err != nil {
			return tags, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func TestQueryReturnsDecodedRows(t *testing.T) {
	c, server := newTestConnection(t)
	errCh := make(chan error, 1)

	go func() {
		errCh <- func() error {
			if _, err := drainFrontend(server, 3); err != nil { // Parse, Describe, Sync
				return err
			}
			tag, body := wiretest.ParseComplete()
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.ParameterDescription()
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.RowDescription(
				wiretest.Field{Name: "id", TypeOID: pgtype.OIDInt4},
				wiretest.Field{Name: "name", TypeOID: pgtype.OIDText},
			)
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.ReadyForQuery('I')
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}

			if _, err := drainFrontend(server, 3); err != nil { // Bind, Execute, Sync
				return err
			}
			tag, body = wiretest.BindComplete()
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			idRaw, _ := pgtype.Encode(pgtype.OIDInt4, int32(1))
			tag, body = wiretest.DataRow(idRaw, []byte("alice"))
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			idRaw2, _ := pgtype.Encode(pgtype.OIDInt4, int32(2))
			tag, body = wiretest.DataRow(idRaw2, []byte("bob"))
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.CommandComplete("SELECT 2")
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.ReadyForQuery('I')
			return wiretest.WriteMessage(server, tag, body)
		}()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := c.Query(ctx, "SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := Get[int32](rows[0], 0); got != 1 {
		t.Errorf("row 0 id = %v", got)
	}
	if got := Get[string](rows[1], 1); got != "bob" {
		t.Errorf("row 1 name = %v", got)
	}
	if c.phase != phaseReady {
		t.Errorf("expected phaseReady after Query, got %v", c.phase)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("fake server: %v", err)
	}
}

func TestExecuteReturnsRowsAffected(t *testing.T) {
	c, server := newTestConnection(t)
	errCh := make(chan error, 1)

	go func() {
		errCh <- func() error {
			if _, err := drainFrontend(server, 3); err != nil {
				return err
			}
			for _, m := range []func() (byte, []byte){
				wiretest.ParseComplete,
				func() (byte, []byte) { return wiretest.ParameterDescription() },
				wiretest.NoData,
				func() (byte, []byte) { return wiretest.ReadyForQuery('I') },
			} {
				tag, body := m()
				if err := wiretest.WriteMessage(server, tag, body); err != nil {
					return err
				}
			}

			if _, err := drainFrontend(server, 3); err != nil {
				return err
			}
			tag, body := wiretest.BindComplete()
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.CommandComplete("UPDATE 3")
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.ReadyForQuery('I')
			return wiretest.WriteMessage(server, tag, body)
		}()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := c.Execute(ctx, "UPDATE users SET active = false")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows affected, got %d", n)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("fake server: %v", err)
	}
}

func TestQueryOneEnforcesExactlyOneRow(t *testing.T) {
	run := func(t *testing.T, rowCount int) error {
		c, server := newTestConnection(t)
		errCh := make(chan error, 1)

		go func() {
			errCh <- func() error {
				if _, err := drainFrontend(server, 3); err != nil {
					return err
				}
				for _, m := range []func() (byte, []byte){
					wiretest.ParseComplete,
					func() (byte, []byte) { return wiretest.ParameterDescription() },
				} {
					tag, body := m()
					if err := wiretest.WriteMessage(server, tag, body); err != nil {
						return err
					}
				}
				tag, body := wiretest.RowDescription(wiretest.Field{Name: "id", TypeOID: pgtype.OIDInt4})
				if err := wiretest.WriteMessage(server, tag, body); err != nil {
					return err
				}
				tag, body = wiretest.ReadyForQuery('I')
				if err := wiretest.WriteMessage(server, tag, body); err != nil {
					return err
				}

				if _, err := drainFrontend(server, 3); err != nil {
					return err
				}
				tag, body = wiretest.BindComplete()
				if err := wiretest.WriteMessage(server, tag, body); err != nil {
					return err
				}
				for i := 0; i < rowCount; i++ {
					raw, _ := pgtype.Encode(pgtype.OIDInt4, int32(i))
					tag, body = wiretest.DataRow(raw)
					if err := wiretest.WriteMessage(server, tag, body); err != nil {
						return err
					}
				}
				tag, body = wiretest.CommandComplete("SELECT " + strconv.Itoa(rowCount))
				if err := wiretest.WriteMessage(server, tag, body); err != nil {
					return err
				}
				tag, body = wiretest.ReadyForQuery('I')
				return wiretest.WriteMessage(server, tag, body)
			}()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := c.QueryOne(ctx, "SELECT id FROM users LIMIT 2")
		if serverErr := <-errCh; serverErr != nil {
			t.Fatalf("fake server: %v", serverErr)
		}
		return err
	}

	t.Run("zero rows", func(t *testing.T) {
		if err := run(t, 0); err != ErrNoRows {
			t.Errorf("expected ErrNoRows, got %v", err)
		}
	})
	t.Run("two rows", func(t *testing.T) {
		if err := run(t, 2); err != ErrTooManyRows {
			t.Errorf("expected ErrTooManyRows, got %v", err)
		}
	})
}

func TestExtendedQueryErrorResyncsAndConnectionStaysUsable(t *testing.T) {
	c, server := newTestConnection(t)
	errCh := make(chan error, 1)

	go func() {
		errCh <- func() error {
			if _, err := drainFrontend(server, 3); err != nil {
				return err
			}
			tag, body := wiretest.ErrorResponse(
				[2]string{"S", "ERROR"},
				[2]string{"C", "42703"},
				[2]string{"M", "column \"nope\" does not exist"},
			)
			if err := wiretest.WriteMessage(server, tag, body); err != nil {
				return err
			}
			tag, body = wiretest.ReadyForQuery('I')
			return wiretest.WriteMessage(server, tag, body)
		}()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Query(ctx, "SELECT nope FROM users")
	if err == nil {
		t.Fatal("expected an error")
	}
	dbErr, ok := err.(*DbError)
	if !ok {
		t.Fatalf("expected *DbError, got %T", err)
	}
	if dbErr.Code != "42703" {
		t.Errorf("expected code 42703, got %q", dbErr.Code)
	}
	if c.phase != phaseReady {
		t.Fatalf("expected the connection to resync to phaseReady, got %v", c.phase)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("fake server: %v", err)
	}
}

func TestEncodeParamsRejectsNonEncodableValue(t *testing.T) {
	_, _, err := encodeParams([]uint32{pgtype.OIDInt4}, []any{"not an int"})
	if err == nil {
		t.Fatal("expected a SerializationError")
	}
	if _, ok := err.(*SerializationError); !ok {
		t.Fatalf("expected *SerializationError, got %T", err)
	}
}

// TestEncodeParamsFallsBackToText covers spec's binary-unless-unsupported
// format choice: a decimal string passed for an int4 parameter can't go
// through the binary encoder (it only widens Go integer types), but the
// OID's text encoder accepts it, so encodeParams must choose text (format
// 0) instead of failing outright.
func TestEncodeParamsFallsBackToText(t *testing.T) {
	bound, formats, err := encodeParams([]uint32{pgtype.OIDInt4}, []any{"19"})
	if err != nil {
		t.Fatalf("encodeParams: %v", err)
	}
	if formats[0] != 0 {
		t.Fatalf("expected text format (0), got %d", formats[0])
	}
	if string(bound[0].Bytes) != "19" {
		t.Errorf("got %q, want %q", bound[0].Bytes, "19")
	}
}

func TestEncodeParamsPrefersBinaryWhenAvailable(t *testing.T) {
	bound, formats, err := encodeParams([]uint32{pgtype.OIDInt4}, []any{int32(19)})
	if err != nil {
		t.Fatalf("encodeParams: %v", err)
	}
	if formats[0] != 1 {
		t.Fatalf("expected binary format (1), got %d", formats[0])
	}
	if len(bound[0].Bytes) != 4 {
		t.Errorf("expected a 4-byte binary int4, got %d bytes", len(bound[0].Bytes))
	}
}

func TestParseCommandTag(t *testing.T) {
	cases := map[string]int64{
		"SELECT 2":    2,
		"INSERT 0 3":  3,
		"UPDATE 5":    5,
		"DELETE 0":    0,
		"BEGIN":       0,
		"COMMIT":      0,
		"CREATE TABLE": 0,
	}
	for tag, want := range cases {
		if got := parseCommandTag(tag); got != want {
			t.Errorf("parseCommandTag(%q) = %d, want %d", tag, got, want)
		}
	}
}
