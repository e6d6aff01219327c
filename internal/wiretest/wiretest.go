// Package wiretest provides a net.Pipe()-based fake PostgreSQL backend for
// unit tests, standing in for a live server the way the teacher's
// proxy package tests a wire handler against a net.Pipe() pair instead of a
// real socket.
package wiretest

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/nullbound/pgsync/internal/wire"
)

// Pipe returns a *wire.Conn backed by one end of a net.Pipe(), plus the
// raw net.Conn for the other end so a test can act as the fake server:
// write canned backend messages and read the frontend messages the client
// under test sends. Both ends are closed when the test ends.
func Pipe(t *testing.T) (client *wire.Conn, server net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return wire.New(c), s
}

// WriteMessage frames and writes one tagged backend message to conn. tag=0
// writes an untagged frame (only the startup message on the frontend side
// needs that; kept here for symmetry with frontend.go's frame helper).
// Returns an error rather than failing a *testing.T directly, since the
// fake-server side of these tests runs in its own goroutine (t.Fatal is
// unsafe to call off the test goroutine) — callers collect it over a
// channel, the teacher's own pattern in its proxy tests.
func WriteMessage(conn net.Conn, tag byte, body []byte) error {
	length := uint32(4 + len(body))
	buf := make([]byte, 0, 5+len(body))
	if tag != 0 {
		buf = append(buf, tag)
	}
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], length)
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, body...)
	_, err := conn.Write(buf)
	return err
}

// ReadMessage reads one tagged frontend message off conn (the fake
// server's view of what the client under test sent).
func ReadMessage(conn net.Conn) (tag byte, body []byte, err error) {
	var header [5]byte
	if _, err := readFull(conn, header[:]); err != nil {
		return 0, nil, err
	}
	tag = header[0]
	length := binary.BigEndian.Uint32(header[1:5])
	body = make([]byte, length-4)
	if len(body) > 0 {
		if _, err := readFull(conn, body); err != nil {
			return 0, nil, err
		}
	}
	return tag, body, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func appendInt16(buf []byte, v int16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return append(buf, b[:]...)
}

// AuthenticationOk builds a tag='R', type=0 AuthenticationOk message body.
func AuthenticationOk() (tag byte, body []byte) {
	return 'R', appendInt32(nil, 0)
}

// AuthenticationCleartextPassword builds a tag='R', type=3 message body.
func AuthenticationCleartextPassword() (tag byte, body []byte) {
	return 'R', appendInt32(nil, 3)
}

// AuthenticationMD5Password builds a tag='R', type=5 message body carrying
// the given 4-byte salt.
func AuthenticationMD5Password(salt [4]byte) (tag byte, body []byte) {
	b := appendInt32(nil, 5)
	b = append(b, salt[:]...)
	return 'R', b
}

// ReadyForQuery builds a tag='Z' message with the given transaction status
// byte ('I' idle, 'T' in transaction, 'E' failed transaction).
func ReadyForQuery(status byte) (tag byte, body []byte) {
	return 'Z', []byte{status}
}

// BackendKeyData builds a tag='K' message.
func BackendKeyData(pid, key uint32) (tag byte, body []byte) {
	b := appendInt32(nil, int32(pid))
	b = appendInt32(b, int32(key))
	return 'K', b
}

// ParameterStatus builds a tag='S' message.
func ParameterStatus(name, value string) (tag byte, body []byte) {
	b := appendCString(nil, name)
	b = appendCString(b, value)
	return 'S', b
}

// ErrorFields builds the (code, value) pairs shared by ErrorResponse and
// NoticeResponse bodies, terminated by the required zero byte.
func ErrorFields(pairs ...[2]string) []byte {
	var b []byte
	for _, p := range pairs {
		b = append(b, p[0][0])
		b = appendCString(b, p[1])
	}
	return append(b, 0)
}

// ErrorResponse builds a tag='E' message from (code, value) pairs, e.g.
// ErrorResponse([2]string{"S", "ERROR"}, [2]string{"C", "42601"}, ...).
func ErrorResponse(pairs ...[2]string) (tag byte, body []byte) {
	return 'E', ErrorFields(pairs...)
}

// ParseComplete builds a tag='1' message.
func ParseComplete() (tag byte, body []byte) { return '1', nil }

// ParameterDescription builds a tag='t' message listing the inferred
// parameter type OIDs in order.
func ParameterDescription(oids ...uint32) (tag byte, body []byte) {
	b := appendInt16(nil, int16(len(oids)))
	for _, oid := range oids {
		b = appendInt32(b, int32(oid))
	}
	return 't', b
}

// NoData builds a tag='n' message.
func NoData() (tag byte, body []byte) { return 'n', nil }

// Field is one RowDescription column description.
type Field struct {
	Name    string
	TypeOID uint32
}

// RowDescription builds a tag='T' message describing the given columns,
// all declared with binary format and TypeSize/TypeMod left at their
// "unknown" sentinel values (-1), which this client never inspects.
func RowDescription(fields ...Field) (tag byte, body []byte) {
	b := appendInt16(nil, int16(len(fields)))
	for _, f := range fields {
		b = appendCString(b, f.Name)
		b = appendInt32(b, 0)               // table OID
		b = appendInt16(b, 0)                // column number
		b = appendInt32(b, int32(f.TypeOID)) // type OID
		b = appendInt16(b, -1)               // type size
		b = appendInt32(b, -1)               // type modifier
		b = appendInt16(b, 1)                 // format: binary
	}
	return 'T', b
}

// BindComplete builds a tag='2' message.
func BindComplete() (tag byte, body []byte) { return '2', nil }

// DataRow builds a tag='D' message. A nil entry in values encodes that
// column as SQL NULL.
func DataRow(values ...[]byte) (tag byte, body []byte) {
	b := appendInt16(nil, int16(len(values)))
	for _, v := range values {
		if v == nil {
			b = appendInt32(b, -1)
			continue
		}
		b = appendInt32(b, int32(len(v)))
		b = append(b, v...)
	}
	return 'D', b
}

// CommandComplete builds a tag='C' message with the given command tag
// string (e.g. "SELECT 2", "INSERT 0 1").
func CommandComplete(commandTag string) (tag byte, body []byte) {
	return 'C', appendCString(nil, commandTag)
}

// EmptyQueryResponse builds a tag='I' message.
func EmptyQueryResponse() (tag byte, body []byte) { return 'I', nil }
