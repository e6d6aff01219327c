// Package wire implements the PostgreSQL frontend/backend protocol v3
// framing and message codec: buffered reads of length-prefixed backend
// messages, buffered writes of frontend messages, and the encode/decode
// of every message variant the core client needs.
package wire

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/nullbound/pgsync/internal/pgerr"
)

const (
	initialBufCap = 8 * 1024
	scratchSize   = 8 * 1024

	// KeepAlivePeriod is the TCP keepalive idle time used for every dialed
	// connection, per the client's contract of detecting a dead backend
	// without an application-level timeout.
	KeepAlivePeriod = 50 * time.Second
)

// Conn owns a TCP socket plus the read/write buffers used to frame
// PostgreSQL protocol messages. It is not safe for concurrent use.
type Conn struct {
	netConn net.Conn

	readBuf []byte
	readPos int

	writeBuf []byte
}

// Dial opens a TCP connection to addr and enables keepalive per the
// client's liveness contract (there are no application-level timeouts;
// TCP keepalive is the only guard against a silently-dead backend).
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", addr, err)
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err != nil {
			nc.Close()
			return nil, fmt.Errorf("wire: set keepalive: %w", err)
		}
		if err := tc.SetKeepAlivePeriod(KeepAlivePeriod); err != nil {
			nc.Close()
			return nil, fmt.Errorf("wire: set keepalive period: %w", err)
		}
	}
	return New(nc), nil
}

// New wraps an already-connected net.Conn (used directly by tests that
// supply a net.Pipe() endpoint in place of a real socket).
func New(nc net.Conn) *Conn {
	return &Conn{
		netConn:  nc,
		readBuf:  make([]byte, 0, initialBufCap),
		writeBuf: make([]byte, 0, initialBufCap),
	}
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.netConn.Close()
}

// WriteRaw appends bytes to the write buffer without sending them. Frontend
// message encoders in this package call this; Flush is what actually writes
// to the socket.
func (c *Conn) WriteRaw(b []byte) {
	c.writeBuf = append(c.writeBuf, b...)
}

// Flush writes the entire write buffer to the socket, retrying short
// writes, then clears the buffer. Per the connection invariant, the write
// buffer is always empty on method entry and exit of every public client
// operation.
func (c *Conn) Flush() error {
	for len(c.writeBuf) > 0 {
		n, err := c.netConn.Write(c.writeBuf)
		if err != nil {
			return &pgerr.IOError{Op: "write", Err: err}
		}
		c.writeBuf = c.writeBuf[n:]
	}
	c.writeBuf = c.writeBuf[:0]
	return nil
}

// ReadMessage returns the next fully-buffered backend message: a tag byte
// followed by its payload (the 4-byte length prefix is consumed but not
// returned). It blocks on the socket until a full message is available.
//
// The returned payload slice aliases Conn's internal read buffer and is
// only valid until the next call to ReadMessage — callers that need to
// retain bytes past that point must copy them.
func (c *Conn) ReadMessage() (tag byte, payload []byte, err error) {
	for {
		tag, payload, ok, err := c.tryParse()
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return tag, payload, nil
		}
		if err := c.fill(); err != nil {
			return 0, nil, err
		}
	}
}

// tryParse attempts to slice one complete message out of the buffered
// bytes without touching the socket. It returns ok=false if fewer than a
// full tag+length+payload are currently buffered, or a non-nil err if the
// length field itself is malformed — a length below 4 can never be valid
// (it excludes only itself from the count), and since it was parsed out of
// bytes already sitting in the buffer, waiting for more data from fill()
// would never resolve it; this must surface as an error rather than loop.
func (c *Conn) tryParse() (tag byte, payload []byte, ok bool, err error) {
	buffered := c.readBuf[c.readPos:]
	if len(buffered) < 5 {
		return 0, nil, false, nil
	}
	tag = buffered[0]
	length := binary.BigEndian.Uint32(buffered[1:5])
	if length < 4 {
		return 0, nil, false, &pgerr.ProtocolError{Reason: fmt.Sprintf("malformed message length %d for tag %q", length, tag)}
	}
	total := 1 + int(length)
	if len(buffered) < total {
		return 0, nil, false, nil
	}
	payload = buffered[5:total]
	c.readPos += total

	// Growing-window buffer: once fully drained, reset to zero length so
	// the backing array doesn't grow unbounded across a long session.
	if c.readPos == len(c.readBuf) {
		c.readBuf = c.readBuf[:0]
		c.readPos = 0
	}
	return tag, payload, true, nil
}

// fill reads more bytes from the socket into the read buffer. EOF here is
// always fatal: a partial frame means the connection died mid-message.
func (c *Conn) fill() error {
	var scratch [scratchSize]byte
	n, err := c.netConn.Read(scratch[:])
	if n > 0 {
		c.readBuf = append(c.readBuf, scratch[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			return &ConnectionClosedError{Err: err}
		}
		return &pgerr.IOError{Op: "read", Err: err}
	}
	return nil
}

// ConnectionClosedError reports that the peer closed the connection,
// possibly mid-frame.
type ConnectionClosedError struct {
	Err error
}

func (e *ConnectionClosedError) Error() string { return "wire: connection closed: " + e.Err.Error() }
func (e *ConnectionClosedError) Unwrap() error  { return e.Err }
