package pgsync

import (
	"context"
	"fmt"
	"time"

	"github.com/nullbound/pgsync/internal/auth"
	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/internal/wire"
)

// NoTls marks that a Connect call uses a plaintext connection. It exists
// for call-site symmetry with the original implementation and to leave
// room for a future TLSConfig variant without changing Connect's
// signature — encrypted transport itself is out of scope for this client.
type NoTls struct{}

// connPhase tracks where in the protocol state machine a Connection is,
// enforced at the top of every public method (spec's phase-flag
// invariant, plus the filled gap of what concurrent/reentrant use
// observes: ErrConnectionBusy instead of corrupted framing).
type connPhase int

const (
	phaseAuthenticating connPhase = iota
	phaseReady
	phaseInQuery
	phaseBroken
)

// Connection is a single, exclusively-owned session against one
// PostgreSQL backend. It is not safe for concurrent use: a connection is
// owned by one logical caller at a time, and interleaved concurrent calls
// return ErrConnectionBusy rather than corrupting the wire.
type Connection struct {
	wire *wire.Conn
	cfg  connectConfig

	phase connPhase

	backendPID uint32
	backendKey uint32
	params     map[string]string
}

// Connect opens a TCP connection to the host:port encoded in uri,
// authenticates, and waits for the first ReadyForQuery. NoTls documents
// that no encryption is negotiated; this client never attempts a
// STARTTLS-style upgrade.
func Connect(ctx context.Context, uri string, _ NoTls, opts ...ConnectOption) (*Connection, error) {
	cs, err := ParseConnString(uri)
	if err != nil {
		return nil, err
	}

	var cfg connectConfig
	for _, o := range opts {
		o(&cfg)
	}

	addr := fmt.Sprintf("%s:%d", cs.Host, cs.Port)
	wc, err := wire.Dial(ctx, addr)
	if err != nil {
		return nil, &pgerr.IOError{Op: "connect", Err: err}
	}

	c := &Connection{
		wire:   wc,
		cfg:    cfg,
		phase:  phaseAuthenticating,
		params: make(map[string]string),
	}

	params := [][2]string{{"user", cs.User}}
	if cs.Database != "" {
		params = append(params, [2]string{"database", cs.Database})
	}
	params = append(params, [2]string{"client_encoding", "UTF8"})
	c.wire.WriteStartup(params)
	if err := c.wire.Flush(); err != nil {
		wc.Close()
		return nil, err
	}

	mechanism, err := auth.Authenticate(c.wire, cs.User, cs.Password, cfg.logger)
	if err != nil {
		wc.Close()
		return nil, err
	}

	if err := c.awaitReady(); err != nil {
		wc.Close()
		return nil, err
	}
	c.phase = phaseReady

	if cfg.metrics != nil {
		cfg.metrics.IncConnection()
		cfg.metrics.IncAuthMechanism(mechanism)
	}
	return c, nil
}

// awaitReady drains BackendKeyData/ParameterStatus tolerantly until
// ReadyForQuery, the post-AuthenticationOk handshake tail.
func (c *Connection) awaitReady() error {
	for {
		msg, err := c.wire.ReadBackend()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case wire.BackendKeyData:
			c.backendPID, c.backendKey = m.ProcessID, m.SecretKey
		case wire.ParameterStatus:
			c.params[m.Name] = m.Value
		case wire.ReadyForQuery:
			return nil
		case wire.ErrorResponse:
			return dbErrorFromWire(m)
		default:
			return &pgerr.ProtocolError{Reason: fmt.Sprintf("unexpected message before ready: %T", msg)}
		}
	}
}

// Close sends Terminate (best-effort) and closes the socket. Safe to call
// on a broken connection.
func (c *Connection) Close() error {
	if c.phase != phaseBroken {
		c.wire.WriteTerminate()
		_ = c.wire.Flush()
	}
	return c.wire.Close()
}

// ServerParameter returns the last value the server reported for name via
// ParameterStatus (e.g. "server_version", "client_encoding"), or
// ok=false if the server never reported it. Diagnostic only; no public
// operation depends on it.
func (c *Connection) ServerParameter(name string) (string, bool) {
	v, ok := c.params[name]
	return v, ok
}

// enterReady asserts the connection is idle and marks it in-query; every
// public query method calls this first.
func (c *Connection) enterReady() error {
	switch c.phase {
	case phaseReady:
		c.phase = phaseInQuery
		return nil
	case phaseBroken:
		return &pgerr.IOError{Op: "query", Err: fmt.Errorf("connection is broken")}
	default:
		return pgerr.ErrConnectionBusy
	}
}

// observe records a query's duration under the given kind label if a
// metrics collector was attached via WithMetrics; a no-op otherwise.
func (c *Connection) observe(kind string, start time.Time) {
	if c.cfg.metrics != nil {
		c.cfg.metrics.ObserveQuery(kind, time.Since(start).Seconds())
	}
}

func dbErrorFromWire(m wire.ErrorResponse) error {
	it := m.Fields()
	return pgerr.BuildDbError(func() (byte, string, bool) {
		f, ok := it.Next()
		return f.Code, f.Value, ok
	})
}
