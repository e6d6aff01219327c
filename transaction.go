package pgsync

import (
	"context"
	"fmt"
	"runtime"

	"github.com/nullbound/pgsync/internal/pgerr"
)

// Transaction scopes a sequence of statements inside BEGIN/COMMIT or
// BEGIN/ROLLBACK on the underlying Connection. It does not wrap a second
// connection or pool anything — it is a thin façade that forwards every
// query method to the Connection it was opened on, and forbids further use
// once Commit or Rollback has run.
type Transaction struct {
	conn     *Connection
	finished bool
}

// Begin issues BEGIN and returns a Transaction scoped to this Connection.
// The Connection itself must not be used directly until the Transaction
// finishes — both Begin and the later Commit/Rollback go through the same
// phase-flag guard as any other query, so interleaved use is rejected with
// ErrConnectionBusy rather than producing confused wire state.
func (c *Connection) Begin(ctx context.Context) (*Transaction, error) {
	if err := c.enterReady(); err != nil {
		return nil, err
	}
	defer func() {
		if c.phase == phaseInQuery {
			c.phase = phaseReady
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := c.runSimple("BEGIN"); err != nil {
		return nil, err
	}
	t := &Transaction{conn: c}
	runtime.SetFinalizer(t, (*Transaction).finalize)
	return t, nil
}

// finalize is the scoped-release path: if a Transaction is garbage
// collected without Commit or Rollback ever being called, it emits
// ROLLBACK as a last resort and discards whatever that emission returns
// (the connection may already be broken). Runs on the finalizer goroutine,
// so it skips rather than races a connection that isn't idle.
func (t *Transaction) finalize() {
	if t.finished || t.conn.phase != phaseReady {
		return
	}
	t.conn.phase = phaseInQuery
	_, _ = t.conn.runSimple("ROLLBACK")
	if t.conn.phase == phaseInQuery {
		t.conn.phase = phaseReady
	}
}

// Commit issues COMMIT. Calling Commit or Rollback again after either has
// run once returns an error rather than re-issuing a statement on a
// transaction that no longer exists.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.finish(ctx, "COMMIT")
}

// Rollback issues ROLLBACK.
func (t *Transaction) Rollback(ctx context.Context) error {
	return t.finish(ctx, "ROLLBACK")
}

func (t *Transaction) finish(ctx context.Context, stmt string) error {
	if t.finished {
		return fmt.Errorf("pgsync: transaction already finished")
	}
	if err := t.conn.enterReady(); err != nil {
		return err
	}
	defer func() {
		if t.conn.phase == phaseInQuery {
			t.conn.phase = phaseReady
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := t.conn.runSimple(stmt)
	t.finished = true
	runtime.SetFinalizer(t, nil)
	return err
}

func (t *Transaction) checkOpen() error {
	if t.finished {
		return &pgerr.ProtocolError{Reason: "transaction already finished"}
	}
	return nil
}

// Execute delegates to the underlying Connection.
func (t *Transaction) Execute(ctx context.Context, sql string, params ...any) (int64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	return t.conn.Execute(ctx, sql, params...)
}

// Query delegates to the underlying Connection.
func (t *Transaction) Query(ctx context.Context, sql string, params ...any) ([]*Row, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.conn.Query(ctx, sql, params...)
}

// QueryOne delegates to the underlying Connection.
func (t *Transaction) QueryOne(ctx context.Context, sql string, params ...any) (*Row, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.conn.QueryOne(ctx, sql, params...)
}

// QueryRaw delegates to the underlying Connection.
func (t *Transaction) QueryRaw(ctx context.Context, sql string, params ...any) (*RowIterator, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.conn.QueryRaw(ctx, sql, params...)
}

// BatchExecute delegates to the underlying Connection.
func (t *Transaction) BatchExecute(ctx context.Context, sql string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.conn.BatchExecute(ctx, sql)
}
