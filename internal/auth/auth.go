// Package auth implements the PostgreSQL authentication handshake: the
// server's AuthenticationCleartextPassword, AuthenticationMD5Password and
// AuthenticationSASL (SCRAM-SHA-256) requests, dispatched from the single
// entry point Authenticate. Mirrors the dispatch loop the teacher's
// authenticatePG used, generalized to the shared internal/wire framing.
package auth

import (
	"fmt"
	"log/slog"

	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/internal/wire"
)

// Authenticate drives the authentication phase of the startup sequence.
// The caller must have already sent the StartupMessage; Authenticate reads
// and responds to whatever authentication request(s) the server sends,
// returning once AuthenticationOk arrives. logger may be nil; when set, it
// receives one Debug-level event naming the mechanism the server selected.
//
// Returns which mechanism was used ("cleartext", "md5", or
// "scram-sha-256"), empty if the server required no password at all.
func Authenticate(c *wire.Conn, user, password string, logger *slog.Logger) (mechanism string, err error) {
	msg, err := c.ReadBackend()
	if err != nil {
		return "", err
	}
	for {
		switch m := msg.(type) {
		case wire.AuthenticationOk:
			return mechanism, nil
		case wire.AuthenticationCleartextPassword:
			mechanism = "cleartext"
			logMechanism(logger, mechanism)
			c.WritePassword([]byte(password))
			if err := c.Flush(); err != nil {
				return mechanism, err
			}
		case wire.AuthenticationMD5Password:
			mechanism = "md5"
			logMechanism(logger, mechanism)
			c.WritePassword([]byte(md5Password(user, password, m.Salt)))
			if err := c.Flush(); err != nil {
				return mechanism, err
			}
		case wire.AuthenticationSASL:
			mechanism = "scram-sha-256"
			logMechanism(logger, mechanism)
			if err := scramSHA256(c, user, password, m); err != nil {
				return mechanism, err
			}
		case wire.ErrorResponse:
			return mechanism, dbErrorFromResponse(m)
		default:
			return mechanism, unexpectedDuringAuth(msg)
		}

		msg, err = c.ReadBackend()
		if err != nil {
			return mechanism, err
		}
	}
}

func logMechanism(logger *slog.Logger, mechanism string) {
	if logger == nil {
		return
	}
	logger.Debug("selected authentication mechanism", "mechanism", mechanism)
}

// dbErrorFromResponse builds a *pgerr.DbError from an ErrorResponse seen
// during the handshake (e.g. bad password, no pg_hba.conf entry).
func dbErrorFromResponse(m wire.ErrorResponse) error {
	it := m.Fields()
	return pgerr.BuildDbError(func() (byte, string, bool) {
		f, ok := it.Next()
		return f.Code, f.Value, ok
	})
}

// unexpectedDuringAuth reports a backend message that isn't valid at the
// point in the authentication state machine where it arrived. Any message
// other than the authentication requests/responses handled above means the
// server is asking for something this client doesn't implement.
func unexpectedDuringAuth(msg wire.BackendMessage) error {
	return &pgerr.UnsupportedAuthenticationError{Detail: fmt.Sprintf("unexpected message during authentication: %T", msg)}
}
