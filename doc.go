// Package pgsync is a synchronous, blocking client for the PostgreSQL
// wire protocol (protocol version 3): it opens one TCP connection,
// authenticates (cleartext, MD5, or SASL SCRAM-SHA-256), runs parameterized
// queries through the extended-query sub-protocol, streams typed result
// rows, runs multi-statement scripts, and scopes transactions.
//
// There is no event loop, no task runtime, and no connection pool: every
// method blocks the calling goroutine until the server responds. A
// *Connection is owned by exactly one caller at a time; see the concurrency
// note on the Connection type.
package pgsync
