// Package transport owns the client side of the coordinator wire exchange.
//
// Every Send dials a fresh TCP connection, writes one envelope line, reads
// exactly one reply line and closes the connection on every exit path.
// Connections are never pooled or reused: envelopes carry no correlation id,
// so a connection is the only thing tying a reply to its request.
//
// Failures are reported as *Error values whose Kind is one of ErrConnect,
// ErrWrite, ErrConnectionClosed, ErrTimeout or ErrReplyTooLarge. Nothing is
// retried here.
package transport
