package redis

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nats-redis-io/goresp/resp"
)

// ConnectError means the TCP connection could not be established: DNS
// failure, connection refused, or the dial timing out. It is surfaced to
// every sink waiting in the pre-connect buffer and to the Start sink.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return fmt.Sprintf("redis: connect failed: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// ConnectionClosedError means the peer closed the socket, or a local I/O
// error occurred. It is surfaced to every entry remaining in the pending
// FIFO, in order, after which the Conn disposes of itself.
type ConnectionClosedError struct{ Err error }

func (e *ConnectionClosedError) Error() string {
	if e.Err == nil {
		return "redis: connection closed"
	}
	return fmt.Sprintf("redis: connection closed: %v", e.Err)
}
func (e *ConnectionClosedError) Unwrap() error { return e.Err }

// ProtocolError means the decoder could not make sense of the byte stream.
// It is always fatal: the Conn closes and every pending entry receives a
// ConnectionClosedError wrapping the ProtocolError.
type ProtocolError struct{ Err error }

func (e *ProtocolError) Error() string { return fmt.Sprintf("redis: protocol error: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// ServerError is a RESP '-' reply, carrying the server's message verbatim.
// It is surfaced only to the originating command's sink and never affects
// any other in-flight command.
type ServerError struct{ Message string }

func (e *ServerError) Error() string { return "redis: " + e.Message }

// ProjectionError means the reply's shape was incompatible with the return
// kind the caller asked for. Surfaced only to that command.
type ProjectionError struct{ Err error }

func (e *ProjectionError) Error() string { return fmt.Sprintf("redis: %v", e.Err) }
func (e *ProjectionError) Unwrap() error { return e.Err }

// UsageError is a synchronous, socket-free rejection of a malformed call,
// e.g. SUBSCRIBE with no channel arguments.
type UsageError struct{ Message string }

func (e *UsageError) Error() string { return "redis: usage: " + e.Message }

// wrapProjectionErr adapts a resp projection failure into a ProjectionError,
// passing everything else (notably *ServerError) through unchanged.
func wrapProjectionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, resp.ErrProjection) {
		return &ProjectionError{Err: err}
	}
	return err
}
