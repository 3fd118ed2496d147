// Package wspool maintains long-lived WebSocket client connections that
// automatically reconnect on timeout, disconnection or error.
//
// Connect supervises a single endpoint: it repeatedly obtains a fresh
// connection, invokes an optional connect hook, and dispatches every received
// message to a caller-supplied handler under a bounded concurrency cap.
// RunPool fans out many such supervised connections and waits for all of
// them, propagating the first failure.
package wspool

import (
	"context"
	"time"
)

type (
	// MessageHandler is invoked once per received message. The message is
	// passed by value and not retained by the pool. A returned error is
	// logged and discarded; it never affects the receive loop.
	MessageHandler func(ctx context.Context, m Message) error

	// ConnectHandler is invoked exactly once per newly established
	// connection, before any message from that connection reaches the
	// MessageHandler. A returned error is logged and does not abort the
	// connection.
	ConnectHandler func(ctx context.Context, conn Conn) error

	// Task is a zero-argument unit of work for RunPool.
	Task func(ctx context.Context) error
)

const (
	// DefaultMaxConcurrentTasks caps simultaneous handler invocations per
	// supervised connection unless overridden.
	DefaultMaxConcurrentTasks = 10

	// DefaultHandshakeTimeout bounds the opening handshake of a single
	// dial attempt.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultHealthyConnDuration is how long a connection must stay up for
	// the reconnect backoff counter to reset.
	DefaultHealthyConnDuration = 30 * time.Second

	// DefaultMaxBackoff bounds the wait between failed connection attempts.
	DefaultMaxBackoff = 30 * time.Second
)
