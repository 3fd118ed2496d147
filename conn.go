package wspool

import (
	"context"
	"time"
)

type (
	// Conn is one live transport session. It is owned exclusively by the
	// supervisor iteration that dialed it and is closed when superseded by
	// the next reconnect attempt or on supervisor exit.
	Conn interface {
		// Receive blocks until the next message arrives. A positive timeout
		// bounds the wait and surfaces ErrReceiveTimeout on expiry; zero or
		// negative waits indefinitely. A session ended by the remote or the
		// transport surfaces ErrConnectionClosed.
		Receive(timeout time.Duration) (Message, error)

		// Send writes a message to the remote. Safe for concurrent use.
		Send(m Message) error

		// Close terminates the session and releases its resources.
		// Idempotent.
		Close()

		// Done is closed when the session has ended, whichever side ended it.
		Done() <-chan struct{}
	}

	// Dialer opens new transport sessions. The reconnect loop calls Dial
	// once per attempt.
	Dialer interface {
		Dial(ctx context.Context) (Conn, error)
	}

	// DialerFunc adapts a plain function to the Dialer interface.
	DialerFunc func(ctx context.Context) (Conn, error)
)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
