package wspool

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConnectionClosed marks a session ended by the remote or the
	// transport, regardless of close reason.
	ErrConnectionClosed = errors.New("connection has been closed")

	// ErrReceiveTimeout marks a receive that outlived its deadline.
	ErrReceiveTimeout = errors.New("receive deadline exceeded")

	// ErrCannotConnect marks a failed connection attempt.
	ErrCannotConnect = errors.New("connection cannot be established")

	// ErrRateLimit marks a handshake rejected with 429.
	ErrRateLimit = errors.New("rate limit exceeded")
)

// ErrUnrecoverableConnection ends the reconnect loop: the endpoint is
// structurally unusable (e.g. a malformed URL) and retrying cannot help.
type ErrUnrecoverableConnection struct {
	err error
	url string
}

func (e *ErrUnrecoverableConnection) Error() string {
	return fmt.Sprintf("unrecoverable connection error: %s to %s", e.err, e.url)
}

func (e *ErrUnrecoverableConnection) Unwrap() error { return e.err }

func WrapErrorUnrecoverableConnection(err error, url string) *ErrUnrecoverableConnection {
	if err == nil {
		return nil
	}
	return &ErrUnrecoverableConnection{
		err: err,
		url: url,
	}
}
