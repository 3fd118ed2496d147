package wspool

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
)

// Connect supervises a single WebSocket endpoint: it repeatedly dials url,
// invokes the connect hook once per established connection, and dispatches
// received messages to the message handler under the configured concurrency
// cap. Timeouts, disconnects and unexpected receive errors are logged and
// trigger a reconnect; they never surface to the caller.
//
// Connect blocks until ctx is cancelled or the endpoint is structurally
// unusable (e.g. a malformed URL). Before returning it waits for in-flight
// handler invocations to settle.
func Connect(ctx context.Context, url string, opts ...Option) error {
	cfg, err := newSettings(url, opts...)
	if err != nil {
		return err
	}

	s := &supervisor{
		url:       cfg.url,
		timeout:   cfg.timeout,
		logger:    cfg.logger.WithField("url", cfg.url),
		emitter:   cfg.emitter,
		collector: cfg.collector,
		onConnect: cfg.onConnect,
		next: newReconnector(
			cfg.url,
			cfg.dialer,
			cfg.backoff,
			cfg.logger,
			cfg.emitter,
			cfg.collector,
			cfg.healthyThreshold,
		),
		dispatcher: newDispatcher(
			cfg.url,
			cfg.onMessage,
			cfg.maxConcurrentTasks,
			cfg.logger,
			cfg.emitter,
			cfg.collector,
		),
	}

	return s.run(ctx)
}

// supervisor owns the reconnect-and-dispatch loop for one endpoint.
type supervisor struct {
	url        string
	timeout    time.Duration
	logger     Logger
	emitter    *eventEmitter
	collector  Collector
	onConnect  ConnectHandler
	next       *reconnector
	dispatcher *dispatcher
}

func (s *supervisor) run(ctx context.Context) error {
	defer s.emitter.close()
	defer s.dispatcher.Wait()

	for {
		conn, err := s.next.Next(ctx)
		if err != nil {
			return err
		}

		s.serve(ctx, conn)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// serve drives the receive loop of one connection handle. It returns when
// the handle is no longer usable; the caller then requests the next one.
func (s *supervisor) serve(ctx context.Context, conn Conn) {
	defer conn.Close()

	s.logger.Infof("connected to %s", s.url)
	s.collector.IncConnected(s.url)
	s.emitter.emit(Event{Type: EventConnected, URL: s.url})

	s.runConnectHook(ctx, conn)

	for {
		m, err := conn.Receive(s.timeout)

		switch {
		case ctx.Err() != nil:
			return

		case err == nil:
			s.dispatcher.Submit(ctx, m)

		case errors.Is(err, ErrReceiveTimeout):
			s.logger.Warnf("timeout detected for %s", s.url)
			s.collector.IncTimeout(s.url)
			s.emitter.emit(Event{Type: EventTimeout, URL: s.url, Err: err})
			return

		case errors.Is(err, ErrConnectionClosed):
			s.logger.Warnf("disconnected from %s", s.url)
			s.collector.IncDisconnect(s.url)
			s.emitter.emit(Event{Type: EventDisconnected, URL: s.url, Err: err})
			return

		default:
			s.logger.Errorf("unexpected error on %s: %+v", s.url, err)
			s.collector.IncReceiveError(s.url)
			s.emitter.emit(Event{Type: EventReceiveError, URL: s.url, Err: err})
			return
		}
	}
}

// runConnectHook invokes the connect hook with full containment: errors and
// panics are logged and the connection proceeds to its receive loop.
func (s *supervisor) runConnectHook(ctx context.Context, conn Conn) {
	if s.onConnect == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Errorf("panic in connect hook for %s: %v\n%s",
				s.url, rec, debug.Stack())
		}
	}()

	if err := s.onConnect(ctx, conn); err != nil {
		s.logger.Errorf("connect hook error for %s: %s", s.url, err)
	}
}
