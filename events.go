package wspool

import "sync"

type EventType byte

const (
	// EventConnected fires once per newly established connection.
	EventConnected EventType = iota + 1
	// EventDisconnected fires when the transport ends a session, normal and
	// abnormal closes alike.
	EventDisconnected
	// EventTimeout fires when a receive deadline expires and a reconnect is
	// about to start.
	EventTimeout
	// EventReconnecting fires before each backoff wait between failed
	// connection attempts.
	EventReconnecting
	// EventHandlerError fires when a message handler returns an error or
	// panics.
	EventHandlerError
	// EventReceiveError fires when a receive fails for a reason other than a
	// timeout or a close; a reconnect follows.
	EventReceiveError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventTimeout:
		return "timeout"
	case EventReconnecting:
		return "reconnecting"
	case EventHandlerError:
		return "handler_error"
	case EventReceiveError:
		return "receive_error"
	default:
		return "unknown"
	}
}

// Event describes a state change of one supervised connection.
type Event struct {
	Type EventType
	URL  string
	Err  error
}

// eventEmitter fans an Event out to registered listeners. Listeners run
// synchronously on the emitting goroutine, so they should be cheap.
type eventEmitter struct {
	listeners map[EventType][]func(Event)
	lock      sync.RWMutex
}

func newEventEmitter() *eventEmitter {
	return &eventEmitter{
		listeners: make(map[EventType][]func(Event)),
	}
}

func (e *eventEmitter) on(event EventType, listener func(Event)) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners[event] = append(e.listeners[event], listener)
}

// emit is nil-safe so components constructed without an emitter can publish
// unconditionally.
func (e *eventEmitter) emit(ev Event) {
	if e == nil {
		return
	}

	e.lock.RLock()
	defer e.lock.RUnlock()

	listeners, found := e.listeners[ev.Type]
	if !found {
		return
	}

	for _, listener := range listeners {
		listener(ev)
	}
}

func (e *eventEmitter) close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[EventType][]func(Event))
}
