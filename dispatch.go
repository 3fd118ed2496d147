package wspool

import (
	"context"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// dispatcher schedules handler invocations as independent goroutines under a
// permit cap. Submission never blocks the caller: messages join an ordered
// admission queue and a single drainer goroutine waits for permits, so a
// saturated handler pool stalls handlers, not the receive loop.
type dispatcher struct {
	url       string
	handler   MessageHandler
	sem       *semaphore.Weighted
	logger    Logger
	emitter   *eventEmitter
	collector Collector
	wg        sync.WaitGroup

	mu       sync.Mutex
	queue    []queuedMessage
	draining bool
}

type queuedMessage struct {
	ctx context.Context
	msg Message
}

func newDispatcher(
	url string,
	handler MessageHandler,
	maxConcurrentTasks int,
	logger Logger,
	emitter *eventEmitter,
	collector Collector,
) *dispatcher {
	return &dispatcher{
		url:       url,
		handler:   handler,
		sem:       semaphore.NewWeighted(int64(maxConcurrentTasks)),
		logger:    logger.WithField("type", "dispatcher"),
		emitter:   emitter,
		collector: collector,
	}
}

// Submit enqueues the message for handling and returns immediately. The
// permit wait happens in the drainer, never on the caller.
func (d *dispatcher) Submit(ctx context.Context, m Message) {
	d.wg.Add(1)

	d.mu.Lock()
	d.queue = append(d.queue, queuedMessage{ctx: ctx, msg: m})
	if !d.draining {
		d.draining = true
		go d.drain()
	}
	d.mu.Unlock()
}

// drain admits queued messages strictly in submission order: one permit is
// acquired per message before its handler goroutine is spawned, so handler
// start order follows receive order even while earlier handlers still hold
// permits. The drainer exits when the queue empties; the next Submit starts
// a fresh one.
func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.sem.Acquire(next.ctx, 1); err != nil {
			// Cancelled while queued; the message is dropped with the
			// supervisor that owned it.
			d.wg.Done()
			continue
		}

		started := make(chan struct{})

		go func(q queuedMessage) {
			defer d.wg.Done()
			defer d.sem.Release(1)

			d.collector.AddInflightHandlers(d.url, 1)
			defer d.collector.AddInflightHandlers(d.url, -1)

			close(started)
			d.invoke(q.ctx, q.msg)
		}(next)

		// Admit the next message only once this handler is underway, so
		// start order holds even when permits are plentiful.
		<-started
	}
}

// invoke runs the handler with full containment: a missing handler is a
// no-op, and errors and panics are logged and discarded.
func (d *dispatcher) invoke(ctx context.Context, m Message) {
	if d.handler == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Errorf("panic in message handler for %s: %v\n%s",
				d.url, rec, debug.Stack())
			d.emitter.emit(Event{Type: EventHandlerError, URL: d.url})
			d.collector.IncHandlerError(d.url)
		}
	}()

	if err := d.handler(ctx, m); err != nil {
		d.logger.Errorf("message handler error for %s: %s", d.url, err)
		d.emitter.emit(Event{Type: EventHandlerError, URL: d.url, Err: err})
		d.collector.IncHandlerError(d.url)
	}
}

// Wait blocks until every submitted invocation has settled.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
