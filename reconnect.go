package wspool

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
)

// BackoffCalculator maps the number of consecutive failed connection
// attempts to the time to wait before the next one.
type BackoffCalculator func(attempts int) time.Duration

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

func ExponentialBackoffSeconds(attempts int) time.Duration {
	return time.Duration(ExponentialBackoff(attempts)) * time.Second
}

// BoundedExponentialBackoff grows exponentially up to max.
func BoundedExponentialBackoff(max time.Duration) BackoffCalculator {
	return func(attempts int) time.Duration {
		ttw := ExponentialBackoffSeconds(attempts)
		if ttw > max {
			return max
		}
		return ttw
	}
}

// reconnector is a lazy sequence of connection handles: each Next call
// yields a fresh session, sleeping between failed attempts per the backoff
// calculator. It terminates only on context cancellation or an
// unrecoverable failure.
type reconnector struct {
	url              string
	dialer           Dialer
	calculator       BackoffCalculator
	logger           Logger
	emitter          *eventEmitter
	collector        Collector
	healthyThreshold time.Duration

	attempts    int
	connectedAt time.Time
}

func newReconnector(
	url string,
	dialer Dialer,
	calculator BackoffCalculator,
	logger Logger,
	emitter *eventEmitter,
	collector Collector,
	healthyThreshold time.Duration,
) *reconnector {
	return &reconnector{
		url:              url,
		dialer:           dialer,
		calculator:       calculator,
		logger:           logger.WithField("type", "reconnect_exp_backoff"),
		emitter:          emitter,
		collector:        collector,
		healthyThreshold: healthyThreshold,
	}
}

// Next blocks until a new connection is established. Not safe for concurrent
// use; a supervisor owns exactly one reconnector.
func (r *reconnector) Next(ctx context.Context) (Conn, error) {
	// A connection that stayed up past the threshold was healthy, so the
	// next outage starts from a clean slate.
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > r.healthyThreshold {
		r.attempts = 0
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := r.dialer.Dial(ctx)
		if err != nil {
			var unrecoverable *ErrUnrecoverableConnection
			if errors.As(err, &unrecoverable) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			r.attempts++
			ttw := r.calculator(r.attempts)
			r.logger.Infof("cannot connect to %s due to %s, retrying in %s", r.url, err, ttw)
			r.emitter.emit(Event{Type: EventReconnecting, URL: r.url, Err: err})
			r.collector.IncReconnect(r.url)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ttw):
			}
			continue
		}

		r.connectedAt = time.Now()
		return conn, nil
	}
}
