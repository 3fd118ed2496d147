package wspool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures connection lifecycle and dispatch telemetry.
//
// Implementations must be cheap to call: hooks run inline with the receive
// loop and the dispatch path.
type Collector interface {
	IncConnected(url string)
	IncReconnect(url string)
	IncTimeout(url string)
	IncDisconnect(url string)
	IncReceiveError(url string)
	IncHandlerError(url string)
	AddInflightHandlers(url string, delta int)
}

type noopCollector struct{}

// NoopCollector returns a collector that discards all metrics.
func NoopCollector() Collector { return noopCollector{} }

func (noopCollector) IncConnected(string)            {}
func (noopCollector) IncReconnect(string)            {}
func (noopCollector) IncTimeout(string)              {}
func (noopCollector) IncDisconnect(string)           {}
func (noopCollector) IncReceiveError(string)         {}
func (noopCollector) IncHandlerError(string)         {}
func (noopCollector) AddInflightHandlers(string, int) {}

// PrometheusCollector exposes pool telemetry via Prometheus.
type PrometheusCollector struct {
	connects      *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	timeouts      *prometheus.CounterVec
	disconnects   *prometheus.CounterVec
	receiveErrors *prometheus.CounterVec
	handlerErrors *prometheus.CounterVec
	inflight      *prometheus.GaugeVec
}

// NewPrometheusCollector registers the pool metrics with the provided
// registerer. Passing nil uses the default registerer. Re-registering the
// same metrics reuses the existing collectors.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	connects, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_connections_total",
		Help: "Number of established connections per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	reconnects, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_reconnect_attempts_total",
		Help: "Number of failed connection attempts per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	timeouts, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_receive_timeouts_total",
		Help: "Number of receive deadline expiries per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	disconnects, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_disconnects_total",
		Help: "Number of sessions ended by the remote or the transport per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	receiveErrors, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_receive_errors_total",
		Help: "Number of receive failures other than timeouts and closes per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	handlerErrors, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "wspool_handler_errors_total",
		Help: "Number of message handler errors and panics per endpoint.",
	})
	if err != nil {
		return nil, err
	}

	inflight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wspool_inflight_handlers",
		Help: "Number of message handlers currently executing per endpoint.",
	}, []string{"url"})
	if err := reg.Register(inflight); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return nil, err
		}
		inflight = existing
	}

	return &PrometheusCollector{
		connects:      connects,
		reconnects:    reconnects,
		timeouts:      timeouts,
		disconnects:   disconnects,
		receiveErrors: receiveErrors,
		handlerErrors: handlerErrors,
		inflight:      inflight,
	}, nil
}

func registerCounterVec(
	reg prometheus.Registerer,
	opts prometheus.CounterOpts,
) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, []string{"url"})
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return counter, nil
}

func (p *PrometheusCollector) IncConnected(url string) {
	p.connects.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) IncReconnect(url string) {
	p.reconnects.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) IncTimeout(url string) {
	p.timeouts.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) IncDisconnect(url string) {
	p.disconnects.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) IncReceiveError(url string) {
	p.receiveErrors.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) IncHandlerError(url string) {
	p.handlerErrors.WithLabelValues(url).Inc()
}

func (p *PrometheusCollector) AddInflightHandlers(url string, delta int) {
	p.inflight.WithLabelValues(url).Add(float64(delta))
}
