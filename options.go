package wspool

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fasthttp/websocket"
)

// Option tunes a single supervised connection.
type Option func(*settings) error

type settings struct {
	url                string
	onMessage          MessageHandler
	onConnect          ConnectHandler
	timeout            time.Duration
	maxConcurrentTasks int
	logger             Logger
	collector          Collector
	emitter            *eventEmitter
	dialer             Dialer
	dialParams         DialParamsGetter
	header             http.Header
	tlsConfig          *tls.Config
	proxy              func(*http.Request) (*url.URL, error)
	handshakeTimeout   time.Duration
	pingInterval       time.Duration
	reopenInterval     time.Duration
	backoff            BackoffCalculator
	healthyThreshold   time.Duration
}

// WithOnMessage registers the handler invoked once per received message.
func WithOnMessage(h MessageHandler) Option {
	return func(cfg *settings) error {
		cfg.onMessage = h
		return nil
	}
}

// WithOnConnect registers the hook invoked once per established connection,
// before the receive loop starts.
func WithOnConnect(h ConnectHandler) Option {
	return func(cfg *settings) error {
		cfg.onConnect = h
		return nil
	}
}

// WithTimeout bounds each receive; expiry triggers a reconnect. Zero (the
// default) waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(cfg *settings) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMaxConcurrentTasks caps simultaneous handler invocations.
func WithMaxConcurrentTasks(n int) Option {
	return func(cfg *settings) error {
		if n < 1 {
			return errors.New("max concurrent tasks must be positive")
		}
		cfg.maxConcurrentTasks = n
		return nil
	}
}

// WithLogger provides a custom logger instance.
func WithLogger(l Logger) Option {
	return func(cfg *settings) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		cfg.logger = l
		return nil
	}
}

// WithCollector provides a telemetry collector.
func WithCollector(c Collector) Option {
	return func(cfg *settings) error {
		if c == nil {
			return errors.New("collector must not be nil")
		}
		cfg.collector = c
		return nil
	}
}

// WithDialer replaces the WebSocket transport entirely. Transport-specific
// options (headers, TLS, proxy, keep-alive) are ignored when set.
func WithDialer(d Dialer) Option {
	return func(cfg *settings) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		cfg.dialer = d
		return nil
	}
}

// WithHeader adds headers to the opening handshake.
func WithHeader(h http.Header) Option {
	return func(cfg *settings) error {
		cfg.header = h
		return nil
	}
}

// WithDialParams resolves URL and headers per dial attempt, e.g. to refresh
// expiring auth tokens between reconnects.
func WithDialParams(g DialParamsGetter) Option {
	return func(cfg *settings) error {
		if g == nil {
			return errors.New("dial params getter must not be nil")
		}
		cfg.dialParams = g
		return nil
	}
}

// WithTLSConfig sets the TLS configuration for the handshake.
func WithTLSConfig(c *tls.Config) Option {
	return func(cfg *settings) error {
		cfg.tlsConfig = c
		return nil
	}
}

// WithProxy sets the proxy resolver for the handshake.
func WithProxy(proxy func(*http.Request) (*url.URL, error)) Option {
	return func(cfg *settings) error {
		cfg.proxy = proxy
		return nil
	}
}

// WithHandshakeTimeout bounds a single dial attempt.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(cfg *settings) error {
		if d <= 0 {
			return errors.New("handshake timeout must be positive")
		}
		cfg.handshakeTimeout = d
		return nil
	}
}

// WithPingInterval enables active keep-alive pings on each connection.
func WithPingInterval(d time.Duration) Option {
	return func(cfg *settings) error {
		if d <= 0 {
			return errors.New("ping interval must be positive")
		}
		cfg.pingInterval = d
		return nil
	}
}

// WithReopenInterval forces a reconnect after a fixed connection lifetime.
// Useful against endpoints that cap session duration.
func WithReopenInterval(d time.Duration) Option {
	return func(cfg *settings) error {
		if d <= 0 {
			return errors.New("reopen interval must be positive")
		}
		cfg.reopenInterval = d
		return nil
	}
}

// WithBackoff replaces the wait calculator between failed connection
// attempts.
func WithBackoff(calc BackoffCalculator) Option {
	return func(cfg *settings) error {
		if calc == nil {
			return errors.New("backoff calculator must not be nil")
		}
		cfg.backoff = calc
		return nil
	}
}

// WithHealthyConnDuration sets how long a connection must stay up for the
// backoff counter to reset.
func WithHealthyConnDuration(d time.Duration) Option {
	return func(cfg *settings) error {
		if d <= 0 {
			return errors.New("healthy connection duration must be positive")
		}
		cfg.healthyThreshold = d
		return nil
	}
}

// WithEventListener subscribes to connection lifecycle events. Listeners run
// synchronously on the supervisor goroutine and must be cheap.
func WithEventListener(t EventType, listener func(Event)) Option {
	return func(cfg *settings) error {
		if listener == nil {
			return errors.New("event listener must not be nil")
		}
		cfg.emitter.on(t, listener)
		return nil
	}
}

func newSettings(endpoint string, opts ...Option) (*settings, error) {
	if err := validateEndpointURL(endpoint); err != nil {
		return nil, WrapErrorUnrecoverableConnection(err, endpoint)
	}

	cfg := &settings{
		url:                endpoint,
		maxConcurrentTasks: DefaultMaxConcurrentTasks,
		logger:             NopLogger(),
		collector:          NoopCollector(),
		emitter:            newEventEmitter(),
		handshakeTimeout:   DefaultHandshakeTimeout,
		backoff:            BoundedExponentialBackoff(DefaultMaxBackoff),
		healthyThreshold:   DefaultHealthyConnDuration,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.dialParams == nil {
		cfg.dialParams = staticDialParams(cfg.url, cfg.header)
	}

	if cfg.dialer == nil {
		cfg.dialer = newWebsocketDialer(
			&websocket.Dialer{
				HandshakeTimeout: cfg.handshakeTimeout,
				TLSClientConfig:  cfg.tlsConfig,
				Proxy:            cfg.proxy,
			},
			cfg.dialParams,
			cfg.logger,
			cfg.pingInterval,
			cfg.reopenInterval,
		)
	}

	return cfg, nil
}

func validateEndpointURL(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("url cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Wrap(err, "url")
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("url: websocket uris must start with ws or wss scheme")
	}

	if u.User != nil {
		return errors.New("url: user name and password are not allowed in websocket uris")
	}

	return nil
}
