package wspool

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fasthttp/websocket"
)

const writeWait = time.Second

// wsDialer opens WebSocket sessions. Dial parameters are resolved per
// attempt so reconnects can carry fresh credentials.
type wsDialer struct {
	dialer         *websocket.Dialer
	params         DialParamsGetter
	logger         Logger
	pingInterval   time.Duration
	reopenInterval time.Duration
}

func newWebsocketDialer(
	dialer *websocket.Dialer,
	params DialParamsGetter,
	logger Logger,
	pingInterval time.Duration,
	reopenInterval time.Duration,
) *wsDialer {
	return &wsDialer{
		dialer:         dialer,
		params:         params,
		logger:         logger.WithField("net", "ws_connection"),
		pingInterval:   pingInterval,
		reopenInterval: reopenInterval,
	}
}

func (d *wsDialer) Dial(ctx context.Context) (Conn, error) {
	p, err := d.params(ctx)
	if err != nil {
		d.logger.Errorf("cannot resolve dial params: %s", err)
		return nil, errors.Wrap(ErrCannotConnect, err.Error())
	}

	conn, resp, err := d.dialer.DialContext(ctx, p.URL, p.Header)
	if err != nil {
		return nil, d.handleDialError(resp, err)
	}

	d.logger.Debugf("success opening connection to %s", p.URL)

	c := &wsConn{
		url:    p.URL,
		conn:   conn,
		logger: d.logger,
		closeC: make(chan struct{}),
	}

	// Answer server pings ourselves so passive keep-alive shows up in
	// debug logs. The default handler would pong silently.
	conn.SetPingHandler(func(appData string) error {
		c.logger.Debugln("<= [PING]")
		return conn.WriteControl(
			websocket.PongMessage, []byte(appData), time.Now().Add(writeWait),
		)
	})

	// Some endpoints cap connection lifetime; rotating just before the
	// server would kick us keeps the gap on our terms.
	if d.reopenInterval > 0 {
		c.reopenTimer = time.AfterFunc(d.reopenInterval, c.Close)
	}

	// A cancelled supervisor must not leave a blocked read holding the
	// socket.
	go c.watch(ctx)

	if d.pingInterval > 0 {
		go c.keepAlive(d.pingInterval)
	}

	return c, nil
}

func (d *wsDialer) handleDialError(resp *http.Response, err error) error {
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	return errors.Wrap(ErrCannotConnect, err.Error())
}

// wsConn adapts a websocket connection to the Conn interface.
type wsConn struct {
	url         string
	conn        *websocket.Conn
	logger      Logger
	writeMu     sync.Mutex
	closeC      chan struct{}
	closeOnce   sync.Once
	reopenTimer *time.Timer
}

func (c *wsConn) Receive(timeout time.Duration) (Message, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.Wrap(ErrConnectionClosed, err.Error())
	}

	messageType, bts, err := c.conn.ReadMessage()
	if err != nil {
		return nil, c.classifyReadError(err, timeout)
	}

	switch messageType {
	case websocket.BinaryMessage:
		c.logger.Debugln("<= [BIN]")
		return NewBinaryMessage(bts), nil
	default:
		c.logger.Debugf("<= [TEXT] %s", string(bts))
		return NewTextMessage(bts), nil
	}
}

// classifyReadError maps transport read failures onto the pool taxonomy:
// deadline expiry, session end (normal and abnormal closes alike), or
// anything else, returned as-is for the supervisor to log in full.
func (c *wsConn) classifyReadError(err error, timeout time.Duration) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() && timeout > 0 {
		return errors.Wrap(ErrReceiveTimeout, err.Error())
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return errors.Wrap(ErrConnectionClosed, err.Error())
	}

	if errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrConnectionClosed, err.Error())
	}

	return err
}

func (c *wsConn) Send(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.conn.SetWriteDeadline(deadline)

	switch m.Type() {
	case PingMessage:
		c.logger.Debugln("=> [PING]")
		return c.conn.WriteControl(websocket.PingMessage, m.Data(), deadline)
	case PongMessage:
		c.logger.Debugln("=> [PONG]")
		return c.conn.WriteControl(websocket.PongMessage, m.Data(), deadline)
	case BinaryMessage:
		c.logger.Debugln("=> [BIN]")
		return c.conn.WriteMessage(websocket.BinaryMessage, m.Data())
	default:
		c.logger.Debugf("=> [TEXT] %s", m.Data())
		return c.conn.WriteMessage(websocket.TextMessage, m.Data())
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		if c.reopenTimer != nil {
			c.reopenTimer.Stop()
		}
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
		close(c.closeC)
	})
}

func (c *wsConn) Done() <-chan struct{} {
	return c.closeC
}

// watch closes the connection when the owning context ends, which unblocks
// any in-flight read.
func (c *wsConn) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.Close()
	case <-c.closeC:
	}
}

// keepAlive sends periodic pings until the session ends.
func (c *wsConn) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeC:
			return
		case <-ticker.C:
			c.logger.Debugln("=> [PING]")
			err := c.conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(writeWait),
			)
			if err != nil {
				c.logger.Debugf("keep-alive ping failed: %s", err)
				return
			}
		}
	}
}
