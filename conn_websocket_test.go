package wspool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasthttp/websocket"
	gws "github.com/gorilla/websocket"
)

// newWSServer upgrades every request and hands the server side of the
// connection to handler.
func newWSServer(t *testing.T, handler func(*gws.Conn, *http.Request)) (srv *httptest.Server, wsURL string) {
	t.Helper()

	upgrader := gws.Upgrader{}
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"

	return srv, u.String()
}

func newTestWSDialer(wsURL string) *wsDialer {
	return newWebsocketDialer(
		&websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		staticDialParams(wsURL, nil),
		NopLogger(),
		0,
		0,
	)
}

func TestWebsocketConnReceive(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		_ = conn.WriteMessage(gws.TextMessage, []byte("hello"))
		_ = conn.WriteMessage(gws.BinaryMessage, []byte{0x01, 0x02})
		_ = conn.WriteMessage(
			gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
		)
		time.Sleep(50 * time.Millisecond)
	})

	conn, err := newTestWSDialer(wsURL).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	m, err := conn.Receive(time.Second)
	require.NoError(t, err)
	assert.True(t, m.Type().IsText())
	assert.Equal(t, "hello", string(m.Data()))

	m, err = conn.Receive(time.Second)
	require.NoError(t, err)
	assert.True(t, m.Type().IsBinary())
	assert.Equal(t, []byte{0x01, 0x02}, m.Data())

	_, err = conn.Receive(time.Second)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWebsocketConnReceiveTimeout(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		// Send nothing; hold the connection open.
		_, _, _ = conn.ReadMessage()
	})

	conn, err := newTestWSDialer(wsURL).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Receive(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestWebsocketConnAbruptCloseIsClosed(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		// Drop the TCP connection without a close frame.
		_ = conn.Close()
	})

	conn, err := newTestWSDialer(wsURL).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Receive(time.Second)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWebsocketConnSend(t *testing.T) {
	received := make(chan string, 1)
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	})

	conn, err := newTestWSDialer(wsURL).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(NewTextMessage([]byte("subscribe"))))

	select {
	case got := <-received:
		assert.Equal(t, "subscribe", got)
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
}

func TestWebsocketConnContextCancelUnblocksReceive(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())

	conn, err := newTestWSDialer(wsURL).Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	// Unbounded receive must still be interrupted by cancellation.
	_, err = conn.Receive(0)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not released after cancellation")
	}
}

func TestWebsocketConnKeepAlive(t *testing.T) {
	var pings int32
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		conn.SetPingHandler(func(string) error {
			atomic.AddInt32(&pings, 1)
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	dialer := newWebsocketDialer(
		&websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		staticDialParams(wsURL, nil),
		NopLogger(),
		20*time.Millisecond,
		0,
	)

	conn, err := dialer.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&pings) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestWebsocketDialRefreshesParams(t *testing.T) {
	var (
		mu     sync.Mutex
		tokens []string
	)
	_, wsURL := newWSServer(t, func(conn *gws.Conn, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.Header.Get("Authorization"))
		mu.Unlock()
	})

	var calls int32
	getter := func(context.Context) (DialParams, error) {
		header := http.Header{}
		if atomic.AddInt32(&calls, 1) == 1 {
			header.Set("Authorization", "token-1")
		} else {
			header.Set("Authorization", "token-2")
		}
		return DialParams{URL: wsURL, Header: header}, nil
	}

	dialer := newWebsocketDialer(
		&websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		getter,
		NopLogger(),
		0,
		0,
	)

	for i := 0; i < 2; i++ {
		conn, err := dialer.Dial(context.Background())
		require.NoError(t, err)
		conn.Close()
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"token-1", "token-2"}, tokens)
}

func TestConnectEndToEnd(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *gws.Conn, _ *http.Request) {
		_ = conn.WriteMessage(gws.TextMessage, []byte("first"))
		_ = conn.WriteMessage(gws.TextMessage, []byte("second"))
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu       sync.Mutex
		payloads []string
	)
	done := make(chan struct{})

	errC := make(chan error, 1)
	go func() {
		errC <- Connect(ctx, wsURL,
			WithBackoff(zeroBackoff),
			WithOnMessage(func(_ context.Context, m Message) error {
				mu.Lock()
				payloads = append(payloads, string(m.Data()))
				if len(payloads) == 2 {
					close(done)
				}
				mu.Unlock()
				return nil
			}),
		)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages never arrived")
	}
	cancel()

	require.ErrorIs(t, <-errC, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "second"}, payloads)
}
