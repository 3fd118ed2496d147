package wspool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// mockConn is a func-field Conn fake for tests. Nil funcs behave as no-ops.
type mockConn struct {
	ReceiveFunc func(timeout time.Duration) (Message, error)
	SendFunc    func(m Message) error
	CloseFunc   func()
	DoneFunc    func() <-chan struct{}
}

func (m *mockConn) Receive(timeout time.Duration) (Message, error) {
	if m.ReceiveFunc == nil {
		return nil, ErrConnectionClosed
	}
	return m.ReceiveFunc(timeout)
}

func (m *mockConn) Send(msg Message) error {
	if m.SendFunc == nil {
		return nil
	}
	return m.SendFunc(msg)
}

func (m *mockConn) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

func (m *mockConn) Done() <-chan struct{} {
	if m.DoneFunc == nil {
		return nil
	}
	return m.DoneFunc()
}

// scriptedConn yields a fixed sequence of receive outcomes, then keeps
// returning the last one.
type receiveOutcome struct {
	msg Message
	err error
}

func scriptedConn(outcomes ...receiveOutcome) *mockConn {
	var (
		mu  sync.Mutex
		idx int
	)

	return &mockConn{
		ReceiveFunc: func(time.Duration) (Message, error) {
			mu.Lock()
			defer mu.Unlock()

			out := outcomes[idx]
			if idx < len(outcomes)-1 {
				idx++
			}
			return out.msg, out.err
		},
	}
}

// mockDialer is a func-field Dialer fake.
type mockDialer struct {
	DialFunc func(ctx context.Context) (Conn, error)
}

func (m *mockDialer) Dial(ctx context.Context) (Conn, error) {
	return m.DialFunc(ctx)
}

func zeroBackoff(int) time.Duration { return 0 }

// recordingLogger captures log entries for assertions. WithField children
// share the parent's sink.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
}

type logEntry struct {
	level string
	msg   string
}

func newRecordingLogger() *recordingLogger {
	var entries []logEntry
	return &recordingLogger{
		mu:      &sync.Mutex{},
		entries: &entries,
	}
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	*l.entries = append(*l.entries, logEntry{level: level, msg: msg})
}

// count returns the number of entries at level whose message contains substr.
func (l *recordingLogger) count(level, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range *l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			n++
		}
	}
	return n
}

func (l *recordingLogger) WithField(string, any) Logger { return l }

func (l *recordingLogger) Debug(args ...any)                 { l.record("debug", fmt.Sprint(args...)) }
func (l *recordingLogger) Debugf(format string, args ...any) { l.record("debug", fmt.Sprintf(format, args...)) }
func (l *recordingLogger) Debugln(args ...any)               { l.record("debug", fmt.Sprintln(args...)) }
func (l *recordingLogger) Info(args ...any)                  { l.record("info", fmt.Sprint(args...)) }
func (l *recordingLogger) Infof(format string, args ...any)  { l.record("info", fmt.Sprintf(format, args...)) }
func (l *recordingLogger) Infoln(args ...any)                { l.record("info", fmt.Sprintln(args...)) }
func (l *recordingLogger) Warn(args ...any)                  { l.record("warn", fmt.Sprint(args...)) }
func (l *recordingLogger) Warnf(format string, args ...any)  { l.record("warn", fmt.Sprintf(format, args...)) }
func (l *recordingLogger) Warnln(args ...any)                { l.record("warn", fmt.Sprintln(args...)) }
func (l *recordingLogger) Error(args ...any)                 { l.record("error", fmt.Sprint(args...)) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.record("error", fmt.Sprintf(format, args...)) }
func (l *recordingLogger) Errorln(args ...any)               { l.record("error", fmt.Sprintln(args...)) }
