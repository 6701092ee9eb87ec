package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyang/notify-relay/internal/domain/connection"
)

var (
	ErrInvalidBaseURL = errors.New("stream: invalid base url")
	ErrManagerClosed  = errors.New("stream: manager closed")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteWait          = time.Second
)

// FrameHandler receives every text frame in arrival order. It runs on the
// connection's read goroutine and must not block for long.
type FrameHandler func(frame string)

// StateObserver is told about every state change. It may run while the
// manager's lock is held, so it must not call back into the Manager.
type StateObserver func(id uuid.UUID, from, to connection.State)

// Conn is one streaming connection. It is never reopened: once it reaches
// Closed the Manager dials a new Conn on the next Obtain.
type Conn struct {
	id      uuid.UUID
	manager *Manager
	state   atomic.Int32
	ws      *websocket.Conn
	done    chan struct{}
	once    sync.Once
}

func (c *Conn) ID() uuid.UUID { return c.id }

func (c *Conn) State() connection.State { return connection.State(c.state.Load()) }

// Done is closed once the connection reaches Closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close performs a normal closure and discards the connection.
func (c *Conn) Close() { c.manager.shutdown(c, true) }

type Option func(*Manager)

func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithStateObserver(fn StateObserver) Option {
	return func(m *Manager) { m.onState = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns the single shared streaming connection. There is no timed
// reconnect: a lost connection is replaced only when a consumer next calls
// Obtain.
type Manager struct {
	url     string
	onFrame FrameHandler
	onState StateObserver
	dialer  *websocket.Dialer
	logger  *slog.Logger

	// dialMu admits one dial at a time. mu guards current and closed and is
	// never held across network I/O.
	dialMu  sync.Mutex
	mu      sync.Mutex
	current *Conn
	closed  bool

	closing context.Context
	stop    context.CancelFunc
}

func NewManager(url string, onFrame FrameHandler, opts ...Option) *Manager {
	m := &Manager{
		url:     url,
		onFrame: onFrame,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		logger: slog.Default(),
	}
	m.closing, m.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "stream")
	return m
}

// Obtain returns the live connection, dialing a new one when there is none or
// the current one is closing or closed. Concurrent callers wait for the one
// dial in flight and share its connection. While the dial runs the new
// connection is already current and reports Connecting.
func (m *Manager) Obtain(ctx context.Context) (*Conn, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if c := m.current; c != nil && !c.State().Terminal() {
		m.mu.Unlock()
		return c, nil
	}
	c := &Conn{
		id:      uuid.New(),
		manager: m,
		done:    make(chan struct{}),
	}
	c.state.Store(int32(connection.StateClosed))
	m.current = c
	m.mu.Unlock()

	m.transition(c, connection.StateConnecting)

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(m.closing, cancel)
	defer stopWatch()

	ws, _, err := m.dialer.DialContext(dialCtx, m.url, nil)
	if err != nil {
		closed := m.abandon(c)
		m.logger.Warn("stream dial failed", "connection_id", c.id, "error", err)
		if closed {
			return nil, ErrManagerClosed
		}
		return nil, fmt.Errorf("dialing stream: %w", err)
	}

	m.mu.Lock()
	if m.closed || m.current != c {
		m.mu.Unlock()
		ws.Close()
		m.abandon(c)
		return nil, ErrManagerClosed
	}
	c.ws = ws
	m.transition(c, connection.StateOpen)
	m.mu.Unlock()

	go m.readLoop(c)
	return c, nil
}

// abandon discards a connection whose dial did not produce a socket and
// reports whether the manager was closed meanwhile.
func (m *Manager) abandon(c *Conn) bool {
	m.mu.Lock()
	if m.current == c {
		m.current = nil
	}
	closed := m.closed
	m.mu.Unlock()

	c.once.Do(func() {
		m.transition(c, connection.StateClosed)
		close(c.done)
	})
	return closed
}

// Connect is Obtain for callers that only need the connection id.
func (m *Manager) Connect(ctx context.Context) (uuid.UUID, error) {
	c, err := m.Obtain(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return c.ID(), nil
}

// ConnectionID returns the id of the current connection, if any.
func (m *Manager) ConnectionID() (uuid.UUID, bool) {
	if c := m.Current(); c != nil {
		return c.ID(), true
	}
	return uuid.Nil, false
}

// Current returns the live connection or nil.
func (m *Manager) Current() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State reports the state of the current connection, Closed when there is none.
func (m *Manager) State() connection.State {
	if c := m.Current(); c != nil {
		return c.State()
	}
	return connection.StateClosed
}

// Close shuts the current connection and refuses further Obtain calls. A dial
// in flight is cancelled.
func (m *Manager) Close() {
	m.stop()

	m.mu.Lock()
	m.closed = true
	c := m.current
	m.current = nil
	m.mu.Unlock()

	if c != nil {
		m.shutdown(c, true)
	}
}

func (m *Manager) readLoop(c *Conn) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.State() == connection.StateOpen && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warn("stream transport error", "connection_id", c.id, "error", err)
			} else {
				m.logger.Debug("stream closed", "connection_id", c.id, "error", err)
			}
			m.shutdown(c, false)
			return
		}
		if msgType != websocket.TextMessage {
			m.logger.Debug("ignoring non-text frame", "connection_id", c.id, "type", msgType)
			continue
		}
		m.onFrame(string(data))
	}
}

func (m *Manager) shutdown(c *Conn, graceful bool) {
	c.once.Do(func() {
		m.transition(c, connection.StateClosing)
		if c.ws != nil {
			if graceful {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				//nolint:errcheck // best-effort close frame
				c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
			}
			c.ws.Close()
		}
		m.transition(c, connection.StateClosed)
		close(c.done)
	})

	m.mu.Lock()
	if m.current == c {
		m.current = nil
	}
	m.mu.Unlock()
}

func (m *Manager) transition(c *Conn, to connection.State) {
	from := connection.State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.logger.Debug("stream state changed", "connection_id", c.id, "from", from.String(), "to", to.String())
	if m.onState != nil {
		m.onState(c.id, from, to)
	}
}
