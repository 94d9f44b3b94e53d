// Package conn owns the bidirectional channel to the survey server: it
// connects, authenticates, retries with a fixed delay, answers heartbeats
// and correlates acknowledgements. Callers observe every outcome through
// a Handler; nothing is returned from Connect.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/protocol"
)

// Handler receives connection state changes and inbound protocol events.
// Implementations must not block and must not call Close.
type Handler interface {
	ConnectionChanged(state models.ConnectionState, diagnostic string)
	EventReceived(event string, data json.RawMessage)
}

// Manager owns a single websocket connection to the survey server.
type Manager struct {
	opts       Options
	credential string
	dialer     *websocket.Dialer
	logger     *log.Logger

	// hmu guards the handler. Deliveries hold the read lock for the whole
	// callback so Close can wait them out before the socket goes away.
	hmu          sync.RWMutex
	handler      Handler
	unsubscribed bool

	mu      sync.Mutex
	state   models.ConnectionState
	ws      *websocket.Conn
	running bool
	closed  bool
	nextID  uint64
	acks    map[uint64]func(json.RawMessage)
	ctx     context.Context
	cancel  context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Manager for opts.URL that authenticates with credential.
func New(opts Options, credential string, logger *log.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		opts:       opts,
		credential: credential,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		logger: logger.WithPrefix("conn"),
		state:  models.ConnectionDisconnected,
		acks:   make(map[uint64]func(json.RawMessage)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers the handler that receives all notifications.
func (m *Manager) Subscribe(h Handler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	if m.unsubscribed {
		return
	}
	m.handler = h
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts a connect cycle unless one is already running or the
// channel is open. It never blocks.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.running {
		return
	}
	m.running = true
	m.wg.Add(1)
	go m.run(m.ctx, false)
}

// Emit sends an event without waiting for an acknowledgement.
func (m *Manager) Emit(event string, payload any) error {
	return m.send(event, payload, nil)
}

// EmitWithAck sends an event and calls ack with the peer's acknowledgement
// payload. The callback is dropped if the connection goes away first.
func (m *Manager) EmitWithAck(event string, payload any, ack func(json.RawMessage)) error {
	return m.send(event, payload, ack)
}

// Close unsubscribes the handler and then closes the channel. It is safe
// to call more than once and when never connected.
func (m *Manager) Close() error {
	m.hmu.Lock()
	m.handler = nil
	m.unsubscribed = true
	m.hmu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ws := m.ws
	m.acks = make(map[uint64]func(json.RawMessage))
	m.mu.Unlock()

	m.cancel()

	var err error
	if ws != nil {
		m.writeMu.Lock()
		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second),
		)
		m.writeMu.Unlock()
		err = ws.Close()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.state = models.ConnectionDisconnected
	m.mu.Unlock()
	m.logger.Debug("closed")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// run drives one connect cycle: dial with retries, read until the channel
// drops, and start over in reconnect mode until the budget is exhausted or
// the manager is closed.
func (m *Manager) run(ctx context.Context, reconnect bool) {
	defer m.wg.Done()

	for {
		ws, err := m.dialWithRetry(ctx, reconnect)
		if err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("giving up", "err", err)
			m.setState(models.ConnectionDisconnected, diagnostic(err, m.opts.MaxAttempts))
			return
		}

		if !m.attach(ws) {
			_ = ws.Close()
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		}
		m.logger.Info("connected", "url", m.opts.URL)
		m.setState(models.ConnectionConnected, "")

		err = m.readLoop(ws)
		m.detach(ws)
		if ctx.Err() != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		}

		// A normal close is the server hanging up on purpose; like any
		// exhausted cycle it waits for an explicit Connect.
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.logger.Info("server closed the connection")
			m.setState(models.ConnectionDisconnected, "")
			return
		}

		m.logger.Warn("connection lost", "err", err)
		m.setState(models.ConnectionReconnecting, "Connection lost. Reconnecting...")
		reconnect = true
	}
}

func (m *Manager) dialWithRetry(ctx context.Context, reconnect bool) (*websocket.Conn, error) {
	attempt := 0
	op := func() (*websocket.Conn, error) {
		attempt++
		if attempt == 1 && !reconnect {
			m.setState(models.ConnectionConnecting, "")
		} else {
			m.setState(models.ConnectionReconnecting, "")
		}

		ws, err := m.dial(ctx)
		if err != nil {
			m.logger.Debug("connect attempt failed", "attempt", attempt, "err", err)
			if isUnauthorized(err) {
				return nil, permanent(err)
			}
			return nil, err
		}
		return ws, nil
	}
	return backoff.RetryWithData(op, retryPolicy(ctx, m.opts.MaxAttempts, m.opts.RetryDelay))
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return nil, permanent(&DialError{URL: m.opts.URL, Err: err})
	}
	header := http.Header{}
	if m.credential != "" {
		q := u.Query()
		q.Set("token", m.credential)
		u.RawQuery = q.Encode()
		header.Set("Authorization", "Bearer "+m.credential)
	}

	dctx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()

	ws, resp, err := m.dialer.DialContext(dctx, u.String(), header)
	if err != nil {
		de := &DialError{URL: m.opts.URL, Err: err}
		if resp != nil {
			de.Status = resp.StatusCode
		}
		return nil, de
	}
	return ws, nil
}

// attach publishes ws as the open channel. It reports false if the manager
// was closed while dialing.
func (m *Manager) attach(ws *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.ws = ws
	return true
}

func (m *Manager) detach(ws *websocket.Conn) {
	m.mu.Lock()
	if m.ws == ws {
		m.ws = nil
	}
	m.acks = make(map[uint64]func(json.RawMessage))
	m.mu.Unlock()
	_ = ws.Close()
}

func (m *Manager) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		f, err := protocol.Decode(data)
		if err != nil {
			m.logger.Warn("dropping malformed frame", "err", err)
			continue
		}
		if f.IsAck() {
			m.resolveAck(f.Ack, f.Data)
			continue
		}

		switch f.Event {
		case protocol.EventHeartbeatPing:
			m.pong(ws, f.Data)
		case protocol.EventConnectionStatus:
			m.logger.Debug("connection status", "status", string(f.Data))
		default:
			m.deliver(func(h Handler) { h.EventReceived(f.Event, f.Data) })
		}
	}
}

// pong echoes the peer's timestamp. Failures are logged only.
func (m *Manager) pong(ws *websocket.Conn, data json.RawMessage) {
	var hb protocol.Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		m.logger.Debug("malformed heartbeat", "err", err)
	}
	b, err := protocol.Encode(protocol.EventHeartbeatPong, hb, 0)
	if err == nil {
		err = m.write(ws, b)
	}
	if err != nil {
		m.logger.Debug("heartbeat echo failed", "err", err)
	}
}

func (m *Manager) send(event string, payload any, ack func(json.RawMessage)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	ws := m.ws
	if ws == nil || m.state != models.ConnectionConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	var id uint64
	if ack != nil {
		m.nextID++
		id = m.nextID
		m.acks[id] = ack
	}
	m.mu.Unlock()

	b, err := protocol.Encode(event, payload, id)
	if err == nil {
		err = m.write(ws, b)
	}
	if err != nil {
		if id != 0 {
			m.mu.Lock()
			delete(m.acks, id)
			m.mu.Unlock()
		}
		return fmt.Errorf("emit %s: %w", event, err)
	}
	m.logger.Debug("sent", "event", event)
	return nil
}

func (m *Manager) write(ws *websocket.Conn, b []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, b)
}

func (m *Manager) resolveAck(id uint64, data json.RawMessage) {
	m.mu.Lock()
	ack, ok := m.acks[id]
	delete(m.acks, id)
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("unknown ack", "id", id)
		return
	}

	m.hmu.RLock()
	defer m.hmu.RUnlock()
	if m.unsubscribed {
		return
	}
	ack(data)
}

func (m *Manager) setState(s models.ConnectionState, diag string) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	if changed || diag != "" {
		m.deliver(func(h Handler) { h.ConnectionChanged(s, diag) })
	}
}

func (m *Manager) deliver(fn func(Handler)) {
	m.hmu.RLock()
	defer m.hmu.RUnlock()
	if m.handler != nil {
		fn(m.handler)
	}
}

func diagnostic(err error, attempts int) string {
	if isUnauthorized(err) {
		return "Authentication rejected by the survey server."
	}
	return fmt.Sprintf("Unable to reach the survey server after %d attempts.", attempts)
}
