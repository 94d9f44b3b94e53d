// Package peertest provides an in-process websocket survey server for tests.
// It records every frame a client sends and lets tests push events, or run
// a scripted survey with Script.
package peertest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joescharf/fbchat/internal/protocol"
)

// ErrTimeout is returned when an expected connection or frame does not arrive.
var ErrTimeout = errors.New("peertest: timed out")

// Peer is a fake survey server.
type Peer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	token    string
	attempts atomic.Int64
	status   atomic.Int64 // non-zero rejects upgrades with this status

	// Script, when set before clients connect, answers the survey protocol
	// automatically.
	Script *Script
	// StartError, when set, is returned in the start-session acknowledgement.
	StartError string

	mu    sync.Mutex
	conns []*Conn
	ready chan struct{}
}

// New starts a peer that accepts the given bearer token. An empty token
// accepts any client.
func New(token string) *Peer {
	p := &Peer{token: token, ready: make(chan struct{}, 16)}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	return p
}

// URL returns the websocket URL of the peer.
func (p *Peer) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http") + "/ws"
}

// Close shuts down the server and all connections.
func (p *Peer) Close() {
	p.mu.Lock()
	conns := append([]*Conn(nil), p.conns...)
	p.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
	p.server.Close()
}

// Attempts returns how many upgrade requests the peer has seen.
func (p *Peer) Attempts() int {
	return int(p.attempts.Load())
}

// Reject makes subsequent upgrades fail with status. Zero accepts again.
func (p *Peer) Reject(status int) {
	p.status.Store(int64(status))
}

// Connections returns the number of accepted connections so far.
func (p *Peer) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// WaitConn waits for the n-th accepted connection (1-based).
func (p *Peer) WaitConn(n int, timeout time.Duration) (*Conn, error) {
	deadline := time.After(timeout)
	for {
		p.mu.Lock()
		if len(p.conns) >= n {
			c := p.conns[n-1]
			p.mu.Unlock()
			return c, nil
		}
		p.mu.Unlock()
		select {
		case <-p.ready:
		case <-deadline:
			return nil, fmt.Errorf("connection %d: %w", n, ErrTimeout)
		}
	}
}

func (p *Peer) serve(w http.ResponseWriter, r *http.Request) {
	p.attempts.Add(1)
	if status := int(p.status.Load()); status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if p.token != "" && r.Header.Get("Authorization") != "Bearer "+p.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Conn{
		peer:       p,
		ws:         ws,
		frames:     make(chan protocol.Frame, 256),
		TokenQuery: r.URL.Query().Get("token"),
		AuthHeader: r.Header.Get("Authorization"),
	}
	if p.Script != nil {
		c.script = p.Script.clone()
	}

	p.mu.Lock()
	p.conns = append(p.conns, c)
	p.mu.Unlock()
	select {
	case p.ready <- struct{}{}:
	default:
	}

	c.readLoop()
}

// Conn is one accepted client connection.
type Conn struct {
	peer   *Peer
	ws     *websocket.Conn
	frames chan protocol.Frame
	script *Script

	writeMu sync.Mutex

	TokenQuery string
	AuthHeader string
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		f, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		if f.Event == protocol.EventStartSession && f.ID != 0 {
			var ack protocol.StartAck
			if c.peer.StartError != "" {
				ack.Error = &protocol.Notice{Message: c.peer.StartError}
			}
			_ = c.Ack(f.ID, ack)
		}
		if c.script != nil {
			c.script.handle(c, f)
		}
		select {
		case c.frames <- f:
		default:
		}
	}
}

// Send pushes an event to the client.
func (c *Conn) Send(event string, payload any) error {
	b, err := protocol.Encode(event, payload, 0)
	if err != nil {
		return err
	}
	return c.write(b)
}

// SendRaw pushes an event whose data is the given JSON text.
func (c *Conn) SendRaw(event, data string) error {
	return c.Send(event, json.RawMessage(data))
}

// Ack answers a client request.
func (c *Conn) Ack(id uint64, payload any) error {
	b, err := protocol.EncodeAck(id, payload)
	if err != nil {
		return err
	}
	return c.write(b)
}

func (c *Conn) write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Next returns the next frame received from the client.
func (c *Conn) Next(timeout time.Duration) (protocol.Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return protocol.Frame{}, fmt.Errorf("connection closed")
		}
		return f, nil
	case <-time.After(timeout):
		return protocol.Frame{}, ErrTimeout
	}
}

// Expect skips frames until one with the given event arrives.
func (c *Conn) Expect(event string, timeout time.Duration) (protocol.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.Frame{}, fmt.Errorf("waiting for %s: %w", event, ErrTimeout)
		}
		f, err := c.Next(remaining)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("waiting for %s: %w", event, err)
		}
		if f.Event == event {
			return f, nil
		}
	}
}

// Drop closes the connection without a close handshake.
func (c *Conn) Drop() {
	_ = c.ws.UnderlyingConn().Close()
}

// Hangup closes the connection with a normal close frame.
func (c *Conn) Hangup() {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	_ = c.ws.Close()
}
