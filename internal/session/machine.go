// Package session implements the survey protocol state machine. All state
// changes, whether caused by the user, by inbound peer events or by
// connection changes, run one at a time on the goroutine that calls Run.
// Observers read immutable State snapshots.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/looplab/fsm"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/transcript"
)

// Transport is the part of the connection manager the machine drives.
type Transport interface {
	Connect()
	State() models.ConnectionState
	Emit(event string, payload any) error
	EmitWithAck(event string, payload any, ack func(json.RawMessage)) error
}

// Config holds the session policy switches.
type Config struct {
	FeedbackMode    models.FeedbackMode
	ClearTranscript bool // wipe the transcript when a new session is requested
}

// DefaultConfig returns the conditional-feedback policy with transcript
// clearing enabled.
func DefaultConfig() Config {
	return Config{FeedbackMode: models.FeedbackConditional, ClearTranscript: true}
}

const queueSize = 256

// Machine is the session protocol state machine.
type Machine struct {
	tr     Transport
	log    *transcript.Log
	cfg    Config
	logger *log.Logger

	// Owned by the Run goroutine.
	table     *fsm.FSM
	session   models.Session
	conn      models.ConnectionState
	rejection error

	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	current  atomic.Pointer[State]

	subMu sync.Mutex
	subs  map[int]chan State
	subID int
}

// New creates a Machine in PhaseIdle. Nothing happens until Run is called
// and a session is started.
func New(tr Transport, tlog *transcript.Log, cfg Config, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if tlog == nil {
		tlog = transcript.New()
	}
	if cfg.FeedbackMode == "" {
		cfg.FeedbackMode = models.FeedbackConditional
	}
	m := &Machine{
		tr:     tr,
		log:    tlog,
		cfg:    cfg,
		logger: logger.WithPrefix("session"),
		table:  newTable(),
		conn:   models.ConnectionDisconnected,
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		subs:   make(map[int]chan State),
	}
	s := m.snapshot()
	m.current.Store(&s)
	return m
}

// Run processes queued work until ctx is cancelled. It must be called once.
func (m *Machine) Run(ctx context.Context) error {
	defer m.stop()
	m.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-m.queue:
			fn()
			m.publish()
		}
	}
}

// State returns the latest published snapshot.
func (m *Machine) State() State {
	return *m.current.Load()
}

// Subscribe returns a channel that receives the latest snapshot after
// every change. Slow readers only see the newest snapshot. The channel is
// closed when Run returns or cancel is called.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	ch <- m.State()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	select {
	case <-m.done:
		close(ch)
		return ch, func() {}
	default:
	}
	id := m.subID
	m.subID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Flush waits until everything queued before the call has been applied.
func (m *Machine) Flush(ctx context.Context) error {
	applied := make(chan struct{})
	select {
	case m.queue <- func() { close(applied) }:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-applied:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the machine stops accepting work.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// ConnectionChanged implements conn.Handler.
func (m *Machine) ConnectionChanged(state models.ConnectionState, diagnostic string) {
	m.enqueue(func() { m.handleConnection(state, diagnostic) })
}

// EventReceived implements conn.Handler.
func (m *Machine) EventReceived(event string, data json.RawMessage) {
	m.enqueue(func() { m.handleEvent(event, data) })
}

// User operations. Each is queued and returns immediately; the outcome is
// visible in the next snapshot, including State.LastRejection.

// StartNewSession discards the current session and begins a fresh one.
func (m *Machine) StartNewSession() { m.enqueue(m.startNewSession) }

// SubmitRating answers the current question with a 1-5 rating.
func (m *Machine) SubmitRating(rating int) {
	m.enqueue(func() { m.submitRating(rating) })
}

// SubmitFeedback sends free text for the question awaiting feedback.
func (m *Machine) SubmitFeedback(text string) {
	m.enqueue(func() { m.submitFeedback(text) })
}

// SubmitExperienceRating sends the overall experience rating.
func (m *Machine) SubmitExperienceRating(rating int) {
	m.enqueue(func() { m.submitExperienceRating(rating) })
}

// OpenIssueReport starts an issue draft bound to the current question.
func (m *Machine) OpenIssueReport() { m.enqueue(m.openIssueReport) }

// CancelIssueReport discards the issue draft.
func (m *Machine) CancelIssueReport() { m.enqueue(m.cancelIssueReport) }

// ReportIssue sends an issue report with the given text.
func (m *Machine) ReportIssue(text string) {
	m.enqueue(func() { m.reportIssue(text) })
}

func (m *Machine) enqueue(fn func()) {
	select {
	case m.queue <- fn:
	case <-m.done:
	}
}

func (m *Machine) stop() {
	m.stopOnce.Do(func() {
		m.subMu.Lock()
		close(m.done)
		for id, ch := range m.subs {
			delete(m.subs, id)
			close(ch)
		}
		m.subMu.Unlock()
	})
}

func (m *Machine) publish() {
	s := m.snapshot()
	m.current.Store(&s)

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// fire applies a transition. It reports false, leaving everything as is,
// when the table does not allow ev in the current phase.
func (m *Machine) fire(ev string) bool {
	from := m.table.Current()
	if !m.table.Can(ev) {
		m.logger.Debug("ignored", "event", ev, "phase", from)
		return false
	}
	err := m.table.Event(context.Background(), ev)
	var same fsm.NoTransitionError
	if err != nil && !errors.As(err, &same) {
		m.logger.Warn("transition failed", "event", ev, "phase", from, "err", err)
		return false
	}
	if to := m.table.Current(); to != from {
		m.logger.Debug("transition", "event", ev, "from", from, "to", to)
	}
	return true
}

func (m *Machine) phase() models.Phase {
	return models.Phase(m.table.Current())
}

// resetSession replaces the session record with a fresh one.
func (m *Machine) resetSession() {
	m.session = models.Session{ID: newSessionID(), StartedAt: time.Now().UTC()}
	m.rejection = nil
}

func (m *Machine) say(origin models.Origin, text string) {
	m.log.Append(origin, text)
}

func (m *Machine) reject(err error) {
	m.rejection = err
	m.logger.Debug("rejected", "phase", m.phase(), "reason", err)
}

func (m *Machine) accept() {
	m.rejection = nil
}

// emit sends a fire-and-forget event. A failure means the channel went away
// after the last notification; the drop notification that follows reports it.
func (m *Machine) emit(event string, payload any) {
	if err := m.tr.Emit(event, payload); err != nil {
		m.logger.Warn("send failed", "event", event, "err", err)
		m.say(models.OriginSystem, "Could not send: "+err.Error())
	}
}

func newSessionID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
