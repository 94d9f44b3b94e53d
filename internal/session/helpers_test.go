package session

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joescharf/fbchat/internal/logging"
	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/protocol"
	"github.com/joescharf/fbchat/internal/transcript"
)

type sentEvent struct {
	Event string
	Data  json.RawMessage
}

// fakeTransport records emitted events and lets tests answer acks.
type fakeTransport struct {
	mu       sync.Mutex
	state    models.ConnectionState
	connects int
	sent     []sentEvent
	acks     []func(json.RawMessage)
	err      error
}

func (f *fakeTransport) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeTransport) State() models.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Emit(event string, payload any) error {
	return f.EmitWithAck(event, payload, nil)
}

func (f *fakeTransport) EmitWithAck(event string, payload any, ack func(json.RawMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, sentEvent{Event: event, Data: b})
	if ack != nil {
		f.acks = append(f.acks, ack)
	}
	return nil
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Event
	}
	return out
}

func (f *fakeTransport) last() sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentEvent{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) connectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// ack answers the n-th acknowledged request (0-based).
func (f *fakeTransport) ack(n int, data string) {
	f.mu.Lock()
	fn := f.acks[n]
	f.mu.Unlock()
	fn(json.RawMessage(data))
}

func newTestMachine(t *testing.T, cfg Config) (*Machine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{state: models.ConnectionDisconnected}
	return New(tr, transcript.New(), cfg, logging.Discard()), tr
}

// drain runs queued work synchronously, for tests that drive the machine
// without Run.
func drain(m *Machine) {
	for {
		select {
		case fn := <-m.queue:
			fn()
		default:
			return
		}
	}
}

func connect(m *Machine) {
	m.handleConnection(models.ConnectionConnected, "")
}

func send(t *testing.T, m *Machine, event string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		data = b
	}
	m.handleEvent(event, data)
}

func question(id, text string) protocol.Question {
	return protocol.Question{MongoID: id, Text: text}
}

// startedAt connects and delivers the first question.
func startedAt(t *testing.T, m *Machine) {
	t.Helper()
	connect(m)
	send(t, m, protocol.EventFirstQuestion, question("q1", "How easy was it to find what you needed?"))
	require.Equal(t, models.PhaseAwaitingRating, m.phase())
}

func texts(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Text
	}
	return out
}

func lastMessage(m *Machine) models.Message {
	entries := m.log.Entries()
	if len(entries) == 0 {
		return models.Message{}
	}
	return entries[len(entries)-1]
}
