package session

import (
	"encoding/json"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/protocol"
)

// inbound maps peer events to their handlers. Unknown events are ignored.
var inbound = map[string]func(*Machine, json.RawMessage){
	protocol.EventFirstQuestion:      (*Machine).onFirstQuestion,
	protocol.EventNextQuestion:       (*Machine).onNextQuestion,
	protocol.EventRequestFeedback:    (*Machine).onRequestFeedback,
	protocol.EventSessionSummary:     (*Machine).onSummary,
	protocol.EventThankYou:           (*Machine).onThankYou,
	protocol.EventAppreciation:       (*Machine).onAppreciation,
	protocol.EventSessionEnded:       (*Machine).onEnded,
	protocol.EventSessionInterrupted: (*Machine).onInterrupted,
	protocol.EventError:              (*Machine).onError,
}

func (m *Machine) handleEvent(event string, data json.RawMessage) {
	h, ok := inbound[event]
	if !ok {
		m.logger.Debug("unhandled event", "event", event)
		return
	}
	h(m, data)
}

func (m *Machine) handleConnection(state models.ConnectionState, diagnostic string) {
	m.conn = state
	if diagnostic != "" {
		m.say(models.OriginSystem, diagnostic)
	}
	if state == models.ConnectionConnected {
		m.beginSession()
	}
}

// beginSession moves to Starting with a fresh record and asks the peer for
// the first question.
func (m *Machine) beginSession() {
	m.resetSession()
	m.fire(evConnected)
	m.requestStart()
}

func (m *Machine) requestStart() {
	id := m.session.ID
	err := m.tr.EmitWithAck(protocol.EventStartSession, nil, func(data json.RawMessage) {
		m.enqueue(func() { m.onStartAck(id, data) })
	})
	if err != nil {
		m.logger.Warn("start-session not sent", "err", err)
	}
}

func (m *Machine) onStartAck(sessionID string, data json.RawMessage) {
	if sessionID != m.session.ID {
		return
	}
	var ack protocol.StartAck
	if err := json.Unmarshal(data, &ack); err != nil {
		m.logger.Debug("malformed start ack", "err", err)
		return
	}
	if ack.Error != nil {
		m.say(models.OriginSystem, "Failed to start session: "+ack.Error.Message)
	}
}

func decodeQuestion(data json.RawMessage) (models.Question, bool) {
	var q protocol.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return models.Question{}, false
	}
	return q.Model(), true
}

func decodeNotice(data json.RawMessage) protocol.Notice {
	var n protocol.Notice
	_ = json.Unmarshal(data, &n)
	return n
}

func (m *Machine) onFirstQuestion(data json.RawMessage) {
	q, ok := decodeQuestion(data)
	if !ok {
		m.logger.Warn("malformed first-question")
		return
	}
	if !m.fire(evFirstQuestion) {
		return
	}
	m.askQuestion(q)
}

func (m *Machine) onNextQuestion(data json.RawMessage) {
	if protocol.IsNull(data) {
		if m.phase().Active() {
			m.session.Loading = false
		}
		return
	}
	q, ok := decodeQuestion(data)
	if !ok {
		m.logger.Warn("malformed next-question")
		return
	}
	if !m.fire(evNextQuestion) {
		return
	}
	m.askQuestion(q)
}

func (m *Machine) askQuestion(q models.Question) {
	m.session.CurrentQuestion = &q
	m.session.FeedbackPrompt = false
	m.session.FeedbackQuestionID = ""
	m.session.Loading = false
	m.say(models.OriginBot, q.Text)
}

func (m *Machine) onRequestFeedback(data json.RawMessage) {
	var req protocol.FeedbackRequest
	_ = json.Unmarshal(data, &req)
	if !m.fire(evFeedbackRequested) {
		return
	}
	id := req.QuestionID
	if id == "" && m.session.CurrentQuestion != nil {
		id = m.session.CurrentQuestion.ID
	}
	m.session.FeedbackQuestionID = id
	m.session.FeedbackPrompt = true
}

func (m *Machine) onSummary(data json.RawMessage) {
	if !m.fire(evSummary) {
		return
	}
	summary := protocol.DecodeSummary(data)
	m.session.Summary = &summary
	m.session.CurrentQuestion = nil
	m.session.FeedbackPrompt = false
	m.session.FeedbackQuestionID = ""
	m.session.Loading = false
	m.say(models.OriginBot, summaryPrompt)

	if m.fire(evExperienceRequested) {
		m.session.ExperiencePrompt = true
	}
}

func (m *Machine) onThankYou(data json.RawMessage) {
	n := decodeNotice(data)
	if !m.fire(evThankYou) {
		return
	}
	m.session.ExperiencePrompt = false
	if n.Message != "" {
		m.say(models.OriginBot, n.Message)
	}
}

func (m *Machine) onAppreciation(json.RawMessage) {
	if !m.fire(evAppreciation) {
		return
	}
	m.say(models.OriginBot, appreciationText)
}

func (m *Machine) onEnded(data json.RawMessage) {
	n := decodeNotice(data)
	if !m.fire(evEnded) {
		return
	}
	m.closeOut()
	m.say(models.OriginBot, orDefault(n.Message, endedFallback))
}

func (m *Machine) onInterrupted(data json.RawMessage) {
	n := decodeNotice(data)
	if !m.fire(evInterrupted) {
		return
	}
	m.closeOut()
	m.say(models.OriginSystem, orDefault(n.Message, interruptFallback))
}

func (m *Machine) closeOut() {
	m.session.FeedbackPrompt = false
	m.session.ExperiencePrompt = false
	m.session.Loading = false
	m.session.IssueDraft = nil
}

// onError records a peer error. It never moves the phase.
func (m *Machine) onError(data json.RawMessage) {
	n := decodeNotice(data)
	m.session.Loading = false
	err := &ProtocolError{Message: n.Message}
	m.logger.Warn("peer error", "err", err)
	m.say(models.OriginSystem, "Error: "+n.Message)
}
