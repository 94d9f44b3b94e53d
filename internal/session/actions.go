package session

import (
	"strings"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/protocol"
)

func (m *Machine) startNewSession() {
	m.resetSession()
	if m.cfg.ClearTranscript {
		m.log.Reset()
	}
	m.fire(evNewSession)

	if m.conn != models.ConnectionConnected {
		// The connected notification starts the session once the channel
		// is back.
		m.tr.Connect()
		if m.conn == models.ConnectionDisconnected {
			m.conn = models.ConnectionConnecting
		}
		return
	}
	m.requestStart()
}

// guard runs the checks shared by every submission. It reports false and
// records the rejection when the action may not proceed.
func (m *Machine) guard(allowed bool) bool {
	switch {
	case m.phase().Terminal():
		m.reject(ErrSessionOver)
	case !allowed:
		m.reject(ErrNotAllowed)
	case m.conn != models.ConnectionConnected:
		m.reject(ErrNotConnected)
	default:
		return true
	}
	return false
}

func (m *Machine) submitRating(rating int) {
	if rating < 1 || rating > 5 {
		m.reject(ErrInvalidRating)
		return
	}
	q := m.session.CurrentQuestion
	if !m.guard(m.phase() == models.PhaseAwaitingRating && q != nil && !m.session.Loading) {
		return
	}

	ev := evRateHigh
	if m.cfg.FeedbackMode == models.FeedbackConditional && rating <= 2 {
		ev = evRateLow
	}
	if !m.fire(ev) {
		m.reject(ErrNotAllowed)
		return
	}
	m.accept()
	m.say(models.OriginUser, ratingText(rating))
	m.emit(protocol.EventSubmitResponse, protocol.SubmitResponse{QuestionID: q.ID, Rating: &rating})
	if ev == evRateHigh {
		m.session.Loading = true
	}
}

func (m *Machine) submitFeedback(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		m.reject(ErrEmptyText)
		return
	}
	if m.cfg.FeedbackMode == models.FeedbackInline && m.phase() == models.PhaseAwaitingRating {
		m.submitInlineFeedback(text)
		return
	}

	s := &m.session
	if !m.guard(m.phase() == models.PhaseAwaitingOptionalFeedback && s.FeedbackPrompt && s.FeedbackQuestionID != "") {
		return
	}
	if !m.fire(evFeedbackSubmitted) {
		m.reject(ErrNotAllowed)
		return
	}
	m.accept()
	m.say(models.OriginUser, "Feedback: "+text)
	m.emit(protocol.EventSubmitAdditionalFeedback, protocol.SubmitAdditionalFeedback{
		QuestionID:         s.FeedbackQuestionID,
		AdditionalFeedback: text,
	})
	s.FeedbackPrompt = false
	s.FeedbackQuestionID = ""
	s.Loading = true
}

// submitInlineFeedback answers the current question with text instead of
// a rating.
func (m *Machine) submitInlineFeedback(text string) {
	q := m.session.CurrentQuestion
	if !m.guard(q != nil && !m.session.Loading) {
		return
	}
	if !m.fire(evInlineFeedback) {
		m.reject(ErrNotAllowed)
		return
	}
	m.accept()
	m.say(models.OriginUser, "Feedback: "+text)
	m.emit(protocol.EventSubmitResponse, protocol.SubmitResponse{QuestionID: q.ID, Feedback: &text})
	m.session.Loading = true
}

func (m *Machine) submitExperienceRating(rating int) {
	if rating < 1 || rating > 5 {
		m.reject(ErrInvalidRating)
		return
	}
	s := &m.session
	if !m.guard(m.phase() == models.PhaseAwaitingExperienceRating && s.ExperiencePrompt && !s.ExperienceSubmitted) {
		return
	}
	if !m.fire(evExperienceRated) {
		m.reject(ErrNotAllowed)
		return
	}
	m.accept()
	m.say(models.OriginUser, experienceText(rating))
	m.emit(protocol.EventSubmitExperienceRating, protocol.SubmitExperienceRating{Rating: rating})
	s.ExperienceSubmitted = true
}

func (m *Machine) issueAllowed() bool {
	switch {
	case m.phase().Terminal():
		m.reject(ErrSessionOver)
	case !m.phase().Active() || m.session.Loading:
		m.reject(ErrNotAllowed)
	default:
		return true
	}
	return false
}

func (m *Machine) openIssueReport() {
	if !m.issueAllowed() {
		return
	}
	m.accept()
	m.session.IssueDraft = &models.IssueReport{QuestionID: m.currentQuestionID()}
}

func (m *Machine) cancelIssueReport() {
	m.session.IssueDraft = nil
}

func (m *Machine) reportIssue(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		m.reject(ErrEmptyText)
		return
	}
	if !m.issueAllowed() || !m.guard(true) {
		return
	}
	draft := m.session.IssueDraft
	if draft == nil {
		draft = &models.IssueReport{QuestionID: m.currentQuestionID()}
	}
	draft.Message = text

	m.accept()
	m.say(models.OriginUser, "Issue: "+text)
	m.emit(protocol.EventReportIssue, protocol.ReportIssue{QuestionID: draft.QuestionID, Message: draft.Message})
	m.session.IssueDraft = nil
}

func (m *Machine) currentQuestionID() *string {
	if q := m.session.CurrentQuestion; q != nil {
		id := q.ID
		return &id
	}
	return nil
}
