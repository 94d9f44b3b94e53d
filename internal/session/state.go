package session

import "github.com/joescharf/fbchat/internal/models"

// State is an immutable snapshot of the machine.
type State struct {
	Connection    models.ConnectionState
	Phase         models.Phase
	Mode          models.FeedbackMode
	Session       models.Session
	Transcript    []models.Message
	LastRejection error
}

// Connected reports whether the channel is open.
func (s State) Connected() bool {
	return s.Connection == models.ConnectionConnected
}

// CanRate reports whether a question rating would be accepted.
func (s State) CanRate() bool {
	return s.Connected() && s.Phase == models.PhaseAwaitingRating &&
		s.Session.CurrentQuestion != nil && !s.Session.Loading
}

// CanSendFeedback reports whether free text would be accepted as feedback.
func (s State) CanSendFeedback() bool {
	if !s.Connected() {
		return false
	}
	if s.Mode == models.FeedbackInline && s.Phase == models.PhaseAwaitingRating {
		return s.Session.CurrentQuestion != nil && !s.Session.Loading
	}
	return s.Phase == models.PhaseAwaitingOptionalFeedback && s.Session.FeedbackPrompt
}

// CanRateExperience reports whether the overall rating would be accepted.
func (s State) CanRateExperience() bool {
	return s.Connected() && s.Phase == models.PhaseAwaitingExperienceRating &&
		s.Session.ExperiencePrompt && !s.Session.ExperienceSubmitted
}

// Stranded reports whether the channel is closed after a session began, or
// after a connect cycle gave up. No connect cycle is running, so only
// StartNewSession makes progress.
func (s State) Stranded() bool {
	if s.Connection != models.ConnectionDisconnected {
		return false
	}
	return s.Phase != models.PhaseIdle || len(s.Transcript) > 0
}

// CanReportIssue reports whether an issue report would be accepted.
func (s State) CanReportIssue() bool {
	return s.Connected() && s.Phase.Active() && !s.Session.Loading
}

func (m *Machine) snapshot() State {
	sess := m.session
	if d := sess.IssueDraft; d != nil {
		cp := *d
		sess.IssueDraft = &cp
	}
	if q := sess.CurrentQuestion; q != nil {
		cp := *q
		sess.CurrentQuestion = &cp
	}
	if sum := sess.Summary; sum != nil {
		cp := *sum
		sess.Summary = &cp
	}
	return State{
		Connection:    m.conn,
		Phase:         m.phase(),
		Mode:          m.cfg.FeedbackMode,
		Session:       sess,
		Transcript:    m.log.Entries(),
		LastRejection: m.rejection,
	}
}
