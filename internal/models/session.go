package models

import "time"

// Session is the per-session record. A new Session is created on every
// transition into PhaseStarting; nothing is carried over from the previous one.
type Session struct {
	ID        string
	StartedAt time.Time

	CurrentQuestion    *Question
	FeedbackQuestionID string
	Summary            *SessionSummary
	IssueDraft         *IssueReport

	FeedbackPrompt      bool // server asked for supplemental feedback
	ExperiencePrompt    bool // overall experience rating requested
	ExperienceSubmitted bool
	Loading             bool // waiting for the next question
}
