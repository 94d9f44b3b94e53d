package models

// Phase is the survey session's protocol phase.
type Phase string

const (
	PhaseIdle                     Phase = "idle"
	PhaseStarting                 Phase = "starting"
	PhaseAwaitingRating           Phase = "awaiting_rating"
	PhaseAwaitingOptionalFeedback Phase = "awaiting_optional_feedback"
	PhaseAwaitingNextQuestion     Phase = "awaiting_next_question"
	PhaseSummaryPending           Phase = "summary_pending"
	PhaseAwaitingExperienceRating Phase = "awaiting_experience_rating"
	PhaseEnded                    Phase = "ended"
	PhaseInterrupted              Phase = "interrupted"
)

// AllPhases lists every phase in lifecycle order.
var AllPhases = []Phase{
	PhaseIdle,
	PhaseStarting,
	PhaseAwaitingRating,
	PhaseAwaitingOptionalFeedback,
	PhaseAwaitingNextQuestion,
	PhaseSummaryPending,
	PhaseAwaitingExperienceRating,
	PhaseEnded,
	PhaseInterrupted,
}

// Terminal reports whether the session is over and accepts no further input.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseInterrupted
}

// Active reports whether a session is running (started and not terminal).
func (p Phase) Active() bool {
	return p != PhaseIdle && !p.Terminal()
}
