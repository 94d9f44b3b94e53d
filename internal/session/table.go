package session

import (
	"github.com/looplab/fsm"

	"github.com/joescharf/fbchat/internal/models"
)

// Transition triggers. Inbound triggers share the wire event names where
// one exists.
const (
	evConnected           = "connected"
	evNewSession          = "new-session"
	evFirstQuestion       = "first-question"
	evRateLow             = "rate-low"
	evRateHigh            = "rate-high"
	evInlineFeedback      = "inline-feedback"
	evFeedbackRequested   = "request-feedback"
	evFeedbackSubmitted   = "submit-feedback"
	evNextQuestion        = "next-question"
	evSummary             = "session-summary"
	evExperienceRequested = "request-experience"
	evExperienceRated     = "rate-experience"
	evThankYou            = "thank-you"
	evAppreciation        = "appreciation"
	evEnded               = "session-ended"
	evInterrupted         = "session-interrupted"
)

var activePhases = []models.Phase{
	models.PhaseStarting,
	models.PhaseAwaitingRating,
	models.PhaseAwaitingOptionalFeedback,
	models.PhaseAwaitingNextQuestion,
	models.PhaseSummaryPending,
	models.PhaseAwaitingExperienceRating,
}

// transitions is the complete phase table. Anything not listed here is
// ignored by the machine.
func transitions() fsm.Events {
	events := fsm.Events{
		{Name: evConnected, Src: names(models.AllPhases...), Dst: string(models.PhaseStarting)},
		{Name: evNewSession, Src: names(models.AllPhases...), Dst: string(models.PhaseStarting)},

		{Name: evFirstQuestion, Src: names(models.PhaseStarting), Dst: string(models.PhaseAwaitingRating)},

		{Name: evRateLow, Src: names(models.PhaseAwaitingRating), Dst: string(models.PhaseAwaitingOptionalFeedback)},
		{Name: evRateHigh, Src: names(models.PhaseAwaitingRating), Dst: string(models.PhaseAwaitingNextQuestion)},
		{Name: evInlineFeedback, Src: names(models.PhaseAwaitingRating), Dst: string(models.PhaseAwaitingNextQuestion)},

		{Name: evFeedbackRequested, Src: names(models.PhaseAwaitingOptionalFeedback), Dst: string(models.PhaseAwaitingOptionalFeedback)},
		{Name: evFeedbackSubmitted, Src: names(models.PhaseAwaitingOptionalFeedback), Dst: string(models.PhaseAwaitingNextQuestion)},

		{
			Name: evNextQuestion,
			Src:  names(models.PhaseAwaitingNextQuestion, models.PhaseAwaitingOptionalFeedback),
			Dst:  string(models.PhaseAwaitingRating),
		},
		{
			Name: evSummary,
			Src:  names(models.PhaseStarting, models.PhaseAwaitingNextQuestion, models.PhaseAwaitingOptionalFeedback),
			Dst:  string(models.PhaseSummaryPending),
		},
		{Name: evExperienceRequested, Src: names(models.PhaseSummaryPending), Dst: string(models.PhaseAwaitingExperienceRating)},
		{Name: evExperienceRated, Src: names(models.PhaseAwaitingExperienceRating), Dst: string(models.PhaseAwaitingExperienceRating)},

		{Name: evEnded, Src: names(activePhases...), Dst: string(models.PhaseEnded)},
		{Name: evInterrupted, Src: names(activePhases...), Dst: string(models.PhaseInterrupted)},
	}

	// Events that are accepted in every active phase without moving it.
	for _, p := range activePhases {
		events = append(events,
			fsm.EventDesc{Name: evThankYou, Src: names(p), Dst: string(p)},
			fsm.EventDesc{Name: evAppreciation, Src: names(p), Dst: string(p)},
		)
	}
	return events
}

func newTable() *fsm.FSM {
	return fsm.NewFSM(string(models.PhaseIdle), transitions(), fsm.Callbacks{})
}

func names(phases ...models.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
