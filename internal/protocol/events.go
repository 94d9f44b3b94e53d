// Package protocol defines the survey wire protocol: event names, payloads,
// and the JSON frame codec shared by the connection manager and test peers.
package protocol

// Inbound events (server to client).
const (
	EventHeartbeatPing      = "heartbeat-ping"
	EventConnectionStatus   = "connection-status"
	EventSessionEnded       = "session-ended"
	EventSessionInterrupted = "session-interrupted"
	EventFirstQuestion      = "first-question"
	EventNextQuestion       = "next-question"
	EventSessionSummary     = "session-summary"
	EventThankYou           = "thank-you"
	EventRequestFeedback    = "request-feedback"
	EventAppreciation       = "appreciation"
	EventError              = "error"
)

// Outbound events (client to server).
const (
	EventStartSession             = "start-session"
	EventHeartbeatPong            = "heartbeat-pong"
	EventSubmitResponse           = "submit-response"
	EventSubmitAdditionalFeedback = "submit-additional-feedback"
	EventSubmitExperienceRating   = "submit-experience-rating"
	EventReportIssue              = "report-issue"
)
