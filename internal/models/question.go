package models

import "encoding/json"

// Question is a survey question as sent by the server. It is never modified
// after it is received.
type Question struct {
	ID   string
	Text string
}

// SessionSummary is the report the server sends once all questions are
// answered. Raw holds the payload verbatim; the decoded fields are best-effort.
type SessionSummary struct {
	Raw            json.RawMessage
	TotalQuestions int
	AverageRating  float64
}
