package protocol

import (
	"encoding/json"
	"strings"

	"github.com/joescharf/fbchat/internal/models"
)

// Heartbeat carries the peer's liveness timestamp. The timestamp is kept
// raw so the pong echoes it byte for byte.
type Heartbeat struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

// Question is the payload of first-question and next-question.
// The server identifies questions by "_id"; "id" is accepted as a fallback.
type Question struct {
	MongoID string `json:"_id,omitempty"`
	ID      string `json:"id,omitempty"`
	Text    string `json:"text"`
}

// UnmarshalJSON accepts any JSON value as a question id. Strings are
// unquoted; numbers and other values keep their literal text.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID json.RawMessage `json:"_id"`
		ID      json.RawMessage `json:"id"`
		Text    string          `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question{MongoID: opaqueID(raw.MongoID), ID: opaqueID(raw.ID), Text: raw.Text}
	return nil
}

// Model converts the payload into a models.Question.
func (q Question) Model() models.Question {
	id := q.MongoID
	if id == "" {
		id = q.ID
	}
	return models.Question{ID: id, Text: q.Text}
}

// Notice is the payload of session-ended, session-interrupted, thank-you
// and error.
type Notice struct {
	Message string `json:"message"`
}

// FeedbackRequest is the payload of request-feedback.
type FeedbackRequest struct {
	QuestionID string `json:"questionId"`
}

// UnmarshalJSON accepts any JSON value as the question id.
func (r *FeedbackRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		QuestionID json.RawMessage `json:"questionId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.QuestionID = opaqueID(raw.QuestionID)
	return nil
}

func opaqueID(raw json.RawMessage) string {
	if IsNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// SubmitResponse answers a question. Rating and Feedback are serialized as
// null when absent.
type SubmitResponse struct {
	QuestionID string  `json:"questionId"`
	Rating     *int    `json:"rating"`
	Feedback   *string `json:"feedback"`
}

// SubmitAdditionalFeedback carries supplemental feedback for a rated question.
type SubmitAdditionalFeedback struct {
	QuestionID         string `json:"questionId"`
	AdditionalFeedback string `json:"additionalFeedback"`
}

// SubmitExperienceRating carries the overall experience rating.
type SubmitExperienceRating struct {
	Rating int `json:"rating"`
}

// ReportIssue is an out-of-band problem report. QuestionID is null when no
// question is active.
type ReportIssue struct {
	QuestionID *string `json:"questionId"`
	Message    string  `json:"message"`
}

// StartAck is the acknowledgement of start-session.
type StartAck struct {
	Error *Notice `json:"error,omitempty"`
}

// DecodeSummary parses a session-summary payload. The report may be sent
// bare or wrapped in a "report" field; unknown shapes are kept raw.
func DecodeSummary(data json.RawMessage) models.SessionSummary {
	raw := data
	var wrapper struct {
		Report json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Report) > 0 && string(wrapper.Report) != "null" {
		raw = wrapper.Report
	}

	summary := models.SessionSummary{Raw: raw}
	var fields struct {
		TotalQuestions int     `json:"totalQuestions"`
		AverageRating  float64 `json:"averageRating"`
	}
	if err := json.Unmarshal(raw, &fields); err == nil {
		summary.TotalQuestions = fields.TotalQuestions
		summary.AverageRating = fields.AverageRating
	}
	return summary
}

// IsNull reports whether a payload is absent or JSON null.
func IsNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
