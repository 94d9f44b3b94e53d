package models

// IssueReport is a locally held draft of an out-of-band problem report.
// QuestionID is nil when no question was active when the draft was opened.
type IssueReport struct {
	QuestionID *string
	Message    string
}

// FeedbackMode selects how supplemental feedback is collected.
type FeedbackMode string

const (
	// FeedbackConditional asks for feedback only after a low rating, and
	// only once the server requests it.
	FeedbackConditional FeedbackMode = "conditional"
	// FeedbackInline lets the user answer a question with free text
	// instead of a rating.
	FeedbackInline FeedbackMode = "inline"
)

// ParseFeedbackMode maps a config value to a FeedbackMode, defaulting to
// FeedbackConditional for unknown values.
func ParseFeedbackMode(s string) FeedbackMode {
	if FeedbackMode(s) == FeedbackInline {
		return FeedbackInline
	}
	return FeedbackConditional
}
