package peertest

import (
	"encoding/json"

	"github.com/joescharf/fbchat/internal/protocol"
)

// Script answers the survey protocol the way the production server does:
// low ratings get a feedback request, the last answer gets a summary, and
// the experience rating is followed by thank-you and session-ended.
type Script struct {
	Questions []protocol.Question
	ThankYou  string
	Closing   string

	index   int
	ratings []int
}

func (s *Script) clone() *Script {
	return &Script{
		Questions: append([]protocol.Question(nil), s.Questions...),
		ThankYou:  s.ThankYou,
		Closing:   s.Closing,
	}
}

func (s *Script) handle(c *Conn, f protocol.Frame) {
	switch f.Event {
	case protocol.EventStartSession:
		s.index = 0
		s.ratings = nil
		if len(s.Questions) == 0 {
			s.summary(c)
			return
		}
		_ = c.Send(protocol.EventFirstQuestion, s.Questions[0])

	case protocol.EventSubmitResponse:
		var resp protocol.SubmitResponse
		if err := json.Unmarshal(f.Data, &resp); err != nil {
			_ = c.Send(protocol.EventError, protocol.Notice{Message: "invalid response"})
			return
		}
		if resp.Rating != nil {
			s.ratings = append(s.ratings, *resp.Rating)
			if *resp.Rating <= 2 {
				_ = c.Send(protocol.EventRequestFeedback, protocol.FeedbackRequest{QuestionID: resp.QuestionID})
				return
			}
			if *resp.Rating == 5 {
				_ = c.Send(protocol.EventAppreciation, nil)
			}
		}
		s.advance(c)

	case protocol.EventSubmitAdditionalFeedback:
		s.advance(c)

	case protocol.EventSubmitExperienceRating:
		_ = c.Send(protocol.EventThankYou, protocol.Notice{Message: s.thankYou()})
		_ = c.Send(protocol.EventSessionEnded, protocol.Notice{Message: s.closing()})
	}
}

func (s *Script) advance(c *Conn) {
	s.index++
	if s.index < len(s.Questions) {
		_ = c.Send(protocol.EventNextQuestion, s.Questions[s.index])
		return
	}
	s.summary(c)
}

func (s *Script) summary(c *Conn) {
	avg := 0.0
	for _, r := range s.ratings {
		avg += float64(r)
	}
	if len(s.ratings) > 0 {
		avg /= float64(len(s.ratings))
	}
	_ = c.Send(protocol.EventSessionSummary, map[string]any{
		"report": map[string]any{
			"totalQuestions": len(s.Questions),
			"averageRating":  avg,
		},
	})
}

func (s *Script) thankYou() string {
	if s.ThankYou != "" {
		return s.ThankYou
	}
	return "Thanks for rating your experience!"
}

func (s *Script) closing() string {
	if s.Closing != "" {
		return s.Closing
	}
	return "This feedback session has ended."
}
