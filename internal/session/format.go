package session

import "strings"

const (
	summaryPrompt     = "Thank you for answering all questions! How would you rate your overall experience with this chat?"
	appreciationText  = "Thank you for your positive feedback! 😊"
	endedFallback     = "This feedback session has ended."
	interruptFallback = "The session was interrupted."
)

// Stars renders a 1-5 rating as filled and empty stars.
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("⭐", rating) + strings.Repeat("☆", 5-rating)
}

func ratingText(rating int) string {
	return "Rating: " + Stars(rating)
}

func experienceText(rating int) string {
	return "Overall Experience: " + Stars(rating)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
