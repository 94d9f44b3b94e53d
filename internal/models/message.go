package models

import "time"

// Origin identifies who produced a transcript message.
type Origin string

const (
	OriginBot    Origin = "bot"
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// Message is a single transcript entry. Seq is assigned by the transcript
// log and is strictly increasing in append order.
type Message struct {
	Seq    uint64
	Origin Origin
	Text   string
	At     time.Time
}
