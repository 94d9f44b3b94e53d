package transcript

import (
	"sync"
	"time"

	"github.com/joescharf/fbchat/internal/models"
)

// Log is an append-only, ordered record of transcript messages.
// Entries are never mutated or reordered once appended. Sequence numbers
// keep increasing across Reset, so a sequence number is never reused.
type Log struct {
	mu      sync.RWMutex
	entries []models.Message
	seq     uint64
	now     func() time.Time
}

// New creates an empty transcript log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append records a message and returns it with its assigned sequence number.
func (l *Log) Append(origin models.Origin, text string) models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	msg := models.Message{
		Seq:    l.seq,
		Origin: origin,
		Text:   text,
		At:     l.now().UTC(),
	}
	l.entries = append(l.entries, msg)
	return msg
}

// Entries returns a copy of all messages in append order.
func (l *Log) Entries() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the messages with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, m := range l.entries {
		if m.Seq > seq {
			out := make([]models.Message, len(l.entries)-i)
			copy(out, l.entries[i:])
			return out
		}
	}
	return nil
}

// Len returns the number of retained messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset drops all retained messages. Only an explicit new session should
// call this.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
