// Package chat holds the transcript shown in the response panel: the
// user's submitted captures and the assistant's replies.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Entry is one line of the transcript.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	HasAudio bool      `json:"has_audio"`
}

// maxEntries caps the in-memory transcript.
const maxEntries = 200

// Log is a capped, thread-safe transcript buffer.
type Log struct {
	mu      sync.RWMutex
	entries []Entry

	// OnAppend, when set, receives every appended entry (for
	// websocket broadcast). Called outside the lock.
	OnAppend func(Entry)
}

// NewLog creates an empty transcript.
func NewLog() *Log {
	return &Log{entries: make([]Entry, 0, maxEntries)}
}

// Add appends an entry and returns it with its assigned id.
func (l *Log) Add(role Role, text string, hasAudio bool) Entry {
	e := Entry{
		ID:       uuid.NewString(),
		Time:     time.Now(),
		Role:     role,
		Text:     text,
		HasAudio: hasAudio,
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[len(l.entries)-maxEntries:]
	}
	cb := l.OnAppend
	l.mu.Unlock()

	if cb != nil {
		cb(e)
	}
	return e
}

// Entries returns a copy of the transcript, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Last returns the most recent entry for the given role, if any.
func (l *Log) Last(role Role) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Role == role {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}
