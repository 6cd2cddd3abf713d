// Package transcript holds the visible chat history and joins recognized speech segments.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Messages are immutable once appended.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time

	// Placeholder marks a transient entry that is removed once its request settles.
	Placeholder bool
}

// Transcript is an append-only, mutex-guarded message list.
type Transcript struct {
	now func() time.Time

	mu       sync.RWMutex
	messages []Message
}

// New returns an empty transcript stamped by the wall clock.
func New() *Transcript {
	return &Transcript{now: time.Now}
}

// NewWithClock returns an empty transcript stamped by now.
func NewWithClock(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now}
}

// Append records a message and returns it with its assigned id and timestamp.
func (t *Transcript) Append(role Role, text string) Message {
	return t.append(role, text, false)
}

// AppendPlaceholder records a transient message to be removed with Remove.
func (t *Transcript) AppendPlaceholder(role Role, text string) Message {
	return t.append(role, text, true)
}

func (t *Transcript) append(role Role, text string, placeholder bool) Message {
	msg := Message{
		ID:          uuid.NewString(),
		Role:        role,
		Text:        text,
		Timestamp:   t.now(),
		Placeholder: placeholder,
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	return msg
}

// Remove deletes the message with id. It reports whether a message was removed.
func (t *Transcript) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, msg := range t.messages {
		if msg.ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns a snapshot in append order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages...)
}

// LastAssistant returns the newest non-placeholder assistant message.
func (t *Transcript) LastAssistant() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		if msg.Role == RoleAssistant && !msg.Placeholder {
			return msg, true
		}
	}
	return Message{}, false
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset drops every message.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
}

// Join collapses final recognition segments into one message body.
func Join(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
}
