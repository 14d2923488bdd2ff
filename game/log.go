package game

import (
	"sync"
	"time"

	"mafia/models"
)

// ConversationLog is the append-only, shared conversation history and the
// single source of truth for game state. Append order is conversational
// order. A single mutex protects the sequence so concurrent readers (a UI
// polling the feed while the turn loop advances) always observe a
// consistent prefix.
type ConversationLog struct {
	mu       sync.Mutex
	messages []models.Message
}

// NewConversationLog creates an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

// Append adds a message to the log. Appends are atomic with respect to
// each other and to snapshots.
func (l *ConversationLog) Append(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// AddMessage appends a message with the current timestamp.
func (l *ConversationLog) AddMessage(speaker, text string, isSystem bool) {
	l.Append(models.Message{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
		IsSystem:  isSystem,
	})
}

// Snapshot returns a defensive copy of the full history. Callers may
// mutate the returned slice freely without corrupting logged history.
func (l *ConversationLog) Snapshot() []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make([]models.Message, len(l.messages))
	copy(snapshot, l.messages)
	return snapshot
}

// Recent returns a copy of the last n entries.
func (l *ConversationLog) Recent(n int) []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.messages) {
		n = len(l.messages)
	}
	recent := make([]models.Message, n)
	copy(recent, l.messages[len(l.messages)-n:])
	return recent
}

// Len returns the number of messages appended so far.
func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// NonSystemLen returns the number of agent (non-system) messages.
func (l *ConversationLog) NonSystemLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, m := range l.messages {
		if !m.IsSystem {
			count++
		}
	}
	return count
}
