package models

import "time"

// SystemSpeaker is the speaker name used for game-generated messages.
const SystemSpeaker = "System"

// Message is a single entry in the shared conversation. Messages are
// immutable once appended; corrections are expressed as new system
// messages referencing the old one, never in-place edits.
type Message struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsSystem  bool      `json:"is_system"`
}
