package config

import (
	"os"
	"time"
)

// GetGeminiModel returns the Gemini model to use from environment variable
// Defaults to "gemini-2.5-flash-lite" if not set
func GetGeminiModel() string {
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		// Default to the lite flash model if not specified
		return "gemini-2.5-flash-lite"
	}
	return model
}

// GetGeminiAPIKey returns the Gemini API key from environment variable
func GetGeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// GetMongoDBURI returns the MongoDB connection URI from environment variable
func GetMongoDBURI() string {
	return os.Getenv("MONGODB_URI")
}

// GetAllowedOrigins returns the allowed CORS origins from environment variable
func GetAllowedOrigins() string {
	return os.Getenv("ALLOWED_ORIGINS")
}

// Game settings
const (
	// DefaultNumAgents is the number of players in a game unless overridden
	DefaultNumAgents = 8

	// DefaultNumMafia is the number of mafia-role players unless overridden
	DefaultNumMafia = 2

	// MaxAgents caps the number of players in a single game
	MaxAgents = 8

	// PatienceThreshold forces a turn for an agent that has watched this
	// many messages go by without speaking
	PatienceThreshold = 8

	// VotingMessageThreshold triggers a voting round after this many
	// non-system messages since the previous vote
	VotingMessageThreshold = 20

	// ConversationContextSize is how many recent messages agents see when speaking
	ConversationContextSize = 40

	// VotingContextSize is how many recent messages agents see during voting
	VotingContextSize = 50

	// PingPongWindow is how many trailing messages are inspected for a
	// two-agent speaking loop
	PingPongWindow = 4

	// QuietWindow is how many trailing messages define "spoke recently"
	// when breaking an unproductive loop
	QuietWindow = 5

	// TurnDelay is the pause enforced before each external generation call,
	// mostly to stay under free-tier rate limits
	TurnDelay = 2 * time.Second
)

// AgentNames is the pool of player names. Games draw the first N after a shuffle.
var AgentNames = []string{
	"Aryan", "Jay", "Kshitij", "Laavanya",
	"Anushka", "Navya", "Khushi", "Yatharth",
}

// OpeningHints seed initial suspicion and give the first speakers something
// to latch onto. One is chosen at random at game start.
var OpeningHints = []string{
	"One of you speaks in riddles. One of you never speaks twice in a row.",
	"The eldest among you has already made their choice. The youngest will regret theirs.",
	"Someone here is counting. Someone here is listening. Neither will admit it.",
	"A truth spoken at dawn becomes a lie by dusk.",
	"The quiet ones are never innocent. The loud ones are never alone.",
	"Watch who asks questions but never answers them.",
	"The one who speaks first may not be the first to act.",
	"Someone's silence speaks louder than words. Someone's words hide their silence.",
	"Two of you share a secret. One of you will betray it.",
	"The pattern is already visible. Only the blind will miss it.",
}

// SuspiciousBehaviors are tells agents may reference when building a case.
var SuspiciousBehaviors = []string{
	"speaks with certainty",
	"asks too many questions",
	"stays suspiciously silent",
	"repeats others' words",
	"interrupts frequently",
	"deflects accusations quickly",
	"defends others aggressively",
	"changes topics suddenly",
	"overly eager to vote",
	"inconsistent reasoning",
}
