package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScratchpadDocument is an agent's persisted cross-game memory: a short
// strategy summary written at game end and read back at the next game's
// start.
type ScratchpadDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	AgentName string             `bson:"agent_name"`
	Summary   string             `bson:"summary"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// VoteRecordDocument persists one voting round of one game.
type VoteRecordDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	GameID     string             `bson:"game_id"`
	Round      int                `bson:"round"`
	Votes      []VoteDocument     `bson:"votes"`
	Eliminated string             `bson:"eliminated,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// VoteDocument is one ballot within a persisted voting round.
type VoteDocument struct {
	Voter  string `bson:"voter"`
	Target string `bson:"target"`
	Reason string `bson:"reason"`
}
