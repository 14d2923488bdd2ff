package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dbmodels "mafia/db/models"
	"mafia/models"
)

// Repository implements the engine's ScratchpadStore on MongoDB.
type Repository struct{}

// NewRepository returns a repository backed by the initialized connection.
func NewRepository() *Repository {
	return &Repository{}
}

// LoadScratchpad returns an agent's persisted strategy summary, or "" when
// the agent has no memory yet.
func (r *Repository) LoadScratchpad(ctx context.Context, agentName string) (string, error) {
	var doc dbmodels.ScratchpadDocument
	collection := GetCollection("scratchpads")
	err := collection.FindOne(ctx, bson.M{"agent_name": agentName}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Summary, nil
}

// SaveScratchpad upserts an agent's strategy summary.
func (r *Repository) SaveScratchpad(ctx context.Context, agentName, summary string) error {
	collection := GetCollection("scratchpads")
	update := bson.M{"$set": bson.M{
		"agent_name": agentName,
		"summary":    summary,
		"updated_at": time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	// Retry transient failures
	var lastErr error
	for i := 0; i < 3; i++ {
		_, err := collection.UpdateOne(ctx, bson.M{"agent_name": agentName}, update, opts)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Millisecond * 100 * time.Duration(i+1))
	}
	return lastErr
}

// SaveVoteRecord persists one voting round of a game.
func (r *Repository) SaveVoteRecord(ctx context.Context, gameID string, record models.VoteRecord) error {
	votes := make([]dbmodels.VoteDocument, 0, len(record.Votes))
	for _, v := range record.Votes {
		votes = append(votes, dbmodels.VoteDocument{Voter: v.Voter, Target: v.Target, Reason: v.Reason})
	}
	doc := dbmodels.VoteRecordDocument{
		GameID:     gameID,
		Round:      record.Round,
		Votes:      votes,
		Eliminated: record.Eliminated,
		CreatedAt:  time.Now(),
	}

	collection := GetCollection("vote_records")
	var lastErr error
	for i := 0; i < 3; i++ {
		_, err := collection.InsertOne(ctx, doc)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Millisecond * 100 * time.Duration(i+1))
	}
	return lastErr
}

// CreateIndexes creates the indexes the repository queries rely on.
func CreateIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := GetCollection("scratchpads").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "agent_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = GetCollection("vote_records").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "round", Value: 1}},
	})
	return err
}
