package mongodb

import (
	"context"
	"time"

	"github.com/pilab-dev/helpline/internal/audit"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditRepositoryMongo implements audit.Recorder using MongoDB.
type AuditRepositoryMongo struct {
	messages      *mongo.Collection
	statusChanges *mongo.Collection
}

// NewAuditRepositoryMongo creates the repository and ensures its indexes.
func NewAuditRepositoryMongo(ctx context.Context, db *mongo.Database) (*AuditRepositoryMongo, error) {
	repo := &AuditRepositoryMongo{
		messages:      db.Collection(MessagesCollection),
		statusChanges: db.Collection(StatusChangesCollection),
	}

	// Transcripts are read per session in time order.
	byTime := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_key", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "demo", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := repo.messages.Indexes().CreateMany(ctx, byTime); err != nil {
		log.Error().Err(err).Msg("Failed to create indexes for helpline_messages collection")
		return nil, err
	}
	if _, err := repo.statusChanges.Indexes().CreateMany(ctx, byTime); err != nil {
		log.Error().Err(err).Msg("Failed to create indexes for helpline_status_changes collection")
		return nil, err
	}
	return repo, nil
}

// RecordMessage implements audit.Recorder.
func (r *AuditRepositoryMongo) RecordMessage(ctx context.Context, entry audit.MessageEntry) error {
	_, err := r.messages.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// RecordStatusChange implements audit.Recorder.
func (r *AuditRepositoryMongo) RecordStatusChange(ctx context.Context, entry audit.StatusChangeEntry) error {
	_, err := r.statusChanges.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// Transcript returns the messages of a session, oldest first.
func (r *AuditRepositoryMongo) Transcript(ctx context.Context, sessionKey string, limit int64) ([]audit.MessageEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.messages.Find(ctx, bson.M{"session_key": sessionKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []audit.MessageEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ audit.Recorder = (*AuditRepositoryMongo)(nil)
