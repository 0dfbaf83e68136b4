package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"helpdock/internal/feedback"
)

// FeedbackStore implements feedback.Store on the message_feedback
// collection. The learner calls it asynchronously and swallows errors,
// so this store never needs to be fast or clever.
type FeedbackStore struct {
	mongo *MongoDB
}

// NewFeedbackStore creates a durable feedback store.
func NewFeedbackStore(m *MongoDB) *FeedbackStore {
	return &FeedbackStore{mongo: m}
}

// SaveFeedback upserts the normalized record keyed by message id, so a
// visitor changing thumbs-up to thumbs-down overwrites rather than
// duplicates.
func (s *FeedbackStore) SaveFeedback(ctx context.Context, rec feedback.Record) error {
	coll := s.mongo.Collection(CollectionFeedback)

	update := bson.M{
		"$set": bson.M{
			"session_id": rec.SessionID,
			"rating":     rec.Rating,
			"comment":    rec.Comment,
			"created_at": time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := coll.UpdateOne(ctx, bson.M{"message_id": rec.MessageID}, update, opts); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}
