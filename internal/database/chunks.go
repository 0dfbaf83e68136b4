package database

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"

	"helpdock/internal/models"
)

// ChunkStore persists embedded chunks in MongoDB and serves them back
// for similarity search. The heavy vector index lives outside this
// service; this store is the handoff used by the widget chat path.
type ChunkStore struct {
	mongo *MongoDB
}

// NewChunkStore creates a chunk store on the shared MongoDB connection.
func NewChunkStore(m *MongoDB) *ChunkStore {
	return &ChunkStore{mongo: m}
}

// ReplaceSourceChunks atomically swaps all chunks of one source with the
// freshly embedded set. Called at the end of every successful sync so a
// re-crawl never leaves stale chunks behind.
func (s *ChunkStore) ReplaceSourceChunks(ctx context.Context, assistantID, sourceID string, chunks []models.StoredChunk) error {
	coll := s.mongo.Collection(CollectionChunks)

	if _, err := coll.DeleteMany(ctx, bson.M{"assistant_id": assistantID, "source_id": sourceID}); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	log.Printf("📦 [CHUNK-STORE] Stored %d chunks for source %s", len(chunks), sourceID)
	return nil
}

// ChunksForAssistant returns all stored chunks of an assistant,
// vectors included, for in-process similarity scoring.
func (s *ChunkStore) ChunksForAssistant(ctx context.Context, assistantID string) ([]models.StoredChunk, error) {
	coll := s.mongo.Collection(CollectionChunks)

	cursor, err := coll.Find(ctx, bson.M{"assistant_id": assistantID})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.StoredChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

// DeleteAssistantChunks removes every chunk of an assistant, used when
// an assistant is deleted.
func (s *ChunkStore) DeleteAssistantChunks(ctx context.Context, assistantID string) (int64, error) {
	coll := s.mongo.Collection(CollectionChunks)

	res, err := coll.DeleteMany(ctx, bson.M{"assistant_id": assistantID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete assistant chunks: %w", err)
	}
	return res.DeletedCount, nil
}

// ChunkCount returns how many chunks an assistant currently has.
func (s *ChunkStore) ChunkCount(ctx context.Context, assistantID string) (int64, error) {
	coll := s.mongo.Collection(CollectionChunks)
	return coll.CountDocuments(ctx, bson.M{"assistant_id": assistantID})
}
