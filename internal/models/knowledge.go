package models

import "time"

// Knowledge source types.
const (
	SourceTypeWebsite  = "website"
	SourceTypeDocument = "document"
	SourceTypeFAQ      = "faq"
)

// Knowledge source sync statuses.
const (
	SyncStatusPending = "pending"
	SyncStatusRunning = "running"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// KnowledgeSource is a registered origin of assistant knowledge: a
// website to crawl, an uploaded document or a hand-written FAQ.
type KnowledgeSource struct {
	ID           string     `json:"id"`
	AssistantID  string     `json:"assistant_id"`
	Type         string     `json:"type"` // website | document | faq
	Name         string     `json:"name"`
	URL          string     `json:"url,omitempty"` // seed URL for website sources
	Status       string     `json:"status"`
	LastError    string     `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CrawlRun records one website sync invocation for bookkeeping.
type CrawlRun struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	SeedURL    string    `json:"seed_url"`
	PagesTotal int       `json:"pages_total"`
	PagesError int       `json:"pages_error"`
	ChunkCount int       `json:"chunk_count"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Chunk is a bounded slice of source text prepared for embedding.
// Chunks are immutable after creation.
type Chunk struct {
	Text     string `json:"text"`
	Index    int    `json:"index"`
	SourceID string `json:"source_id"`
}

// StoredChunk is a chunk with its embedding, as persisted in the
// content store and handed off to similarity search.
type StoredChunk struct {
	ID          string    `bson:"_id" json:"id"`
	AssistantID string    `bson:"assistant_id" json:"assistant_id"`
	SourceID    string    `bson:"source_id" json:"source_id"`
	Index       int       `bson:"index" json:"index"`
	Text        string    `bson:"text" json:"text"`
	ContentHash string    `bson:"content_hash" json:"content_hash"`
	PageURL     string    `bson:"page_url,omitempty" json:"page_url,omitempty"`
	PageTitle   string    `bson:"page_title,omitempty" json:"page_title,omitempty"`
	Vector      []float32 `bson:"vector" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
