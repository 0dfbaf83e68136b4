package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"helpdock/internal/chunker"
	"helpdock/internal/database"
	"helpdock/internal/document"
	"helpdock/internal/embeddings"
	"helpdock/internal/models"
	"helpdock/internal/scraper"
)

// siteScraper abstracts the crawler so sync tests can fake a crawl.
type siteScraper interface {
	Scrape(ctx context.Context, tenantID, seedURL string) *scraper.Website
}

// sourceRegistry is the slice of the MySQL registry the knowledge
// service needs. Satisfied by *database.DB.
type sourceRegistry interface {
	KnowledgeSource(ctx context.Context, id string) (*models.KnowledgeSource, error)
	UpdateSourceStatus(ctx context.Context, sourceID, status, lastError string) error
	RecordCrawlRun(ctx context.Context, run *models.CrawlRun) error
}

// chunkWriter persists embedded chunks. Satisfied by *database.ChunkStore.
type chunkWriter interface {
	ReplaceSourceChunks(ctx context.Context, assistantID, sourceID string, chunks []models.StoredChunk) error
}

// KnowledgeService turns knowledge sources (websites, documents) into
// embedded chunks ready for retrieval.
type KnowledgeService struct {
	registry   sourceRegistry
	chunks     chunkWriter
	scraper    siteScraper
	embedCache *embeddings.Cache
	chunkOpts  chunker.Options
	metrics    *Metrics
}

// NewKnowledgeService creates the knowledge sync orchestrator. metrics
// may be nil in tests.
func NewKnowledgeService(registry *database.DB, chunks *database.ChunkStore, s *scraper.Scraper, embedCache *embeddings.Cache, metrics *Metrics) *KnowledgeService {
	return &KnowledgeService{
		registry:   registry,
		chunks:     chunks,
		scraper:    s,
		embedCache: embedCache,
		chunkOpts:  chunker.Options{},
		metrics:    metrics,
	}
}

// newKnowledgeServiceForTest wires fakes behind the same interfaces.
func newKnowledgeServiceForTest(registry sourceRegistry, chunks chunkWriter, s siteScraper, embedCache *embeddings.Cache) *KnowledgeService {
	return &KnowledgeService{
		registry:   registry,
		chunks:     chunks,
		scraper:    s,
		embedCache: embedCache,
	}
}

// SyncWebsite crawls a website source, chunks and embeds the pages and
// swaps the stored chunk set. The source status reflects the outcome;
// page-level crawl errors do not fail the sync as long as at least one
// page yielded content.
func (s *KnowledgeService) SyncWebsite(ctx context.Context, assistantID, sourceID string) (*models.CrawlRun, error) {
	source, err := s.registry.KnowledgeSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if source.Type != models.SourceTypeWebsite || source.URL == "" {
		return nil, fmt.Errorf("source %s is not a crawlable website", sourceID)
	}

	if err := s.registry.UpdateSourceStatus(ctx, sourceID, models.SyncStatusRunning, ""); err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Could not mark source %s running: %v", sourceID, err)
	}

	started := time.Now()
	site := s.scraper.Scrape(ctx, assistantID, source.URL)

	if s.metrics != nil {
		s.metrics.CrawlPages.Add(float64(site.TotalPages))
		s.metrics.CrawlErrors.Add(float64(len(site.Errors)))
	}

	// Chunk every successfully fetched page.
	var stored []models.StoredChunk
	now := time.Now()
	for _, page := range site.Pages {
		if page.Err != "" || page.Content == "" {
			continue
		}
		for _, ch := range chunker.Chunk(page.Content, sourceID, s.chunkOpts) {
			stored = append(stored, models.StoredChunk{
				ID:          uuid.New().String(),
				AssistantID: assistantID,
				SourceID:    sourceID,
				Index:       ch.Index,
				Text:        ch.Text,
				ContentHash: embeddings.ContentHash(ch.Text),
				PageURL:     page.URL,
				PageTitle:   page.Title,
				CreatedAt:   now,
			})
		}
	}

	run := &models.CrawlRun{
		ID:         uuid.New().String(),
		SourceID:   sourceID,
		SeedURL:    source.URL,
		PagesTotal: site.TotalPages,
		PagesError: len(site.Errors),
		ChunkCount: len(stored),
		Errors:     site.Errors,
		StartedAt:  started,
	}

	if len(stored) == 0 {
		run.FinishedAt = time.Now()
		s.finishRun(ctx, run, models.SyncStatusFailed, "crawl produced no usable content")
		return run, fmt.Errorf("crawl of %s produced no usable content", source.URL)
	}

	if err := s.embedAndStore(ctx, assistantID, sourceID, stored); err != nil {
		run.FinishedAt = time.Now()
		s.finishRun(ctx, run, models.SyncStatusFailed, err.Error())
		return run, err
	}

	run.FinishedAt = time.Now()
	s.finishRun(ctx, run, models.SyncStatusSynced, "")

	log.Printf("✅ [KNOWLEDGE] Synced website source %s: %d pages, %d chunks (%.1fs)",
		sourceID, run.PagesTotal, run.ChunkCount, run.FinishedAt.Sub(run.StartedAt).Seconds())
	return run, nil
}

// IngestDocument extracts text from an uploaded file and runs it
// through the same chunk, embed and store path as crawled pages.
func (s *KnowledgeService) IngestDocument(ctx context.Context, assistantID, sourceID, filename string, data []byte) (int, error) {
	text, err := document.ExtractText(filename, data)
	if err != nil {
		s.updateStatus(ctx, sourceID, models.SyncStatusFailed, err.Error())
		return 0, fmt.Errorf("failed to extract %s: %w", filename, err)
	}
	if text == "" {
		s.updateStatus(ctx, sourceID, models.SyncStatusFailed, "document contains no extractable text")
		return 0, fmt.Errorf("document %s contains no extractable text", filename)
	}

	now := time.Now()
	var stored []models.StoredChunk
	for _, ch := range chunker.Chunk(text, sourceID, s.chunkOpts) {
		stored = append(stored, models.StoredChunk{
			ID:          uuid.New().String(),
			AssistantID: assistantID,
			SourceID:    sourceID,
			Index:       ch.Index,
			Text:        ch.Text,
			ContentHash: embeddings.ContentHash(ch.Text),
			PageTitle:   filename,
			CreatedAt:   now,
		})
	}
	if len(stored) == 0 {
		s.updateStatus(ctx, sourceID, models.SyncStatusFailed, "document too short to chunk")
		return 0, fmt.Errorf("document %s too short to chunk", filename)
	}

	if err := s.embedAndStore(ctx, assistantID, sourceID, stored); err != nil {
		s.updateStatus(ctx, sourceID, models.SyncStatusFailed, err.Error())
		return 0, err
	}
	s.updateStatus(ctx, sourceID, models.SyncStatusSynced, "")

	log.Printf("✅ [KNOWLEDGE] Ingested document %s: %d chunks", filename, len(stored))
	return len(stored), nil
}

// embedAndStore batch-embeds the chunk texts and persists the set.
// Chunks whose embedding failed are dropped rather than stored without
// a vector.
func (s *KnowledgeService) embedAndStore(ctx context.Context, assistantID, sourceID string, stored []models.StoredChunk) error {
	texts := make([]string, len(stored))
	for i := range stored {
		texts[i] = stored[i].Text
	}

	vectors := s.embedCache.Batch(ctx, texts)

	kept := stored[:0]
	for i := range stored {
		if i < len(vectors) && len(vectors[i]) > 0 {
			stored[i].Vector = vectors[i]
			kept = append(kept, stored[i])
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("embedding failed for every chunk")
	}
	if dropped := len(stored) - len(kept); dropped > 0 {
		log.Printf("⚠️  [KNOWLEDGE] Dropped %d chunks with failed embeddings", dropped)
	}

	if err := s.chunks.ReplaceSourceChunks(ctx, assistantID, sourceID, kept); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

func (s *KnowledgeService) finishRun(ctx context.Context, run *models.CrawlRun, status, lastError string) {
	if err := s.registry.RecordCrawlRun(ctx, run); err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Could not record crawl run %s: %v", run.ID, err)
	}
	s.updateStatus(ctx, run.SourceID, status, lastError)

	if s.metrics != nil {
		outcome := "synced"
		if status == models.SyncStatusFailed {
			outcome = "failed"
		}
		s.metrics.CrawlRuns.WithLabelValues(outcome).Inc()
	}
}

func (s *KnowledgeService) updateStatus(ctx context.Context, sourceID, status, lastError string) {
	if err := s.registry.UpdateSourceStatus(ctx, sourceID, status, lastError); err != nil {
		log.Printf("⚠️  [KNOWLEDGE] Could not update source %s status: %v", sourceID, err)
	}
}
