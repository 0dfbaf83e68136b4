package services

import (
	"context"
	"strings"
	"testing"

	"helpdock/internal/embeddings"
	"helpdock/internal/models"
	"helpdock/internal/scraper"
)

// constEmbedder returns the same vector for every text and counts how
// many texts the provider saw.
type constEmbedder struct {
	textsSeen int
}

func (e *constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.textsSeen += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeRegistry struct {
	source   *models.KnowledgeSource
	statuses []string
	lastErr  string
	runs     []*models.CrawlRun
}

func (r *fakeRegistry) KnowledgeSource(context.Context, string) (*models.KnowledgeSource, error) {
	return r.source, nil
}

func (r *fakeRegistry) UpdateSourceStatus(_ context.Context, _, status, lastError string) error {
	r.statuses = append(r.statuses, status)
	r.lastErr = lastError
	return nil
}

func (r *fakeRegistry) RecordCrawlRun(_ context.Context, run *models.CrawlRun) error {
	r.runs = append(r.runs, run)
	return nil
}

type capturingChunks struct {
	assistantID string
	sourceID    string
	stored      []models.StoredChunk
}

func (c *capturingChunks) ReplaceSourceChunks(_ context.Context, assistantID, sourceID string, chunks []models.StoredChunk) error {
	c.assistantID = assistantID
	c.sourceID = sourceID
	c.stored = chunks
	return nil
}

type cannedScraper struct {
	site *scraper.Website
}

func (s *cannedScraper) Scrape(context.Context, string, string) *scraper.Website {
	return s.site
}

func longPage(sentence string) string {
	return strings.Repeat(sentence+" ", 60)
}

func TestSyncWebsite_StoresEmbeddedChunks(t *testing.T) {
	registry := &fakeRegistry{source: &models.KnowledgeSource{
		ID: "src-1", AssistantID: "asst-1", Type: models.SourceTypeWebsite, URL: "https://example.com/",
	}}
	store := &capturingChunks{}
	crawler := &cannedScraper{site: &scraper.Website{
		MainURL:    "https://example.com/",
		TotalPages: 2,
		Pages: []scraper.Page{
			{URL: "https://example.com/", Title: "Home", Content: longPage("Our product does many useful things.")},
			{URL: "https://example.com/pricing", Title: "Pricing", Content: longPage("Plans start at ten dollars per month.")},
		},
	}}
	embedder := &constEmbedder{}
	svc := newKnowledgeServiceForTest(registry, store, crawler, embeddings.NewCache(embedder, nil, 0))

	run, err := svc.SyncWebsite(context.Background(), "asst-1", "src-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.PagesTotal != 2 || run.PagesError != 0 {
		t.Errorf("run = %+v", run)
	}
	if run.ChunkCount == 0 || run.ChunkCount != len(store.stored) {
		t.Errorf("chunk count %d, stored %d", run.ChunkCount, len(store.stored))
	}
	for _, ch := range store.stored {
		if ch.AssistantID != "asst-1" || ch.SourceID != "src-1" {
			t.Fatalf("chunk mis-attributed: %+v", ch)
		}
		if len(ch.Vector) == 0 {
			t.Fatal("stored chunk without a vector")
		}
		if ch.ContentHash == "" || ch.PageURL == "" {
			t.Fatalf("chunk missing metadata: %+v", ch)
		}
	}

	// running then synced
	if len(registry.statuses) != 2 || registry.statuses[0] != models.SyncStatusRunning || registry.statuses[1] != models.SyncStatusSynced {
		t.Errorf("status transitions = %v", registry.statuses)
	}
	if len(registry.runs) != 1 {
		t.Errorf("expected one recorded crawl run, got %d", len(registry.runs))
	}
}

func TestSyncWebsite_DeduplicatesIdenticalPages(t *testing.T) {
	content := longPage("The exact same boilerplate appears on every page of this site.")
	registry := &fakeRegistry{source: &models.KnowledgeSource{
		ID: "src-1", AssistantID: "asst-1", Type: models.SourceTypeWebsite, URL: "https://example.com/",
	}}
	store := &capturingChunks{}
	crawler := &cannedScraper{site: &scraper.Website{
		TotalPages: 2,
		Pages: []scraper.Page{
			{URL: "https://example.com/a", Content: content},
			{URL: "https://example.com/b", Content: content},
		},
	}}
	embedder := &constEmbedder{}
	svc := newKnowledgeServiceForTest(registry, store, crawler, embeddings.NewCache(embedder, nil, 0))

	if _, err := svc.SyncWebsite(context.Background(), "asst-1", "src-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both pages' chunks are stored, but identical texts share provider
	// embeddings through the batch dedup.
	if len(store.stored) == 0 {
		t.Fatal("no chunks stored")
	}
	if embedder.textsSeen >= len(store.stored) {
		t.Errorf("expected dedup: %d provider texts for %d stored chunks", embedder.textsSeen, len(store.stored))
	}
}

func TestSyncWebsite_EmptyCrawlFails(t *testing.T) {
	registry := &fakeRegistry{source: &models.KnowledgeSource{
		ID: "src-1", AssistantID: "asst-1", Type: models.SourceTypeWebsite, URL: "https://example.com/",
	}}
	crawler := &cannedScraper{site: &scraper.Website{
		Errors: []string{"https://example.com/: connection refused"},
	}}
	svc := newKnowledgeServiceForTest(registry, &capturingChunks{}, crawler, embeddings.NewCache(&constEmbedder{}, nil, 0))

	run, err := svc.SyncWebsite(context.Background(), "asst-1", "src-1")
	if err == nil {
		t.Fatal("expected an error for an empty crawl")
	}
	if run == nil || run.ChunkCount != 0 {
		t.Fatalf("run = %+v", run)
	}
	last := registry.statuses[len(registry.statuses)-1]
	if last != models.SyncStatusFailed {
		t.Errorf("final status = %q, want failed", last)
	}
	if len(registry.runs) != 1 {
		t.Error("failed runs must still be recorded")
	}
}

func TestIngestDocument_ChunksAndStores(t *testing.T) {
	registry := &fakeRegistry{source: &models.KnowledgeSource{ID: "src-2", Type: models.SourceTypeDocument}}
	store := &capturingChunks{}
	svc := newKnowledgeServiceForTest(registry, store, nil, embeddings.NewCache(&constEmbedder{}, nil, 0))

	text := longPage("Refunds are processed within five business days of the request.")
	count, err := svc.IngestDocument(context.Background(), "asst-1", "src-2", "refunds.txt", []byte(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count == 0 || count != len(store.stored) {
		t.Errorf("count = %d, stored = %d", count, len(store.stored))
	}
	if store.stored[0].PageTitle != "refunds.txt" {
		t.Errorf("chunk title = %q", store.stored[0].PageTitle)
	}
}

func TestIngestDocument_EmptyDocumentFails(t *testing.T) {
	registry := &fakeRegistry{source: &models.KnowledgeSource{ID: "src-2"}}
	svc := newKnowledgeServiceForTest(registry, &capturingChunks{}, nil, embeddings.NewCache(&constEmbedder{}, nil, 0))

	if _, err := svc.IngestDocument(context.Background(), "asst-1", "src-2", "empty.txt", nil); err == nil {
		t.Fatal("expected an error for an empty document")
	}
	last := registry.statuses[len(registry.statuses)-1]
	if last != models.SyncStatusFailed {
		t.Errorf("final status = %q, want failed", last)
	}
}
