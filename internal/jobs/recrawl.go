package jobs

import (
	"context"
	"log"

	"helpdock/internal/database"
	"helpdock/internal/services"
)

// RecrawlJob re-syncs every website knowledge source so answers track
// the live site. Sources failing repeatedly stay registered; each run
// just records another failed crawl.
type RecrawlJob struct {
	db        *database.DB
	knowledge *services.KnowledgeService
}

// NewRecrawlJob creates a scheduled re-crawl job.
func NewRecrawlJob(db *database.DB, knowledge *services.KnowledgeService) *RecrawlJob {
	return &RecrawlJob{db: db, knowledge: knowledge}
}

// Run re-crawls all website sources sequentially. The scraper's own
// rate limiting keeps this polite; sequential execution keeps the
// load on the embedding provider bounded.
func (j *RecrawlJob) Run(ctx context.Context) error {
	sources, err := j.db.WebsiteSources(ctx)
	if err != nil {
		log.Printf("❌ [RECRAWL] Failed to list website sources: %v", err)
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	log.Printf("🔁 [RECRAWL] Re-crawling %d website sources", len(sources))
	failed := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := j.knowledge.SyncWebsite(ctx, src.AssistantID, src.ID); err != nil {
			failed++
			log.Printf("⚠️  [RECRAWL] Source %s (%s) failed: %v", src.ID, src.URL, err)
		}
	}

	log.Printf("✅ [RECRAWL] Finished: %d synced, %d failed", len(sources)-failed, failed)
	return nil
}
