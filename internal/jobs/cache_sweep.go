package jobs

import (
	"context"
	"log"

	"helpdock/internal/embeddings"
)

// CacheSweepJob evicts expired embedding cache entries. Expiry is also
// checked lazily on every read, so this job only keeps the memory
// footprint honest.
type CacheSweepJob struct {
	cache *embeddings.Cache
}

// NewCacheSweepJob creates a cache sweep job.
func NewCacheSweepJob(cache *embeddings.Cache) *CacheSweepJob {
	return &CacheSweepJob{cache: cache}
}

// Run sweeps expired entries from the embedding cache.
func (j *CacheSweepJob) Run(ctx context.Context) error {
	removed := j.cache.Sweep()
	if removed > 0 {
		log.Printf("🧹 [CACHE-SWEEP] Evicted %d expired embedding entries", removed)
	}
	return nil
}
