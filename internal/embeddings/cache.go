package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a cached embedding stays valid.
const DefaultTTL = 24 * time.Hour

type cacheEntry struct {
	vector   []float32
	storedAt time.Time
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	QueryHits     int64
	QueryMisses   int64
	ContentHits   int64
	ContentMisses int64
	ProviderCalls int64
}

// Cache deduplicates and caches embedding calls. Query embeddings are
// keyed by the literal query text, content embeddings by a SHA-256 of
// the normalized text so identical chunks across documents share one
// provider call. Expiry is checked lazily on read; Sweep removes
// expired entries in bulk.
//
// Two concurrent misses on the same key may both reach the provider;
// the duplicate call is harmless and the later write wins.
type Cache struct {
	embedder Embedder
	clock    clockwork.Clock
	ttl      time.Duration

	mu      sync.RWMutex
	byQuery map[string]cacheEntry
	byHash  map[string]cacheEntry
	stats   Stats
}

// NewCache creates an embedding cache around embedder. A zero ttl uses
// DefaultTTL. The clock is injected so TTL behavior is testable.
func NewCache(embedder Embedder, clock clockwork.Clock, ttl time.Duration) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		embedder: embedder,
		clock:    clock,
		ttl:      ttl,
		byQuery:  make(map[string]cacheEntry),
		byHash:   make(map[string]cacheEntry),
	}
}

// ContentHash returns the dedup key for a piece of content: SHA-256 of
// the whitespace-normalized text.
func ContentHash(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) fresh(e cacheEntry) bool {
	return c.clock.Since(e.storedAt) < c.ttl
}

// Query returns the embedding for a search query, served from cache
// when a fresh entry exists for the exact query text. Provider failure
// degrades to a nil vector so retrieval returns no matches instead of
// failing the request.
func (c *Cache) Query(ctx context.Context, text string) []float32 {
	c.mu.RLock()
	entry, ok := c.byQuery[text]
	c.mu.RUnlock()
	if ok && c.fresh(entry) {
		c.count(func(s *Stats) { s.QueryHits++ })
		return entry.vector
	}
	c.count(func(s *Stats) { s.QueryMisses++ })

	vectors, err := c.embedder.Embed(ctx, []string{text})
	c.count(func(s *Stats) { s.ProviderCalls++ })
	if err != nil || len(vectors) != 1 {
		log.Printf("❌ [EMBED-CACHE] Query embedding failed, degrading to empty vector: %v", err)
		return nil
	}

	c.mu.Lock()
	c.byQuery[text] = cacheEntry{vector: vectors[0], storedAt: c.clock.Now()}
	c.mu.Unlock()
	return vectors[0]
}

// Content returns the embedding for a content chunk, deduplicated by
// content hash. Same degradation behavior as Query.
func (c *Cache) Content(ctx context.Context, text string) []float32 {
	vectors := c.Batch(ctx, []string{text})
	if len(vectors) != 1 {
		return nil
	}
	return vectors[0]
}

// Batch embeds a slice of chunk texts with in-batch deduplication:
// texts sharing a content hash (within the batch or with a fresh cached
// entry) trigger a single provider embedding. The result slice is
// positionally aligned with texts; failed embeddings come back nil.
func (c *Cache) Batch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	hashes := make([]string, len(texts))
	need := make([]string, 0, len(texts))     // distinct texts that must go to the provider
	needHash := make([]string, 0, len(texts)) // their hashes, same order
	seen := make(map[string]bool, len(texts))

	c.mu.RLock()
	for i, text := range texts {
		h := ContentHash(text)
		hashes[i] = h
		if entry, ok := c.byHash[h]; ok && c.fresh(entry) {
			continue
		}
		if !seen[h] {
			seen[h] = true
			need = append(need, text)
			needHash = append(needHash, h)
		}
	}
	c.mu.RUnlock()

	cached := len(texts) - len(need)
	c.count(func(s *Stats) {
		s.ContentHits += int64(cached)
		s.ContentMisses += int64(len(need))
	})

	if len(need) > 0 {
		vectors, err := c.embedder.Embed(ctx, need)
		c.count(func(s *Stats) { s.ProviderCalls += int64(len(need)) })
		if err != nil || len(vectors) != len(need) {
			log.Printf("❌ [EMBED-CACHE] Batch embedding failed for %d texts: %v", len(need), err)
		} else {
			now := c.clock.Now()
			c.mu.Lock()
			for i, h := range needHash {
				c.byHash[h] = cacheEntry{vector: vectors[i], storedAt: now}
			}
			c.mu.Unlock()
		}
	}

	// Fan the (possibly refreshed) cache back out to every position.
	result := make([][]float32, len(texts))
	c.mu.RLock()
	for i, h := range hashes {
		if entry, ok := c.byHash[h]; ok && c.fresh(entry) {
			result[i] = entry.vector
		}
	}
	c.mu.RUnlock()

	saved := 0.0
	if len(texts) > 0 {
		saved = float64(len(texts)-len(need)) / float64(len(texts)) * 100
	}
	log.Printf("💰 [EMBED-CACHE] Batch processed: %d texts, %d provider embeddings, %.0f%% saved",
		len(texts), len(need), saved)

	return result
}

// Sweep removes expired entries. Called periodically by the job
// scheduler; correctness does not depend on it since expiry is also
// checked on every read.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.byQuery {
		if !c.fresh(e) {
			delete(c.byQuery, k)
			removed++
		}
	}
	for k, e := range c.byHash {
		if !c.fresh(e) {
			delete(c.byHash, k)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 [EMBED-CACHE] Swept %d expired entries", removed)
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}
