package scraper

import (
	"context"
	"fmt"
	"io"
)

// DefaultMaxBodySize caps fetched page bodies at 10MB.
const DefaultMaxBodySize = 10 * 1024 * 1024

// ResourceManager bounds concurrent in-flight fetches across all crawls
// sharing one Scraper.
type ResourceManager struct {
	semaphore   chan struct{}
	maxBodySize int64
}

// NewResourceManager creates a resource manager allowing maxConcurrent
// simultaneous fetches.
func NewResourceManager(maxConcurrent int, maxBodySize int64) *ResourceManager {
	return &ResourceManager{
		semaphore:   make(chan struct{}, maxConcurrent),
		maxBodySize: maxBodySize,
	}
}

// Acquire claims a fetch slot, blocking until one is free or the
// context is cancelled.
func (rm *ResourceManager) Acquire(ctx context.Context) error {
	select {
	case rm.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for fetch slot: %w", ctx.Err())
	}
}

// Release frees a fetch slot.
func (rm *ResourceManager) Release() {
	<-rm.semaphore
}

// MaxBodySize returns the configured body cap.
func (rm *ResourceManager) MaxBodySize() int64 {
	return rm.maxBodySize
}

// readLimited reads at most maxBody bytes, failing when the body
// exceeds the cap rather than silently truncating a page.
func readLimited(body io.Reader, maxBody int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) >= maxBody {
		return nil, fmt.Errorf("response body too large (max %d bytes)", maxBody)
	}
	return data, nil
}
