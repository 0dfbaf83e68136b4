package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"helpdock/internal/embeddings"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func gatherValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestInitMetrics_CacheCollectorsTrackActivity(t *testing.T) {
	cache := embeddings.NewCache(unitEmbedder{}, nil, 0)
	InitMetrics(cache)

	// Three texts, one in-batch duplicate: two provider embeddings and
	// one dedup hit.
	cache.Batch(context.Background(), []string{"alpha text", "alpha text", "beta text"})

	if got := gatherValue(t, "helpdock_embedding_provider_calls_total"); got != 2 {
		t.Errorf("provider calls = %v, want 2", got)
	}
	if got := gatherValue(t, "helpdock_embedding_cache_hits_total"); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := gatherValue(t, "helpdock_embedding_cache_hit_ratio"); got <= 0 {
		t.Errorf("hit ratio = %v, want > 0", got)
	}
}
