package feedback

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type memStore struct {
	mu   sync.Mutex
	recs []Record
	fail bool
}

func (m *memStore) SaveFeedback(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	m.recs = append(m.recs, rec)
	return nil
}

func entry(conf float64, typ string) Entry {
	return Entry{
		MessageID:  "msg",
		SessionID:  "sess",
		Query:      "refund policy details please",
		Answer:     "answer",
		Confidence: conf,
		Type:       typ,
	}
}

func TestLearner_BoundedHistoryFIFO(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()

	for i := 0; i < MaxHistory+1; i++ {
		e := entry(0.5, TypePositive)
		e.MessageID = fmt.Sprintf("msg-%d", i)
		l.Record(ctx, e)
	}

	if got := l.HistoryLen(); got != MaxHistory {
		t.Fatalf("expected history capped at %d, got %d", MaxHistory, got)
	}
	oldest, ok := l.Oldest()
	if !ok {
		t.Fatal("expected a non-empty history")
	}
	if oldest.MessageID != "msg-1" {
		t.Errorf("expected oldest entry msg-1 after FIFO eviction, got %s", oldest.MessageID)
	}
}

func TestLearner_ThresholdDefaultUnderMinimum(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()
	for i := 0; i < minEntriesForThreshold-1; i++ {
		l.Record(ctx, entry(0.9, TypePositive))
	}
	if got := l.RecommendedConfidenceThreshold(); got != DefaultConfidenceThreshold {
		t.Errorf("expected default threshold %.1f, got %.1f", DefaultConfidenceThreshold, got)
	}
}

func TestLearner_ThresholdPerfectSeparation(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()

	// Everything at or above 0.6 is positive, everything below negative:
	// 0.6 is the F1-optimal candidate with F1 = 1.0.
	for i := 0; i < 40; i++ {
		l.Record(ctx, entry(0.65, TypePositive))
		l.Record(ctx, entry(0.85, TypePositive))
		l.Record(ctx, entry(0.55, TypeNegative))
		l.Record(ctx, entry(0.45, TypeNegative))
	}

	if got := l.RecommendedConfidenceThreshold(); got != 0.6 {
		t.Errorf("expected threshold 0.6, got %.1f", got)
	}
}

func TestLearner_ThresholdTieGoesLowest(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()

	// All positive with confidence above every candidate: every
	// threshold scores F1 = 1.0, so the lowest candidate wins.
	for i := 0; i < 60; i++ {
		l.Record(ctx, entry(0.9, TypePositive))
	}
	if got := l.RecommendedConfidenceThreshold(); got != 0.3 {
		t.Errorf("expected tie to resolve to 0.3, got %.1f", got)
	}
}

func TestLearner_StatisticsEmpty(t *testing.T) {
	l := NewLearner(nil)
	stats := l.Statistics()
	if stats.Total != 0 || stats.PositiveRatio != 0 || stats.AverageStars != 0 || stats.AverageConfidence != 0 {
		t.Errorf("expected zero-valued statistics on empty history, got %+v", stats)
	}
}

func TestLearner_Statistics(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()

	five := 5
	one := 1
	e1 := entry(0.8, TypePositive)
	e1.Score = &five
	e2 := entry(0.4, TypeNegative)
	e2.Score = &one
	e3 := entry(0.6, TypePositive) // unscored

	l.Record(ctx, e1)
	l.Record(ctx, e2)
	l.Record(ctx, e3)

	stats := l.Statistics()
	if stats.Total != 3 {
		t.Errorf("total = %d", stats.Total)
	}
	if diff := stats.PositiveRatio - 2.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("positive ratio = %f", stats.PositiveRatio)
	}
	if stats.AverageStars != 3 {
		t.Errorf("average stars = %f, want 3 (only scored entries count)", stats.AverageStars)
	}
}

func TestLearner_AnalyzeIdempotent(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		l.Record(ctx, entry(0.5, TypePositive))
		l.Record(ctx, entry(0.9, TypeNegative))
	}

	first := l.AnalyzeAndLearn()
	second := l.AnalyzeAndLearn()
	if len(first) != len(second) {
		t.Fatalf("insight counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Pattern != second[i].Pattern || first[i].Occurrences != second[i].Occurrences {
			t.Errorf("insight %d differs between runs", i)
		}
	}
}

func TestLearner_Insights(t *testing.T) {
	l := NewLearner(nil)
	ctx := context.Background()

	// 12 low-confidence positives (> 10 required).
	for i := 0; i < 12; i++ {
		l.Record(ctx, entry(0.4, TypePositive))
	}
	// 6 high-confidence negatives (> 5 required).
	for i := 0; i < 6; i++ {
		e := entry(0.9, TypeNegative)
		e.Query = "cancel subscription immediately today"
		l.Record(ctx, e)
	}
	// A problem source across 6 negative entries.
	for i := 0; i < 6; i++ {
		e := entry(0.5, TypeNegative)
		e.Query = "shipping international orders question"
		e.Sources = []string{"https://example.com/old-faq"}
		l.Record(ctx, e)
	}

	insights := l.AnalyzeAndLearn()

	patterns := make(map[string]bool)
	for _, ins := range insights {
		patterns[ins.Pattern] = true
	}
	if !patterns["low_confidence_positive"] {
		t.Error("expected low_confidence_positive insight")
	}
	if !patterns["high_confidence_negative"] {
		t.Error("expected high_confidence_negative insight")
	}
	if !patterns["problem_source: https://example.com/old-faq"] {
		t.Errorf("expected problem_source insight, got %v", insights)
	}
	// Both repeated negative queries form knowledge-gap clusters.
	if !patterns["knowledge_gap: cancel subscription immediately"] {
		t.Errorf("expected knowledge gap cluster, got %v", insights)
	}
}

func TestLearner_StoreFailureSwallowed(t *testing.T) {
	store := &memStore{fail: true}
	l := NewLearner(store)

	// Must not panic or surface the store error.
	l.Record(context.Background(), entry(0.7, TypePositive))
	if l.HistoryLen() != 1 {
		t.Error("in-memory learning should continue despite store failure")
	}
}
