package feedback

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Feedback types.
const (
	TypePositive = "positive"
	TypeNegative = "negative"
)

const (
	// MaxHistory bounds the in-memory feedback window. Insertions past
	// the cap evict the oldest entry (FIFO).
	MaxHistory = 5000

	// analyzeEvery triggers an analysis pass on every Nth recorded entry.
	analyzeEvery = 100

	// minEntriesForThreshold is how much feedback is needed before the
	// recommended threshold moves away from the default.
	minEntriesForThreshold = 50

	// DefaultConfidenceThreshold is used until enough feedback exists.
	DefaultConfidenceThreshold = 0.5
)

// thresholdCandidates is the discrete sweep used when picking the
// confidence threshold that maximizes F1.
var thresholdCandidates = []float64{0.3, 0.4, 0.5, 0.6, 0.7}

// Entry is one recorded answer-feedback signal.
type Entry struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	SessionID  string    `json:"session_id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Sources    []string  `json:"sources,omitempty"`
	Type       string    `json:"type"`            // positive | negative
	Score      *int      `json:"score,omitempty"` // optional 1-5 star rating
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Insight is a derived observation over the feedback window. Insights
// are recomputed on demand and never persisted.
type Insight struct {
	Pattern           string  `json:"pattern"`
	Occurrences       int     `json:"occurrences"`
	AverageConfidence float64 `json:"average_confidence"`
	PositiveRatio     float64 `json:"positive_ratio"`
	Recommendation    string  `json:"recommendation"`
}

// Statistics summarizes the feedback window.
type Statistics struct {
	Total             int     `json:"total"`
	PositiveRatio     float64 `json:"positive_ratio"`
	AverageStars      float64 `json:"average_stars"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Store durably persists a normalized copy of each feedback record.
// Failures are logged and swallowed; in-memory learning never blocks on
// the store.
type Store interface {
	SaveFeedback(ctx context.Context, rec Record) error
}

// Record is the normalized durable form of a feedback entry.
type Record struct {
	MessageID string `bson:"message_id" json:"message_id"`
	SessionID string `bson:"session_id" json:"session_id"`
	Rating    string `bson:"rating" json:"rating"` // THUMBS_UP | THUMBS_DOWN
	Comment   string `bson:"comment,omitempty" json:"comment,omitempty"`
}

// Learner accumulates feedback and derives retrieval tuning from it.
// Construct one per process (or per tenant) and pass it to request
// handlers explicitly.
type Learner struct {
	mu      sync.RWMutex
	history []Entry
	store   Store
	total   int // lifetime count, drives the periodic analysis trigger
}

// NewLearner creates a feedback learner. store may be nil in tests.
func NewLearner(store Store) *Learner {
	return &Learner{store: store}
}

// Record appends an entry to the bounded history, persists a durable
// copy in the background, and runs an analysis pass on every 100th
// entry.
func (l *Learner) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.history = append(l.history, e)
	if len(l.history) > MaxHistory {
		l.history = l.history[len(l.history)-MaxHistory:]
	}
	l.total++
	shouldAnalyze := l.total%analyzeEvery == 0
	l.mu.Unlock()

	if l.store != nil {
		go l.persist(e)
	}

	if shouldAnalyze {
		insights := l.AnalyzeAndLearn()
		log.Printf("📊 [FEEDBACK] Analysis after %d entries: %d insight(s)", l.total, len(insights))
		for _, ins := range insights {
			log.Printf("📊 [FEEDBACK]   %s (x%d): %s", ins.Pattern, ins.Occurrences, ins.Recommendation)
		}
	}
}

func (l *Learner) persist(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rating := "THUMBS_UP"
	if e.Type == TypeNegative {
		rating = "THUMBS_DOWN"
	}
	rec := Record{
		MessageID: e.MessageID,
		SessionID: e.SessionID,
		Rating:    rating,
		Comment:   e.Comment,
	}
	if err := l.store.SaveFeedback(ctx, rec); err != nil {
		log.Printf("⚠️  [FEEDBACK] Failed to persist feedback for message %s: %v", e.MessageID, err)
	}
}

// AnalyzeAndLearn derives insights over the current window. It is pure
// with respect to the history: repeated calls without new feedback
// return identical results.
func (l *Learner) AnalyzeAndLearn() []Insight {
	l.mu.RLock()
	window := make([]Entry, len(l.history))
	copy(window, l.history)
	l.mu.RUnlock()

	var insights []Insight

	if ins, ok := lowConfidencePositive(window); ok {
		insights = append(insights, ins)
	}
	if ins, ok := highConfidenceNegative(window); ok {
		insights = append(insights, ins)
	}
	insights = append(insights, negativeQueryClusters(window)...)
	insights = append(insights, problemSources(window)...)

	return insights
}

// lowConfidencePositive surfaces answers the scorer undervalued: low
// confidence but users approved.
func lowConfidencePositive(window []Entry) (Insight, bool) {
	var matched []Entry
	for _, e := range window {
		if e.Confidence < 0.6 && e.Type == TypePositive {
			matched = append(matched, e)
		}
	}
	if len(matched) <= 10 {
		return Insight{}, false
	}
	return Insight{
		Pattern:           "low_confidence_positive",
		Occurrences:       len(matched),
		AverageConfidence: avgConfidence(matched),
		PositiveRatio:     1.0,
		Recommendation:    "answers below the current threshold are landing well; consider lowering the confidence threshold",
	}, true
}

// highConfidenceNegative surfaces overconfident answers: high scorer
// confidence but users rejected them.
func highConfidenceNegative(window []Entry) (Insight, bool) {
	var matched []Entry
	for _, e := range window {
		if e.Confidence > 0.8 && e.Type == TypeNegative {
			matched = append(matched, e)
		}
	}
	if len(matched) <= 5 {
		return Insight{}, false
	}
	return Insight{
		Pattern:           "high_confidence_negative",
		Occurrences:       len(matched),
		AverageConfidence: avgConfidence(matched),
		PositiveRatio:     0.0,
		Recommendation:    "the confidence scorer is overconfident; review retrieval quality for these answers",
	}, true
}

// negativeQueryClusters groups negative feedback by a coarse query key
// and flags repeated clusters as knowledge gaps.
func negativeQueryClusters(window []Entry) []Insight {
	clusters := make(map[string][]Entry)
	for _, e := range window {
		if e.Type != TypeNegative {
			continue
		}
		key := queryKey(e.Query)
		if key == "" {
			continue
		}
		clusters[key] = append(clusters[key], e)
	}

	keys := make([]string, 0, len(clusters))
	for k, entries := range clusters {
		if len(entries) >= 3 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys) // deterministic output order

	var insights []Insight
	for _, k := range keys {
		entries := clusters[k]
		insights = append(insights, Insight{
			Pattern:           "knowledge_gap: " + k,
			Occurrences:       len(entries),
			AverageConfidence: avgConfidence(entries),
			PositiveRatio:     0.0,
			Recommendation:    "repeated negative feedback for similar queries; add knowledge covering: " + k,
		})
	}
	return insights
}

// problemSources flags sources with a poor positive ratio across at
// least 5 feedback entries.
func problemSources(window []Entry) []Insight {
	type sourceStats struct {
		total    int
		positive int
		confSum  float64
	}
	stats := make(map[string]*sourceStats)
	for _, e := range window {
		for _, src := range e.Sources {
			s := stats[src]
			if s == nil {
				s = &sourceStats{}
				stats[src] = s
			}
			s.total++
			s.confSum += e.Confidence
			if e.Type == TypePositive {
				s.positive++
			}
		}
	}

	sources := make([]string, 0, len(stats))
	for src, s := range stats {
		if s.total >= 5 && float64(s.positive)/float64(s.total) < 0.3 {
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)

	var insights []Insight
	for _, src := range sources {
		s := stats[src]
		insights = append(insights, Insight{
			Pattern:           "problem_source: " + src,
			Occurrences:       s.total,
			AverageConfidence: s.confSum / float64(s.total),
			PositiveRatio:     float64(s.positive) / float64(s.total),
			Recommendation:    "source is associated with poor feedback; review or re-sync: " + src,
		})
	}
	return insights
}

// RecommendedConfidenceThreshold sweeps the candidate thresholds and
// returns the one maximizing F1, treating positive feedback as the
// relevance label and confidence >= threshold as acceptance. Below 50
// entries the default threshold is returned. Ties go to the lowest
// candidate.
func (l *Learner) RecommendedConfidenceThreshold() float64 {
	l.mu.RLock()
	window := make([]Entry, len(l.history))
	copy(window, l.history)
	l.mu.RUnlock()

	if len(window) < minEntriesForThreshold {
		return DefaultConfidenceThreshold
	}

	best := thresholdCandidates[0]
	bestF1 := -1.0
	for _, t := range thresholdCandidates {
		f1 := f1At(window, t)
		if f1 > bestF1 {
			bestF1 = f1
			best = t
		}
	}
	return best
}

func f1At(window []Entry, threshold float64) float64 {
	var tp, fp, fn int
	for _, e := range window {
		accepted := e.Confidence >= threshold
		relevant := e.Type == TypePositive
		switch {
		case accepted && relevant:
			tp++
		case accepted && !relevant:
			fp++
		case !accepted && relevant:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	return 2 * precision * recall / (precision + recall)
}

// Statistics summarizes the window. All values are zero on an empty
// history.
func (l *Learner) Statistics() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.history) == 0 {
		return Statistics{}
	}

	var positive, scored int
	var starSum, confSum float64
	for _, e := range l.history {
		if e.Type == TypePositive {
			positive++
		}
		if e.Score != nil {
			scored++
			starSum += float64(*e.Score)
		}
		confSum += e.Confidence
	}

	stats := Statistics{
		Total:             len(l.history),
		PositiveRatio:     float64(positive) / float64(len(l.history)),
		AverageConfidence: confSum / float64(len(l.history)),
	}
	if scored > 0 {
		stats.AverageStars = starSum / float64(scored)
	}
	return stats
}

// HistoryLen reports the current window size.
func (l *Learner) HistoryLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.history)
}

// Oldest returns the oldest entry in the window, used by eviction tests
// and diagnostics.
func (l *Learner) Oldest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.history) == 0 {
		return Entry{}, false
	}
	return l.history[0], true
}

func avgConfidence(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.Confidence
	}
	return sum / float64(len(entries))
}

// queryKey builds a coarse clustering key from the first three
// significant words of a query.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true,
	"how": true, "can": true, "does": true, "this": true, "that": true,
	"you": true, "your": true, "are": true, "have": true, "about": true,
	"where": true, "when": true, "why": true, "who": true, "from": true,
}

func queryKey(query string) string {
	words := strings.Fields(strings.ToLower(query))
	var significant []string
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) <= 3 || stopwords[w] {
			continue
		}
		significant = append(significant, w)
		if len(significant) == 3 {
			break
		}
	}
	return strings.Join(significant, " ")
}
