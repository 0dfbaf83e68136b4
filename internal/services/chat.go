package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"helpdock/internal/database"
	"helpdock/internal/embeddings"
	"helpdock/internal/feedback"
	"helpdock/internal/models"
	"helpdock/internal/queryexpand"
)

const (
	// topKChunks is how many retrieved chunks feed the answer prompt.
	topKChunks = 4

	// DefaultFallback is used when an assistant has no custom fallback.
	DefaultFallback = "I'm not sure about that one. Could you rephrase your question, or reach out to our support team?"
)

const answerSystem = `You are a helpful website support assistant. Answer using ONLY the provided context. If the context does not contain the answer, say you don't know. Be concise and friendly.`

// chunkReader serves stored chunks for retrieval. Satisfied by
// *database.ChunkStore.
type chunkReader interface {
	ChunksForAssistant(ctx context.Context, assistantID string) ([]models.StoredChunk, error)
}

// completer is the slice of the llm client the chat service needs.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string, onDelta func(string) error) error
}

// ChatAnswer is one answered widget query.
type ChatAnswer struct {
	MessageID  string   `json:"message_id"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	Fallback   bool     `json:"fallback"`
}

// ChatService answers widget queries with retrieval-augmented
// generation over an assistant's stored chunks.
type ChatService struct {
	chunks     chunkReader
	embedCache *embeddings.Cache
	expander   *queryexpand.Expander
	llm        completer
	learner    *feedback.Learner
	useAI      bool
	metrics    *Metrics
}

// NewChatService creates the chat orchestrator. llm may be nil, which
// degrades answers to the best-matching chunk text.
func NewChatService(chunks *database.ChunkStore, embedCache *embeddings.Cache, expander *queryexpand.Expander, llmClient completer, learner *feedback.Learner, useAI bool, metrics *Metrics) *ChatService {
	return &ChatService{
		chunks:     chunks,
		embedCache: embedCache,
		expander:   expander,
		llm:        llmClient,
		learner:    learner,
		useAI:      useAI,
		metrics:    metrics,
	}
}

// newChatServiceForTest wires fakes behind the same interfaces.
func newChatServiceForTest(chunks chunkReader, embedCache *embeddings.Cache, expander *queryexpand.Expander, llmClient completer, learner *feedback.Learner) *ChatService {
	return &ChatService{
		chunks:     chunks,
		embedCache: embedCache,
		expander:   expander,
		llm:        llmClient,
		learner:    learner,
	}
}

type scoredChunk struct {
	chunk models.StoredChunk
	score float64
}

// Answer resolves one widget query: expand, retrieve, score, synthesize.
// Low retrieval confidence yields the assistant's fallback reply instead
// of a made-up answer.
func (s *ChatService) Answer(ctx context.Context, assistant *models.Assistant, query string) (*ChatAnswer, error) {
	started := time.Now()
	if s.metrics != nil {
		s.metrics.ChatRequests.Inc()
		defer func() {
			s.metrics.ChatRequestLatency.Observe(time.Since(started).Seconds())
		}()
	}

	top, confidence, err := s.retrieve(ctx, assistant.ID, query)
	if err != nil {
		return nil, err
	}

	answer := &ChatAnswer{
		MessageID:  uuid.New().String(),
		Confidence: confidence,
	}

	threshold := feedback.DefaultConfidenceThreshold
	if s.learner != nil {
		threshold = s.learner.RecommendedConfidenceThreshold()
	}

	if confidence < threshold || len(top) == 0 {
		answer.Fallback = true
		answer.Answer = assistant.Fallback
		if answer.Answer == "" {
			answer.Answer = DefaultFallback
		}
		if s.metrics != nil {
			s.metrics.ChatFallbacks.Inc()
		}
		log.Printf("🤷 [CHAT] Low confidence %.2f (threshold %.2f) for assistant %s, sent fallback",
			confidence, threshold, assistant.ID)
		return answer, nil
	}

	answer.Sources = sourcesOf(top)
	answer.Answer = s.synthesize(ctx, query, top)
	return answer, nil
}

// StreamAnswer is Answer for the websocket widget: deltas go to onDelta
// as they arrive. Fallback replies are delivered as a single delta.
func (s *ChatService) StreamAnswer(ctx context.Context, assistant *models.Assistant, query string, onDelta func(string) error) (*ChatAnswer, error) {
	top, confidence, err := s.retrieve(ctx, assistant.ID, query)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ChatRequests.Inc()
	}

	answer := &ChatAnswer{
		MessageID:  uuid.New().String(),
		Confidence: confidence,
	}

	threshold := feedback.DefaultConfidenceThreshold
	if s.learner != nil {
		threshold = s.learner.RecommendedConfidenceThreshold()
	}

	if confidence < threshold || len(top) == 0 || s.llm == nil {
		answer.Fallback = true
		answer.Answer = assistant.Fallback
		if answer.Answer == "" {
			answer.Answer = DefaultFallback
		}
		if s.metrics != nil {
			s.metrics.ChatFallbacks.Inc()
		}
		return answer, onDelta(answer.Answer)
	}

	answer.Sources = sourcesOf(top)

	var full strings.Builder
	err = s.llm.Stream(ctx, answerSystem, buildPrompt(query, top), func(delta string) error {
		full.WriteString(delta)
		return onDelta(delta)
	})
	if err != nil {
		log.Printf("⚠️  [CHAT] Streaming failed, degrading to context excerpt: %v", err)
		answer.Answer = excerpt(top)
		return answer, onDelta(answer.Answer)
	}

	answer.Answer = full.String()
	return answer, nil
}

// retrieve expands the query, embeds every variant and scores all of
// the assistant's chunks; the best cosine similarity becomes the
// answer confidence.
func (s *ChatService) retrieve(ctx context.Context, assistantID, query string) ([]scoredChunk, float64, error) {
	stored, err := s.chunks.ChunksForAssistant(ctx, assistantID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(stored) == 0 {
		return nil, 0, nil
	}

	variants := []string{query}
	if s.expander != nil {
		variants = s.expander.Expand(ctx, query, queryexpand.Options{UseAI: s.useAI})
	}

	best := make(map[string]scoredChunk, len(stored))
	for _, variant := range variants {
		vector := s.embedCache.Query(ctx, variant)
		if len(vector) == 0 {
			continue
		}
		for i := range stored {
			score := cosineSimilarity(vector, stored[i].Vector)
			if prev, ok := best[stored[i].ID]; !ok || score > prev.score {
				best[stored[i].ID] = scoredChunk{chunk: stored[i], score: score}
			}
		}
	}

	ranked := make([]scoredChunk, 0, len(best))
	for _, sc := range best {
		ranked = append(ranked, sc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.ID < ranked[j].chunk.ID
	})
	if len(ranked) > topKChunks {
		ranked = ranked[:topKChunks]
	}

	confidence := 0.0
	if len(ranked) > 0 {
		confidence = ranked[0].score
	}
	return ranked, confidence, nil
}

// synthesize produces the final answer text from the retrieved context.
func (s *ChatService) synthesize(ctx context.Context, query string, top []scoredChunk) string {
	if s.llm == nil {
		return excerpt(top)
	}
	answer, err := s.llm.Complete(ctx, answerSystem, buildPrompt(query, top))
	if err != nil {
		log.Printf("⚠️  [CHAT] Completion failed, degrading to context excerpt: %v", err)
		return excerpt(top)
	}
	return answer
}

func buildPrompt(query string, top []scoredChunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, sc := range top {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, sc.chunk.Text)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", query)
	return b.String()
}

// excerpt is the no-LLM degradation path: the best matching chunk.
func excerpt(top []scoredChunk) string {
	if len(top) == 0 {
		return DefaultFallback
	}
	return top[0].chunk.Text
}

func sourcesOf(top []scoredChunk) []string {
	var sources []string
	seen := make(map[string]bool)
	for _, sc := range top {
		ref := sc.chunk.PageURL
		if ref == "" {
			ref = sc.chunk.PageTitle
		}
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		sources = append(sources, ref)
	}
	return sources
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has no magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
