package queryexpand

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
)

const (
	// MaxVariants caps the total number of query variants, the original
	// included.
	MaxVariants = 5

	// maxSynonymsPerTerm bounds substitutions per matched dictionary term.
	maxSynonymsPerTerm = 3

	// DefaultMaxExpansions is the AI-expansion target when the caller
	// does not specify one.
	DefaultMaxExpansions = 3
)

// Paraphraser generates AI paraphrases of a query. Implemented by the
// llm client.
type Paraphraser interface {
	Paraphrase(ctx context.Context, query, language, domain string, n int) ([]string, error)
}

// Options controls one expansion call.
type Options struct {
	UseAI         bool
	MaxExpansions int
	Language      string
	Domain        string
}

// Expander widens a user query into multiple variants to improve
// retrieval recall: a deterministic synonym pass first, then optional
// AI paraphrases.
type Expander struct {
	dict        Dictionary
	paraphraser Paraphraser
	cache       ExpansionCache
}

// NewExpander creates an expander. paraphraser and cache may be nil,
// which disables the AI pass and its caching respectively.
func NewExpander(dict Dictionary, paraphraser Paraphraser, cache ExpansionCache) *Expander {
	if dict == nil {
		dict = DefaultDictionary()
	}
	return &Expander{dict: dict, paraphraser: paraphraser, cache: cache}
}

// Expand returns query variants. The original query is always the first
// element; duplicates are merged by exact string equality; the result
// never exceeds MaxVariants entries. The AI pass runs only when enabled
// and the synonym pass produced fewer than MaxExpansions variants, and
// any provider failure degrades silently to the rule-based output.
func (e *Expander) Expand(ctx context.Context, query string, opts Options) []string {
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}

	variants := e.ExpandWithSynonyms(query)

	if opts.UseAI && e.paraphraser != nil && len(variants) < opts.MaxExpansions {
		for _, p := range e.aiParaphrases(ctx, query, opts) {
			variants = appendUnique(variants, p)
		}
	}

	if len(variants) > MaxVariants {
		variants = variants[:MaxVariants]
	}
	return variants
}

// ExpandWithSynonyms runs the deterministic rule-based pass: dictionary
// terms found as substrings of the lowercased query are substituted
// with up to three synonyms each, capped at MaxVariants total.
func (e *Expander) ExpandWithSynonyms(query string) []string {
	variants := []string{query}
	lower := strings.ToLower(query)

	terms, flat := e.dict.flatten()
	for _, term := range terms {
		if !strings.Contains(lower, term) {
			continue
		}
		syns := flat[term]
		if len(syns) > maxSynonymsPerTerm {
			syns = syns[:maxSynonymsPerTerm]
		}
		for _, syn := range syns {
			variant := strings.ReplaceAll(lower, term, syn)
			variants = appendUnique(variants, variant)
			if len(variants) >= MaxVariants {
				return variants
			}
		}
	}
	return variants
}

// aiParaphrases fetches AI paraphrases, consulting the 7-day cache
// first. Failures are logged and yield nothing.
func (e *Expander) aiParaphrases(ctx context.Context, query string, opts Options) []string {
	key := expansionKey(query, opts.Language, opts.Domain)

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			return cached
		}
	}

	paraphrases, err := e.paraphraser.Paraphrase(ctx, query, opts.Language, opts.Domain, opts.MaxExpansions)
	if err != nil {
		log.Printf("⚠️  [QUERY-EXPAND] AI expansion failed, using rule-based only: %v", err)
		return nil
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, paraphrases)
	}
	return paraphrases
}

// expansionKey hashes (query, language, domain) into a cache key.
func expansionKey(query, language, domain string) string {
	sum := sha256.Sum256([]byte(query + "|" + language + "|" + domain))
	return "qexp:" + hex.EncodeToString(sum[:])
}

func appendUnique(variants []string, candidate string) []string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return variants
	}
	for _, v := range variants {
		if v == candidate {
			return variants
		}
	}
	return append(variants, candidate)
}
