// Package ragstore retrieves similar past (question, SQL) pairs to enrich
// the next prompt. It keeps a top-K/threshold/filter contract matching a
// Qdrant-collection-plus-embeddings design, but swaps the embedding
// backend for a bag-of-words cosine model — the same generalization a
// semantic-similarity calculator makes from exact text matching to vector
// cosine similarity, without wiring a real embedding-model client.
package ragstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"sqlnexus/core/model"
)

// Entry is one stored (question, SQL) pair plus its retrieval metadata.
type Entry struct {
	Question   string
	SQL        string
	Dialect    string
	SchemaName string
	Success    bool
	RecordedAt time.Time
}

// Store is the similar-query retrieval contract. InMemoryStore is the one
// implementation carried by this module; a pgvector- or Qdrant-backed
// implementation could satisfy the same interface without its callers
// changing.
type Store interface {
	Add(ctx context.Context, e Entry) error
	SearchSimilar(ctx context.Context, question string, dialect model.DatabaseType, schemaName string) ([]model.SimilarQueryPair, error)
}

// InMemoryStore is a cosine-similarity store over bag-of-words vectors,
// matching RAGService's top_k/similarity_threshold/only_successful search
// contract without an external vector database.
type InMemoryStore struct {
	mu              sync.RWMutex
	entries         []storedEntry
	topK            int
	threshold       float64
	onlySuccessful  bool
}

type storedEntry struct {
	Entry
	vector map[string]float64
}

// NewInMemoryStore returns a store honoring topK and threshold the way
// RAGConfig configures RAGService (defaults 3 and 0.7 respectively, matching
// config.RAGConfig's Default()).
func NewInMemoryStore(topK int, threshold float64) *InMemoryStore {
	if topK <= 0 {
		topK = 3
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &InMemoryStore{topK: topK, threshold: threshold, onlySuccessful: true}
}

// Add stores a (question, SQL) pair, embedding the question as a
// term-frequency vector over its tokens, the Go rendering of add_query.
func (s *InMemoryStore) Add(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, storedEntry{Entry: e, vector: embed(e.Question)})
	return nil
}

// SearchSimilar returns up to topK entries scoring at or above threshold,
// filtered by dialect and schema name and, by default, to successful past
// queries only — the Go rendering of search_similar_queries's filter
// conditions plus Qdrant's score_threshold/limit.
func (s *InMemoryStore) SearchSimilar(ctx context.Context, question string, dialect model.DatabaseType, schemaName string) ([]model.SimilarQueryPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := embed(question)
	type scored struct {
		pair  model.SimilarQueryPair
		score float64
	}
	var candidates []scored
	for _, e := range s.entries {
		if s.onlySuccessful && !e.Success {
			continue
		}
		if dialect != "" && e.Dialect != string(dialect) {
			continue
		}
		if schemaName != "" && e.SchemaName != "" && e.SchemaName != schemaName {
			continue
		}
		score := cosineSimilarity(query, e.vector)
		if score < s.threshold {
			continue
		}
		candidates = append(candidates, scored{
			pair: model.SimilarQueryPair{
				Question:   e.Question,
				SQL:        e.SQL,
				Dialect:    e.Dialect,
				SchemaName: e.SchemaName,
				Similarity: score,
				RecordedAt: e.RecordedAt,
			},
			score: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}

	out := make([]model.SimilarQueryPair, len(candidates))
	for i, c := range candidates {
		out[i] = c.pair
	}
	return out, nil
}

// Count returns the number of stored entries, for observability.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear discards all stored entries, the Go rendering of clear_all_queries.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func embed(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, tok := range tokenize(text) {
		vec[tok]++
	}
	return vec
}

func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for tok, va := range a {
		dot += va * b[tok]
		magA += va * va
	}
	for _, vb := range b {
		magB += vb * vb
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / math.Sqrt(magA*magB)
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
	}
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
