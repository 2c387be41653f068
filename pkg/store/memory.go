package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"aaoifi-rag/internal/models"
)

// MemoryStore is an in-memory vector store using brute-force cosine
// similarity. The index lives for the lifetime of the process and is
// rebuilt from the corpus on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      []models.Document
	vectors   [][]float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(_ context.Context, docs []models.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("documents and embeddings length mismatch: %d != %d", len(docs), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, emb := range embeddings {
		if s.dimension == 0 {
			s.dimension = len(emb)
		}
		if len(emb) != s.dimension {
			return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(emb), s.dimension)
		}
	}

	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, embeddings...)
	return nil
}

func (s *MemoryStore) Search(_ context.Context, embedding []float32, limit int) ([]models.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(embedding), s.dimension)
	}

	results := make([]models.ScoredDocument, len(s.vectors))
	for i, vec := range s.vectors {
		results[i] = models.ScoredDocument{
			Document: s.docs[i],
			Score:    cosineSimilarity(vec, embedding),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > len(results) {
		limit = len(results)
	}
	return results[:limit], nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) Close() {}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
