package types

import (
	"context"

	"aaoifi-rag/internal/models"
)

// Core interfaces
type VectorStore interface {
	Add(ctx context.Context, docs []models.Document, embeddings [][]float32) error
	Search(ctx context.Context, embedding []float32, limit int) ([]models.ScoredDocument, error)
	Len() int
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is what the agent chains talk to: a vector store paired with the
// embedder that produced its vectors.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]models.ScoredDocument, error)
}
