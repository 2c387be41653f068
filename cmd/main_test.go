package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aaoifi-rag/internal/models"
	"aaoifi-rag/pkg/documents"
	"aaoifi-rag/pkg/store"
)

// stubEmbedder returns fixed-size vectors, or fails when err is set.
type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func TestLoadCorpusCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	manager := documents.NewManager(&stubEmbedder{}, store.NewMemoryStore())
	loadCorpus(manager, path)

	// Startup continues with an empty corpus and no retriever
	assert.Empty(t, manager.Documents())
	assert.Nil(t, buildRetriever(context.Background(), manager, 10))
}

func TestLoadCorpusMissingFile(t *testing.T) {
	manager := documents.NewManager(&stubEmbedder{}, store.NewMemoryStore())
	loadCorpus(manager, filepath.Join(t.TempDir(), "absent.json"))

	assert.Empty(t, manager.Documents())
}

func TestBuildRetrieverEmbedFailure(t *testing.T) {
	manager := documents.NewManager(&stubEmbedder{err: fmt.Errorf("embedder down")}, store.NewMemoryStore())
	manager.AddDocuments([]models.Document{
		{ID: "1", Source: "FAS 4.pdf", Page: 1, Content: "Murabaha receivables."},
	})

	assert.Nil(t, buildRetriever(context.Background(), manager, 10))
}

func TestBuildRetriever(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Data.json")
	corpus := `[{"file_name": "FAS 4.pdf", "content": [{"page": 1, "text": "Murabaha receivables."}]}]`
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0o644))

	memStore := store.NewMemoryStore()
	manager := documents.NewManager(&stubEmbedder{}, memStore)
	loadCorpus(manager, path)
	require.Len(t, manager.Documents(), 1)

	retriever := buildRetriever(context.Background(), manager, 10)
	require.NotNil(t, retriever)
	assert.Equal(t, 1, memStore.Len())
}
