package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"aaoifi-rag/internal/models"
	"aaoifi-rag/internal/types"
)

// corpusFile mirrors the corpus JSON layout: a list of source files, each
// holding a list of extracted pages.
type corpusFile struct {
	FileName string       `json:"file_name"`
	Content  []corpusPage `json:"content"`
}

type corpusPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Manager loads the standards corpus and owns the vector index over it.
type Manager struct {
	embedder types.Embedder
	store    types.VectorStore
	docs     []models.Document
}

func NewManager(embedder types.Embedder, store types.VectorStore) *Manager {
	return &Manager{
		embedder: embedder,
		store:    store,
	}
}

// LoadFile reads a corpus JSON file and appends one document per non-empty
// page. Returns the number of documents added.
func (m *Manager) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("error loading documents: %w", err)
	}

	var files []corpusFile
	if err := json.Unmarshal(data, &files); err != nil {
		return 0, fmt.Errorf("error parsing corpus file: %w", err)
	}

	added := 0
	for _, file := range files {
		for _, page := range file.Content {
			text := strings.TrimSpace(page.Text)
			if text == "" {
				continue
			}
			m.docs = append(m.docs, models.Document{
				ID:      fmt.Sprintf("%s_%d", file.FileName, page.Page),
				Source:  file.FileName,
				Page:    page.Page,
				Content: text,
				Metadata: map[string]interface{}{
					"source": file.FileName,
					"page":   page.Page,
				},
			})
			added++
		}
	}

	return added, nil
}

// AddDocuments appends already-built documents, e.g. from the scraper.
func (m *Manager) AddDocuments(docs []models.Document) {
	m.docs = append(m.docs, docs...)
}

// Documents returns the loaded corpus.
func (m *Manager) Documents() []models.Document {
	return m.docs
}

// BuildIndex embeds the loaded corpus in batches and stores the vectors.
// onProgress, when non-nil, is called after each document is indexed.
func (m *Manager) BuildIndex(ctx context.Context, batchSize int, onProgress func(done int)) error {
	if len(m.docs) == 0 {
		return fmt.Errorf("no documents loaded, load documents first")
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	done := 0
	for start := 0; start < len(m.docs); start += batchSize {
		end := start + batchSize
		if end > len(m.docs) {
			end = len(m.docs)
		}
		batch := m.docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		embeddings, err := m.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}

		if err := m.store.Add(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}

		done += len(batch)
		if onProgress != nil {
			onProgress(done)
		}
	}

	return nil
}

// Retrieve embeds the query and returns the most similar documents.
func (m *Manager) Retrieve(ctx context.Context, query string, limit int) ([]models.ScoredDocument, error) {
	embeddings, err := m.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	return m.store.Search(ctx, embeddings[0], limit)
}
