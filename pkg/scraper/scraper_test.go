package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aaoifi-rag/pkg/documents"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
}

func TestScraperChunkOverlap(t *testing.T) {
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:      "https://example.com",
		ChunkSize:    800,
		ChunkOverlap: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, documents.NewChunker(800, 0), s.chunker)

	s, err = NewWithConfig(ScraperConfig{
		BaseURL:      "https://example.com",
		ChunkSize:    800,
		ChunkOverlap: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, documents.NewChunker(800, 150), s.chunker)
}

func TestShouldProcessURL(t *testing.T) {
	config := ScraperConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/standards/", true},
		{"https://example.com/fas4.html", true},
		{"https://example.com/ignore/fas4.html", false},
		{"https://other-domain.com/fas4.html", false},
		{"https://example.com/fas4.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := s.shouldProcessURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestScrapeWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>FAS 4</title></head>
				<body>
					<main>
						<h1>Murabaha</h1>
						<p>This standard covers murabaha and other deferred payment sales.</p>
						<a href="/fas7.html">FAS 7</a>
					</main>
				</body>
			</html>
		`))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  1,
		RateLimit: 10,
	})
	require.NoError(t, err)

	var visited []string
	s.config.OnProgress = func(url string) {
		visited = append(visited, url)
	}

	docs, err := s.Scrape(server.URL)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	doc := docs[0]
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, server.URL, doc.Source)
	assert.Equal(t, 1, doc.Page)
	assert.Contains(t, doc.Content, "Murabaha")
	assert.Contains(t, doc.Content, "deferred payment sales")
	assert.Equal(t, "FAS 4", doc.Metadata["title"])
	assert.NotEmpty(t, visited)
}

func TestScrapeDoesNotRevisit(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Loop</title></head><body><main>
			Page content here. <a href="/">Self link</a>
		</main></body></html>`))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  3,
		RateLimit: 100,
	})
	require.NoError(t, err)

	_, err = s.Scrape(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}
