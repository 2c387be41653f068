package models

// Document is one retrievable unit of standards text. The corpus loader
// emits one Document per non-empty page of a source file; the scraper emits
// one per chunk of a fetched page.
type Document struct {
	ID       string
	Source   string
	Page     int
	Content  string
	Metadata map[string]interface{}
}

// ScoredDocument pairs a document with its similarity score from a vector
// search. Scores are cosine similarities, higher is better.
type ScoredDocument struct {
	Document
	Score float32
}
