package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.ModelType != "bloom" && c.LLM.ModelType != "llama2" {
		errors = append(errors, ValidationError{
			Field:   "llm.model_type",
			Message: fmt.Sprintf("unsupported model type: %s, choose 'bloom' or 'llama2'", c.LLM.ModelType),
		})
	}

	if c.LLM.OllamaURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.ollama_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.OllamaURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.ollama_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.ModelType == "bloom" && c.LLM.BloomURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.bloom_url",
			Message: "BLOOM runtime URL is required for the bloom model type",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Corpus config
	if c.Corpus.RetrievalLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "corpus.retrieval_limit",
			Message: "retrieval_limit must be positive",
		})
	}

	if c.Corpus.SnippetLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "corpus.snippet_length",
			Message: "snippet_length must be positive",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Scraper.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Scraper.ChunkOverlap < 0 || c.Scraper.ChunkOverlap >= c.Scraper.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "scraper.chunk_overlap",
			Message: "chunk_overlap must be non-negative and smaller than chunk_size",
		})
	}

	// Validate extensions format
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			errors = append(errors, ValidationError{
				Field:   "scraper.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
