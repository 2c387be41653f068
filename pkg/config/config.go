package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		ModelType   string  `yaml:"model_type"` // "bloom" or "llama2"
		Model       string  `yaml:"model"`      // override the served model name
		OllamaURL   string  `yaml:"ollama_url"`
		BloomURL    string  `yaml:"bloom_url"` // OpenAI-compatible local runtime
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedding struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Corpus struct {
		DataPath       string `yaml:"data_path"`
		RetrievalLimit int    `yaml:"retrieval_limit"`
		SnippetLength  int    `yaml:"snippet_length"`
	} `yaml:"corpus"`

	Scraper struct {
		MaxDepth          int      `yaml:"max_depth"`
		RateLimit         float64  `yaml:"rate_limit"`
		ChunkSize         int      `yaml:"chunk_size"`
		ChunkOverlap      int      `yaml:"chunk_overlap"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	Server struct {
		Port      int  `yaml:"port"`
		Streaming bool `yaml:"streaming"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/aaoifi-rag/config.yaml"),
			"/etc/aaoifi-rag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.ModelType == "" {
		config.LLM.ModelType = "bloom"
	}
	if config.LLM.OllamaURL == "" {
		config.LLM.OllamaURL = "http://localhost:11434"
	}
	if config.LLM.BloomURL == "" {
		config.LLM.BloomURL = "http://localhost:8000/v1"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 512
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = config.LLM.OllamaURL
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "standards"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Corpus.RetrievalLimit == 0 {
		config.Corpus.RetrievalLimit = 3
	}
	if config.Corpus.SnippetLength == 0 {
		config.Corpus.SnippetLength = 200
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.ChunkSize == 0 {
		config.Scraper.ChunkSize = 1000
	}
	if config.Scraper.ChunkOverlap == 0 {
		config.Scraper.ChunkOverlap = 200
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.OllamaURL = baseURL
	}
	if bloomURL := os.Getenv("BLOOM_BASE_URL"); bloomURL != "" {
		config.LLM.BloomURL = bloomURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
