package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConfig represents the configuration for the generation model.
type ModelConfig struct {
	ModelType   string // "bloom" or "llama2"
	Model       string // served model name, defaults per type
	OllamaURL   string // Ollama server URL (llama2)
	BloomURL    string // OpenAI-compatible runtime URL (bloom)
	MaxTokens   int
	Temperature float64
}

// ModelManager owns the generation model. The llama2 type talks to an
// Ollama server; the bloom type talks to a local OpenAI-compatible runtime
// hosting the BLOOM weights.
type ModelManager struct {
	config ModelConfig
	llm    llms.Model
}

// NewModelManager creates a ModelManager with the given configuration.
func NewModelManager(config ModelConfig) (*ModelManager, error) {
	config.ModelType = strings.ToLower(config.ModelType)
	if config.ModelType == "" {
		config.ModelType = "bloom"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	if config.OllamaURL == "" {
		config.OllamaURL = "http://localhost:11434"
	}
	if config.BloomURL == "" {
		config.BloomURL = "http://localhost:8000/v1"
	}

	var model llms.Model
	var err error

	switch config.ModelType {
	case "llama2":
		name := config.Model
		if name == "" {
			name = "llama2"
		}
		model, err = ollama.New(ollama.WithModel(name),
			ollama.WithServerURL(config.OllamaURL))
	case "bloom":
		name := config.Model
		if name == "" {
			name = "bloom-560m"
		}
		model, err = openai.New(openai.WithModel(name),
			openai.WithBaseURL(config.BloomURL),
			openai.WithToken("local"))
	default:
		return nil, fmt.Errorf("unsupported model type: %s, choose 'bloom' or 'llama2'", config.ModelType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ModelManager{
		config: config,
		llm:    model,
	}, nil
}

// LLM returns the underlying generation model.
func (m *ModelManager) LLM() llms.Model {
	return m.llm
}

// ModelType returns the configured model type.
func (m *ModelManager) ModelType() string {
	return m.config.ModelType
}

// ListAvailableModels lists the supported model options for the startup table.
func ListAvailableModels() map[string]string {
	return map[string]string{
		"bloom":  "BLOOM 560M (local OpenAI-compatible runtime)",
		"llama2": "Llama 2 (via Ollama)",
	}
}
