package chain

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"aaoifi-rag/internal/models"
	"aaoifi-rag/internal/types"
)

// maxQueryLength caps the text sent to the retriever; full text still goes
// to the prompts.
const maxQueryLength = 1000

const (
	noRetrieverContext = "No document retriever available. Proceeding without additional context."
	noDocumentsContext = "No relevant documents found in knowledge base."
	retrievalErrorText = "Error retrieving documents from knowledge base."
	noRulesMessage     = "No relevant FAS rules found or retriever not available."
)

// Config represents the tunables for the agent chains.
type Config struct {
	RetrievalLimit int
	SnippetLength  int
	MaxTokens      int
	Temperature    float64
}

// AgentChain runs the AAOIFI prompt chains: the three-step standards
// pipeline (review, enhancement, validation) and the direct Q&A chain, each
// step grounded with retrieved corpus context.
type AgentChain struct {
	llm       llms.Model
	retriever types.Retriever
	config    Config

	reviewChain      *chains.LLMChain
	enhancementChain *chains.LLMChain
	validationChain  *chains.LLMChain
	qaChain          *chains.LLMChain
}

// StandardAnalysis is the output of the three-step standards pipeline.
type StandardAnalysis struct {
	Summary    string
	Suggestion string
	Validation string
}

// Rule is one ranked corpus match returned by FindRelevantRules.
type Rule struct {
	Source              string  `json:"source"`
	Page                int     `json:"page"`
	ContentSnippet      string  `json:"content_snippet"`
	RelevancePercentage float64 `json:"relevance_percentage"`
}

// RulesResult is the FindRelevantRules response payload.
type RulesResult struct {
	Message string `json:"message"`
	Rules   []Rule `json:"rules"`
}

// New constructs the agent chains. retriever may be nil; every operation
// then runs with the no-retriever context string.
func New(llm llms.Model, retriever types.Retriever, config Config) *AgentChain {
	if config.RetrievalLimit == 0 {
		config.RetrievalLimit = 3
	}
	if config.SnippetLength == 0 {
		config.SnippetLength = 200
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}

	review := chains.NewLLMChain(llm, reviewPrompt())
	review.OutputKey = "summary"

	enhancement := chains.NewLLMChain(llm, enhancementPrompt())
	enhancement.OutputKey = "suggestion"

	validation := chains.NewLLMChain(llm, validationPrompt())
	validation.OutputKey = "validation"

	qa := chains.NewLLMChain(llm, qaPrompt())
	qa.OutputKey = "answer"

	return &AgentChain{
		llm:              llm,
		retriever:        retriever,
		config:           config,
		reviewChain:      review,
		enhancementChain: enhancement,
		validationChain:  validation,
		qaChain:          qa,
	}
}

// SetRetriever sets or replaces the document retriever.
func (a *AgentChain) SetRetriever(retriever types.Retriever) {
	a.retriever = retriever
}

// AnswerQuestion answers a question against the supplied context through
// the Q&A chain.
func (a *AgentChain) AnswerQuestion(ctx context.Context, contextText, question string) (string, error) {
	query := truncateQuery(contextText + " " + question)
	retrieved := a.retrieveContext(ctx, query)

	out, err := chains.Call(ctx, a.qaChain, map[string]any{
		"context":           contextText,
		"question":          question,
		"retrieved_context": retrieved,
	}, a.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("qa chain: %w", err)
	}

	answer, ok := out["answer"].(string)
	if !ok {
		return "", fmt.Errorf("qa chain returned no answer")
	}
	return answer, nil
}

// FindRelevantRules returns the top matching FAS rules with relevance
// percentages normalized against the best match.
func (a *AgentChain) FindRelevantRules(ctx context.Context, contextText, question string) (*RulesResult, error) {
	if a.retriever == nil {
		return &RulesResult{Message: noRulesMessage, Rules: []Rule{}}, nil
	}

	query := truncateQuery(contextText + " " + question)
	docs, err := a.retriever.Retrieve(ctx, query, a.config.RetrievalLimit)
	if err != nil {
		log.Printf("Error retrieving FAS rules: %v", err)
		return &RulesResult{Message: noRulesMessage, Rules: []Rule{}}, nil
	}
	if len(docs) == 0 {
		return &RulesResult{Message: noRulesMessage, Rules: []Rule{}}, nil
	}

	rules := rankRules(docs, a.config.SnippetLength)
	return &RulesResult{
		Message: fmt.Sprintf("Found %d relevant FAS rules.", len(rules)),
		Rules:   rules,
	}, nil
}

// ProcessStandard runs a standard's text through review, enhancement and
// validation, retrieving fresh context before each step.
func (a *AgentChain) ProcessStandard(ctx context.Context, inputText string) (*StandardAnalysis, error) {
	reviewContext := a.retrieveContext(ctx, truncateQuery(inputText))
	out, err := chains.Call(ctx, a.reviewChain, map[string]any{
		"input_text":        inputText,
		"retrieved_context": reviewContext,
	}, a.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("review chain: %w", err)
	}
	summary, ok := out["summary"].(string)
	if !ok {
		return nil, fmt.Errorf("review chain returned no summary")
	}

	enhancementContext := a.retrieveContext(ctx, truncateQuery(summary))
	out, err = chains.Call(ctx, a.enhancementChain, map[string]any{
		"summary":           summary,
		"retrieved_context": enhancementContext,
	}, a.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("enhancement chain: %w", err)
	}
	suggestion, ok := out["suggestion"].(string)
	if !ok {
		return nil, fmt.Errorf("enhancement chain returned no suggestion")
	}

	validationContext := a.retrieveContext(ctx, truncateQuery(suggestion))
	out, err = chains.Call(ctx, a.validationChain, map[string]any{
		"input_text":        inputText,
		"suggestion":        suggestion,
		"retrieved_context": validationContext,
	}, a.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("validation chain: %w", err)
	}
	validation, ok := out["validation"].(string)
	if !ok {
		return nil, fmt.Errorf("validation chain returned no validation")
	}

	return &StandardAnalysis{
		Summary:    summary,
		Suggestion: suggestion,
		Validation: validation,
	}, nil
}

// StreamAnswer is the streaming variant of AnswerQuestion; fn receives each
// generated chunk.
func (a *AgentChain) StreamAnswer(ctx context.Context, contextText, question string, fn func(chunk string) error) error {
	query := truncateQuery(contextText + " " + question)
	retrieved := a.retrieveContext(ctx, query)

	prompt, err := qaPrompt().Format(map[string]any{
		"context":           contextText,
		"question":          question,
		"retrieved_context": retrieved,
	})
	if err != nil {
		return fmt.Errorf("format qa prompt: %w", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(a.config.MaxTokens),
		llms.WithTemperature(a.config.Temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return fn(string(chunk))
		}),
	}

	if _, err := a.llm.GenerateContent(ctx, content, opts...); err != nil {
		return fmt.Errorf("streaming generation: %w", err)
	}
	return nil
}

// retrieveContext fetches the most relevant corpus documents for the query
// and renders them as a prompt block.
func (a *AgentChain) retrieveContext(ctx context.Context, query string) string {
	if a.retriever == nil {
		return noRetrieverContext
	}

	docs, err := a.retriever.Retrieve(ctx, query, a.config.RetrievalLimit)
	if err != nil {
		log.Printf("Error retrieving documents: %v", err)
		return retrievalErrorText
	}
	if len(docs) == 0 {
		return noDocumentsContext
	}

	return formatRetrieved(docs)
}

func (a *AgentChain) callOptions() []chains.ChainCallOption {
	return []chains.ChainCallOption{
		chains.WithMaxTokens(a.config.MaxTokens),
		chains.WithTemperature(a.config.Temperature),
	}
}

func formatRetrieved(docs []models.ScoredDocument) string {
	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("Document %d (Source: %s, Page: %d):\n%s\n",
			i+1, doc.Source, doc.Page, doc.Content))
	}
	return strings.Join(parts, "\n")
}

func rankRules(docs []models.ScoredDocument, snippetLength int) []Rule {
	maxScore := float32(0)
	for _, doc := range docs {
		if doc.Score > maxScore {
			maxScore = doc.Score
		}
	}
	if maxScore == 0 {
		maxScore = 1
	}

	rules := make([]Rule, 0, len(docs))
	for _, doc := range docs {
		percentage := float64(doc.Score) / float64(maxScore) * 100
		rules = append(rules, Rule{
			Source:              doc.Source,
			Page:                doc.Page,
			ContentSnippet:      snippet(doc.Content, snippetLength),
			RelevancePercentage: math.Round(percentage*100) / 100,
		})
	}
	return rules
}

// snippet cuts on rune boundaries so Arabic passages survive the trim.
func snippet(content string, length int) string {
	runes := []rune(content)
	if len(runes) > length {
		return string(runes[:length]) + "..."
	}
	return content
}

func truncateQuery(query string) string {
	runes := []rune(query)
	if len(runes) > maxQueryLength {
		return string(runes[:maxQueryLength])
	}
	return query
}
