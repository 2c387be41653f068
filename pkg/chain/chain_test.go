package chain

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"aaoifi-rag/internal/models"
)

// stubRetriever serves canned scored documents.
type stubRetriever struct {
	docs []models.ScoredDocument
	err  error
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, limit int) ([]models.ScoredDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.docs) {
		return r.docs[:limit], nil
	}
	return r.docs, nil
}

// recordingRetriever additionally records every query it receives.
type recordingRetriever struct {
	stubRetriever
	queries []string
}

func (r *recordingRetriever) Retrieve(ctx context.Context, query string, limit int) ([]models.ScoredDocument, error) {
	r.queries = append(r.queries, query)
	return r.stubRetriever.Retrieve(ctx, query, limit)
}

// fakeModel records each prompt and replies from a canned script, feeding
// chunks through the streaming callback when one is set.
type fakeModel struct {
	replies []string
	chunks  []string
	err     error
	prompts []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}

	var sb strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				sb.WriteString(text.Text)
			}
		}
	}
	m.prompts = append(m.prompts, sb.String())

	reply := "ok"
	if n := len(m.prompts) - 1; n < len(m.replies) {
		reply = m.replies[n]
	}

	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range m.chunks {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testLLM(t *testing.T) *ollama.LLM {
	t.Helper()
	llm, err := ollama.New(ollama.WithModel("llama2"),
		ollama.WithServerURL("http://localhost:11434"))
	require.NoError(t, err)
	return llm
}

func TestNew(t *testing.T) {
	a := New(testLLM(t), nil, Config{})

	assert.Equal(t, 3, a.config.RetrievalLimit)
	assert.Equal(t, 200, a.config.SnippetLength)
	assert.Equal(t, 512, a.config.MaxTokens)
	assert.Equal(t, 0.7, a.config.Temperature)
	assert.Equal(t, "summary", a.reviewChain.OutputKey)
	assert.Equal(t, "suggestion", a.enhancementChain.OutputKey)
	assert.Equal(t, "validation", a.validationChain.OutputKey)
	assert.Equal(t, "answer", a.qaChain.OutputKey)
}

func TestRetrieveContextWithoutRetriever(t *testing.T) {
	a := New(testLLM(t), nil, Config{})

	got := a.retrieveContext(context.Background(), "murabaha")
	assert.Equal(t, noRetrieverContext, got)
}

func TestRetrieveContextEmpty(t *testing.T) {
	a := New(testLLM(t), &stubRetriever{}, Config{})

	got := a.retrieveContext(context.Background(), "murabaha")
	assert.Equal(t, noDocumentsContext, got)
}

func TestRetrieveContextError(t *testing.T) {
	a := New(testLLM(t), &stubRetriever{err: fmt.Errorf("store down")}, Config{})

	got := a.retrieveContext(context.Background(), "murabaha")
	assert.Equal(t, retrievalErrorText, got)
}

func TestRetrieveContextFormatting(t *testing.T) {
	retriever := &stubRetriever{docs: []models.ScoredDocument{
		{Document: models.Document{Source: "FAS 4.pdf", Page: 12, Content: "Murabaha receivables."}, Score: 0.9},
		{Document: models.Document{Source: "FAS 7.pdf", Page: 3, Content: "Salam contracts."}, Score: 0.5},
	}}
	a := New(testLLM(t), retriever, Config{})

	got := a.retrieveContext(context.Background(), "murabaha")

	assert.Contains(t, got, "Document 1 (Source: FAS 4.pdf, Page: 12):\nMurabaha receivables.")
	assert.Contains(t, got, "Document 2 (Source: FAS 7.pdf, Page: 3):\nSalam contracts.")
}

func TestFindRelevantRules(t *testing.T) {
	retriever := &stubRetriever{docs: []models.ScoredDocument{
		{Document: models.Document{Source: "FAS 4.pdf", Page: 1, Content: strings.Repeat("x", 250)}, Score: 0.8},
		{Document: models.Document{Source: "FAS 7.pdf", Page: 2, Content: "short"}, Score: 0.4},
	}}
	a := New(testLLM(t), retriever, Config{})

	result, err := a.FindRelevantRules(context.Background(), "murabaha context", "which standard applies?")
	require.NoError(t, err)

	assert.Equal(t, "Found 2 relevant FAS rules.", result.Message)
	require.Len(t, result.Rules, 2)

	// Best match normalizes to 100%
	assert.Equal(t, 100.0, result.Rules[0].RelevancePercentage)
	assert.Equal(t, 50.0, result.Rules[1].RelevancePercentage)
	assert.Equal(t, strings.Repeat("x", 200)+"...", result.Rules[0].ContentSnippet)
	assert.Equal(t, "short", result.Rules[1].ContentSnippet)
	assert.Equal(t, "FAS 4.pdf", result.Rules[0].Source)
	assert.Equal(t, 1, result.Rules[0].Page)
}

func TestFindRelevantRulesWithoutRetriever(t *testing.T) {
	a := New(testLLM(t), nil, Config{})

	result, err := a.FindRelevantRules(context.Background(), "ctx", "q")
	require.NoError(t, err)

	assert.Equal(t, noRulesMessage, result.Message)
	assert.Empty(t, result.Rules)
}

func TestFindRelevantRulesRetrieverError(t *testing.T) {
	a := New(testLLM(t), &stubRetriever{err: fmt.Errorf("store down")}, Config{})

	result, err := a.FindRelevantRules(context.Background(), "ctx", "q")
	require.NoError(t, err)

	assert.Equal(t, noRulesMessage, result.Message)
	assert.Empty(t, result.Rules)
}

func TestRankRulesRounding(t *testing.T) {
	rules := rankRules([]models.ScoredDocument{
		{Document: models.Document{Source: "a"}, Score: 0.9},
		{Document: models.Document{Source: "b"}, Score: 0.3},
	}, 200)

	require.Len(t, rules, 2)
	assert.Equal(t, 100.0, rules[0].RelevancePercentage)
	assert.InDelta(t, 33.33, rules[1].RelevancePercentage, 0.01)
}

func TestAnswerQuestion(t *testing.T) {
	model := &fakeModel{replies: []string{"Murabaha is governed by FAS 4."}}
	retriever := &recordingRetriever{stubRetriever: stubRetriever{docs: []models.ScoredDocument{
		{Document: models.Document{Source: "FAS 4.pdf", Page: 1, Content: "Murabaha receivables."}, Score: 0.9},
	}}}
	a := New(model, retriever, Config{})

	answer, err := a.AnswerQuestion(context.Background(), "murabaha contract details", "which standard applies?")
	require.NoError(t, err)
	assert.Equal(t, "Murabaha is governed by FAS 4.", answer)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "murabaha contract details")
	assert.Contains(t, model.prompts[0], "which standard applies?")
	assert.Contains(t, model.prompts[0], "Murabaha receivables.")

	assert.Equal(t, []string{"murabaha contract details which standard applies?"}, retriever.queries)
}

func TestAnswerQuestionModelFailure(t *testing.T) {
	a := New(&fakeModel{err: fmt.Errorf("model unavailable")}, nil, Config{})

	_, err := a.AnswerQuestion(context.Background(), "ctx", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qa chain")
}

func TestProcessStandardSequence(t *testing.T) {
	model := &fakeModel{replies: []string{"summary text", "suggestion text", "validation text"}}
	retriever := &recordingRetriever{stubRetriever: stubRetriever{docs: []models.ScoredDocument{
		{Document: models.Document{Source: "FAS 7.pdf", Page: 3, Content: "Salam contracts."}, Score: 0.8},
	}}}
	a := New(model, retriever, Config{})

	analysis, err := a.ProcessStandard(context.Background(), "original standard text")
	require.NoError(t, err)

	assert.Equal(t, "summary text", analysis.Summary)
	assert.Equal(t, "suggestion text", analysis.Suggestion)
	assert.Equal(t, "validation text", analysis.Validation)

	// Review, then enhancement, then validation, each handed the prior output
	require.Len(t, model.prompts, 3)
	assert.Contains(t, model.prompts[0], "original standard text")
	assert.Contains(t, model.prompts[1], "summary text")
	assert.Contains(t, model.prompts[2], "suggestion text")
	assert.Contains(t, model.prompts[2], "original standard text")

	// Each step retrieves fresh context for its own input
	assert.Equal(t, []string{"original standard text", "summary text", "suggestion text"}, retriever.queries)
}

func TestProcessStandardModelFailure(t *testing.T) {
	a := New(&fakeModel{err: fmt.Errorf("model unavailable")}, nil, Config{})

	_, err := a.ProcessStandard(context.Background(), "standard text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review chain")
}

func TestStreamAnswer(t *testing.T) {
	model := &fakeModel{chunks: []string{"FAS", " 4"}, replies: []string{"FAS 4"}}
	a := New(model, nil, Config{})

	var got strings.Builder
	err := a.StreamAnswer(context.Background(), "", "which standard applies?", func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "FAS 4", got.String())
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "which standard applies?")
	assert.Contains(t, model.prompts[0], noRetrieverContext)
}

func TestSnippetMultiByte(t *testing.T) {
	arabic := strings.Repeat("معايير المحاسبة ", 30)
	require.Greater(t, utf8.RuneCountInString(arabic), 200)

	got := snippet(arabic, 200)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 200, utf8.RuneCountInString(strings.TrimSuffix(got, "...")))
}

func TestTruncateQueryMultiByte(t *testing.T) {
	got := truncateQuery(strings.Repeat("م", 1500))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxQueryLength, utf8.RuneCountInString(got))
}

func TestTruncateQuery(t *testing.T) {
	long := strings.Repeat("a", 2000)

	assert.Len(t, truncateQuery(long), maxQueryLength)
	assert.Equal(t, "short", truncateQuery("short"))
}

func TestPromptTemplates(t *testing.T) {
	got, err := qaPrompt().Format(map[string]any{
		"context":           "user context",
		"question":          "user question",
		"retrieved_context": "kb context",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "user context")
	assert.Contains(t, got, "user question")
	assert.Contains(t, got, "kb context")

	got, err = validationPrompt().Format(map[string]any{
		"input_text":        "standard",
		"suggestion":        "enhancement",
		"retrieved_context": "kb context",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "Proposed enhancements:\nenhancement")
}
