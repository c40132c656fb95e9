package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/testutil"
)

// fakeModel answers each call with the next reply and records the prompts.
type fakeModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	noChoice bool
	prompts  []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var human string
	for _, msg := range messages {
		if msg.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				human += text.Text
			}
		}
	}
	m.prompts = append(m.prompts, human)

	if m.err != nil {
		return nil, m.err
	}
	if m.noChoice {
		return &llms.ContentResponse{}, nil
	}

	reply := fmt.Sprintf("reply %d", len(m.prompts))
	if len(m.prompts) <= len(m.replies) {
		reply = m.replies[len(m.prompts)-1]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestPipeline(model llms.Model, document string) *AgentPipeline {
	p := NewAgentPipeline(model, config.PipelineConfig{MaxDocumentChars: 1000})
	p.extract = func(string) (string, error) { return document, nil }
	return p
}

func TestAgentPipeline_Run(t *testing.T) {
	model := &fakeModel{replies: []string{
		"Revenue: $120M",
		"Recommendation: HOLD",
		"RISK: LOW",
		"  Final executive summary  ",
	}}
	p := newTestPipeline(model, "Page 1 revenue table")
	scratch := filepath.Join(t.TempDir(), "Job_1")

	report, err := p.Run(context.Background(), Request{
		JobID:      "Job_1",
		Query:      "Should I invest?",
		FilePath:   "data/doc.pdf",
		ScratchDir: scratch,
	})
	require.NoError(t, err)
	assert.Equal(t, "Final executive summary", report)

	require.Len(t, model.prompts, 4)

	// 只有第一个阶段读取文档
	assert.Contains(t, model.prompts[0], "Page 1 revenue table")
	assert.NotContains(t, model.prompts[1], "Page 1 revenue table")

	// 每个阶段都带上用户问题和前序输出
	for _, prompt := range model.prompts {
		assert.Contains(t, prompt, "Should I invest?")
	}
	assert.Contains(t, model.prompts[1], "Revenue: $120M")
	assert.Contains(t, model.prompts[2], "Recommendation: HOLD")
	assert.Contains(t, model.prompts[3], "RISK: LOW")

	for name, want := range map[string]string{
		StageFinancialAnalysis: "Revenue: $120M",
		StageInvestmentAdvice:  "Recommendation: HOLD",
		StageRiskAssessment:    "RISK: LOW",
		StageExecutiveSummary:  "Final executive summary",
	} {
		data, err := os.ReadFile(filepath.Join(scratch, name+".txt"))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data))
	}
}

func TestAgentPipeline_Run_ModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream timeout")}
	p := newTestPipeline(model, "doc")

	_, err := p.Run(context.Background(), Request{Query: "q", ScratchDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageFinancialAnalysis)
	assert.Contains(t, err.Error(), "upstream timeout")
	assert.Len(t, model.prompts, 1)
}

func TestAgentPipeline_Run_NoChoices(t *testing.T) {
	p := newTestPipeline(&fakeModel{noChoice: true}, "doc")

	_, err := p.Run(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestAgentPipeline_Run_ExtractError(t *testing.T) {
	model := &fakeModel{}
	p := NewAgentPipeline(model, config.PipelineConfig{})

	_, err := p.Run(context.Background(), Request{Query: "q", FilePath: filepath.Join(t.TempDir(), "missing.pdf")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read document")
	assert.Empty(t, model.prompts)
}

func TestAgentPipeline_Run_CancelledContext(t *testing.T) {
	model := &fakeModel{}
	p := newTestPipeline(model, "doc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{Query: "q"})
	assert.Error(t, err)
}

func TestAgentPipeline_Run_RealPDF(t *testing.T) {
	model := &fakeModel{}
	p := NewAgentPipeline(model, config.PipelineConfig{MaxDocumentChars: 5000})
	path := testutil.WriteSamplePDF(t, t.TempDir(), "Quarterly revenue summary")

	report, err := p.Run(context.Background(), Request{Query: "q", FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, "reply 4", report)
	assert.Contains(t, model.prompts[0], "Page Number 1")
}

func TestAgentPipeline_TruncatesDocument(t *testing.T) {
	model := &fakeModel{}
	p := newTestPipeline(model, strings.Repeat("x", 5000)+"TAIL")

	_, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.NotContains(t, model.prompts[0], "TAIL")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "€" is three bytes, cutting inside it drops the rune
	assert.Equal(t, "a", truncate("a€", 2))
}

func TestStage_UserPrompt(t *testing.T) {
	stage := Stage{
		Instructions:  "Do the thing.",
		Context:       []string{StageFinancialAnalysis, StageRiskAssessment},
		ReadsDocument: false,
	}

	prompt := stage.UserPrompt("my query", "DOCUMENT", map[string]string{
		StageFinancialAnalysis: "analysis text",
	})

	assert.True(t, strings.HasPrefix(prompt, "Do the thing."))
	assert.Contains(t, prompt, "User query: my query")
	assert.Contains(t, prompt, "### Financial Analysis\nanalysis text")
	assert.NotContains(t, prompt, "DOCUMENT")
	assert.NotContains(t, prompt, "Risk Assessment")
}

func TestDefaultStages(t *testing.T) {
	stages := DefaultStages()
	require.Len(t, stages, 4)

	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
		assert.NotEmpty(t, s.SystemPrompt())
	}
	assert.Equal(t, []string{
		StageFinancialAnalysis,
		StageInvestmentAdvice,
		StageRiskAssessment,
		StageExecutiveSummary,
	}, names)
	assert.True(t, stages[0].ReadsDocument)
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PipelineConfig
		wantErr string
	}{
		{"unsupported", config.PipelineConfig{Provider: "bard"}, "unsupported LLM provider"},
		{"openai without key", config.PipelineConfig{Provider: ProviderOpenAI, Model: "gpt-4o"}, "OpenAI API key required"},
		{"anthropic without key", config.PipelineConfig{Provider: ProviderAnthropic}, "Anthropic API key required"},
		{"openai", config.PipelineConfig{Provider: ProviderOpenAI, Model: "gpt-4o", OpenAIAPIKey: "sk-test"}, ""},
		{"ollama", config.PipelineConfig{Provider: ProviderOllama, Model: "llama3", OllamaHost: "http://localhost:11434"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewModel(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)
		})
	}
}
