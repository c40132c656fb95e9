// Package pipeline runs the multi-stage LLM analysis of an uploaded document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/pdftext"
)

// ErrNoChoices is returned when the model answers without any content choice.
var ErrNoChoices = errors.New("model returned no choices")

// Request describes one analysis run. ScratchDir is private to the job.
type Request struct {
	JobID      string
	Query      string
	FilePath   string
	ScratchDir string
}

// Pipeline turns a document and a query into a consolidated report.
type Pipeline interface {
	Run(ctx context.Context, req Request) (string, error)
}

// AgentPipeline runs Stages in order, each stage seeing the outputs of the
// stages it lists in Context.
type AgentPipeline struct {
	model       llms.Model
	limiter     *rate.Limiter
	stages      []Stage
	maxDocChars int
	callOpts    []llms.CallOption
	extract     func(path string) (string, error)
}

// NewAgentPipeline 使用给定模型构建默认的四阶段流水线
func NewAgentPipeline(model llms.Model, cfg config.PipelineConfig) *AgentPipeline {
	limit := rate.Inf
	if cfg.MaxRPM > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.MaxRPM))
	}

	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}

	return &AgentPipeline{
		model:       model,
		limiter:     rate.NewLimiter(limit, 1),
		stages:      DefaultStages(),
		maxDocChars: cfg.MaxDocumentChars,
		callOpts:    opts,
		extract:     pdftext.Extract,
	}
}

// Run 依次执行各阶段，返回最后一个阶段（执行摘要）的输出
func (p *AgentPipeline) Run(ctx context.Context, req Request) (string, error) {
	document, err := p.extract(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	document = truncate(document, p.maxDocChars)

	if req.ScratchDir != "" {
		if err := os.MkdirAll(req.ScratchDir, 0755); err != nil {
			return "", fmt.Errorf("create scratch dir: %w", err)
		}
	}

	outputs := make(map[string]string, len(p.stages))
	var last string
	for _, stage := range p.stages {
		start := time.Now()

		out, err := p.runStage(ctx, stage, req.Query, document, outputs)
		if err != nil {
			return "", fmt.Errorf("%s: %w", stage.Name, err)
		}
		outputs[stage.Name] = out
		last = out

		if req.ScratchDir != "" {
			path := filepath.Join(req.ScratchDir, stage.Name+".txt")
			if err := os.WriteFile(path, []byte(out), 0644); err != nil {
				slog.Warn("failed to write stage output", "job_id", req.JobID, "stage", stage.Name, "error", err)
			}
		}

		slog.Debug("stage finished",
			"job_id", req.JobID,
			"stage", stage.Name,
			"chars", len(out),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}

	return last, nil
}

func (p *AgentPipeline) runStage(ctx context.Context, stage Stage, query, document string, outputs map[string]string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, stage.SystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, stage.UserPrompt(query, document, outputs)),
	}

	resp, err := p.model.GenerateContent(ctx, messages, p.callOpts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// keep a valid UTF-8 boundary
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
