// Package analysis produces LLM-written narrative summaries of a
// session's requirements.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/onnwee/aria/internal/llmconfig"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/tracing"
)

const (
	systemPrompt = "You are an expert product analyst. Review the provided requirements and produce a prioritized list with actionable insights. Highlight high-impact requirements, risks, and recommendations."

	// NoRequirementsSummary is returned when there is nothing to analyze.
	NoRequirementsSummary = "No requirements provided for analysis."
	// EmptyResponseSummary is returned when the model sends no content.
	EmptyResponseSummary = "No analysis available."

	// MaxPromptLength bounds the optional user context.
	MaxPromptLength = 2000
)

// ErrAnalysisFailed wraps provider failures.
var ErrAnalysisFailed = errors.New("analysis failed")

// ConfigSource resolves the provider configuration for a call.
type ConfigSource interface {
	Effective(ctx context.Context) (*llmconfig.Config, error)
}

// Completer sends one chat completion request.
type Completer interface {
	Complete(ctx context.Context, cfg llmconfig.Config, system, user string) (string, error)
}

// Result is a finished analysis.
type Result struct {
	Summary string `json:"summary"`
	HTML    string `json:"html,omitempty"`
	Model   string `json:"model"`
}

// Analyzer builds prompts and renders model output.
type Analyzer struct {
	configs   ConfigSource
	completer Completer
	markdown  goldmark.Markdown
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(configs ConfigSource, completer Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		configs:   configs,
		completer: completer,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:    logger,
	}
}

// Analyze summarizes reqs with optional user context. It returns
// llmconfig.ErrNotConfigured when no provider is configured.
func (a *Analyzer) Analyze(ctx context.Context, reqs []requirement.Requirement, prompt string) (res *Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "analysis.Analyze", tracing.RequirementCountKey.Int(len(reqs)))
	defer func() { endSpan(err) }()

	if len(reqs) == 0 {
		return &Result{Summary: NoRequirementsSummary}, nil
	}

	cfg, err := a.configs.Effective(ctx)
	if err != nil {
		return nil, err
	}

	tracing.SetAttributes(ctx, tracing.LLMModelKey.String(cfg.Model))

	system := systemPrompt
	if p := strings.TrimSpace(prompt); p != "" {
		system += "\nUser context: " + p
	}

	content, err := a.completer.Complete(ctx, *cfg, system, SummarizeRequirements(reqs))
	if err != nil {
		a.logger.ErrorContext(ctx, "llm analysis failed",
			slog.String("model", cfg.Model),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	summary := strings.TrimSpace(content)
	if summary == "" {
		summary = EmptyResponseSummary
	}

	res = &Result{Summary: summary, Model: cfg.Model}
	var buf bytes.Buffer
	if err := a.markdown.Convert([]byte(summary), &buf); err != nil {
		a.logger.WarnContext(ctx, "failed to render analysis markdown", slog.String("error", err.Error()))
	} else {
		res.HTML = buf.String()
	}
	return res, nil
}

// SummarizeRequirements renders requirements as the plain-text block sent
// to the model.
func SummarizeRequirements(reqs []requirement.Requirement) string {
	blocks := make([]string, 0, len(reqs))
	for _, r := range reqs {
		category := ""
		if r.Category != nil {
			category = string(*r.Category)
		}
		blocks = append(blocks, fmt.Sprintf(
			"ID: %s\nTitle: %s\nDescription: %s\nBusiness Value: %s\nCost: %s\nRisk: %s\nUrgency: %s\nStakeholder Value: %s\nCategory: %s",
			r.ID, r.Title, r.Description,
			attr(r.BusinessValue), attr(r.Cost), attr(r.Risk), attr(r.Urgency), attr(r.StakeholderValue),
			category,
		))
	}
	return strings.Join(blocks, "\n\n")
}

func attr(v *float64) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("%g", *v)
}
