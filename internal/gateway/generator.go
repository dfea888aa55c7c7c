package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jonathan/tubedigest/internal/llm"
	"github.com/jonathan/tubedigest/internal/prompts"
	"github.com/jonathan/tubedigest/internal/schemas"
)

// LLMGenerator produces summaries with an llm.Client and the summarize-video prompt.
// When the JSON reply is unusable it retries once with the plain-text prompt.
type LLMGenerator struct {
	client llm.Client
	tier   llm.ModelTier
	prompt string
	plain  string
}

// NewLLMGenerator creates a generator. The prompt templates are loaded once.
func NewLLMGenerator(client llm.Client) (*LLMGenerator, error) {
	prompt, err := prompts.Get(prompts.SummarizeFile, prompts.SummarizeVideo)
	if err != nil {
		return nil, err
	}
	plain, err := prompts.Get(prompts.SummarizeFile, prompts.SummarizeVideoPlain)
	if err != nil {
		return nil, err
	}
	return &LLMGenerator{client: client, tier: llm.TierStandard, prompt: prompt, plain: plain}, nil
}

// Generate asks the model for {"title", "summary"} and validates the reply.
func (g *LLMGenerator) Generate(ctx context.Context, details VideoDetails) (*Generated, error) {
	data := map[string]string{
		"Title":      details.Title,
		"URL":        details.URL,
		"Transcript": details.Transcript,
	}

	out, err := g.generateJSON(ctx, prompts.Format(g.prompt, data))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return out, err
	}

	summary, plainErr := g.client.GenerateContent(ctx, prompts.Format(g.plain, data), llm.TierLite)
	summary = strings.TrimSpace(summary)
	if plainErr != nil || summary == "" {
		return nil, err
	}
	return &Generated{Title: details.Title, Summary: summary}, nil
}

// generateJSON runs the structured prompt. Unusable output is a *ParseError.
func (g *LLMGenerator) generateJSON(ctx context.Context, prompt string) (*Generated, error) {
	raw, err := g.client.GenerateJSON(ctx, prompt, g.tier)
	if err != nil {
		return nil, &APICallError{Message: "failed to generate summary", Cause: err}
	}
	raw = llm.CleanJSONBlock(raw)

	if err := schemas.Validate(schemas.SummaryOutput, []byte(raw)); err != nil {
		return nil, &ParseError{Message: "model output does not match schema", Cause: err}
	}

	var out struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &ParseError{Message: "failed to decode model output", Cause: err}
	}

	return &Generated{
		Title:   strings.TrimSpace(out.Title),
		Summary: strings.TrimSpace(out.Summary),
	}, nil
}
