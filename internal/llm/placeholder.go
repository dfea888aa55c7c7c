package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// TranscriptMarker introduces the transcript in summarization prompts.
// PlaceholderClient summarizes whatever follows it.
const TranscriptMarker = "Transcript:"

const placeholderFallback = "No transcript was available to summarize."

// PlaceholderClient is an offline Client. It echoes the leading sentences of
// the prompt's transcript so the rest of the pipeline can run without a provider.
type PlaceholderClient struct {
	config    *Config
	sentences int
}

// NewPlaceholderClient creates an offline client.
func NewPlaceholderClient(config *Config) *PlaceholderClient {
	if config == nil {
		config = DefaultPlaceholderConfig()
	}
	return &PlaceholderClient{config: config, sentences: 2}
}

// GenerateContent returns the extractive summary as plain text.
func (c *PlaceholderClient) GenerateContent(ctx context.Context, prompt string, _ ModelTier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.summarize(prompt), nil
}

// GenerateJSON returns {"summary": ...}.
func (c *PlaceholderClient) GenerateJSON(ctx context.Context, prompt string, _ ModelTier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, err := json.Marshal(map[string]string{"summary": c.summarize(prompt)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GetModel returns the model name for a tier
func (c *PlaceholderClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op.
func (c *PlaceholderClient) Close() error {
	return nil
}

func (c *PlaceholderClient) summarize(prompt string) string {
	idx := strings.LastIndex(prompt, TranscriptMarker)
	if idx < 0 {
		return placeholderFallback
	}
	text := strings.Join(strings.Fields(prompt[idx+len(TranscriptMarker):]), " ")
	if text == "" {
		return placeholderFallback
	}

	var sb strings.Builder
	count := 0
	for _, word := range strings.Fields(text) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(word)
		if strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?") {
			count++
			if count == c.sentences {
				break
			}
		}
	}
	return sb.String()
}
