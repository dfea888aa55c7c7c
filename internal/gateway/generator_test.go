package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/tubedigest/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns canned responses and records the prompts it saw.
type stubClient struct {
	reply  string
	err    error
	prompt string
	tier   llm.ModelTier

	plain       string
	plainErr    error
	plainPrompt string
}

func (s *stubClient) GenerateContent(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	s.plainPrompt = prompt
	return s.plain, s.plainErr
}

func (s *stubClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	s.prompt = prompt
	s.tier = tier
	return s.reply, s.err
}

func (s *stubClient) GetModel(llm.ModelTier) string { return "stub" }

func (s *stubClient) Close() error { return nil }

var details = VideoDetails{
	URL:        "https://youtu.be/abc123",
	Title:      "Go Concurrency Patterns",
	Transcript: "Goroutines are cheap. Channels connect them.",
}

func TestLLMGenerator_Generate(t *testing.T) {
	client := &stubClient{reply: "```json\n{\"title\": \"Go Concurrency Patterns\", \"summary\": \" A talk on goroutines. \"}\n```"}
	gen, err := NewLLMGenerator(client)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), details)
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Patterns", out.Title)
	assert.Equal(t, "A talk on goroutines.", out.Summary)

	assert.Equal(t, llm.TierStandard, client.tier)
	assert.Contains(t, client.prompt, "Video title: Go Concurrency Patterns")
	assert.Contains(t, client.prompt, "Video URL: https://youtu.be/abc123")
	assert.True(t, strings.HasSuffix(client.prompt, details.Transcript))
	assert.NotContains(t, client.prompt, "{{.")
}

func TestLLMGenerator_PlainFallback(t *testing.T) {
	client := &stubClient{reply: "Sorry, not JSON.", plain: "  A talk on goroutines.\n"}
	gen, err := NewLLMGenerator(client)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), details)
	require.NoError(t, err)
	assert.Equal(t, details.Title, out.Title)
	assert.Equal(t, "A talk on goroutines.", out.Summary)
	assert.Contains(t, client.plainPrompt, "Video title: Go Concurrency Patterns")
	assert.True(t, strings.HasSuffix(client.plainPrompt, details.Transcript))
}

func TestLLMGenerator_NoFallbackOnAPIError(t *testing.T) {
	client := &stubClient{err: errors.New("quota"), plain: "unused"}
	gen, err := NewLLMGenerator(client)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), details)
	var apiErr *APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, client.plainPrompt)
}

func TestLLMGenerator_FallbackFailureKeepsParseError(t *testing.T) {
	client := &stubClient{reply: "not json", plainErr: errors.New("down")}
	gen, err := NewLLMGenerator(client)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), details)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLLMGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
		target any
	}{
		{"provider error", &stubClient{err: errors.New("quota")}, new(*APICallError)},
		{"not json", &stubClient{reply: "Sorry, I can't help with that."}, new(*ParseError)},
		{"missing summary", &stubClient{reply: `{"title": "t"}`}, new(*ParseError)},
		{"empty summary", &stubClient{reply: `{"summary": ""}`}, new(*ParseError)},
		{"wrong type", &stubClient{reply: `{"summary": 42}`}, new(*ParseError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewLLMGenerator(tt.client)
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), details)
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")

	apiErr := &APICallError{Message: "m", Cause: cause}
	assert.Equal(t, "API call failed: m: boom", apiErr.Error())
	assert.ErrorIs(t, apiErr, cause)
	assert.Equal(t, "API call failed: m", (&APICallError{Message: "m"}).Error())

	parseErr := &ParseError{Message: "p", Cause: cause}
	assert.Equal(t, "parse error: p: boom", parseErr.Error())
	assert.Equal(t, "parse error: p", (&ParseError{Message: "p"}).Error())

	fe := &FailureError{Step: StepGenerate, Cause: apiErr}
	assert.Equal(t, MsgSummarizationFailed, fe.Error())
	assert.ErrorIs(t, fe, ErrSummarizationFailed)
	assert.ErrorIs(t, fe, cause)
	assert.Contains(t, fe.Detail(), "generate step failed")
}
