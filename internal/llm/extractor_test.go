package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedClient returns a fixed response and remembers the last prompt.
type cannedClient struct {
	response string
	err      error
	prompt   string
}

func (c *cannedClient) GenerateContent(_ context.Context, prompt string, _ ModelTier) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func (c *cannedClient) GenerateJSON(_ context.Context, prompt string, _ ModelTier) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func (c *cannedClient) GetModel(_ ModelTier) string { return "canned" }
func (c *cannedClient) Close() error                { return nil }

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := BuildExtractionPrompt(PageEvidenceSchema(), "some page text")

	assert.Contains(t, prompt, `"key_claims"`)
	assert.Contains(t, prompt, "(required)")
	assert.Contains(t, prompt, `"cited_sources"`)
	assert.Contains(t, prompt, "some page text")
}

func TestExtractPageEvidence(t *testing.T) {
	client := &cannedClient{response: `{"key_claims": ["claim one"], "entities": ["SystemX"]}`}

	evidence, err := ExtractPageEvidence(context.Background(), client, "page text", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"claim one"}, evidence["key_claims"])
	assert.Equal(t, []any{"SystemX"}, evidence["entities"])
	assert.Contains(t, client.prompt, "page text")
}

func TestExtractPageEvidence_TruncatesLongInput(t *testing.T) {
	client := &cannedClient{response: `{"key_claims": []}`}
	text := strings.Repeat("a", evidenceInputLimit) + "OVERFLOW"

	_, err := ExtractPageEvidence(context.Background(), client, text, nil)
	require.NoError(t, err)
	assert.NotContains(t, client.prompt, "OVERFLOW")
}

func TestExtractPageEvidence_BadJSON(t *testing.T) {
	client := &cannedClient{response: "the page says many things"}

	_, err := ExtractPageEvidence(context.Background(), client, "page text", nil)
	require.Error(t, err)
}
