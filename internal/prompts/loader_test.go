package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	prompt, err := Get("agentic.json", "plan-actions")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "evidence-collection")
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get("agentic.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Goal: {{.Goal}}, coverage: {{.Metrics}}"
	data := map[string]string{
		"Goal":    "sparse attention",
		"Metrics": "websearch=3",
	}

	result := Format(template, data)
	assert.Equal(t, "Goal: sparse attention, coverage: websearch=3", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Goal: {{.Goal}}"
	data := map[string]string{}

	result := Format(template, data)
	assert.Equal(t, template, result) // Placeholder remains
}

func TestCaching(t *testing.T) {
	prompt1, err := Get("agentic.json", "plan-actions")
	require.NoError(t, err)

	prompt2, err := Get("agentic.json", "plan-actions")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
