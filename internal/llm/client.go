package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM providers.
type Client interface {
	// GenerateContent generates text content using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON generates JSON content using the specified model tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return NewGeminiClient(ctx, config, apiKey)
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent generates text content using the specified model tier.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1) // Low temperature for consistent output

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(resp)
}

// GenerateJSON generates JSON content using the specified model tier.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generateJSONVariant(ctx, prompt, tier, jsonVariantStrict)
}

// jsonVariant selects how aggressively the request constrains the response
// format. Some prompts only succeed with looser settings, so callers retry
// down the ladder.
type jsonVariant int

const (
	// jsonVariantStrict forces a JSON MIME type and caps output tokens.
	jsonVariantStrict jsonVariant = iota
	// jsonVariantUncapped forces the JSON MIME type without a token cap.
	jsonVariantUncapped
	// jsonVariantPlain asks in plain text and strips code fences afterward.
	jsonVariantPlain
)

// jsonVariants is the retry ladder, strictest first.
var jsonVariants = []jsonVariant{jsonVariantStrict, jsonVariantUncapped, jsonVariantPlain}

// strictMaxOutputTokens caps the strict variant's response size.
const strictMaxOutputTokens = 8192

func (c *GeminiClient) generateJSONVariant(ctx context.Context, prompt string, tier ModelTier, variant jsonVariant) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	switch variant {
	case jsonVariantStrict:
		model.ResponseMIMEType = "application/json"
		model.SetMaxOutputTokens(strictMaxOutputTokens)
	case jsonVariantUncapped:
		model.ResponseMIMEType = "application/json"
	case jsonVariantPlain:
		// No format constraint; CleanJSONBlock handles the fences.
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GenerateJSONWithRetry walks the parameter-variant ladder until one request
// produces a response, returning the last error when all variants fail.
func GenerateJSONWithRetry(ctx context.Context, client Client, prompt string, tier ModelTier, log *slog.Logger) (string, error) {
	gemini, ok := client.(*GeminiClient)
	if !ok {
		// Non-Gemini clients get a single attempt through the interface.
		return client.GenerateJSON(ctx, prompt, tier)
	}

	var lastErr error
	for i, variant := range jsonVariants {
		text, err := gemini.generateJSONVariant(ctx, prompt, tier, variant)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if log != nil {
			log.Warn("JSON generation attempt failed",
				"variant", i+1, "of", len(jsonVariants), "error", err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("all generation variants failed: %w", lastErr)
}

// GetModel returns the model name for a tier.
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
