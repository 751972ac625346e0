// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
// It provides a reusable way to define what information to extract from text.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "PageEvidence")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// evidenceInputLimit caps how much page text one extraction request carries.
const evidenceInputLimit = 12000

// ExtractPageEvidence runs the page-evidence schema over extracted page text
// and decodes the model's JSON response into a record fragment.
func ExtractPageEvidence(ctx context.Context, client Client, text string, log *slog.Logger) (map[string]any, error) {
	if len(text) > evidenceInputLimit {
		text = text[:evidenceInputLimit]
	}

	prompt := BuildExtractionPrompt(PageEvidenceSchema(), text)
	raw, err := GenerateJSONWithRetry(ctx, client, prompt, TierLite, log)
	if err != nil {
		return nil, fmt.Errorf("extract page evidence: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &out); err != nil {
		return nil, fmt.Errorf("decode page evidence: %w", err)
	}
	return out, nil
}

// --- Predefined Schemas ---

// PageEvidenceSchema returns the extraction schema for fetched web pages.
// Extracts the claims and entities that make a page useful as evidence.
func PageEvidenceSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "PageEvidence",
		Description: `You are an expert research assistant. COPY TEXT VERBATIM - do not paraphrase or reword.
Your task is to extract the evidence-bearing content from a fetched web page.
EXCLUDE: Navigation text, cookie notices, subscription prompts, comment sections.`,
		Fields: []SchemaField{
			{
				Name:        "key_claims",
				Type:        "[\"string\"]",
				Description: "Factual claims or findings stated on the page - copy each verbatim",
				Required:    true,
			},
			{
				Name:        "entities",
				Type:        "[\"string\"]",
				Description: "Named systems, datasets, methods, people, or organizations the page discusses",
				Required:    false,
			},
			{
				Name:        "cited_sources",
				Type:        "[\"string\"]",
				Description: "Papers, URLs, or identifiers the page cites as its own sources",
				Required:    false,
			},
			{
				Name:        "publication_date",
				Type:        "\"string\"",
				Description: "Publication or last-updated date if stated, ISO format preferred",
				Required:    false,
			},
		},
	}
}
