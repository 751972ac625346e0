// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Paths
	Instruction string `json:"instruction,omitempty"` // Path to the instruction text file
	OutDir      string `json:"out_dir,omitempty"`     // Root output directory for runs

	// Limits
	MaxResults    int `json:"max_results,omitempty"`    // Default per-provider result limit
	MaxIterations int `json:"max_iterations,omitempty"` // Agentic loop cap

	// Behavior
	APIKey         string `json:"api_key,omitempty"`          // Gemini API key
	SearchKey      string `json:"search_key,omitempty"`       // Custom Search / YouTube API key
	SearchEngineID string `json:"search_engine_id,omitempty"` // Programmable search engine ID
	Mailto         string `json:"mailto,omitempty"`           // Contact address for polite API pools
	Language       string `json:"language,omitempty"`         // Preferred transcript/document language
	AgenticSearch  bool   `json:"agentic_search,omitempty"`   // Run the plan/execute/review loop
	DownloadPDF    bool   `json:"download_pdf,omitempty"`     // Fetch PDFs alongside metadata
	Parallel       bool   `json:"parallel,omitempty"`         // Run collectors concurrently
	Verbose        bool   `json:"verbose,omitempty"`          // Debug-level logging
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are checked after flag merging, not here.
func (c *Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("config error: 'max_results' must be non-negative")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("config error: 'max_iterations' must be non-negative")
	}

	if c.Instruction != "" {
		if _, err := os.Stat(c.Instruction); os.IsNotExist(err) {
			return fmt.Errorf("config error: instruction file not found: %s", c.Instruction)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This applies config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Instruction == "" {
		result.Instruction = defaults.Instruction
	}
	if result.OutDir == "" {
		result.OutDir = defaults.OutDir
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.SearchKey == "" {
		result.SearchKey = defaults.SearchKey
	}
	if result.SearchEngineID == "" {
		result.SearchEngineID = defaults.SearchEngineID
	}
	if result.Mailto == "" {
		result.Mailto = defaults.Mailto
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}

	if result.MaxResults == 0 {
		result.MaxResults = defaults.MaxResults
	}
	if result.MaxIterations == 0 {
		result.MaxIterations = defaults.MaxIterations
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
