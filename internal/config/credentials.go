package config

import (
	"log/slog"
	"os"
)

// Environment variable names for credentials. A .env file loaded at startup
// feeds these too.
const (
	EnvGeminiKey      = "GEMINI_API_KEY"
	EnvSearchKey      = "GOOGLE_API_KEY"
	EnvSearchEngineID = "SEARCH_ENGINE_ID"
	EnvMailto         = "OPENALEX_MAILTO"
)

// Credentials holds every secret the providers need. A missing credential is
// not an error: the provider it serves is disabled with one warning.
type Credentials struct {
	GeminiKey      string
	SearchKey      string
	SearchEngineID string
	Mailto         string
}

// LoadCredentials resolves credentials from the config file first and the
// environment second, warning once per missing value.
func LoadCredentials(cfg Config, log *slog.Logger) Credentials {
	creds := Credentials{
		GeminiKey:      fallback(cfg.APIKey, EnvGeminiKey),
		SearchKey:      fallback(cfg.SearchKey, EnvSearchKey),
		SearchEngineID: fallback(cfg.SearchEngineID, EnvSearchEngineID),
		Mailto:         fallback(cfg.Mailto, EnvMailto),
	}

	if creds.GeminiKey == "" {
		log.Warn("no Gemini API key, agentic planning will use the heuristic", "env", EnvGeminiKey)
	}
	if creds.SearchKey == "" {
		log.Warn("no Google API key, web and video search disabled", "env", EnvSearchKey)
	}
	if creds.SearchEngineID == "" {
		log.Warn("no search engine ID, web search disabled", "env", EnvSearchEngineID)
	}
	return creds
}

func fallback(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}
