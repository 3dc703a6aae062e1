package advice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pocketpilot/internal/advice/gemini"
	"pocketpilot/internal/advice/ollama"
)

// Config selects and tunes the generator backend.
type Config struct {
	Provider     string
	GoogleAPIKey string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string
	Timeout      time.Duration
	MaxRetries   int
}

// NewFromConfig builds the generator named by cfg.Provider. Gemini without
// a usable key degrades to Unconfigured so the service still starts in mock
// mode.
func NewFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var backend Generator
	switch p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p {
	case ProviderMock:
		logger.InfoContext(ctx, "Advice generator in mock mode")
		return Unconfigured{}, nil
	case "", ProviderGemini:
		if !gemini.Configured(cfg.GoogleAPIKey) {
			logger.WarnContext(ctx, "GOOGLE_API_KEY is not set, using mock responses")
			return Unconfigured{}, nil
		}
		client, err := gemini.New(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini generator: %w", err)
		}
		backend = Named(ProviderGemini, client)
	case ProviderOllama:
		client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)
		logger.InfoContext(ctx, "Ollama generator configured", "model", client.Model())
		backend = Named(ProviderOllama, client)
	default:
		return nil, fmt.Errorf("unknown advice provider %q", cfg.Provider)
	}

	return WithRetry(WithTimeout(backend, cfg.Timeout), cfg.MaxRetries, DefaultStrategy()), nil
}
