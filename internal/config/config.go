package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"pocketpilot/internal/advice"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Advice generator
	AdviceProvider   string
	GoogleAPIKey     string
	GeminiModel      string
	OllamaURL        string
	OllamaModel      string
	AdviceTimeout    time.Duration
	AdviceMaxRetries int

	// AMQP outcome events; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker ledger
	LedgerDBPath string

	// Tracing
	TracesStdout bool
}

var (
	validProviders  = []string{"gemini", "ollama", "mock"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8000"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		AdviceProvider:   strings.ToLower(getEnv("ADVICE_PROVIDER", "gemini")),
		GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.2"),
		AdviceTimeout:    getEnvDuration("ADVICE_TIMEOUT", 30*time.Second),
		AdviceMaxRetries: getEnvInt("ADVICE_MAX_RETRIES", 1),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketpilot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "assessment_outcomes"),

		LedgerDBPath: getEnv("LEDGER_DB_PATH", "./data/ledger.db"),

		TracesStdout: getEnvBool("OTEL_TRACES_STDOUT", false),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if !slices.Contains(validProviders, c.AdviceProvider) {
		errors = append(errors, fmt.Sprintf("invalid advice provider '%s': must be one of %v", c.AdviceProvider, validProviders))
	}
	if c.AdviceProvider == "ollama" {
		if parsedURL, err := url.Parse(c.OllamaURL); err != nil || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Ollama URL '%s'", c.OllamaURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid Ollama URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.AdviceTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid advice timeout %v: must be at least 1 second", c.AdviceTimeout))
	} else if c.AdviceTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid advice timeout %v: must be at most 5 minutes", c.AdviceTimeout))
	}
	if c.AdviceMaxRetries < 0 || c.AdviceMaxRetries > 5 {
		errors = append(errors, fmt.Sprintf("invalid advice max retries %d: must be between 0 and 5", c.AdviceMaxRetries))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		errors = append(errors, "CORS allowed origins cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings only the ledger worker needs, and
// creates the ledger directory when it is missing.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the ledger worker")
	}
	if c.LedgerDBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else if dir := filepath.Dir(c.LedgerDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create ledger database directory '%s': %v", dir, err))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Advice returns the generator settings.
func (c *Config) Advice() advice.Config {
	return advice.Config{
		Provider:     c.AdviceProvider,
		GoogleAPIKey: c.GoogleAPIKey,
		GeminiModel:  c.GeminiModel,
		OllamaURL:    c.OllamaURL,
		OllamaModel:  c.OllamaModel,
		Timeout:      c.AdviceTimeout,
		MaxRetries:   c.AdviceMaxRetries,
	}
}

// AdviceBudget is the longest a single assessment can wait on the generator.
// The HTTP write deadline must exceed it for fallback text to reach clients.
func (c *Config) AdviceBudget() time.Duration {
	return advice.WorstCase(c.AdviceTimeout, c.AdviceMaxRetries)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
