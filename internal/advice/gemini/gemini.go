// Package gemini generates advice text with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// placeholderKey ships in the sample .env and is never a real key.
const placeholderKey = "your_google_api_key_here"

var ErrNoAPIKey = errors.New("google api key is not set")

// Configured reports whether apiKey looks usable.
func Configured(apiKey string) bool {
	k := strings.TrimSpace(apiKey)
	return k != "" && k != placeholderKey
}

// Option adjusts the SDK client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at another API host.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = hc
	}
}

type Client struct {
	models *genai.Models
	model  string
}

// New creates a client for model.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	if !Configured(apiKey) {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	slog.InfoContext(ctx, "Gemini client created", "model", model)
	return &Client{models: client.Models, model: model}, nil
}

// Generate sends prompt as a single user turn and joins the text parts of
// the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("response has no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func (c *Client) Model() string {
	return c.model
}
