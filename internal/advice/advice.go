// Package advice defines the text generator consulted by the budget workflow
// and the policy that turns a generator call into a typed outcome.
package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names reported in logs, readiness checks and outcome events.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// ErrUnavailable means no generator credential or backend is configured.
// Callers fall back to fixed text without treating it as a failure.
var ErrUnavailable = errors.New("advice generator not configured")

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GeneratorError reports a failed call to a configured backend.
type GeneratorError struct {
	Provider string
	Err      error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("%s generator: %v", e.Provider, e.Err)
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}

// Kind classifies a generator consultation.
type Kind int

const (
	Generated Kind = iota + 1
	Unavailable
	Failed
)

func (k Kind) String() string {
	switch k {
	case Generated:
		return "generated"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one consultation. Text is set only for
// Generated, Reason only for Failed and Unavailable.
type Result struct {
	Kind   Kind
	Text   string
	Reason string
}

// Consult calls g once and classifies the outcome. It never returns an
// error: a nil generator or ErrUnavailable yields Unavailable, any other
// error or a blank response yields Failed.
func Consult(ctx context.Context, g Generator, prompt string) Result {
	if g == nil {
		return Result{Kind: Unavailable, Reason: ErrUnavailable.Error()}
	}
	text, err := g.Generate(ctx, prompt)
	switch {
	case errors.Is(err, ErrUnavailable):
		return Result{Kind: Unavailable, Reason: err.Error()}
	case err != nil:
		return Result{Kind: Failed, Reason: err.Error()}
	case strings.TrimSpace(text) == "":
		return Result{Kind: Failed, Reason: "empty response"}
	}
	return Result{Kind: Generated, Text: text}
}

// Unconfigured is the generator used in mock mode.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (Unconfigured) Provider() string {
	return ProviderMock
}

// ProviderOf reports the backend name of g, looking through the decorators
// in this package.
func ProviderOf(g Generator) string {
	if g == nil {
		return ProviderMock
	}
	if p, ok := g.(interface{ Provider() string }); ok {
		return p.Provider()
	}
	return "custom"
}

// named tags a backend with its provider and wraps its errors.
type named struct {
	provider string
	next     Generator
}

// Named wraps g so that its errors become *GeneratorError for provider.
func Named(provider string, g Generator) Generator {
	return &named{provider: provider, next: g}
}

func (n *named) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := n.next.Generate(ctx, prompt)
	if err != nil && !errors.Is(err, ErrUnavailable) {
		var ge *GeneratorError
		if !errors.As(err, &ge) {
			err = &GeneratorError{Provider: n.provider, Err: err}
		}
	}
	return text, err
}

func (n *named) Provider() string {
	return n.provider
}
