package graph

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for graph tracing.
const tracerName = "pocketpilot/internal/graph"

type settings struct {
	tracer trace.Tracer
	logger *slog.Logger
}

func defaultSettings() settings {
	return settings{
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
}

// Option configures a compiled graph.
type Option func(*settings)

// WithTracer sets the tracer used for run and node spans. Without it the
// global TracerProvider is used, which is a no-op unless one is installed.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger sets the logger used for per-node debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
