// Package cli provides common initialization utilities.
// This package consolidates the startup steps shared by cmd/pocketpilot,
// cmd/pocketpilot-worker and cmd/pocketpilot-cli.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/budget"
	"pocketpilot/internal/config"
	"pocketpilot/internal/events"
	applog "pocketpilot/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg, writing to out, and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) (*applog.Logger, error) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// NewWorkflow builds the configured advice generator and compiles the
// budget workflow around it.
func NewWorkflow(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*budget.Workflow, error) {
	gen, err := advice.NewFromConfig(ctx, cfg.Advice(), logger.WithComponent(applog.ComponentAdvice).Slog())
	if err != nil {
		return nil, fmt.Errorf("init advice generator: %w", err)
	}
	return budget.New(gen, budget.WithLogger(logger))
}

// NewPublisher connects the outcome event publisher. An empty AMQP URL
// disables publishing. A broker that cannot be reached at startup is logged
// and publishing is disabled, since assessments do not depend on it.
func NewPublisher(cfg *config.Config, logger *applog.Logger) events.Publisher {
	logger = logger.WithComponent(applog.ComponentEvents)
	if cfg.AMQPURL == "" {
		logger.Info("Outcome events disabled - no AMQP_URL provided")
		return events.Noop{}
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect outcome publisher, events disabled",
			applog.FieldError, err.Error(),
			applog.FieldErrorType, applog.ErrorTypeNetwork)
		return events.Noop{}
	}
	logger.Info("Outcome publisher connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}
