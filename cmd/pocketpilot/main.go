package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketpilot/internal/cli"
	apphttp "pocketpilot/internal/http"
	applog "pocketpilot/internal/log"
	"pocketpilot/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		applog.FromContext(context.Background()).Error("Server error", applog.FieldError, err.Error())
		os.Exit(1)
	}
}

// run returns instead of exiting so the publisher and tracer are always
// flushed.
func run() error {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	logger, err := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	shutdownTracing, err := telemetry.Setup(telemetry.Config{StdoutTraces: cfg.TracesStdout})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracer shutdown error", applog.FieldError, err.Error())
		}
	}()

	wf, err := cli.NewWorkflow(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build budget workflow: %w", err)
	}

	publisher := cli.NewPublisher(cfg, logger)
	defer publisher.Close()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		WriteTimeout:       apphttp.WriteTimeoutFor(cfg.AdviceBudget()),
		Logger:             logger,
		Publisher:          publisher,
	}, wf)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting pocketpilot server", "port", cfg.Port, "provider", wf.Provider(),
			"write_timeout", srv.WriteTimeout)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
