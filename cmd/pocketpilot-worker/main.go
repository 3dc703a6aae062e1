package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"pocketpilot/internal/cli"
	"pocketpilot/internal/config"
	"pocketpilot/internal/events"
	"pocketpilot/internal/ledger"
	applog "pocketpilot/internal/log"
)

func main() {
	if err := run(); err != nil {
		applog.FromContext(context.Background()).Error("Worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run() error {
	cli.LoadEnvFile()
	cfg := config.Load()

	logger, err := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	logger.Info("Starting pocketpilot-worker")

	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	led, err := ledger.Open(cfg.LedgerDBPath)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", cfg.LedgerDBPath, err)
	}
	defer func() {
		if err := led.Close(); err != nil {
			logger.Warn("Ledger close error", applog.FieldError, err.Error())
		}
	}()

	ctx, stop := cli.SignalContext()
	defer stop()

	dial := func() (events.Consumer, error) {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming assessment outcomes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return events.ConsumeWithReconnect(gctx, dial, led.Handle)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker stopped gracefully")
	return nil
}
