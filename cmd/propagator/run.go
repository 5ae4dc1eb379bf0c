package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/propagator"
	"github.com/telhawk-systems/event-relay/internal/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send events to the consumer until interrupted",
	RunE:  runPropagator,
}

func runPropagator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("propagator"))
	logging.SetDefault(logger)

	events, err := propagator.LoadEvents(cfg.Propagator.EventsFilePath)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to load events from %s", cfg.Propagator.EventsFilePath),
			logging.Error(err))
		return err
	}

	runner, err := propagator.NewRunner(propagator.Config{
		URL:      cfg.Propagator.URL,
		Interval: cfg.Propagator.IntervalDuration(),
		Timeout:  cfg.Propagator.Timeout,
	}, events, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Propagator.EventsFilePath, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "event-propagator",
		Stdout:      cfg.Tracing.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", logging.Error(err))
		}
	}()

	return runner.Run(ctx)
}
